// Package args provides the parameter specs used when binding Go
// functions as host methods. Specs are matched position by position
// against the handler's signature and consume the incoming call
// strictly left to right:
//
//	cls.DefineMethod("push", handler,
//		args.Receiver[bridge.Value](),
//		args.Req[string]("name"),
//		args.Opt[int64]("count"),
//		args.Splat[bridge.Value](),
//		args.Block(),
//	)
//
// Required arguments raise ArgumentError when absent, optional ones
// surface as nil pointers, a splat absorbs whatever is left, and block
// specs read the block attached to the call rather than consuming a
// positional. Ordering is validated at registration: receiver first,
// then required, optional, splat, block.
package args
