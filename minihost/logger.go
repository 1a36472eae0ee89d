package minihost

import (
	"sync"

	"go.uber.org/zap"
)

var (
	nopOnce   sync.Once
	nopShared *zap.Logger
)

// nopLogger returns a shared no-op logger used when the caller does not
// supply one.
func nopLogger() *zap.Logger {
	nopOnce.Do(func() {
		nopShared = zap.NewNop()
	})
	return nopShared
}
