package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"golang.org/x/term"

	"github.com/hostbridge/hostbridge/bridge"
)

func main() {
	var (
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
		compact     = flag.Bool("gc", false, "Run a compacting collection before dumping")
		dumpNative  = flag.Bool("native", false, "Dump the native structs behind typed objects")
	)
	flag.Parse()

	if *interactive {
		if err := runInteractive(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*compact, *dumpNative); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(compact, dumpNative bool) error {
	w, err := buildWorkbench()
	if err != nil {
		return err
	}
	defer w.release()
	rt := w.rt

	width := 80
	if term.IsTerminal(int(os.Stdout.Fd())) {
		if cols, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && cols > 0 {
			width = cols
		}
	}

	fmt.Printf("Live objects: %d\n\n", rt.Host().LiveObjects())
	for _, e := range w.exhibits {
		fmt.Println(clip(w.describe(e), width))
	}

	if compact {
		before := rt.Host().LiveObjects()
		rt.GCStart(true)
		fmt.Printf("\nCompacted: %d -> %d live objects\n", before, rt.Host().LiveObjects())
		fmt.Println("Rooted exhibits after relocation:")
		for _, e := range w.exhibits {
			fmt.Println(clip(w.describe(e), width))
		}
	}

	if dumpNative {
		fmt.Println("\nNative structs:")
		for _, e := range w.exhibits {
			if e.native == nil {
				continue
			}
			fmt.Printf("%s:\n%s", e.name, spew.Sdump(e.native(e.value.Get())))
		}
	}

	// one sample call per exhibit shows the dispatch path end to end
	fmt.Println("\nSample calls:")
	for _, e := range w.exhibits {
		if len(e.methods) == 0 {
			continue
		}
		name, args := splitCall(e.methods[0])
		out, err := callMethod(rt, e.value.Get(), name, args)
		if err != nil {
			fmt.Printf("  %s.%s -> %v\n", e.name, name, err)
			continue
		}
		fmt.Printf("  %s.%s -> %s\n", e.name, name, out)
	}
	return nil
}

// callMethod dispatches name on v under a protection barrier, so raises
// come back as errors instead of unwinding the process.
func callMethod(rt *bridge.Runtime, v bridge.Value, name string, words []string) (string, error) {
	argv := make([]bridge.Value, len(words))
	for i, word := range words {
		argv[i] = parseArg(rt, word)
	}
	out, err := rt.Protect(func() bridge.Value {
		return v.Send(name, argv...)
	})
	if err != nil {
		return "", err
	}
	return out.Inspect(), nil
}

func splitCall(line string) (string, []string) {
	words := strings.Fields(line)
	if len(words) == 0 {
		return "", nil
	}
	return words[0], words[1:]
}

func clip(s string, width int) string {
	if len(s) <= width {
		return s
	}
	return s[:width]
}
