// Command crasher terminates itself on purpose. It exists to exercise the
// crash pipeline end to end: install the capture sink, die, and let the
// collector and sender prove they picked the report up.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/spoolworks/crashship/pkg/panicfd"
)

const crashMessage = "intentional crash: exercising the crash pipeline"

func main() {
	nocrash := flag.Bool("nocrash", false, "print OK and exit cleanly instead of crashing")
	mode := flag.String("mode", "panic", "failure expression: panic, nil, oob or abort")
	flag.Parse()

	// One scheduler thread keeps the trace down to a single goroutine.
	runtime.GOMAXPROCS(1)

	// The pid line goes first: wrappers such as su change the apparent
	// pid, and a harness needs the real one before the process dies.
	fmt.Printf("pid=%d\n", os.Getpid())

	var opts []panicfd.Option
	if *mode == "abort" {
		opts = append(opts, panicfd.WithCoreDump())
	}
	h, err := panicfd.Install(opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "crasher: %v\n", err)
		os.Exit(1)
	}

	if *nocrash {
		// Not deferred: a deferred Close would run during panic
		// unwinding and remove the sink before the runtime writes
		// the report.
		h.Close()
		fmt.Println("OK")
		return
	}

	crash(*mode)
}

// crash never returns. Unknown modes fall through to a plain panic so
// every invocation still terminates abnormally.
func crash(mode string) {
	switch mode {
	case "nil":
		var p *int
		*p = 0
	case "oob":
		var empty []int
		_ = empty[1]
	default:
		panic(crashMessage)
	}
	panic("unreachable")
}
