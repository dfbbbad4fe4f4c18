// Package panicfd installs a process-wide crash capture sink.
//
// The Go runtime prints fatal panics, throws, and fatal signal reports to
// stderr, where they are lost unless something is reading it. panicfd
// registers an additional destination via [runtime/debug.SetCrashOutput]
// so the final trace survives the process:
//
//   - under a supervisor, the inherited descriptor named by the
//     CRASHSHIP_CRASH_FD environment variable;
//   - otherwise a pending spool file in the directory named by option or
//     CRASHSHIP_PENDING_DIR, where a collector will find it;
//   - otherwise a memory-backed file (memfd on Linux), useful to tests
//     and embedders that read the sink themselves.
//
// The runtime writes the crash report synchronously before the process
// exits, with no goroutine scheduling involved, so the capture works for
// deadlocks and fatal signals as well as panics.
//
// Typical use is Install at the top of main and Close on the orderly
// shutdown path once no more work will run. Do not defer the Close:
// deferred calls run while a panic unwinds, before the runtime writes
// the crash report, so a deferred Close tears the sink down at exactly
// the wrong moment. A crashing process never reaches the explicit
// Close, so the pending artifact survives exactly when a crash
// happened; a clean exit removes it.
package panicfd
