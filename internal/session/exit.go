package session

import (
	"fmt"
	"io"
)

// Process exit codes per termination class. Script-error codes come from
// the script itself; the rest are fixed and distinct so callers can tell
// the classes apart.
const (
	// ExitScriptErrorDefault is used when a fatal line carries no code.
	ExitScriptErrorDefault = 5
	// ExitProtocolViolation marks a bridge/script contract mismatch. Never
	// a transient condition.
	ExitProtocolViolation = 76
	// ExitPipeError marks a child that exited mid-write.
	ExitPipeError = 74
)

// Resolve maps a termination to this process's exit code, printing the
// class diagnostic to stderr. shutdown must reap the child and return its
// exit status; it is called on every path so no zombie survives.
func Resolve(term Termination, shutdown func() int, stderr io.Writer) int {
	switch term.Reason {
	case Normal:
		return shutdown()
	case ScriptError:
		shutdown()
		if term.Message != "" {
			fmt.Fprintln(stderr, term.Message)
		}
		if term.Code != nil {
			return *term.Code
		}
		return ExitScriptErrorDefault
	case ProtocolViolation:
		shutdown()
		fmt.Fprintf(stderr, "protocol violation: %s (line: %q)\n", term.Message, term.Line)
		return ExitProtocolViolation
	case PipeError:
		shutdown()
		fmt.Fprintf(stderr, "child exited mid-write: %s\n", term.Message)
		return ExitPipeError
	default:
		shutdown()
		fmt.Fprintf(stderr, "unknown termination reason %d\n", term.Reason)
		return ExitProtocolViolation
	}
}
