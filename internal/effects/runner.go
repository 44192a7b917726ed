// Package effects implements one handler per wire operation. Handlers wrap
// a single host OS call and report failures as data: an io_error or
// spawn_error outcome goes back to the script, which decides whether to
// continue. Nothing in this package aborts the session.
package effects

import (
	"io"
	"log/slog"
	"math/rand/v2"
	"os"

	"github.com/mattjoyce/jqbridge/internal/log"
	"github.com/mattjoyce/jqbridge/internal/protocol"
)

const (
	// DefaultStdoutCap bounds eager capture of a spawned program's stdout.
	DefaultStdoutCap = 1 << 20
	// DefaultStderrCap bounds eager capture of a spawned program's stderr.
	DefaultStderrCap = 64 * 1024
)

// Options configures a Runner. Zero values pick the defaults.
type Options struct {
	// Stdout receives print/println output. Defaults to os.Stdout.
	Stdout io.Writer
	// Dir is the working directory for the script's effects: relative
	// request paths resolve against it, spawned subprocesses run in it,
	// and current_dir answers with it. Empty means the bridge's own cwd.
	Dir string
	// StdoutCap / StderrCap bound spawn output capture in bytes.
	StdoutCap int
	StderrCap int
}

// Runner holds the ambient context shared by all handlers: the bridge's
// own stdout, the working directory, the RNG, and the spawn capture caps.
type Runner struct {
	stdout    io.Writer
	dir       string
	rng       *rand.Rand
	stdoutCap int
	stderrCap int
	logger    *slog.Logger
}

// New creates a Runner.
func New(opts Options) *Runner {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.StdoutCap <= 0 {
		opts.StdoutCap = DefaultStdoutCap
	}
	if opts.StderrCap <= 0 {
		opts.StderrCap = DefaultStderrCap
	}
	return &Runner{
		stdout:    opts.Stdout,
		dir:       opts.Dir,
		rng:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		stdoutCap: opts.StdoutCap,
		stderrCap: opts.StderrCap,
		logger:    log.WithComponent("effects"),
	}
}

// Handle routes a decoded request to its handler and returns the outcome.
// Fatal lines never reach here; the dispatch loop recognizes them before
// dispatch.
func (r *Runner) Handle(req protocol.Request) protocol.Outcome {
	switch q := req.(type) {
	case protocol.ReadFile:
		return r.readFile(q)
	case protocol.WriteFile:
		return r.writeFile(q)
	case protocol.ReadDir:
		return r.readDir(q)
	case protocol.Exists:
		return r.exists(q)
	case protocol.Metadata:
		return r.metadata(q)
	case protocol.Print:
		return r.print(q.Text, false)
	case protocol.Println:
		return r.print(q.Text, true)
	case protocol.Random:
		return protocol.Ok(r.rng.Int64())
	case protocol.RandomFloat:
		return protocol.Ok(r.rng.Float64())
	case protocol.EnvGet:
		return envGet(q)
	case protocol.EnvSet:
		return envSet(q)
	case protocol.EnvRemove:
		return envRemove(q)
	case protocol.Spawn:
		return r.spawn(q)
	case protocol.System:
		return r.system(q)
	case protocol.CurrentDir:
		return r.currentDir()
	case protocol.TempDir:
		return protocol.Ok(os.TempDir())
	case protocol.ProcessID:
		return protocol.Ok(os.Getpid())
	default:
		// Unreachable for requests produced by the codec.
		return protocol.Fail(protocol.KindIo, "unhandled request kind "+req.Op())
	}
}

func (r *Runner) print(text string, newline bool) protocol.Outcome {
	if _, err := io.WriteString(r.stdout, text); err != nil {
		return protocol.Fail(protocol.KindIo, err.Error())
	}
	if newline {
		if _, err := io.WriteString(r.stdout, "\n"); err != nil {
			return protocol.Fail(protocol.KindIo, err.Error())
		}
	}
	return protocol.Ok(nil)
}
