// Package supervisor owns the interpreter child process: its stdin (write
// end), its stdout (read end), and its exit status. The child's stderr is
// inherited so interpreter diagnostics pass through unmodified.
package supervisor

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/mattjoyce/jqbridge/internal/log"
)

// NoneExitCode is reported when the child did not produce an exit status,
// e.g. it was terminated by a signal.
const NoneExitCode = 250

// DefaultGracePeriod is how long Shutdown waits after closing the child's
// stdin before force-killing it.
const DefaultGracePeriod = 5 * time.Second

// ErrBrokenPipe means the child exited (or closed its stdin) while the
// bridge was writing a response. Always session-fatal.
var ErrBrokenPipe = errors.New("broken pipe to child")

// Options configures a child launch.
type Options struct {
	// Dir is the working directory for the child. Empty inherits ours.
	Dir string
	// Stderr overrides the child's stderr. Defaults to os.Stderr.
	Stderr io.Writer
}

// Child is a supervised interpreter instance. Not safe for concurrent
// reads or concurrent writes; the dispatch loop is the only reader/writer.
// Wait and Shutdown may be called from a signal goroutine.
type Child struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	out    *bufio.Reader
	in     *bufio.Writer
	logger *slog.Logger

	closeOnce sync.Once
	waitOnce  sync.Once
	exitCode  int
}

// Start launches the interpreter with the given argument list. The flags
// selecting unbuffered, no-default-input execution are the caller's to
// supply inside args; the supervisor only owns the pipes.
func Start(program string, args []string, opts Options) (*Child, error) {
	cmd := exec.Command(program, args...)
	cmd.Dir = opts.Dir
	if opts.Stderr != nil {
		cmd.Stderr = opts.Stderr
	} else {
		cmd.Stderr = os.Stderr
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start interpreter: %w", err)
	}

	return &Child{
		cmd:    cmd,
		stdin:  stdin,
		out:    bufio.NewReader(stdout),
		in:     bufio.NewWriter(stdin),
		logger: log.WithComponent("supervisor").With("pid", cmd.Process.Pid),
	}, nil
}

// ReadLine reads the child's next output line, without the trailing
// newline. ok is false at end-of-stream: the child closed its output.
// A bufio.Reader (not a Scanner) so lines are not bounded by a token cap;
// a write_file request can carry a large content field.
func (c *Child) ReadLine() (line string, ok bool) {
	s, err := c.out.ReadString('\n')
	if err != nil {
		if s == "" {
			if !errors.Is(err, io.EOF) {
				c.logger.Debug("read from child failed", "error", err)
			}
			return "", false
		}
		// Final line without a trailing newline still counts.
		return s, true
	}
	return s[:len(s)-1], true
}

// WriteLine writes one line to the child's stdin and flushes immediately.
// The child blocks on this exact line before emitting its next request, so
// any delayed buffering would deadlock the session.
func (c *Child) WriteLine(s string) error {
	if _, err := c.in.WriteString(s); err != nil {
		return c.writeErr(err)
	}
	if err := c.in.WriteByte('\n'); err != nil {
		return c.writeErr(err)
	}
	if err := c.in.Flush(); err != nil {
		return c.writeErr(err)
	}
	return nil
}

func (c *Child) writeErr(err error) error {
	if errors.Is(err, syscall.EPIPE) || errors.Is(err, os.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return fmt.Errorf("%w: %v", ErrBrokenPipe, err)
	}
	return fmt.Errorf("write to child: %w", err)
}

// CloseInput closes the child's stdin. Safe to call more than once.
func (c *Child) CloseInput() {
	c.closeOnce.Do(func() {
		if err := c.stdin.Close(); err != nil {
			c.logger.Debug("close child stdin", "error", err)
		}
	})
}

// Wait reaps the child and returns its exit status, NoneExitCode when the
// OS reported none. Safe to call from multiple goroutines; the child is
// reaped exactly once.
func (c *Child) Wait() int {
	c.waitOnce.Do(func() {
		err := c.cmd.Wait()
		switch {
		case err == nil:
			c.exitCode = 0
		default:
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				code := exitErr.ExitCode()
				if code < 0 {
					c.logger.Warn("child terminated without exit status", "error", err)
					code = NoneExitCode
				}
				c.exitCode = code
			} else {
				c.logger.Error("wait for child failed", "error", err)
				c.exitCode = NoneExitCode
			}
		}
	})
	return c.exitCode
}

// Shutdown closes the child's stdin to let it flush diagnostics and exit
// on its own, then force-kills it if it has not exited within grace.
// Returns the child's exit status. Never leaves a zombie.
func (c *Child) Shutdown(grace time.Duration) int {
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	c.CloseInput()

	done := make(chan int, 1)
	go func() {
		done <- c.Wait()
	}()

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case code := <-done:
		return code
	case <-timer.C:
		c.logger.Warn("child ignored closed stdin, killing", "grace", grace)
		if err := c.cmd.Process.Kill(); err != nil {
			c.logger.Error("kill child", "error", err)
		}
		return <-done
	}
}
