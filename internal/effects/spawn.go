package effects

import (
	"errors"
	"os"
	"os/exec"

	"github.com/mattjoyce/jqbridge/internal/protocol"
)

// noneExitCode stands in for an exit status the OS did not report, e.g. a
// process terminated by a signal.
const noneExitCode = 250

// cappedBuffer collects writes up to cap bytes and discards the rest.
// Spawned programs with unbounded output would otherwise grow the capture
// without limit while the loop is blocked on the wait.
type cappedBuffer struct {
	buf       []byte
	cap       int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	room := b.cap - len(b.buf)
	if room > 0 {
		if len(p) < room {
			room = len(p)
		}
		b.buf = append(b.buf, p[:room]...)
	}
	if room < len(p) {
		b.truncated = true
	}
	return len(p), nil
}

// spawn launches the program, waits for it synchronously and captures its
// output eagerly. A non-zero exit status is data, not an error; only a
// program that cannot be launched produces a spawn_error. The wait has no
// timeout: a hung program hangs the session.
func (r *Runner) spawn(q protocol.Spawn) protocol.Outcome {
	cmd := exec.Command(q.Program, q.Args...)
	cmd.Dir = r.dir
	stdout := &cappedBuffer{cap: r.stdoutCap}
	stderr := &cappedBuffer{cap: r.stderrCap}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	status, out := runAndStatus(cmd)
	if out != nil {
		return *out
	}

	r.logger.Debug("spawn complete", "program", q.Program, "status", status,
		"stdout_bytes", len(stdout.buf), "stderr_bytes", len(stderr.buf))
	return protocol.Ok(protocol.SpawnResult{
		Status:          status,
		Stdout:          string(stdout.buf),
		Stderr:          string(stderr.buf),
		StdoutTruncated: stdout.truncated,
		StderrTruncated: stderr.truncated,
	})
}

// system runs the program with the bridge's own stdout/stderr and returns
// only the exit status.
func (r *Runner) system(q protocol.System) protocol.Outcome {
	cmd := exec.Command(q.Program, q.Args...)
	cmd.Dir = r.dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	status, out := runAndStatus(cmd)
	if out != nil {
		return *out
	}
	return protocol.Ok(status)
}

// runAndStatus runs cmd to completion. It returns the exit status, or a
// non-nil spawn_error outcome when the program could not be launched.
func runAndStatus(cmd *exec.Cmd) (int, *protocol.Outcome) {
	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		status := exitErr.ExitCode()
		if status < 0 {
			status = noneExitCode
		}
		return status, nil
	}
	fail := protocol.Fail(protocol.KindSpawn, err.Error())
	return 0, &fail
}
