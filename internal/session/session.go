// Package session drives the request/response loop between the bridge and
// the interpreter child. The loop is strictly synchronous: one request is
// outstanding at a time, and the child blocks on the response line before
// it can emit the next request.
package session

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/jqbridge/internal/log"
	"github.com/mattjoyce/jqbridge/internal/protocol"
)

// Transport is the line rendezvous with the child: read one request line,
// write one response line (flushed before the next read). Implemented by
// supervisor.Child; tests substitute in-memory pipes.
type Transport interface {
	// ReadLine returns the next line from the child's output, ok=false at
	// end-of-stream.
	ReadLine() (line string, ok bool)
	// WriteLine writes one line to the child's input and flushes it.
	WriteLine(s string) error
}

// Handler executes one decoded effect request.
type Handler interface {
	Handle(req protocol.Request) protocol.Outcome
}

// Recorder observes each dispatched effect. Implementations must not fail
// the loop; recording is diagnostic only.
type Recorder interface {
	Record(op string, requestLine string, outcome protocol.Outcome, elapsed time.Duration)
}

// Reason classifies how a session ended.
type Reason int

const (
	// Normal: the child closed its output stream; propagate its exit status.
	Normal Reason = iota
	// ScriptError: the script emitted the distinguished fatal line.
	ScriptError
	// ProtocolViolation: a request line could not be decoded. The
	// alternation is broken irrecoverably; the session aborts.
	ProtocolViolation
	// PipeError: the child exited while the bridge was writing a response.
	PipeError
)

// Termination describes the end state of a session run.
type Termination struct {
	Reason  Reason
	Code    *int   // script-supplied exit code, ScriptError only
	Message string // human-readable diagnostic
	Line    string // offending request line, ProtocolViolation only
}

// Options configures a Session.
type Options struct {
	Recorder Recorder
}

// Session is one run of the dispatch loop over a single child lifetime.
type Session struct {
	ID        string
	transport Transport
	handler   Handler
	recorder  Recorder
	logger    *slog.Logger
}

// New creates a session with a fresh ID.
func New(t Transport, h Handler, opts Options) *Session {
	id := uuid.NewString()
	return &Session{
		ID:        id,
		transport: t,
		handler:   h,
		recorder:  opts.Recorder,
		logger:    log.WithSession(id),
	}
}

// SetRecorder attaches a recorder after construction. The trace store
// needs the session ID, which only exists once the session does.
func (s *Session) SetRecorder(r Recorder) {
	s.recorder = r
}

// Run executes the dispatch loop until the child terminates the session.
// A malformed request is never retried or skipped: silently dropping it
// would desynchronize the request/response alternation.
func (s *Session) Run() Termination {
	s.logger.Debug("session started")
	requests := 0
	for {
		line, ok := s.transport.ReadLine()
		if !ok {
			s.logger.Debug("child closed its output", "requests", requests)
			return Termination{Reason: Normal}
		}

		req, err := protocol.DecodeRequest(line)
		if err != nil {
			s.logger.Error("undecodable request", "error", err)
			return Termination{
				Reason:  ProtocolViolation,
				Message: err.Error(),
				Line:    line,
			}
		}

		if fatal, ok := req.(protocol.Fatal); ok {
			// Fatal means "do not expect a response"; nothing is written back.
			s.logger.Debug("script signaled fatal", "message", fatal.Message)
			return Termination{
				Reason:  ScriptError,
				Code:    fatal.Code,
				Message: fatal.Message,
			}
		}

		start := time.Now()
		outcome := s.handler.Handle(req)
		elapsed := time.Since(start)
		requests++

		if s.recorder != nil {
			s.recorder.Record(req.Op(), line, outcome, elapsed)
		}

		encoded, err := protocol.EncodeOutcome(outcome)
		if err != nil {
			s.logger.Error("outcome not encodable", "op", req.Op(), "error", err)
			return Termination{
				Reason:  ProtocolViolation,
				Message: err.Error(),
				Line:    line,
			}
		}
		if err := s.transport.WriteLine(encoded); err != nil {
			s.logger.Error("response write failed", "op", req.Op(), "error", err)
			return Termination{Reason: PipeError, Message: err.Error()}
		}
	}
}
