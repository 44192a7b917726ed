package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Protocol errors. Both abort the session: a request that cannot be decoded
// breaks the request/response alternation irrecoverably.
var (
	// ErrMalformed means the line is not valid JSON or does not match any
	// known request shape.
	ErrMalformed = errors.New("malformed request")
	// ErrUnknownOperation means the line is structurally valid JSON but
	// names an operation outside the fixed vocabulary.
	ErrUnknownOperation = errors.New("unknown operation")
)

// envelope is the flat wire shape of a request line. Pointer fields
// distinguish absent from empty so required parameters can be validated
// per operation.
type envelope struct {
	Op      string     `json:"op,omitempty"`
	Fatal   *fatalBody `json:"fatal,omitempty"`
	Path    *string    `json:"path,omitempty"`
	Content *string    `json:"content,omitempty"`
	Append  *bool      `json:"append,omitempty"`
	Text    *string    `json:"text,omitempty"`
	Name    *string    `json:"name,omitempty"`
	Value   *string    `json:"value,omitempty"`
	Program *string    `json:"program,omitempty"`
	Args    []string   `json:"args,omitempty"`
}

// present lists the parameter fields the line actually carried.
func (e *envelope) present() []string {
	var fields []string
	add := func(name string, set bool) {
		if set {
			fields = append(fields, name)
		}
	}
	add("path", e.Path != nil)
	add("content", e.Content != nil)
	add("append", e.Append != nil)
	add("text", e.Text != nil)
	add("name", e.Name != nil)
	add("value", e.Value != nil)
	add("program", e.Program != nil)
	add("args", e.Args != nil)
	return fields
}

// opFields is the parameter vocabulary per operation. A line carrying a
// field outside its op's set is malformed even when the field belongs to
// some other op.
var opFields = map[string]map[string]bool{
	OpReadFile:    {"path": true},
	OpWriteFile:   {"path": true, "content": true, "append": true},
	OpReadDir:     {"path": true},
	OpExists:      {"path": true},
	OpMetadata:    {"path": true},
	OpPrint:       {"text": true},
	OpPrintln:     {"text": true},
	OpRandom:      {},
	OpRandomFloat: {},
	OpEnvGet:      {"name": true},
	OpEnvSet:      {"name": true, "value": true},
	OpEnvRemove:   {"name": true},
	OpSpawn:       {"program": true, "args": true},
	OpSystem:      {"program": true, "args": true},
	OpCurrentDir:  {},
	OpTempDir:     {},
	OpProcessID:   {},
}

type fatalBody struct {
	Code    *int   `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// DecodeRequest parses one line of the wire protocol into a Request.
// Decoding is strict both ways: unknown fields are rejected outright, and
// known fields that do not belong to the line's op are rejected too.
// Returns an error wrapping ErrMalformed or ErrUnknownOperation; the caller
// must treat either as a protocol violation and abort the session.
func DecodeRequest(line string) (Request, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty line", ErrMalformed)
	}

	var env envelope
	decoder := json.NewDecoder(strings.NewReader(trimmed))
	decoder.DisallowUnknownFields() // Strict parsing
	if err := decoder.Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if env.Fatal != nil {
		if env.Op != "" || len(env.present()) > 0 {
			return nil, fmt.Errorf("%w: fatal line carries extra fields", ErrMalformed)
		}
		return Fatal{Code: env.Fatal.Code, Message: env.Fatal.Message}, nil
	}
	if env.Op == "" {
		return nil, fmt.Errorf("%w: missing op tag", ErrMalformed)
	}

	allowed, known := opFields[env.Op]
	if !known {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, env.Op)
	}
	for _, field := range env.present() {
		if !allowed[field] {
			return nil, fmt.Errorf("%w: op %q does not take field %q", ErrMalformed, env.Op, field)
		}
	}

	switch env.Op {
	case OpReadFile:
		if env.Path == nil {
			return nil, missingField(env.Op, "path")
		}
		return ReadFile{Path: *env.Path}, nil
	case OpWriteFile:
		if env.Path == nil {
			return nil, missingField(env.Op, "path")
		}
		if env.Content == nil {
			return nil, missingField(env.Op, "content")
		}
		return WriteFile{Path: *env.Path, Content: *env.Content, Append: env.Append != nil && *env.Append}, nil
	case OpReadDir:
		if env.Path == nil {
			return nil, missingField(env.Op, "path")
		}
		return ReadDir{Path: *env.Path}, nil
	case OpExists:
		if env.Path == nil {
			return nil, missingField(env.Op, "path")
		}
		return Exists{Path: *env.Path}, nil
	case OpMetadata:
		if env.Path == nil {
			return nil, missingField(env.Op, "path")
		}
		return Metadata{Path: *env.Path}, nil
	case OpPrint:
		if env.Text == nil {
			return nil, missingField(env.Op, "text")
		}
		return Print{Text: *env.Text}, nil
	case OpPrintln:
		if env.Text == nil {
			return nil, missingField(env.Op, "text")
		}
		return Println{Text: *env.Text}, nil
	case OpRandom:
		return Random{}, nil
	case OpRandomFloat:
		return RandomFloat{}, nil
	case OpEnvGet:
		if env.Name == nil {
			return nil, missingField(env.Op, "name")
		}
		return EnvGet{Name: *env.Name}, nil
	case OpEnvSet:
		if env.Name == nil {
			return nil, missingField(env.Op, "name")
		}
		if env.Value == nil {
			return nil, missingField(env.Op, "value")
		}
		return EnvSet{Name: *env.Name, Value: *env.Value}, nil
	case OpEnvRemove:
		if env.Name == nil {
			return nil, missingField(env.Op, "name")
		}
		return EnvRemove{Name: *env.Name}, nil
	case OpSpawn:
		if env.Program == nil {
			return nil, missingField(env.Op, "program")
		}
		return Spawn{Program: *env.Program, Args: env.Args}, nil
	case OpSystem:
		if env.Program == nil {
			return nil, missingField(env.Op, "program")
		}
		return System{Program: *env.Program, Args: env.Args}, nil
	case OpCurrentDir:
		return CurrentDir{}, nil
	case OpTempDir:
		return TempDir{}, nil
	case OpProcessID:
		return ProcessID{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, env.Op)
	}
}

func missingField(op, field string) error {
	return fmt.Errorf("%w: op %q missing required field %q", ErrMalformed, op, field)
}

// EncodeOutcome serializes an outcome to a single line, no trailing newline.
// The transport appends the newline and flushes: the script blocks on this
// exact line before it can emit its next request. Encoding never fails for
// outcomes produced by the handlers; a non-serializable value is a
// programming error and is reported as such.
func EncodeOutcome(o Outcome) (string, error) {
	var wire any
	if o.Err != nil {
		wire = map[string]any{"err": o.Err}
	} else {
		wire = map[string]any{"ok": o.Value}
	}
	data, err := json.Marshal(wire)
	if err != nil {
		return "", fmt.Errorf("encode outcome: %w", err)
	}
	return string(data), nil
}

// wireOutcome distinguishes an absent ok key (empty RawMessage) from an
// explicit {"ok":null} (RawMessage "null").
type wireOutcome struct {
	Ok  json.RawMessage `json:"ok,omitempty"`
	Err *EffectError    `json:"err,omitempty"`
}

// DecodeOutcome parses an outcome line back into an Outcome. The bridge
// itself never reads outcomes; this is the script-side view of the
// envelope, used by tests and by fake interpreters.
func DecodeOutcome(line string) (Outcome, error) {
	var wire wireOutcome
	decoder := json.NewDecoder(strings.NewReader(line))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&wire); err != nil {
		return Outcome{}, fmt.Errorf("decode outcome: %w", err)
	}
	if wire.Err != nil {
		return Outcome{Err: wire.Err}, nil
	}
	if len(wire.Ok) == 0 {
		return Outcome{}, fmt.Errorf("decode outcome: envelope has neither ok nor err")
	}
	var value any
	if err := json.Unmarshal(wire.Ok, &value); err != nil {
		return Outcome{}, fmt.Errorf("decode outcome value: %w", err)
	}
	return Outcome{Value: value}, nil
}
