// Package protocol defines the request/response types for the effect wire
// protocol. Envelopes are JSON-encoded, one per line: the script emits a
// request on its stdout and blocks until the bridge answers on its stdin.
package protocol

// Operation tags. The vocabulary is fixed; anything else is an
// UnknownOperation protocol error.
const (
	OpReadFile    = "read_file"
	OpWriteFile   = "write_file"
	OpReadDir     = "read_dir"
	OpExists      = "exists"
	OpMetadata    = "metadata"
	OpPrint       = "print"
	OpPrintln     = "println"
	OpRandom      = "random"
	OpRandomFloat = "random_float"
	OpEnvGet      = "get_env"
	OpEnvSet      = "set_env"
	OpEnvRemove   = "remove_env"
	OpSpawn       = "spawn"
	OpSystem      = "system"
	OpCurrentDir  = "current_dir"
	OpTempDir     = "temp_dir"
	OpProcessID   = "process_id"
)

// Request is the closed union of effect requests a script can emit.
// Exactly one concrete type is active per decoded line.
type Request interface {
	// Op returns the wire tag of the request.
	Op() string
}

// ReadFile requests the full contents of the file at Path.
type ReadFile struct {
	Path string
}

// WriteFile writes Content to Path, truncating unless Append is set.
type WriteFile struct {
	Path    string
	Content string
	Append  bool
}

// ReadDir lists the entry paths of the directory at Path.
type ReadDir struct {
	Path string
}

// Exists reports whether Path exists.
type Exists struct {
	Path string
}

// Metadata requests basic file metadata for Path.
type Metadata struct {
	Path string
}

// Print writes Text to the bridge's stdout, no trailing newline.
type Print struct {
	Text string
}

// Println writes Text plus a newline to the bridge's stdout.
type Println struct {
	Text string
}

// Random draws one non-negative 63-bit integer.
type Random struct{}

// RandomFloat draws one uniform float in [0,1).
type RandomFloat struct{}

// EnvGet reads the environment variable Name; unset is not an error.
type EnvGet struct {
	Name string
}

// EnvSet sets the environment variable Name to Value in the bridge process.
type EnvSet struct {
	Name  string
	Value string
}

// EnvRemove unsets the environment variable Name.
type EnvRemove struct {
	Name string
}

// Spawn runs Program with Args, waits for it, and captures its exit
// status, stdout and stderr.
type Spawn struct {
	Program string
	Args    []string
}

// System runs Program with Args with inherited stdio and returns only
// the exit status.
type System struct {
	Program string
	Args    []string
}

// CurrentDir requests the bridge's working directory.
type CurrentDir struct{}

// TempDir requests the host temp directory.
type TempDir struct{}

// ProcessID requests the bridge's own pid.
type ProcessID struct{}

// Fatal is the distinguished terminal-failure line: the script aborts the
// whole run and does not expect a response. Code is nil when unspecified.
type Fatal struct {
	Code    *int
	Message string
}

func (ReadFile) Op() string    { return OpReadFile }
func (WriteFile) Op() string   { return OpWriteFile }
func (ReadDir) Op() string     { return OpReadDir }
func (Exists) Op() string      { return OpExists }
func (Metadata) Op() string    { return OpMetadata }
func (Print) Op() string       { return OpPrint }
func (Println) Op() string     { return OpPrintln }
func (Random) Op() string      { return OpRandom }
func (RandomFloat) Op() string { return OpRandomFloat }
func (EnvGet) Op() string      { return OpEnvGet }
func (EnvSet) Op() string      { return OpEnvSet }
func (EnvRemove) Op() string   { return OpEnvRemove }
func (Spawn) Op() string       { return OpSpawn }
func (System) Op() string      { return OpSystem }
func (CurrentDir) Op() string  { return OpCurrentDir }
func (TempDir) Op() string     { return OpTempDir }
func (ProcessID) Op() string   { return OpProcessID }
func (Fatal) Op() string       { return "fatal" }

// ErrKind is the machine-usable category inside a failure envelope.
type ErrKind string

const (
	// KindIo marks a filesystem operation failure. Reported to the script
	// as data, never session-fatal.
	KindIo ErrKind = "io_error"
	// KindSpawn marks a subprocess that could not be launched. Also data.
	KindSpawn ErrKind = "spawn_error"
)

// EffectError is the failure payload of an outcome envelope.
type EffectError struct {
	Kind    ErrKind `json:"kind"`
	Message string  `json:"message"`
}

func (e *EffectError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// Outcome is the result of running one effect request. Err is nil on
// success; Value carries the op-dependent payload (and may itself be nil,
// which encodes as JSON null).
type Outcome struct {
	Value any
	Err   *EffectError
}

// Ok wraps a success value.
func Ok(value any) Outcome {
	return Outcome{Value: value}
}

// Fail wraps a recoverable effect failure.
func Fail(kind ErrKind, message string) Outcome {
	return Outcome{Err: &EffectError{Kind: kind, Message: message}}
}

// SpawnResult is the success payload of a spawn request. Truncated flags
// are set when a capture hit the configured size cap.
type SpawnResult struct {
	Status          int    `json:"status"`
	Stdout          string `json:"stdout"`
	Stderr          string `json:"stderr"`
	StdoutTruncated bool   `json:"stdout_truncated,omitempty"`
	StderrTruncated bool   `json:"stderr_truncated,omitempty"`
}

// FileMetadata is the success payload of a metadata request.
type FileMetadata struct {
	Readonly bool  `json:"readonly"`
	IsFile   bool  `json:"is_file"`
	IsDir    bool  `json:"is_dir"`
	Len      int64 `json:"len"`
}
