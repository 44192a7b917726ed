package protocol

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestDecodeRequest(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Request
	}{
		{
			name:  "read_file",
			input: `{"op":"read_file","path":"/tmp/data.json"}`,
			want:  ReadFile{Path: "/tmp/data.json"},
		},
		{
			name:  "write_file truncating",
			input: `{"op":"write_file","path":"out.txt","content":"hello"}`,
			want:  WriteFile{Path: "out.txt", Content: "hello"},
		},
		{
			name:  "write_file appending",
			input: `{"op":"write_file","path":"out.txt","content":"b","append":true}`,
			want:  WriteFile{Path: "out.txt", Content: "b", Append: true},
		},
		{
			name:  "write_file empty content is valid",
			input: `{"op":"write_file","path":"out.txt","content":""}`,
			want:  WriteFile{Path: "out.txt"},
		},
		{
			name:  "println",
			input: `{"op":"println","text":"Hello"}`,
			want:  Println{Text: "Hello"},
		},
		{
			name:  "print",
			input: `{"op":"print","text":"no newline"}`,
			want:  Print{Text: "no newline"},
		},
		{
			name:  "random_float",
			input: `{"op":"random_float"}`,
			want:  RandomFloat{},
		},
		{
			name:  "random",
			input: `{"op":"random"}`,
			want:  Random{},
		},
		{
			name:  "get_env",
			input: `{"op":"get_env","name":"HOME"}`,
			want:  EnvGet{Name: "HOME"},
		},
		{
			name:  "set_env",
			input: `{"op":"set_env","name":"X","value":"1"}`,
			want:  EnvSet{Name: "X", Value: "1"},
		},
		{
			name:  "remove_env",
			input: `{"op":"remove_env","name":"X"}`,
			want:  EnvRemove{Name: "X"},
		},
		{
			name:  "spawn with args",
			input: `{"op":"spawn","program":"echo","args":["hi","there"]}`,
			want:  Spawn{Program: "echo", Args: []string{"hi", "there"}},
		},
		{
			name:  "spawn without args",
			input: `{"op":"spawn","program":"true"}`,
			want:  Spawn{Program: "true"},
		},
		{
			name:  "system",
			input: `{"op":"system","program":"sh","args":["-c","exit 0"]}`,
			want:  System{Program: "sh", Args: []string{"-c", "exit 0"}},
		},
		{
			name:  "read_dir",
			input: `{"op":"read_dir","path":"."}`,
			want:  ReadDir{Path: "."},
		},
		{
			name:  "exists",
			input: `{"op":"exists","path":"/etc/hosts"}`,
			want:  Exists{Path: "/etc/hosts"},
		},
		{
			name:  "metadata",
			input: `{"op":"metadata","path":"/etc/hosts"}`,
			want:  Metadata{Path: "/etc/hosts"},
		},
		{
			name:  "current_dir",
			input: `{"op":"current_dir"}`,
			want:  CurrentDir{},
		},
		{
			name:  "temp_dir",
			input: `{"op":"temp_dir"}`,
			want:  TempDir{},
		},
		{
			name:  "process_id",
			input: `{"op":"process_id"}`,
			want:  ProcessID{},
		},
		{
			name:  "fatal with code",
			input: `{"fatal":{"code":3,"message":"giving up"}}`,
			want:  Fatal{Code: intPtr(3), Message: "giving up"},
		},
		{
			name:  "fatal without code",
			input: `{"fatal":{"message":"giving up"}}`,
			want:  Fatal{Message: "giving up"},
		},
		{
			name:  "surrounding whitespace tolerated",
			input: "  {\"op\":\"random_float\"}\t",
			want:  RandomFloat{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeRequest(tt.input)
			if err != nil {
				t.Fatalf("DecodeRequest() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DecodeRequest() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDecodeRequestMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "not JSON", input: `{not json}`},
		{name: "empty line", input: ``},
		{name: "whitespace only", input: `   `},
		{name: "JSON scalar", input: `42`},
		{name: "missing op tag", input: `{"path":"x"}`},
		{name: "unknown field rejected", input: `{"op":"read_file","path":"x","extra":1}`},
		{name: "read_file without path", input: `{"op":"read_file"}`},
		{name: "write_file without content", input: `{"op":"write_file","path":"x"}`},
		{name: "set_env without value", input: `{"op":"set_env","name":"X"}`},
		{name: "spawn without program", input: `{"op":"spawn","args":["hi"]}`},
		{name: "wrong field type", input: `{"op":"read_file","path":7}`},
		{name: "surplus field from another op", input: `{"op":"read_file","path":"x","text":"y"}`},
		{name: "parameter on parameterless op", input: `{"op":"random_float","path":"x"}`},
		{name: "fatal mixed with op", input: `{"fatal":{"code":1,"message":"m"},"op":"println"}`},
		{name: "fatal mixed with parameter", input: `{"fatal":{"message":"m"},"text":"y"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRequest(tt.input)
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("DecodeRequest() error = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestDecodeRequestUnknownOperation(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "unlisted op", input: `{"op":"format_disk"}`},
		{name: "case matters", input: `{"op":"ReadFile","path":"x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRequest(tt.input)
			if !errors.Is(err, ErrUnknownOperation) {
				t.Errorf("DecodeRequest() error = %v, want ErrUnknownOperation", err)
			}
		})
	}
}

func TestOutcomeRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		outcome Outcome
	}{
		{name: "ok string", outcome: Ok("file contents")},
		{name: "ok null", outcome: Ok(nil)},
		{name: "ok bool", outcome: Ok(true)},
		{name: "ok number", outcome: Ok(0.42)},
		{
			name:    "ok list",
			outcome: Ok([]any{"a/b", "a/c"}),
		},
		{
			name: "ok object",
			outcome: Ok(map[string]any{
				"status": float64(0),
				"stdout": "hi\n",
				"stderr": "",
			}),
		},
		{name: "io error", outcome: Fail(KindIo, "open missing.txt: no such file or directory")},
		{name: "spawn error", outcome: Fail(KindSpawn, `exec: "nope": executable file not found`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, err := EncodeOutcome(tt.outcome)
			if err != nil {
				t.Fatalf("EncodeOutcome() error = %v", err)
			}
			if strings.Contains(line, "\n") {
				t.Errorf("encoded line contains embedded newline: %q", line)
			}

			got, err := DecodeOutcome(line)
			if err != nil {
				t.Fatalf("DecodeOutcome() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.outcome) {
				t.Errorf("round trip = %#v, want %#v", got, tt.outcome)
			}
		})
	}
}

func TestEncodeOutcomeEnvelopes(t *testing.T) {
	line, err := EncodeOutcome(Ok(nil))
	if err != nil {
		t.Fatalf("EncodeOutcome() error = %v", err)
	}
	if line != `{"ok":null}` {
		t.Errorf("want explicit null ok envelope, got %q", line)
	}

	line, err = EncodeOutcome(Fail(KindIo, "boom"))
	if err != nil {
		t.Fatalf("EncodeOutcome() error = %v", err)
	}
	if !strings.Contains(line, `"kind":"io_error"`) {
		t.Errorf("missing error kind in %q", line)
	}
	if !strings.Contains(line, `"message":"boom"`) {
		t.Errorf("missing error message in %q", line)
	}
}

func TestDecodeOutcomeInvalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "neither ok nor err", input: `{}`},
		{name: "not JSON", input: `nope`},
		{name: "unknown field", input: `{"ok":1,"weird":2}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeOutcome(tt.input); err == nil {
				t.Error("DecodeOutcome() expected error")
			}
		})
	}
}

func intPtr(v int) *int { return &v }
