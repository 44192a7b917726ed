// Package doctor validates the bridge's setup before a run: interpreter,
// script file, and configuration.
package doctor

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/mattjoyce/jqbridge/internal/config"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor validates one planned run.
type Doctor struct {
	cfg         *config.Config
	interpreter string
	script      string
}

// New creates a Doctor for the given interpreter and script path.
func New(cfg *config.Config, interpreter, script string) *Doctor {
	return &Doctor{cfg: cfg, interpreter: interpreter, script: script}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	d.validateInterpreter(r)
	d.validateScript(r)
	d.validateChecksum(r)
	d.warnTracePath(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

// validateInterpreter checks the interpreter resolves to an executable.
func (d *Doctor) validateInterpreter(r *Result) {
	if d.interpreter == "" {
		d.addError(r, "interpreter", "", "interpreter is required")
		return
	}
	if _, err := exec.LookPath(d.interpreter); err != nil {
		d.addError(r, "interpreter", "",
			fmt.Sprintf("interpreter %q not found: %v", d.interpreter, err))
	}
}

// validateScript checks the script is a readable regular file.
func (d *Doctor) validateScript(r *Result) {
	if d.script == "" {
		d.addError(r, "script", "", "script path is required")
		return
	}
	info, err := os.Stat(d.script)
	if err != nil {
		d.addError(r, "script", "", fmt.Sprintf("script not found: %v", err))
		return
	}
	if !info.Mode().IsRegular() {
		d.addError(r, "script", "",
			fmt.Sprintf("script %s is not a regular file", d.script))
		return
	}
	f, err := os.Open(d.script)
	if err != nil {
		d.addError(r, "script", "", fmt.Sprintf("script not readable: %v", err))
		return
	}
	_ = f.Close()
}

// validateChecksum verifies the script against the configured BLAKE3 hash.
func (d *Doctor) validateChecksum(r *Result) {
	if d.cfg.Script.Checksum == "" || d.script == "" {
		return
	}
	if _, err := os.Stat(d.script); err != nil {
		// Already reported by validateScript.
		return
	}
	if err := config.VerifyScriptHash(d.script, d.cfg.Script.Checksum); err != nil {
		d.addError(r, "script", "script.checksum", err.Error())
	}
}

// warnTracePath flags a trace directory that does not exist yet.
func (d *Doctor) warnTracePath(r *Result) {
	if d.cfg.Trace.Path == "" {
		return
	}
	dir := filepath.Dir(d.cfg.Trace.Path)
	if _, err := os.Stat(dir); err != nil {
		d.addWarning(r, "trace", "trace.path",
			fmt.Sprintf("trace directory %s does not exist, it will be created", dir))
	}
}
