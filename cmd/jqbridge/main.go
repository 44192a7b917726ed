// jqbridge runs a pure jq query script alongside a host-side effect
// executor. The script delegates file I/O, subprocesses, environment
// access and RNG draws to this process over a line-JSON protocol on its
// stdin/stdout.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/mattjoyce/jqbridge/internal/config"
	"github.com/mattjoyce/jqbridge/internal/doctor"
	"github.com/mattjoyce/jqbridge/internal/effects"
	"github.com/mattjoyce/jqbridge/internal/log"
	"github.com/mattjoyce/jqbridge/internal/session"
	"github.com/mattjoyce/jqbridge/internal/supervisor"
	"github.com/mattjoyce/jqbridge/internal/trace"
)

const version = "0.1.0"

// exitUsage is returned for CLI misuse and setup failures, before any
// session exists.
const exitUsage = 2

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("jqbridge", flag.ContinueOnError)
	fs.Usage = func() { printUsage(fs) }
	showVersion := fs.Bool("version", false, "show version")
	configPath := fs.String("config", "", "path to config file")
	workDir := fs.String("dir", "", "working directory for the interpreter")
	interpreter := fs.String("interpreter", "jq", "jq interpreter binary")
	check := fs.Bool("check", false, "validate setup and exit")
	checkJSON := fs.Bool("json", false, "with --check, emit the report as JSON")

	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *showVersion {
		fmt.Println(version)
		return 0
	}

	script := fs.Arg(0)
	if script == "" {
		fmt.Fprintln(os.Stderr, "Expected <script> argument!")
		printUsage(fs)
		return exitUsage
	}
	// Everything after the script goes to the interpreter's own flag parser.
	forwarded := fs.Args()[1:]

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitUsage
		}
		cfg = loaded
	}
	log.Setup(cfg.LogLevel)

	if *check {
		return runCheck(cfg, *interpreter, script, *checkJSON)
	}
	return runBridge(cfg, *interpreter, script, forwarded, *workDir)
}

func runCheck(cfg *config.Config, interpreter, script string, asJSON bool) int {
	result := doctor.New(cfg, interpreter, script).Validate()

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
	} else {
		for _, issue := range result.Errors {
			fmt.Fprintf(os.Stderr, "error [%s] %s\n", issue.Category, issue.Message)
		}
		for _, issue := range result.Warnings {
			fmt.Fprintf(os.Stderr, "warning [%s] %s\n", issue.Category, issue.Message)
		}
		if result.Valid {
			fmt.Println("ok")
		}
	}
	if !result.Valid {
		return 1
	}
	return 0
}

func runBridge(cfg *config.Config, interpreter, script string, forwarded []string, workDir string) int {
	logger := log.WithComponent("main")

	hash, err := config.ComputeScriptHash(script)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}
	logger.Debug("script loaded", "path", script, "blake3", hash)
	if cfg.Script.Checksum != "" {
		if err := config.VerifyScriptHash(script, cfg.Script.Checksum); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitUsage
		}
	}

	// The child runs in workDir too, so hand it an absolute script path.
	absScript, err := filepath.Abs(script)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}
	child, err := supervisor.Start(interpreter, interpreterArgs(absScript, forwarded), supervisor.Options{
		Dir: workDir,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot start interpreter: %v\n", err)
		return exitUsage
	}

	runner := effects.New(effects.Options{
		Dir:       workDir,
		StdoutCap: cfg.Spawn.StdoutCap,
		StderrCap: cfg.Spawn.StderrCap,
	})
	sess := session.New(child, runner, session.Options{})

	if cfg.Trace.Path != "" {
		db, err := trace.Open(context.Background(), cfg.Trace.Path)
		if err != nil {
			// Tracing is diagnostics; a broken trace DB does not stop the run.
			logger.Warn("trace disabled", "error", err)
		} else {
			store := trace.NewStore(db, sess.ID)
			defer store.Close()
			sess.SetRecorder(store)
		}
	}

	// An interrupt closes the child's stdin and lets it flush diagnostics;
	// the grace timer force-kills it if it does not exit. The loop then
	// sees end-of-stream and winds down normally.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		sig := <-sigs
		logger.Info("interrupt received, shutting down child", "signal", sig.String())
		child.Shutdown(cfg.ShutdownGrace)
	}()

	term := sess.Run()
	return session.Resolve(term, func() int {
		return child.Shutdown(cfg.ShutdownGrace)
	}, os.Stderr)
}

// interpreterArgs builds the interpreter argument list: unbuffered output
// so response reads never stall on a full buffer, null input so the script
// does not wait on our stdin, then the script by path, then whatever the
// caller wants the interpreter's own flag parser to see.
func interpreterArgs(script string, forwarded []string) []string {
	args := []string{"--unbuffered", "-n", "-f", script}
	return append(args, forwarded...)
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, "Usage: jqbridge [options] <script> [args..]\n")
	fmt.Fprintf(os.Stderr, "Effect backend for jq query scripts: files, subprocesses, env and RNG.\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	fs.PrintDefaults()
}
