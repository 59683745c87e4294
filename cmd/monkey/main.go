// Monkey CLI - runs Monkey programs, the REPL, the RPC server and the LSP
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/tliron/commonlog"

	"github.com/chazu/monkey/manifest"
	"github.com/chazu/monkey/pkg/session"
	"github.com/chazu/monkey/server"

	_ "github.com/tliron/commonlog/simple"
)

// countFlag is a boolean-style flag that counts repetitions (-v -v).
type countFlag int

func (c *countFlag) String() string   { return strconv.Itoa(int(*c)) }
func (c *countFlag) IsBoolFlag() bool { return true }

func (c *countFlag) Set(s string) error {
	if s == "true" {
		*c++
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid count %q", s)
	}
	*c = countFlag(n)
	return nil
}

// options is the parsed command line.
type options struct {
	engine      string
	interactive bool
	disasm      bool
	serve       bool
	addr        string
	lsp         bool
	config      string
	verbosity   countFlag
	eval        string
	files       []string
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}
	fs := flag.NewFlagSet("monkey", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.engine, "engine", "", "Execution engine: vm or eval (default from monkey.toml, else vm)")
	fs.BoolVar(&opts.interactive, "i", false, "Start the REPL after running files")
	fs.BoolVar(&opts.disasm, "disasm", false, "Print bytecode instead of running")
	fs.BoolVar(&opts.serve, "serve", false, "Start the RPC server (Connect, CBOR codec)")
	fs.StringVar(&opts.addr, "addr", "", "Server address for -serve (default from monkey.toml)")
	fs.BoolVar(&opts.lsp, "lsp", false, "Start the language server on stdio")
	fs.StringVar(&opts.config, "config", "", "Path to monkey.toml (default: search upward from the working directory)")
	fs.Var(&opts.verbosity, "v", "Increase log verbosity (repeatable)")
	fs.StringVar(&opts.eval, "e", "", "Evaluate source and print the result")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: monkey [options] [file.mk ...]\n\n")
		fmt.Fprintf(stderr, "Runs Monkey files in one session, then exits. With no files and no -e,\n")
		fmt.Fprintf(stderr, "starts the REPL.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  monkey                         # Start REPL\n")
		fmt.Fprintf(stderr, "  monkey lib.mk main.mk          # Run files in order\n")
		fmt.Fprintf(stderr, "  monkey -i lib.mk               # Run lib.mk, then start REPL\n")
		fmt.Fprintf(stderr, "  monkey -e 'len(\"four\")'        # Evaluate and print\n")
		fmt.Fprintf(stderr, "  monkey -disasm main.mk         # Show bytecode\n")
		fmt.Fprintf(stderr, "  monkey -engine eval main.mk    # Use the tree-walking evaluator\n")
		fmt.Fprintf(stderr, "\nServers:\n")
		fmt.Fprintf(stderr, "  monkey -serve -addr :8080      # RPC server\n")
		fmt.Fprintf(stderr, "  monkey -lsp                    # Language server on stdio\n")
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	opts.files = fs.Args()
	return opts, nil
}

// loadConfig reads -config, or searches upward for monkey.toml, or falls
// back to the defaults.
func loadConfig(opts *options) (*manifest.Manifest, error) {
	if opts.config != "" {
		return manifest.LoadFile(opts.config)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return manifest.Default(), nil
	}
	m, err := manifest.FindAndLoad(cwd)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return manifest.Default(), nil
	}
	return m, nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		return 2
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	verbosity := cfg.Log.Verbosity + int(opts.verbosity)
	if logPath := cfg.LogPath(); logPath != "" {
		commonlog.Configure(verbosity, &logPath)
	} else {
		commonlog.Configure(verbosity, nil)
	}
	log := commonlog.GetLogger("monkey.cli")

	engineName := cfg.REPL.Engine
	if opts.engine != "" {
		engineName = opts.engine
	}
	engine, err := session.ParseEngine(engineName)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	limits := session.Limits{
		StackSize: cfg.VM.StackSize,
		MaxFrames: cfg.VM.MaxFrames,
		MaxSteps:  cfg.VM.MaxSteps,
	}
	log.Debug("configured", "engine", string(engine), "config", cfg.Dir)

	if opts.lsp {
		if err := server.NewLSP().Run(); err != nil {
			fmt.Fprintf(stderr, "LSP error: %v\n", err)
			return 1
		}
		return 0
	}

	if opts.serve {
		addr := cfg.Server.Addr
		if opts.addr != "" {
			addr = opts.addr
		}
		return serve(addr, limits, stderr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess := session.New(
		session.WithEngine(engine),
		session.WithOutput(stdout),
		session.WithLimits(limits),
	)

	for _, path := range opts.files {
		if err := runFile(ctx, sess, path, opts.disasm, stdout); err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", path, err)
			return 1
		}
	}

	if opts.eval != "" {
		if err := runSource(ctx, sess, opts.eval, opts.disasm, true, stdout); err != nil {
			fmt.Fprintf(stderr, "%v\n", err)
			return 1
		}
	}

	if opts.interactive || (len(opts.files) == 0 && opts.eval == "") {
		stop()
		r := newREPL(sess, cfg, stdout, stderr)
		return r.runLiner()
	}
	return 0
}

func serve(addr string, limits session.Limits, stderr io.Writer) int {
	srv := server.New(server.WithLimits(limits))

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigc)
	go func() {
		<-sigc
		srv.Shutdown(context.Background())
	}()

	if err := srv.ListenAndServe(addr); err != nil {
		fmt.Fprintf(stderr, "Server error: %v\n", err)
		srv.Stop()
		return 1
	}
	return 0
}

// runFile runs one file as one unit.
func runFile(ctx context.Context, sess *session.Session, path string, disasm bool, stdout io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return runSource(ctx, sess, string(data), disasm, false, stdout)
}

// runSource runs one unit, or with disasm prints its bytecode without
// running it; the unit's globals are still declared for the units after
// it. With printResult the unit's value is printed.
func runSource(ctx context.Context, sess *session.Session, source string, disasm, printResult bool, stdout io.Writer) error {
	if disasm {
		listing, err := sess.DeclareAndDisassemble(source)
		if err != nil {
			return err
		}
		_, err = io.WriteString(stdout, listing)
		return err
	}

	v, err := sess.Eval(ctx, source)
	if err != nil {
		return err
	}
	if printResult && v != nil {
		fmt.Fprintln(stdout, v.Inspect())
	}
	return nil
}
