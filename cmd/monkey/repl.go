package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/peterh/liner"
	"github.com/tliron/commonlog"

	"github.com/chazu/monkey/compiler"
	"github.com/chazu/monkey/manifest"
	"github.com/chazu/monkey/pkg/session"
)

const continuationPrompt = ".. "

// lineReader is the part of liner.State the REPL reads through.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

type repl struct {
	sess        *session.Session
	prompt      string
	historyPath string
	out         io.Writer
	errOut      io.Writer
	log         commonlog.Logger
}

func newREPL(sess *session.Session, cfg *manifest.Manifest, out, errOut io.Writer) *repl {
	return &repl{
		sess:        sess,
		prompt:      cfg.REPL.Prompt,
		historyPath: cfg.HistoryPath(),
		out:         out,
		errOut:      errOut,
		log:         commonlog.GetLogger("monkey.repl"),
	}
}

// runLiner runs the REPL on the terminal with line editing and a history
// file.
func (r *repl) runLiner() int {
	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(r.historyPath); err == nil {
		ln.ReadHistory(f)
		f.Close()
	}
	defer func() {
		f, err := os.Create(r.historyPath)
		if err != nil {
			r.log.Warning("cannot save history", "path", r.historyPath, "error", err.Error())
			return
		}
		ln.WriteHistory(f)
		f.Close()
	}()

	fmt.Fprintf(r.out, "Monkey REPL (%s engine). Type :help for commands, Ctrl-D to exit.\n", r.sess.Engine())
	r.run(ln)
	return 0
}

// run reads and executes units until EOF or :quit.
func (r *repl) run(lr lineReader) {
	for {
		src, err := r.readUnit(lr)
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(r.out)
			return
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if err != nil {
			fmt.Fprintf(r.errOut, "Error: %v\n", err)
			return
		}

		src = strings.TrimSpace(src)
		if src == "" {
			continue
		}
		lr.AppendHistory(src)

		if strings.HasPrefix(src, ":") {
			if r.command(src) {
				return
			}
			continue
		}
		r.evalAndPrint(src)
	}
}

// readUnit reads lines until they form a unit the parser can finish. A
// command line is returned as soon as it is read.
func (r *repl) readUnit(lr lineReader) (string, error) {
	var buf strings.Builder
	prompt := r.prompt
	for {
		line, err := lr.Prompt(prompt)
		if err != nil {
			if errors.Is(err, io.EOF) && buf.Len() > 0 {
				return buf.String(), nil
			}
			return "", err
		}

		if buf.Len() == 0 && strings.HasPrefix(strings.TrimSpace(line), ":") {
			return line, nil
		}
		buf.WriteString(line)
		buf.WriteByte('\n')

		if strings.TrimSpace(buf.String()) == "" {
			return "", nil
		}
		if !needsMore(buf.String()) {
			return buf.String(), nil
		}
		prompt = continuationPrompt
	}
}

// needsMore reports whether src only failed to parse because it ended early.
func needsMore(src string) bool {
	p := compiler.NewParser(src)
	p.ParseProgram()
	return len(p.ParseErrors()) > 0 && p.Incomplete()
}

func (r *repl) evalAndPrint(src string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	v, err := r.sess.Eval(ctx, src)
	if err != nil {
		fmt.Fprintf(r.out, "%v\n", err)
		return
	}
	if v != nil {
		fmt.Fprintln(r.out, v.Inspect())
	}
}

// command handles a :command line. It reports whether the REPL should exit.
func (r *repl) command(line string) bool {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case ":quit", ":q":
		return true

	case ":help":
		fmt.Fprint(r.out, `Commands:
  :help              Show this help
  :quit              Exit the REPL
  :globals           List top-level bindings
  :disasm <src>      Show the bytecode for src
  :engine [vm|eval]  Show or switch the engine (switching resets the session)
  :reset             Discard every binding
`)

	case ":globals":
		globals := r.sess.Globals()
		if len(globals) == 0 {
			fmt.Fprintln(r.out, "(no globals)")
		}
		for _, g := range globals {
			fmt.Fprintf(r.out, "%s = %s\n", g.Name, g.Value.Inspect())
		}

	case ":disasm":
		if arg == "" {
			fmt.Fprintln(r.out, "Usage: :disasm <source>")
			break
		}
		listing, err := r.sess.Disassemble(arg)
		if err != nil {
			fmt.Fprintf(r.out, "%v\n", err)
			break
		}
		fmt.Fprint(r.out, listing)

	case ":engine":
		if arg == "" {
			fmt.Fprintf(r.out, "engine: %s\n", r.sess.Engine())
			break
		}
		engine, err := session.ParseEngine(arg)
		if err != nil {
			fmt.Fprintf(r.out, "Error: %v\n", err)
			break
		}
		r.sess.SetEngine(engine)
		fmt.Fprintf(r.out, "engine: %s\n", engine)

	case ":reset":
		r.sess.Reset()
		fmt.Fprintln(r.out, "session reset")

	default:
		fmt.Fprintf(r.out, "Unknown command %s (try :help)\n", name)
	}
	return false
}
