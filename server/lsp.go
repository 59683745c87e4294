package server

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/monkey/compiler"
	"github.com/chazu/monkey/pkg/session"
	"github.com/chazu/monkey/vm"
)

const lspName = "monkey-lsp"

// LspServer provides diagnostics, completion and hover for Monkey files.
// Each document is checked on its own, as if it were the first unit of a
// fresh session.
type LspServer struct {
	worker *SessionWorker
	log    commonlog.Logger

	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server.
func NewLSP() *LspServer {
	s := &LspServer{
		worker:  NewSessionWorker(),
		log:     commonlog.GetLogger("monkey.lsp"),
		docs:    make(map[string]string),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	s.log.Info("initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}
	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	s.worker.Stop()
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()

	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.mu.Lock()
			s.docs[string(uri)] = whole.Text
			s.mu.Unlock()

			s.publishDiagnostics(ctx, uri, whole.Text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

func (s *LspServer) document(uri protocol.DocumentUri) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.docs[string(uri)]
	return text, ok
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	return completions(text, params.Position), nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	return hover(text, params.Position), nil
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	diagnostics, err := s.diagnostics(text)
	if err != nil {
		s.log.Warning("diagnostics failed", "uri", string(uri), "error", err.Error())
		return
	}

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// diagnostics checks text on the worker's session.
func (s *LspServer) diagnostics(text string) ([]protocol.Diagnostic, error) {
	result, err := s.worker.Do(context.Background(), func(sess *session.Session, _ *bytes.Buffer) any {
		return sess.Check(text)
	})
	if err != nil {
		return nil, err
	}
	return toProtocolDiagnostics(result.([]compiler.Diagnostic)), nil
}

func toProtocolDiagnostics(diags []compiler.Diagnostic) []protocol.Diagnostic {
	out := []protocol.Diagnostic{}
	source := lspName
	for _, d := range diags {
		severity := protocol.DiagnosticSeverityError
		if d.Severity == compiler.SeverityWarning {
			severity = protocol.DiagnosticSeverityWarning
		}
		out = append(out, protocol.Diagnostic{
			Range:    spanRange(d.Span),
			Severity: &severity,
			Source:   &source,
			Message:  d.Message,
		})
	}
	return out
}

// spanRange converts a 1-based span into a 0-based LSP range. An empty
// span is widened to one character.
func spanRange(span compiler.Span) protocol.Range {
	start := lspPosition(span.Start)
	end := lspPosition(span.End)
	if span.End.Line == 0 || span.End.Offset <= span.Start.Offset {
		end = protocol.Position{Line: start.Line, Character: start.Character + 1}
	}
	return protocol.Range{Start: start, End: end}
}

func lspPosition(p compiler.Position) protocol.Position {
	line, col := p.Line-1, p.Column-1
	if line < 0 {
		line = 0
	}
	if col < 0 {
		col = 0
	}
	return protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(col)}
}

// --- Completion and hover ---

// documentBindings returns every let and parameter binding in text, in
// source order. Text with syntax errors yields the bindings that parsed.
func documentBindings(text string) []compiler.Binding {
	p := compiler.NewParser(text)
	program := p.ParseProgram()
	analyzer := compiler.NewSemanticAnalyzer()
	analyzer.AnalyzeProgram(program)
	return analyzer.Bindings()
}

func completions(text string, pos protocol.Position) []protocol.CompletionItem {
	prefix := extractPrefix(text, pos)
	if prefix == "" {
		return nil
	}

	var items []protocol.CompletionItem
	add := func(label, detail string, kind protocol.CompletionItemKind) {
		if !strings.HasPrefix(label, prefix) {
			return
		}
		items = append(items, protocol.CompletionItem{
			Label:      label,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &label,
		})
	}

	for _, kw := range compiler.Keywords() {
		add(kw, "keyword", protocol.CompletionItemKindKeyword)
	}
	for _, b := range vm.Builtins {
		add(b.Name, builtinDetail(b), protocol.CompletionItemKindFunction)
	}

	seen := make(map[string]bool)
	for _, b := range documentBindings(text) {
		if seen[b.Name] {
			continue
		}
		seen[b.Name] = true
		add(b.Name, b.Kind.String(), protocol.CompletionItemKindVariable)
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].Label < items[j].Label })
	return items
}

func hover(text string, pos protocol.Position) *protocol.Hover {
	word := extractWord(text, pos)
	if word == "" {
		return nil
	}

	var value string
	switch {
	case compiler.LookupIdent(word) != compiler.TokenIdent:
		value = fmt.Sprintf("**%s** keyword", word)
	default:
		if b := bindingAt(text, word, pos); b != nil {
			value = fmt.Sprintf("**%s** %s binding (line %d)", word, b.Kind, b.Span.Start.Line)
		} else if builtin, _, ok := vm.LookupBuiltin(word); ok {
			value = fmt.Sprintf("**%s** %s", word, builtinDetail(builtin))
		}
	}
	if value == "" {
		return nil
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: value,
		},
	}
}

// bindingAt returns the last binding of name that starts at or before pos,
// or the first binding of name when all of them come later.
func bindingAt(text, name string, pos protocol.Position) *compiler.Binding {
	var found *compiler.Binding
	for _, b := range documentBindings(text) {
		if b.Name != name {
			continue
		}
		start := lspPosition(b.Span.Start)
		before := start.Line < pos.Line || (start.Line == pos.Line && start.Character <= pos.Character)
		if found == nil || before {
			b := b
			found = &b
		}
		if !before {
			break
		}
	}
	return found
}

func builtinDetail(b *vm.Builtin) string {
	if b.Arity < 0 {
		return "builtin function, variadic"
	}
	return fmt.Sprintf("builtin function, %d argument(s)", b.Arity)
}

// --- Text extraction helpers ---

func isIdentChar(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_'
}

// extractPrefix returns the word fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	start := col
	for start > 0 && isIdentChar(rune(line[start-1])) {
		start--
	}
	return line[start:col]
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	start := col
	for start > 0 && isIdentChar(rune(line[start-1])) {
		start--
	}
	end := col
	for end < len(line) && isIdentChar(rune(line[end])) {
		end++
	}
	return line[start:end]
}

func boolPtr(b bool) *bool {
	return &b
}
