package server

// Wire messages for the eval and session services. They travel as CBOR maps
// keyed by the snake_case field names.

// Procedure paths.
const (
	EvalServiceName    = "monkey.v1.EvalService"
	SessionServiceName = "monkey.v1.SessionService"

	EvaluateProcedure       = "/" + EvalServiceName + "/Evaluate"
	CheckSyntaxProcedure    = "/" + EvalServiceName + "/CheckSyntax"
	DisassembleProcedure    = "/" + EvalServiceName + "/Disassemble"
	CreateSessionProcedure  = "/" + SessionServiceName + "/CreateSession"
	DestroySessionProcedure = "/" + SessionServiceName + "/DestroySession"
	ListSessionsProcedure   = "/" + SessionServiceName + "/ListSessions"
)

// EvaluateRequest runs source as one unit. An empty SessionID evaluates in
// a fresh session that is discarded afterwards.
type EvaluateRequest struct {
	SessionID string `cbor:"session_id,omitempty"`
	Source    string `cbor:"source"`
}

// EvaluateResponse carries either the unit's value or its fault. Value and
// Type are empty when the unit produced no value.
type EvaluateResponse struct {
	Value     string `cbor:"value,omitempty"`
	Type      string `cbor:"type,omitempty"`
	Output    string `cbor:"output,omitempty"`
	ErrorKind string `cbor:"error_kind,omitempty"`
	Error     string `cbor:"error,omitempty"`
	Line      int    `cbor:"line,omitempty"`
	Column    int    `cbor:"column,omitempty"`
}

// CheckSyntaxRequest parses and resolves source. With a SessionID the
// session's globals count as defined.
type CheckSyntaxRequest struct {
	SessionID string `cbor:"session_id,omitempty"`
	Source    string `cbor:"source"`
}

type CheckSyntaxResponse struct {
	Valid       bool         `cbor:"valid"`
	Diagnostics []Diagnostic `cbor:"diagnostics,omitempty"`
}

// Diagnostic is a positioned problem; Line and Column are 1-based.
type Diagnostic struct {
	Severity string `cbor:"severity"`
	Message  string `cbor:"message"`
	Line     int    `cbor:"line"`
	Column   int    `cbor:"column"`
}

type DisassembleRequest struct {
	SessionID string `cbor:"session_id,omitempty"`
	Source    string `cbor:"source"`
}

type DisassembleResponse struct {
	Listing string `cbor:"listing"`
}

type CreateSessionRequest struct {
	Name   string `cbor:"name,omitempty"`
	Engine string `cbor:"engine,omitempty"`
}

type CreateSessionResponse struct {
	SessionID string `cbor:"session_id"`
}

type DestroySessionRequest struct {
	SessionID string `cbor:"session_id"`
}

type DestroySessionResponse struct{}

type ListSessionsRequest struct{}

type ListSessionsResponse struct {
	Sessions []SessionInfo `cbor:"sessions,omitempty"`
}

// SessionInfo describes one live session.
type SessionInfo struct {
	ID      string   `cbor:"id"`
	Name    string   `cbor:"name,omitempty"`
	Engine  string   `cbor:"engine"`
	Globals []string `cbor:"globals,omitempty"`
}
