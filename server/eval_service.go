package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"connectrpc.com/connect"
	"github.com/tliron/commonlog"

	"github.com/chazu/monkey/compiler"
	"github.com/chazu/monkey/pkg/session"
	"github.com/chazu/monkey/vm"
)

// EvalService runs, checks and disassembles Monkey source.
type EvalService struct {
	sessions *SessionStore
	log      commonlog.Logger
}

// NewEvalService creates an EvalService.
func NewEvalService(sessions *SessionStore) *EvalService {
	return &EvalService{
		sessions: sessions,
		log:      commonlog.GetLogger("monkey.server"),
	}
}

// Evaluate runs source as one unit. Monkey faults are reported in the
// response body; only a bad request or a missing session is an RPC error.
func (s *EvalService) Evaluate(
	ctx context.Context,
	req *connect.Request[EvaluateRequest],
) (*connect.Response[EvaluateResponse], error) {
	if req.Msg.Source == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("source is required"))
	}

	worker, release, err := s.worker(req.Msg.SessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	result, err := worker.Do(ctx, func(sess *session.Session, out *bytes.Buffer) any {
		v, evalErr := sess.Eval(ctx, req.Msg.Source)
		return evaluateResponse(v, evalErr, out.String())
	})
	if err != nil {
		return nil, workerError(err)
	}

	resp := result.(*EvaluateResponse)
	s.log.Debug("evaluate", "session", worker.ID(), "error_kind", resp.ErrorKind)
	return connect.NewResponse(resp), nil
}

// CheckSyntax parses and resolves source without running it.
func (s *EvalService) CheckSyntax(
	ctx context.Context,
	req *connect.Request[CheckSyntaxRequest],
) (*connect.Response[CheckSyntaxResponse], error) {
	if req.Msg.Source == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("source is required"))
	}

	worker, release, err := s.worker(req.Msg.SessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	result, err := worker.Do(ctx, func(sess *session.Session, _ *bytes.Buffer) any {
		return sess.Check(req.Msg.Source)
	})
	if err != nil {
		return nil, workerError(err)
	}

	resp := &CheckSyntaxResponse{Valid: true}
	for _, d := range result.([]compiler.Diagnostic) {
		if d.Severity == compiler.SeverityError {
			resp.Valid = false
		}
		resp.Diagnostics = append(resp.Diagnostics, Diagnostic{
			Severity: d.Severity.String(),
			Message:  d.Message,
			Line:     d.Span.Start.Line,
			Column:   d.Span.Start.Column,
		})
	}
	return connect.NewResponse(resp), nil
}

// Disassemble compiles source against the session without running it and
// returns the listing. Syntax and resolution errors are InvalidArgument.
func (s *EvalService) Disassemble(
	ctx context.Context,
	req *connect.Request[DisassembleRequest],
) (*connect.Response[DisassembleResponse], error) {
	if req.Msg.Source == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("source is required"))
	}

	worker, release, err := s.worker(req.Msg.SessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	type disasmResult struct {
		listing string
		err     error
	}
	result, err := worker.Do(ctx, func(sess *session.Session, _ *bytes.Buffer) any {
		listing, disErr := sess.Disassemble(req.Msg.Source)
		return disasmResult{listing, disErr}
	})
	if err != nil {
		return nil, workerError(err)
	}

	r := result.(disasmResult)
	if r.err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, r.err)
	}
	return connect.NewResponse(&DisassembleResponse{Listing: r.listing}), nil
}

// worker resolves id to a session worker. An empty id yields an ephemeral
// session that release stops.
func (s *EvalService) worker(id string) (w *SessionWorker, release func(), err error) {
	if id == "" {
		w = s.sessions.Ephemeral()
		return w, w.Stop, nil
	}
	w, ok := s.sessions.Get(id)
	if !ok {
		return nil, nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("session %q not found", id))
	}
	return w, func() {}, nil
}

// evaluateResponse converts a unit's outcome into the wire form.
func evaluateResponse(v vm.Value, err error, output string) *EvaluateResponse {
	resp := &EvaluateResponse{Output: output}
	if err != nil {
		e := vm.AsError(err)
		resp.ErrorKind = e.Kind.String()
		resp.Error = e.Message
		resp.Line = e.Line
		resp.Column = e.Column
		return resp
	}
	if v != nil {
		resp.Value = v.Inspect()
		resp.Type = string(v.Type())
	}
	return resp
}

func workerError(err error) error {
	switch {
	case errors.Is(err, ErrWorkerStopped):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	}
	return connect.NewError(connect.CodeInternal, err)
}
