// Package server exposes Monkey sessions over Connect RPC, using a CBOR
// codec for the plain Go message structs, and over LSP for editors.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/tliron/commonlog"

	"github.com/chazu/monkey/pkg/session"
)

// Session TTL defaults.
const (
	DefaultSessionTTL    = 30 * time.Minute
	DefaultSweepInterval = 5 * time.Minute
)

// MonkeyServer serves the eval and session services on one mux.
type MonkeyServer struct {
	sessions *SessionStore
	mux      *http.ServeMux
	log      commonlog.Logger
	http     *http.Server

	stopSweeper func()
}

// ServerOption configures a MonkeyServer.
type ServerOption func(*serverConfig)

type serverConfig struct {
	limits        session.Limits
	ttl           time.Duration
	sweepInterval time.Duration
}

// WithLimits sets the execution limits for every session.
func WithLimits(l session.Limits) ServerOption {
	return func(c *serverConfig) { c.limits = l }
}

// WithSessionTTL sets how long an unused session survives and how often
// the sweeper looks. A zero ttl disables sweeping.
func WithSessionTTL(ttl, interval time.Duration) ServerOption {
	return func(c *serverConfig) {
		c.ttl = ttl
		c.sweepInterval = interval
	}
}

// New creates a MonkeyServer.
func New(opts ...ServerOption) *MonkeyServer {
	cfg := &serverConfig{
		ttl:           DefaultSessionTTL,
		sweepInterval: DefaultSweepInterval,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	sessions := NewSessionStore(cfg.limits)
	s := &MonkeyServer{
		sessions: sessions,
		mux:      http.NewServeMux(),
		log:      commonlog.GetLogger("monkey.server"),
	}
	s.http = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	cbor := WithCBOR()
	evalSvc := NewEvalService(sessions)
	sessionSvc := NewSessionService(sessions)

	s.mux.Handle(EvaluateProcedure, connect.NewUnaryHandler(EvaluateProcedure, evalSvc.Evaluate, cbor))
	s.mux.Handle(CheckSyntaxProcedure, connect.NewUnaryHandler(CheckSyntaxProcedure, evalSvc.CheckSyntax, cbor))
	s.mux.Handle(DisassembleProcedure, connect.NewUnaryHandler(DisassembleProcedure, evalSvc.Disassemble, cbor))
	s.mux.Handle(CreateSessionProcedure, connect.NewUnaryHandler(CreateSessionProcedure, sessionSvc.CreateSession, cbor))
	s.mux.Handle(DestroySessionProcedure, connect.NewUnaryHandler(DestroySessionProcedure, sessionSvc.DestroySession, cbor))
	s.mux.Handle(ListSessionsProcedure, connect.NewUnaryHandler(ListSessionsProcedure, sessionSvc.ListSessions, cbor))

	if cfg.ttl > 0 && cfg.sweepInterval > 0 {
		s.stopSweeper = sessions.StartSweeper(cfg.sweepInterval, cfg.ttl)
	}

	return s
}

// Handler returns the HTTP handler serving every procedure.
func (s *MonkeyServer) Handler() http.Handler {
	return s.mux
}

// Sessions returns the session store.
func (s *MonkeyServer) Sessions() *SessionStore {
	return s.sessions
}

// ListenAndServe starts the HTTP server on the given address.
// The address should be in the form "host:port" or ":port".
// It returns nil after Shutdown.
func (s *MonkeyServer) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.log.Noticef("monkey server listening on %s (Connect, %s codec)", ln.Addr(), CodecName)
	err = s.http.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests, waits for in-flight ones, and stops
// every session.
func (s *MonkeyServer) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	s.Stop()
	return err
}

// Stop shuts down the sweeper and every session.
func (s *MonkeyServer) Stop() {
	if s.stopSweeper != nil {
		s.stopSweeper()
		s.stopSweeper = nil
	}
	s.sessions.Close()
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// Client calls a MonkeyServer using the CBOR codec.
type Client struct {
	evaluate       *connect.Client[EvaluateRequest, EvaluateResponse]
	checkSyntax    *connect.Client[CheckSyntaxRequest, CheckSyntaxResponse]
	disassemble    *connect.Client[DisassembleRequest, DisassembleResponse]
	createSession  *connect.Client[CreateSessionRequest, CreateSessionResponse]
	destroySession *connect.Client[DestroySessionRequest, DestroySessionResponse]
	listSessions   *connect.Client[ListSessionsRequest, ListSessionsResponse]
}

// NewClient creates a client for the server at baseURL, for example
// "http://localhost:4567".
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	opts = append([]connect.ClientOption{WithCBOR()}, opts...)
	return &Client{
		evaluate:       connect.NewClient[EvaluateRequest, EvaluateResponse](httpClient, baseURL+EvaluateProcedure, opts...),
		checkSyntax:    connect.NewClient[CheckSyntaxRequest, CheckSyntaxResponse](httpClient, baseURL+CheckSyntaxProcedure, opts...),
		disassemble:    connect.NewClient[DisassembleRequest, DisassembleResponse](httpClient, baseURL+DisassembleProcedure, opts...),
		createSession:  connect.NewClient[CreateSessionRequest, CreateSessionResponse](httpClient, baseURL+CreateSessionProcedure, opts...),
		destroySession: connect.NewClient[DestroySessionRequest, DestroySessionResponse](httpClient, baseURL+DestroySessionProcedure, opts...),
		listSessions:   connect.NewClient[ListSessionsRequest, ListSessionsResponse](httpClient, baseURL+ListSessionsProcedure, opts...),
	}
}

func (c *Client) Evaluate(ctx context.Context, req *EvaluateRequest) (*EvaluateResponse, error) {
	resp, err := c.evaluate.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *Client) CheckSyntax(ctx context.Context, req *CheckSyntaxRequest) (*CheckSyntaxResponse, error) {
	resp, err := c.checkSyntax.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *Client) Disassemble(ctx context.Context, req *DisassembleRequest) (*DisassembleResponse, error) {
	resp, err := c.disassemble.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *Client) CreateSession(ctx context.Context, req *CreateSessionRequest) (*CreateSessionResponse, error) {
	resp, err := c.createSession.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *Client) DestroySession(ctx context.Context, req *DestroySessionRequest) (*DestroySessionResponse, error) {
	resp, err := c.destroySession.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *Client) ListSessions(ctx context.Context, req *ListSessionsRequest) (*ListSessionsResponse, error) {
	resp, err := c.listSessions.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}
