package server

import (
	"bytes"
	"context"
	"fmt"

	"connectrpc.com/connect"

	"github.com/chazu/monkey/pkg/session"
)

// SessionService creates, lists and destroys sessions.
type SessionService struct {
	sessions *SessionStore
}

// NewSessionService creates a SessionService.
func NewSessionService(sessions *SessionStore) *SessionService {
	return &SessionService{sessions: sessions}
}

// CreateSession creates a new session. The engine defaults to the VM.
func (s *SessionService) CreateSession(
	ctx context.Context,
	req *connect.Request[CreateSessionRequest],
) (*connect.Response[CreateSessionResponse], error) {
	engine, err := session.ParseEngine(req.Msg.Engine)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	w := s.sessions.Create(req.Msg.Name, engine)
	return connect.NewResponse(&CreateSessionResponse{SessionID: w.ID()}), nil
}

// DestroySession destroys a session and stops its worker.
func (s *SessionService) DestroySession(
	ctx context.Context,
	req *connect.Request[DestroySessionRequest],
) (*connect.Response[DestroySessionResponse], error) {
	if req.Msg.SessionID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("session_id is required"))
	}
	if !s.sessions.Destroy(req.Msg.SessionID) {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("session %q not found", req.Msg.SessionID))
	}
	return connect.NewResponse(&DestroySessionResponse{}), nil
}

// ListSessions describes every live session with its bound global names.
func (s *SessionService) ListSessions(
	ctx context.Context,
	req *connect.Request[ListSessionsRequest],
) (*connect.Response[ListSessionsResponse], error) {
	resp := &ListSessionsResponse{}
	for _, entry := range s.sessions.List() {
		info := SessionInfo{ID: entry.ID, Name: entry.Name, Engine: string(entry.Engine)}

		names, err := entry.Worker.Do(ctx, func(sess *session.Session, _ *bytes.Buffer) any {
			var names []string
			for _, g := range sess.Globals() {
				names = append(names, g.Name)
			}
			return names
		})
		if err != nil {
			// Destroyed while listing.
			continue
		}
		info.Globals = names.([]string)
		resp.Sessions = append(resp.Sessions, info)
	}
	return connect.NewResponse(resp), nil
}
