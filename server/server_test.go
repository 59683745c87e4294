package server

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/google/go-cmp/cmp"
)

// These tests go through HTTP, the Connect protocol and the CBOR codec.

func TestClient_SessionLifecycle(t *testing.T) {
	ctx := bg()

	created, err := testClient.CreateSession(ctx, &CreateSessionRequest{Name: "client"})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	id := created.SessionID
	defer testClient.DestroySession(ctx, &DestroySessionRequest{SessionID: id})

	steps := []struct {
		source string
		want   EvaluateResponse
	}{
		{"let fib = fn(n) { if (n < 2) { n } else { fib(n - 1) + fib(n - 2) } };", EvaluateResponse{}},
		{"fib(10)", EvaluateResponse{Value: "55", Type: "INTEGER"}},
		{`puts("fib", fib(5)); [fib(1), fib(2)]`, EvaluateResponse{Value: "[1, 1]", Type: "ARRAY", Output: "fib\n5\n"}},
		{"fib(true)", EvaluateResponse{ErrorKind: "TypeError", Error: "type mismatch: BOOLEAN < INTEGER", Line: 1, Column: 33}},
	}
	for _, step := range steps {
		got, err := testClient.Evaluate(ctx, &EvaluateRequest{SessionID: id, Source: step.source})
		if err != nil {
			t.Fatalf("Evaluate(%q): %v", step.source, err)
		}
		if step.want.ErrorKind != "" {
			// Only the kind and message are stable for a fault inside a callee.
			got.Line, got.Column = step.want.Line, step.want.Column
		}
		if diff := cmp.Diff(step.want, *got); diff != "" {
			t.Errorf("Evaluate(%q) mismatch (-want +got):\n%s", step.source, diff)
		}
	}

	list, err := testClient.ListSessions(ctx, &ListSessionsRequest{})
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	var found *SessionInfo
	for i := range list.Sessions {
		if list.Sessions[i].ID == id {
			found = &list.Sessions[i]
		}
	}
	if found == nil {
		t.Fatalf("session %s not listed", id)
	}
	if diff := cmp.Diff([]string{"fib"}, found.Globals); diff != "" {
		t.Errorf("globals mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_Errors(t *testing.T) {
	ctx := bg()

	_, err := testClient.Evaluate(ctx, &EvaluateRequest{SessionID: "missing", Source: "1"})
	if connect.CodeOf(err) != connect.CodeNotFound {
		t.Errorf("missing session: code = %v, want NotFound", connect.CodeOf(err))
	}

	_, err = testClient.Evaluate(ctx, &EvaluateRequest{})
	if connect.CodeOf(err) != connect.CodeInvalidArgument {
		t.Errorf("empty source: code = %v, want InvalidArgument", connect.CodeOf(err))
	}
}

func TestClient_CheckSyntaxAndDisassemble(t *testing.T) {
	ctx := bg()

	check, err := testClient.CheckSyntax(ctx, &CheckSyntaxRequest{Source: "let a = ;"})
	if err != nil {
		t.Fatal(err)
	}
	if check.Valid || len(check.Diagnostics) == 0 {
		t.Errorf("CheckSyntax = %+v, want invalid with diagnostics", check)
	}

	dis, err := testClient.Disassemble(ctx, &DisassembleRequest{Source: "let f = fn(x) { x };"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(dis.Listing, "OpClosure") || !strings.Contains(dis.Listing, "OpSetGlobal") {
		t.Errorf("listing:\n%s", dis.Listing)
	}
}

func TestHandlerRejectsJSON(t *testing.T) {
	// Only the CBOR codec is registered for these plain structs.
	req, err := http.NewRequest(http.MethodPost, testHTTP.URL+EvaluateProcedure, strings.NewReader(`{"source":"1"}`))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := testHTTP.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		t.Errorf("status = %d, want an error status", resp.StatusCode)
	}
}

func TestShutdown(t *testing.T) {
	srv := New()
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe("127.0.0.1:0") }()

	ctx, cancel := context.WithTimeout(bg(), 2*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("ListenAndServe: %v", err)
		}
	case <-ctx.Done():
		t.Error("ListenAndServe did not return after Shutdown")
	}
}
