package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chazu/monkey/pkg/session"
)

// ErrWorkerStopped is returned by Do after Stop.
var ErrWorkerStopped = errors.New("session worker stopped")

// workRequest represents a unit of work to be executed on the worker goroutine.
type workRequest struct {
	fn   func(*session.Session, *bytes.Buffer) any
	done chan workResult
}

// workResult holds the return value from a session operation.
type workResult struct {
	value any
	err   error
}

// SessionWorker serializes all access to one session through a single
// goroutine. A Session is not safe for concurrent use, and RPC handlers
// for the same session may run concurrently.
type SessionWorker struct {
	sess     *session.Session
	out      *bytes.Buffer
	requests chan workRequest
	quit     chan struct{}
	stopOnce sync.Once
}

// NewSessionWorker creates a session whose puts output is captured per
// request, and starts the processing goroutine.
func NewSessionWorker(opts ...session.Option) *SessionWorker {
	out := &bytes.Buffer{}
	w := &SessionWorker{
		sess:     session.New(append(opts, session.WithOutput(out))...),
		out:      out,
		requests: make(chan workRequest, 16),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

// loop processes requests sequentially on a dedicated goroutine.
func (w *SessionWorker) loop() {
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs fn against the session, recovering from panics. The output
// buffer is empty when fn starts.
func (w *SessionWorker) execute(fn func(*session.Session, *bytes.Buffer) any) workResult {
	var result workResult
	w.out.Reset()
	func() {
		defer func() {
			if r := recover(); r != nil {
				result.err = fmt.Errorf("%v", r)
			}
		}()
		result.value = fn(w.sess, w.out)
	}()
	return result
}

// Do submits fn for execution on the worker goroutine and blocks until it
// completes. ctx bounds only the wait to submit; fn should capture ctx
// itself if the work is cancellable.
func (w *SessionWorker) Do(ctx context.Context, fn func(*session.Session, *bytes.Buffer) any) (any, error) {
	req := workRequest{
		fn:   fn,
		done: make(chan workResult, 1),
	}
	select {
	case w.requests <- req:
	case <-w.quit:
		return nil, ErrWorkerStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case result := <-req.done:
		return result.value, result.err
	case <-w.quit:
		return nil, ErrWorkerStopped
	}
}

// Stop shuts down the worker goroutine. It is safe to call more than once.
func (w *SessionWorker) Stop() {
	w.stopOnce.Do(func() { close(w.quit) })
}

// ID returns the session identifier. It never changes, so it is read
// without going through the worker.
func (w *SessionWorker) ID() string {
	return w.sess.ID()
}
