// Package transport executes certificate service calls.
//
// The engine only needs an Executor; HTTPExecutor is the net/http
// implementation used in production.
package transport

import "context"

// Request describes one call. Path is relative to the executor's base URL.
// Method defaults to GET. Body, when non-nil, is sent as JSON.
type Request struct {
	Method  string
	Path    string
	Query   map[string]string
	Headers map[string]string
	Body    any
}

// Response is a successful (2xx) reply.
type Response struct {
	StatusCode  int
	ContentType string
	Headers     map[string]string
	Body        []byte
}

// Executor performs one call and returns a Response or an error, which
// should be a *Error so callers can tell network, status and decode failures
// apart.
type Executor interface {
	Execute(ctx context.Context, req Request) (Response, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, req Request) (Response, error)

func (f ExecutorFunc) Execute(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}
