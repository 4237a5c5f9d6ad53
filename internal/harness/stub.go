package harness

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/roach88/seed/internal/ir"
)

// UnmatchedRequestError is returned for a request no canned response answers.
type UnmatchedRequestError struct {
	URL    string
	Method string
}

// Error implements the error interface.
func (e *UnmatchedRequestError) Error() string {
	return fmt.Sprintf("no canned response for %s %s", e.Method, e.URL)
}

// StubRequester answers request descriptors from canned responses.
// Responses match on url and method; the first match wins and may be used
// any number of times. Every request is recorded, matched or not.
//
// Thread-safety: safe for concurrent use.
type StubRequester struct {
	mu        sync.Mutex
	responses []Response
	requests  []ir.Request
}

// NewStubRequester creates a stub serving responses. Response data must
// already be normalized.
func NewStubRequester(responses []Response) *StubRequester {
	return &StubRequester{responses: responses}
}

// Request implements engine.Requester.
func (s *StubRequester) Request(_ context.Context, req ir.Request) (any, error) {
	method := methodOrGet(req.Method)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, cloneRequest(req))

	for _, r := range s.responses {
		if r.URL != req.URL || methodOrGet(r.Method) != method {
			continue
		}
		if r.Error != "" {
			return nil, errors.New(r.Error)
		}
		return ir.Clone(r.Data), nil
	}
	return nil, &UnmatchedRequestError{URL: req.URL, Method: method}
}

// Requests returns every request received, in order.
func (s *StubRequester) Requests() []ir.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ir.Request, len(s.requests))
	copy(out, s.requests)
	return out
}

func methodOrGet(method string) string {
	if method == "" {
		return "GET"
	}
	return strings.ToUpper(method)
}

func cloneRequest(req ir.Request) ir.Request {
	out := req
	if req.Data != nil {
		out.Data = ir.Clone(req.Data).(map[string]any)
	}
	if len(req.Headers) == 0 {
		out.Headers = nil
	}
	return out
}
