// Package request is the default request layer for request-descriptor
// actions: it turns an ir.Request into an HTTP call and decodes the body.
package request

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/roach88/seed/internal/ir"
)

// StatusError reports a response with a status code of 400 or above.
type StatusError struct {
	Method string
	URL    string
	Status int
	Body   any
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: http %d", e.Method, e.URL, e.Status)
}

// HTTPRequester executes request descriptors over HTTP.
//
// GET, HEAD and DELETE send Data as query parameters; every other method
// sends it as a JSON body. JSON responses are decoded into plain Go values
// (map[string]any, []any, float64, ...); other bodies are returned as a
// string.
type HTTPRequester struct {
	base    *url.URL
	client  *http.Client
	headers map[string]string
	logger  *slog.Logger
}

// Option configures an HTTPRequester.
type Option func(*HTTPRequester)

// WithClient sets the HTTP client. Default: http.DefaultClient.
func WithClient(c *http.Client) Option {
	return func(r *HTTPRequester) {
		if c != nil {
			r.client = c
		}
	}
}

// WithHeader adds a header sent with every request. Descriptor headers win.
func WithHeader(key, value string) Option {
	return func(r *HTTPRequester) {
		r.headers[key] = value
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *HTTPRequester) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewHTTPRequester creates a requester resolving relative descriptor URLs
// against baseURL. An empty baseURL requires absolute descriptor URLs.
func NewHTTPRequester(baseURL string, opts ...Option) (*HTTPRequester, error) {
	r := &HTTPRequester{
		client:  http.DefaultClient,
		headers: map[string]string{},
		logger:  slog.Default(),
	}
	if baseURL != "" {
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("parse base url: %w", err)
		}
		r.base = u
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Request implements engine.Requester.
func (r *HTTPRequester) Request(ctx context.Context, req ir.Request) (any, error) {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	target, err := r.resolve(req.URL)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if len(req.Data) > 0 {
		if sendsQuery(method) {
			q := target.Query()
			for _, k := range sortedKeys(req.Data) {
				q.Set(k, fmt.Sprint(req.Data[k]))
			}
			target.RawQuery = q.Encode()
		} else {
			buf, err := json.Marshal(req.Data)
			if err != nil {
				return nil, fmt.Errorf("%s %s: encode body: %w", method, req.URL, err)
			}
			body = bytes.NewReader(buf)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range r.headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	r.logger.Debug("request", "method", method, "url", target.String())
	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	decoded, err := decode(resp)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, req.URL, err)
	}
	if resp.StatusCode >= 400 {
		return nil, &StatusError{Method: method, URL: target.String(), Status: resp.StatusCode, Body: decoded}
	}
	return decoded, nil
}

func (r *HTTPRequester) resolve(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", raw, err)
	}
	if r.base != nil && !u.IsAbs() {
		u = r.base.ResolveReference(u)
	}
	return u, nil
}

func decode(resp *http.Response) (any, error) {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	if !strings.Contains(resp.Header.Get("Content-Type"), "json") {
		return string(raw), nil
	}
	v, err := ir.DecodeJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	return v, nil
}

func sendsQuery(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodDelete:
		return true
	}
	return false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
