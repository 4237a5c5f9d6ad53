package ir

// Request is a declarative request descriptor forwarded to the request layer.
// An action whose exec is a Request is an async action whose result is the
// decoded response body.
type Request struct {
	URL     string            `json:"url"`
	Method  string            `json:"method,omitempty"`
	Data    map[string]any    `json:"data,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// WithCall merges call arguments into a copy of the descriptor.
//
// The first argument, when it is an object, is shallow-merged over the
// descriptor's default data. The second argument, when it is an object,
// overrides descriptor fields ("url", "method", "data", "headers"); nil
// option values are ignored.
func (r Request) WithCall(args []any) Request {
	out := Request{
		URL:     r.URL,
		Method:  r.Method,
		Headers: make(map[string]string, len(r.Headers)),
	}
	for k, v := range r.Headers {
		out.Headers[k] = v
	}

	var first map[string]any
	if len(args) > 0 {
		first, _ = AsObject(args[0])
	}
	if r.Data != nil || first != nil {
		out.Data = make(map[string]any, len(r.Data)+len(first))
		for k, v := range r.Data {
			out.Data[k] = v
		}
		for k, v := range first {
			out.Data[k] = v
		}
	}

	if len(args) < 2 {
		return out
	}
	opts, ok := AsObject(args[1])
	if !ok {
		return out
	}
	for k, v := range opts {
		if v == nil {
			continue
		}
		switch k {
		case "url":
			if s, ok := v.(string); ok {
				out.URL = s
			}
		case "method":
			if s, ok := v.(string); ok {
				out.Method = s
			}
		case "data":
			if m, ok := AsObject(v); ok {
				out.Data = m
			}
		case "headers":
			if m, ok := AsObject(v); ok {
				for hk, hv := range m {
					if s, ok := hv.(string); ok {
						out.Headers[hk] = s
					}
				}
			}
		}
	}
	return out
}
