package operation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// FetchOptions are the per-call options a caller or context factory may
// contribute to a request. Only headers are open for extension: the method
// and body are fixed by this layer and cannot be overridden.
type FetchOptions struct {
	Headers http.Header
}

// Merge overlays extra onto base. Headers present in extra replace those in
// base; everything else in base is kept.
func Merge(base, extra FetchOptions) FetchOptions {
	if len(extra.Headers) == 0 {
		return base
	}
	merged := FetchOptions{Headers: http.Header{}}
	for k, v := range base.Headers {
		merged.Headers[k] = v
	}
	for k, v := range extra.Headers {
		merged.Headers[k] = v
	}
	return merged
}

type wireRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// Body returns the transport payload: JSON {"query": ..., "variables": ...}.
// Variables are always present, encoded as an empty object when nil.
func (n Normalized) Body() ([]byte, error) {
	vars := n.Variables
	if vars == nil {
		vars = map[string]any{}
	}
	body, err := json.Marshal(wireRequest{Query: n.Query, Variables: vars})
	if err != nil {
		return nil, fmt.Errorf("operation: encode body: %w", err)
	}
	return body, nil
}

// NewRequest builds the HTTP request for the operation. The method is always
// POST and the body is fixed; opts headers take precedence over the default
// content-type.
func (n Normalized) NewRequest(ctx context.Context, url string, opts FetchOptions) (*http.Request, error) {
	body, err := n.Body()
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("operation: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range opts.Headers {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return req, nil
}
