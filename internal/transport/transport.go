// Package transport defines the HTTP boundary of the client: the injected
// transport primitive and the parser that turns raw responses into a typed
// envelope.
package transport

import (
	"net/http"
)

// Doer performs a single HTTP round trip. *http.Client satisfies it; tests
// and callers with custom stacks supply their own.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Default returns the probe-the-host transport: a plain net/http client.
// The core client never resolves this implicitly; construction requires an
// explicit Doer and this helper is how most callers obtain one.
func Default() Doer {
	return &http.Client{}
}
