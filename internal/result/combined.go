package result

import (
	"fmt"
)

// ResponseInfo is the metadata of a response that failed to produce a usable
// body. It is carried on the network-failure branch of a CombinedError.
type ResponseInfo struct {
	Status     int
	StatusText string
}

// CombinedError unifies the three failure origins of an operation into one
// value: a network-level failure, an unusable response, or protocol errors
// returned alongside data. It is a tagged union, not an error hierarchy: at
// most one of the network branch (NetworkErr, optionally with Response) and
// the protocol branch (GraphQLErrors) is populated, and at least one always
// is. A clean success never allocates a CombinedError.
type CombinedError struct {
	NetworkErr    error
	Response      *ResponseInfo
	GraphQLErrors []GraphQLError
}

// NetworkError unifies a transport failure that produced no response.
func NetworkError(err error) *CombinedError {
	if err == nil {
		return nil
	}
	return &CombinedError{NetworkErr: err}
}

// ResponseError unifies a response that produced no usable body: a non-2xx
// status or an undecodable payload. The status text becomes the wrapped
// network error and the response metadata is carried as context.
func ResponseError(status int, statusText string) *CombinedError {
	return &CombinedError{
		NetworkErr: fmt.Errorf("bad response: %s", statusText),
		Response:   &ResponseInfo{Status: status, StatusText: statusText},
	}
}

// ProtocolErrors unifies application-level errors decoded from a valid
// response body. Returns nil when the list is empty.
func ProtocolErrors(errs []GraphQLError) *CombinedError {
	if len(errs) == 0 {
		return nil
	}
	return &CombinedError{GraphQLErrors: errs}
}

func (e *CombinedError) Error() string {
	if e.NetworkErr != nil {
		return fmt.Sprintf("network error: %s", e.NetworkErr)
	}
	if n := len(e.GraphQLErrors); n > 0 {
		if n == 1 {
			return e.GraphQLErrors[0].Message
		}
		return fmt.Sprintf("%s (and %d more errors)", e.GraphQLErrors[0].Message, n-1)
	}
	return "unknown error"
}

// Unwrap exposes the network branch to errors.Is/As chains.
func (e *CombinedError) Unwrap() error {
	return e.NetworkErr
}

// IsNetwork reports whether the network-failure branch is populated.
func (e *CombinedError) IsNetwork() bool {
	return e.NetworkErr != nil
}
