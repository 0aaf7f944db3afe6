package result

import (
	"encoding/json"
)

// GraphQLError is a protocol-level error object returned in a response body
// alongside possibly-valid data.
type GraphQLError struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (e GraphQLError) Error() string {
	return e.Message
}

// OperationResult is the uniform outcome of one request/response cycle or one
// cache hit. Data and Error may be simultaneously non-nil: a response carrying
// protocol errors still exposes whatever data it decoded (partial success).
type OperationResult struct {
	Data  json.RawMessage `json:"data"`
	Error *CombinedError  `json:"error,omitempty"`
}

// UnmarshalData decodes the result's data field into v.
// Decoding a nil or JSON-null data field leaves v untouched.
func (r OperationResult) UnmarshalData(v any) error {
	if len(r.Data) == 0 || string(r.Data) == "null" {
		return nil
	}
	return json.Unmarshal(r.Data, v)
}
