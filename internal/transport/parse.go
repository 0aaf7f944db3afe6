package transport

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/graphfetch/graphfetch/internal/result"
)

// Body is the decoded GraphQL response body.
type Body struct {
	Data   json.RawMessage       `json:"data"`
	Errors []result.GraphQLError `json:"errors"`
}

// Envelope is the typed form of a raw transport response. OK reflects both
// transport-level success (2xx) and successful body decoding; a decode
// failure surfaces as OK=false with Body nil, never as an error.
type Envelope struct {
	OK         bool
	Status     int
	StatusText string
	Body       *Body
}

// Parse reads and decodes resp. It consumes and closes the response body.
// Parse never fails past this boundary: anything unusable comes back as a
// not-OK envelope.
func Parse(resp *http.Response) Envelope {
	env := Envelope{Status: resp.StatusCode, StatusText: resp.Status}

	if resp.Body != nil {
		defer resp.Body.Close()
		raw, err := io.ReadAll(resp.Body)
		if err == nil && isObject(raw) {
			var body Body
			if json.Unmarshal(raw, &body) == nil {
				env.Body = &body
			}
		}
	}

	env.OK = resp.StatusCode >= 200 && resp.StatusCode < 300 && env.Body != nil
	return env
}

// isObject reports whether raw starts a JSON object. A usable GraphQL
// response body is always an object; "null" or an array is not.
func isObject(raw []byte) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '{':
			return true
		default:
			return false
		}
	}
	return false
}
