// Package operation canonicalizes GraphQL operations for caching and
// transport. The query is treated as an opaque string: normalization is
// whitespace collapsing only, never parsing.
package operation

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyQuery reports an operation whose normalized query is empty.
// Such an operation is invalid and must not be dispatched.
var ErrEmptyQuery = errors.New("operation: query is empty")

// Operation is a GraphQL request as supplied by the caller: an opaque query
// document plus variables. Constructed per call, ephemeral.
type Operation struct {
	Query     string
	Variables map[string]any
}

// Normalized is an operation whose query has been whitespace-normalized and
// whose cache key has been computed. Two operations with the same logical
// query and structurally equal variables normalize to the same key,
// regardless of map key ordering.
type Normalized struct {
	Query     string
	Variables map[string]any

	key string
}

// Normalize collapses runs of whitespace in the query, trims it, and derives
// the deterministic cache key. Fails with ErrEmptyQuery when nothing remains.
func Normalize(op Operation) (Normalized, error) {
	query := strings.Join(strings.Fields(op.Query), " ")
	if query == "" {
		return Normalized{}, ErrEmptyQuery
	}

	canonical, err := canonicalize(op.Variables)
	if err != nil {
		return Normalized{}, fmt.Errorf("operation: canonicalize variables: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(query))
	h.Write([]byte{0})
	h.Write(canonical)

	return Normalized{
		Query:     query,
		Variables: op.Variables,
		key:       hex.EncodeToString(h.Sum(nil)),
	}, nil
}

// Key returns the cache key: sha256 over the normalized query and the
// canonical serialization of the variables.
func (n Normalized) Key() string {
	return n.key
}
