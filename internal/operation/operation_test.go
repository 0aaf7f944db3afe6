package operation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeCollapsesWhitespace(t *testing.T) {
	norm, err := Normalize(Operation{Query: "  query A {\n\tx\n } "})
	require.NoError(t, err)
	if norm.Query != "query A { x }" {
		t.Fatalf("normalized query: %q", norm.Query)
	}
}

func TestNormalizeEmptyQuery(t *testing.T) {
	for _, q := range []string{"", "   ", "\n\t \r\n"} {
		_, err := Normalize(Operation{Query: q})
		if !errors.Is(err, ErrEmptyQuery) {
			t.Fatalf("query %q: expected ErrEmptyQuery, got %v", q, err)
		}
	}
}

func TestKeyIsDeterministic(t *testing.T) {
	op := Operation{Query: "query A { x }", Variables: map[string]any{"a": 1, "b": 2}}
	first, err := Normalize(op)
	require.NoError(t, err)
	second, err := Normalize(op)
	require.NoError(t, err)
	if first.Key() != second.Key() {
		t.Fatalf("key not deterministic: %s vs %s", first.Key(), second.Key())
	}
}

func TestKeyIgnoresVariableOrdering(t *testing.T) {
	a, err := Normalize(Operation{
		Query: "query A { x }",
		Variables: map[string]any{
			"a":      1,
			"nested": map[string]any{"x": "1", "y": []any{1, 2}},
		},
	})
	require.NoError(t, err)
	b, err := Normalize(Operation{
		Query: " query A  { x } ",
		Variables: map[string]any{
			"nested": map[string]any{"y": []any{1, 2}, "x": "1"},
			"a":      1,
		},
	})
	require.NoError(t, err)
	if a.Key() != b.Key() {
		t.Fatalf("structurally equal operations produced different keys")
	}
}

func TestKeyDistinguishesVariables(t *testing.T) {
	a, err := Normalize(Operation{Query: "query A { x }", Variables: map[string]any{"a": 1}})
	require.NoError(t, err)
	b, err := Normalize(Operation{Query: "query A { x }", Variables: map[string]any{"a": 2}})
	require.NoError(t, err)
	if a.Key() == b.Key() {
		t.Fatalf("different variables produced the same key")
	}
}

func TestKeyNilAndEmptyVariablesAgree(t *testing.T) {
	a, err := Normalize(Operation{Query: "query A { x }"})
	require.NoError(t, err)
	b, err := Normalize(Operation{Query: "query A { x }", Variables: map[string]any{}})
	require.NoError(t, err)
	if a.Key() != b.Key() {
		t.Fatalf("nil and empty variables produced different keys")
	}
}
