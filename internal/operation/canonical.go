package operation

import (
	"encoding/json"
	"sort"
)

// canonicalize produces a deterministic JSON serialization of the variables.
// Maps are written with sorted keys at every depth so that structurally equal
// variables serialize identically. nil variables canonicalize as the empty
// object, matching the wire encoding.
func canonicalize(vars map[string]any) ([]byte, error) {
	if vars == nil {
		return []byte("{}"), nil
	}
	return canonicalizeValue(vars)
}

func canonicalizeValue(v any) ([]byte, error) {
	switch val := v.(type) {
	case map[string]any:
		return canonicalizeMap(val)
	case []any:
		return canonicalizeSlice(val)
	default:
		return json.Marshal(v)
	}
}

func canonicalizeMap(m map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := []byte("{")
	for i, k := range keys {
		if i > 0 {
			out = append(out, ',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		out = append(out, kb...)
		out = append(out, ':')
		vb, err := canonicalizeValue(m[k])
		if err != nil {
			return nil, err
		}
		out = append(out, vb...)
	}
	return append(out, '}'), nil
}

func canonicalizeSlice(s []any) ([]byte, error) {
	out := []byte("[")
	for i, v := range s {
		if i > 0 {
			out = append(out, ',')
		}
		vb, err := canonicalizeValue(v)
		if err != nil {
			return nil, err
		}
		out = append(out, vb...)
	}
	return append(out, ']'), nil
}
