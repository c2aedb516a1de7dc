package provider

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
)

// EncodeJSON marshals payload and deep-merges extra over it. Objects merge
// key by key; any other value in extra replaces what the backend built.
// Keys are emitted sorted, so equal inputs give byte-identical output.
func EncodeJSON(payload any, extra map[string]any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	var tree map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&tree); err != nil {
		return nil, fmt.Errorf("payload is not a JSON object: %w", err)
	}
	MergeExtra(tree, extra)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(tree); err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// MergeExtra deep-merges src into dst in place.
func MergeExtra(dst, src map[string]any) {
	for k, v := range src {
		sub, ok := v.(map[string]any)
		if !ok {
			dst[k] = v
			continue
		}
		existing, ok := dst[k].(map[string]any)
		if !ok {
			existing = make(map[string]any, len(sub))
			dst[k] = existing
		}
		MergeExtra(existing, sub)
	}
}

// MergedExtra returns base overlaid with override, without modifying either.
func MergedExtra(base, override map[string]any) map[string]any {
	if len(base) == 0 && len(override) == 0 {
		return nil
	}
	out := make(map[string]any, len(base)+len(override))
	MergeExtra(out, deepCopy(base))
	MergeExtra(out, deepCopy(override))
	return out
}

func deepCopy(m map[string]any) map[string]any {
	out := maps.Clone(m)
	for k, v := range out {
		if sub, ok := v.(map[string]any); ok {
			out[k] = deepCopy(sub)
		}
	}
	return out
}
