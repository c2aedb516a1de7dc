package mailerr

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/samber/lo"
)

// Extractor pulls the provider's own error strings out of a response body.
// It returns nil when the body has no recognizable error field.
type Extractor func(body []byte) []string

// NewAPIError builds the normalized error for a non-2xx provider response.
// The description joins every string the extractor finds; when there are
// none it falls back to the raw body, then to the HTTP status text.
func NewAPIError(provider string, statusCode int, body []byte, extract Extractor) *APIError {
	var found []string
	if extract != nil {
		found = extract(body)
	}
	found = lo.Compact(lo.Map(found, func(s string, _ int) string {
		return strings.TrimSpace(s)
	}))

	desc := strings.Join(found, "; ")
	if desc == "" {
		desc = strings.TrimSpace(string(body))
	}
	if desc == "" {
		desc = http.StatusText(statusCode)
	}

	raw := make([]byte, len(body))
	copy(raw, body)

	return &APIError{
		Provider:    provider,
		StatusCode:  statusCode,
		Description: desc,
		RawPayload:  raw,
	}
}

// ErrorsArray extracts a top-level "errors" array whose elements are either
// plain strings or objects with a "message" field. A bare top-level
// "message" is used when no array is present.
func ErrorsArray(body []byte) []string {
	var resp struct {
		Errors  []json.RawMessage `json:"errors"`
		Message string            `json:"message"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil
	}

	var out []string
	for _, raw := range resp.Errors {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			out = append(out, s)
			continue
		}
		var obj struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
			out = append(out, obj.Message)
		}
	}
	if len(out) == 0 && resp.Message != "" {
		out = append(out, resp.Message)
	}
	return out
}

// NestedError extracts {"error": {"code": ..., "message": ...}}. The code is
// prefixed when present so operators can search for it.
func NestedError(body []byte) []string {
	var resp struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.Error.Message == "" {
		return nil
	}
	if resp.Error.Code != "" {
		return []string{resp.Error.Code + ": " + resp.Error.Message}
	}
	return []string{resp.Error.Message}
}

// TopLevelMessage extracts a "message" or "Message" field.
func TopLevelMessage(body []byte) []string {
	var resp map[string]json.RawMessage
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil
	}
	for _, key := range []string{"message", "Message"} {
		raw, ok := resp[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return []string{s}
		}
	}
	return nil
}
