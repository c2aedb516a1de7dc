// Package mailerr defines the error taxonomy shared by every provider backend
// and the dispatcher. Callers branch on these types and on APIError's status
// code, never on provider-specific error values.
package mailerr

import (
	"fmt"
	"net/http"
)

// ValidationError reports a malformed or inconsistent message. It is always
// raised before any network interaction.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid message: %s: %s", e.Field, e.Reason)
}

// UnsupportedFeatureError reports a message option the configured provider
// cannot express.
type UnsupportedFeatureError struct {
	Provider string
	Feature  string
}

func (e *UnsupportedFeatureError) Error() string {
	return fmt.Sprintf("%s does not support %s; set ignore_unsupported_features to send without it",
		e.Provider, e.Feature)
}

// ConfigError reports missing or contradictory dispatch configuration.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "configuration error: " + e.Reason
}

// APIError is the normalized form of a failed provider call. StatusCode
// mirrors the HTTP status, or is zero when no response was received.
// Description always carries the provider's own error text.
type APIError struct {
	Provider    string
	StatusCode  int
	Description string
	RawPayload  []byte

	// Err is the transport-level cause, if any.
	Err error
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s API request failed: %s", e.Provider, e.Description)
	}
	return fmt.Sprintf("%s API response %d: %s", e.Provider, e.StatusCode, e.Description)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Transient reports whether the failure is worth retrying by the caller:
// no response at all, rate limiting, or a provider-side 5xx.
func (e *APIError) Transient() bool {
	switch {
	case e.StatusCode == 0:
		return true
	case e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 500:
		return true
	default:
		return false
	}
}

// AuthFailure reports whether the provider rejected the credentials. Some
// providers answer 400 for bad credentials, so callers should still check
// Description when they need to tell the two apart.
func (e *APIError) AuthFailure() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}
