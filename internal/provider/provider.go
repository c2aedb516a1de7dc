// Package provider defines the contract every email service provider backend
// implements, plus the registry the dispatcher resolves backends from.
package provider

import (
	"context"
	"net/http"

	"github.com/shineum/anymail-lite/internal/mailerr"
	"github.com/shineum/anymail-lite/internal/message"
	"github.com/shineum/anymail-lite/internal/status"
)

// Backend translates a message into one provider's wire format and parses
// that provider's responses. Implementations hold no mutable state so that
// concurrent sends never interfere.
type Backend interface {
	// Name returns the canonical provider identifier.
	Name() string

	// Capabilities describes what the provider can express.
	Capabilities() Capabilities

	// BuildPayload maps the envelope to an unauthenticated request. It is
	// pure: the same envelope always yields a byte-identical request.
	BuildPayload(env *Envelope) (*Request, error)

	// Authenticate returns a copy of req carrying the provider's credentials.
	// Any exchange it needs to obtain them, such as an OAuth2 token request,
	// goes through t.
	Authenticate(ctx context.Context, req *Request, creds Credentials, t Transport) (*Request, error)

	// ParseResponse turns a 2xx response into a status aggregate, and any
	// other response into a *mailerr.APIError.
	ParseResponse(env *Envelope, resp *Response) (*status.Status, error)
}

// Transport performs one HTTP exchange. It is the only component that
// touches the network.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Request is a fully described provider call.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Clone returns a deep copy, so authentication never mutates the built
// payload.
func (r *Request) Clone() *Request {
	body := make([]byte, len(r.Body))
	copy(body, r.Body)
	return &Request{
		Method: r.Method,
		URL:    r.URL,
		Header: r.Header.Clone(),
		Body:   body,
	}
}

// Response is the raw result of a provider call.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Envelope is the message plus the facts fixed at dispatch time.
type Envelope struct {
	Message *message.Message

	// MessageID is the RFC 5322 Message-ID assigned to this send, or "" when
	// the provider issues its own.
	MessageID string

	// ESPExtra is the configured default overrides merged with the
	// message's own, the message winning.
	ESPExtra map[string]any
}

// Recipients returns the status keys for this send.
func (e *Envelope) Recipients() []string {
	return e.Message.Recipients()
}

// Credentials carries exactly one configured auth scheme. APIKey takes
// precedence when both are set.
type Credentials struct {
	APIKey   string `yaml:"api_key"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Scheme identifies which credential form is in use.
type Scheme int

const (
	SchemeAPIKey Scheme = iota + 1
	SchemeBasic
)

// Scheme resolves the credential precedence.
func (c Credentials) Scheme() (Scheme, error) {
	switch {
	case c.APIKey != "":
		return SchemeAPIKey, nil
	case c.Username != "" && c.Password != "":
		return SchemeBasic, nil
	case c.Username != "":
		return 0, &mailerr.ConfigError{Reason: "username is set without a password"}
	default:
		return 0, &mailerr.ConfigError{Reason: "either api_key or username/password is required"}
	}
}
