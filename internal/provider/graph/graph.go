package graph

import (
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/shineum/anymail-lite/internal/mailerr"
	"github.com/shineum/anymail-lite/internal/provider"
	"github.com/shineum/anymail-lite/internal/status"
)

// Name is the registry identifier.
const Name = "graph"

const defaultGraphURL = "https://graph.microsoft.com/v1.0"

// Backend builds Graph sendMail requests. The zero value is not usable; use
// New.
type Backend struct {
	graphURL string
	tokenURL string
	scope    string
}

// New creates the backend. Options: "tenant_id" (required for
// username/password auth), "graph_url" and "token_url" overrides.
func New(opts provider.Options) (provider.Backend, error) {
	tokenURL := opts.Get("token_url", "")
	if tokenURL == "" {
		if tenant := opts.Get("tenant_id", ""); tenant != "" {
			tokenURL = fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", url.PathEscape(tenant))
		}
	}

	return &Backend{
		graphURL: strings.TrimSuffix(opts.Get("graph_url", defaultGraphURL), "/"),
		tokenURL: tokenURL,
		scope:    opts.Get("scope", "https://graph.microsoft.com/.default"),
	}, nil
}

// Name returns the provider name.
func (b *Backend) Name() string { return Name }

// Capabilities reports what Graph can express and how it identifies sends.
func (b *Backend) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		Unsupported: []provider.Feature{
			provider.FeatureMergeData,
			provider.FeatureSendAt,
			provider.FeatureMetadata,
			provider.FeatureTrackOpens,
			provider.FeatureTrackClicks,
		},
		IDMode: status.NoID,
	}
}

// BuildPayload maps the envelope onto a sendMail request for the sender's
// mailbox.
func (b *Backend) BuildPayload(env *provider.Envelope) (*provider.Request, error) {
	msg := env.Message
	caps := b.Capabilities()

	from := toRecipient(msg.From)
	req := sendMailRequest{
		Message: sendMailMessage{
			Subject:       msg.Subject,
			Body:          buildBody(msg),
			From:          &from,
			ToRecipients:  toRecipients(msg.To),
			CcRecipients:  toRecipients(msg.Cc),
			BccRecipients: toRecipients(msg.Bcc),
		},
	}
	if env.Uses(caps, provider.FeatureReplyTo) {
		req.Message.ReplyTo = toRecipients(msg.ReplyTo)
	}
	if env.Uses(caps, provider.FeatureAttachments) {
		req.Message.Attachments = buildAttachments(msg.Attachments)
	}
	if env.Uses(caps, provider.FeatureTags) {
		req.Message.Categories = msg.Tags
	}

	names := lo.Keys(msg.Headers)
	slices.Sort(names)
	for _, n := range names {
		req.Message.InternetMessageHeaders = append(req.Message.InternetMessageHeaders,
			internetHeader{Name: n, Value: msg.Headers[n]})
	}

	body, err := provider.EncodeJSON(req, env.ESPExtra)
	if err != nil {
		return nil, fmt.Errorf("graph: %w", err)
	}

	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	return &provider.Request{
		Method: http.MethodPost,
		URL:    fmt.Sprintf("%s/users/%s/sendMail", b.graphURL, url.PathEscape(msg.From.Email)),
		Header: header,
		Body:   body,
	}, nil
}

// ParseResponse treats 202 Accepted (and any other 2xx) as queued. Graph
// returns no message identifier.
func (b *Backend) ParseResponse(env *provider.Envelope, resp *provider.Response) (*status.Status, error) {
	if !resp.OK() {
		return nil, mailerr.NewAPIError(Name, resp.StatusCode, resp.Body, mailerr.NestedError)
	}
	return status.Uniform(env.Recipients(), status.Queued, ""), nil
}
