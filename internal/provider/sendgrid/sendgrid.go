// Package sendgrid implements a Backend for the SendGrid v3 mail/send API.
package sendgrid

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/shineum/anymail-lite/internal/mailerr"
	"github.com/shineum/anymail-lite/internal/message"
	"github.com/shineum/anymail-lite/internal/provider"
	"github.com/shineum/anymail-lite/internal/status"
)

// Name is the registry identifier.
const Name = "sendgrid"

const (
	defaultAPIURL = "https://api.sendgrid.com/v3/mail/send"

	// DefaultMergeFieldFormat wraps a merge key in percent signs; "{}" marks
	// where the key goes.
	DefaultMergeFieldFormat = "%{}%"

	mergeFieldFormatKey = "merge_field_format"
	templateIDKey       = "template_id"
)

// Backend builds SendGrid requests. The zero value is not usable; use New.
type Backend struct {
	apiURL           string
	mergeFieldFormat string
}

// New creates the backend. Recognized options are "api_url" and
// "merge_field_format".
func New(opts provider.Options) (provider.Backend, error) {
	format := opts.Get(mergeFieldFormatKey, DefaultMergeFieldFormat)
	if !strings.Contains(format, "{}") {
		return nil, &mailerr.ConfigError{Reason: fmt.Sprintf("sendgrid merge_field_format %q has no {} placeholder", format)}
	}
	return &Backend{
		apiURL:           opts.Get("api_url", defaultAPIURL),
		mergeFieldFormat: format,
	}, nil
}

// Name returns the provider name.
func (b *Backend) Name() string { return Name }

// Capabilities reports what SendGrid can express and how it identifies sends.
func (b *Backend) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		IDMode:             status.SharedID,
		GeneratesMessageID: true,
	}
}

// BuildPayload maps the envelope onto a mail/send request.
func (b *Backend) BuildPayload(env *provider.Envelope) (*provider.Request, error) {
	msg := env.Message
	caps := b.Capabilities()

	format, extra, err := b.mergeFormat(env.ESPExtra)
	if err != nil {
		return nil, err
	}

	req := mailSendRequest{
		From:    toAddress(msg.From),
		Subject: msg.Subject,
		Content: buildContent(msg.Body),
		Headers: buildHeaders(msg.Headers, env.MessageID),
	}

	if env.Uses(caps, provider.FeatureMergeData) {
		if _, ok := extra[templateIDKey]; !ok {
			if err := checkMergeTokens(msg, format); err != nil {
				return nil, err
			}
		}
		req.Personalizations = mergePersonalizations(msg, format)
	} else {
		req.Personalizations = []personalization{{
			To:  toAddresses(msg.To),
			Cc:  toAddresses(msg.Cc),
			Bcc: toAddresses(msg.Bcc),
		}}
	}

	if env.Uses(caps, provider.FeatureReplyTo) {
		if len(msg.ReplyTo) == 1 {
			r := toAddress(msg.ReplyTo[0])
			req.ReplyTo = &r
		} else {
			req.ReplyToList = toAddresses(msg.ReplyTo)
		}
	}
	if env.Uses(caps, provider.FeatureAttachments) {
		req.Attachments = buildAttachments(msg.Attachments)
	}
	if env.Uses(caps, provider.FeatureTags) {
		req.Categories = msg.Tags
	}
	if env.Uses(caps, provider.FeatureMetadata) {
		req.CustomArgs = lo.MapValues(msg.Metadata, func(v message.Value, _ string) string {
			return v.String()
		})
	}
	if env.Uses(caps, provider.FeatureSendAt) {
		req.SendAt = msg.SendAt.Unix()
	}
	req.TrackingSettings = buildTracking(env, caps)

	body, err := provider.EncodeJSON(req, extra)
	if err != nil {
		return nil, fmt.Errorf("sendgrid: %w", err)
	}

	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	return &provider.Request{
		Method: http.MethodPost,
		URL:    b.apiURL,
		Header: header,
		Body:   body,
	}, nil
}

// Authenticate sets a bearer API key, or basic auth for username/password
// accounts.
func (b *Backend) Authenticate(_ context.Context, req *provider.Request, creds provider.Credentials, _ provider.Transport) (*provider.Request, error) {
	scheme, err := creds.Scheme()
	if err != nil {
		return nil, err
	}

	out := req.Clone()
	switch scheme {
	case provider.SchemeAPIKey:
		out.Header.Set("Authorization", "Bearer "+creds.APIKey)
	case provider.SchemeBasic:
		token := base64.StdEncoding.EncodeToString([]byte(creds.Username + ":" + creds.Password))
		out.Header.Set("Authorization", "Basic "+token)
	}
	return out, nil
}

// ParseResponse reports every recipient as queued on 2xx. SendGrid accepts
// or rejects the whole request, and the Message-ID it delivers with is the
// one assigned before building.
func (b *Backend) ParseResponse(env *provider.Envelope, resp *provider.Response) (*status.Status, error) {
	if !resp.OK() {
		return nil, mailerr.NewAPIError(Name, resp.StatusCode, resp.Body, mailerr.ErrorsArray)
	}

	st := status.Uniform(env.Recipients(), status.Queued, env.MessageID)
	st.ProviderID = resp.Header.Get("X-Message-Id")
	return st, nil
}

// mergeFormat resolves the merge field format, the message's esp_extra
// winning over the backend option, and strips the key from the overrides
// so it is not sent to SendGrid.
func (b *Backend) mergeFormat(extra map[string]any) (string, map[string]any, error) {
	raw, ok := extra[mergeFieldFormatKey]
	if !ok {
		return b.mergeFieldFormat, extra, nil
	}
	format, isString := raw.(string)
	if !isString || !strings.Contains(format, "{}") {
		return "", nil, &mailerr.ValidationError{
			Field:  "esp_extra.merge_field_format",
			Reason: "must be a string containing {}",
		}
	}
	return format, lo.OmitByKeys(extra, []string{mergeFieldFormatKey}), nil
}

func mergeToken(format, key string) string {
	return strings.ReplaceAll(format, "{}", key)
}

// checkMergeTokens verifies that every merge key is referenced by the
// subject or a body part.
func checkMergeTokens(msg *message.Message, format string) error {
	texts := append([]string{msg.Subject}, lo.Map(msg.Body, func(p message.BodyPart, _ int) string {
		return p.Content
	})...)
	all := strings.Join(texts, "\n")

	for _, addr := range sortedKeys(msg.MergeData) {
		for _, key := range sortedKeys(msg.MergeData[addr]) {
			if !strings.Contains(all, mergeToken(format, key)) {
				return &mailerr.ValidationError{
					Field:  fmt.Sprintf("merge_data[%s].%s", addr, key),
					Reason: fmt.Sprintf("token %s is not used in the subject or body", mergeToken(format, key)),
				}
			}
		}
	}
	return nil
}

// mergePersonalizations emits one personalization per "to" recipient, in
// input order. cc and bcc ride on the first one so they are sent once.
func mergePersonalizations(msg *message.Message, format string) []personalization {
	var out []personalization
	for _, to := range msg.To {
		p := personalization{To: []address{toAddress(to)}}
		if data, ok := lookupFold(msg.MergeData, to.Email); ok {
			p.Substitutions = make(map[string]string, len(data))
			for k, v := range data {
				p.Substitutions[mergeToken(format, k)] = v
			}
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		out = append(out, personalization{})
	}
	out[0].Cc = toAddresses(msg.Cc)
	out[0].Bcc = toAddresses(msg.Bcc)
	return out
}

func buildContent(parts []message.BodyPart) []content {
	var out []content
	for _, p := range parts {
		if strings.EqualFold(p.MimeType, message.TypeTextPlain) {
			out = append([]content{{Type: message.TypeTextPlain, Value: p.Content}}, out...)
			continue
		}
		out = append(out, content{Type: p.MimeType, Value: p.Content})
	}
	return out
}

func buildHeaders(custom map[string]string, messageID string) map[string]string {
	out := make(map[string]string, len(custom)+1)
	for k, v := range custom {
		if strings.EqualFold(k, "Message-ID") {
			continue
		}
		out[k] = v
	}
	if messageID != "" {
		out["Message-ID"] = messageID
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func buildAttachments(atts []message.Attachment) []attachment {
	return lo.Map(atts, func(a message.Attachment, _ int) attachment {
		out := attachment{
			Content:     base64.StdEncoding.EncodeToString(a.Content),
			Type:        a.MimeType,
			Filename:    a.Filename,
			Disposition: "attachment",
		}
		if a.Inline() {
			out.Disposition = "inline"
			out.ContentID = a.ContentID
			if out.Filename == "" {
				out.Filename = a.ContentID
			}
		}
		return out
	})
}

func buildTracking(env *provider.Envelope, caps provider.Capabilities) *trackingSettings {
	msg := env.Message
	var ts trackingSettings
	if env.Uses(caps, provider.FeatureTrackClicks) {
		ts.ClickTracking = &enableSetting{Enable: *msg.TrackClicks}
	}
	if env.Uses(caps, provider.FeatureTrackOpens) {
		ts.OpenTracking = &enableSetting{Enable: *msg.TrackOpens}
	}
	if ts.ClickTracking == nil && ts.OpenTracking == nil {
		return nil
	}
	return &ts
}

func toAddress(a message.Address) address {
	return address{Email: a.Email, Name: a.Name}
}

func toAddresses(list []message.Address) []address {
	if len(list) == 0 {
		return nil
	}
	return lo.Map(list, func(a message.Address, _ int) address { return toAddress(a) })
}

func lookupFold(data map[string]map[string]string, addr string) (map[string]string, bool) {
	if v, ok := data[addr]; ok {
		return v, true
	}
	for k, v := range data {
		if strings.EqualFold(k, addr) {
			return v, true
		}
	}
	return nil, false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}
