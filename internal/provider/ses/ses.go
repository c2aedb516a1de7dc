// Package ses implements a Backend for the AWS SES v2 SendEmail REST API.
package ses

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/samber/lo"

	"github.com/shineum/anymail-lite/internal/mailerr"
	"github.com/shineum/anymail-lite/internal/message"
	"github.com/shineum/anymail-lite/internal/provider"
	"github.com/shineum/anymail-lite/internal/status"
)

// Name is the registry identifier.
const Name = "ses"

const (
	sendEmailPath = "/v2/email/outbound-emails"
	charset       = "UTF-8"
	tagHeader     = "X-Tag"
)

// Backend builds SES v2 requests. The zero value is not usable; use New.
type Backend struct {
	region           string
	endpoint         string
	configurationSet string

	// now is the signing clock.
	now func() time.Time
}

// New creates the backend. The "region" option is required; "endpoint"
// overrides the regional endpoint and "configuration_set" names the SES
// configuration set to send with.
func New(opts provider.Options) (provider.Backend, error) {
	region := opts.Get("region", "")
	if region == "" {
		return nil, &mailerr.ConfigError{Reason: "ses requires provider option region"}
	}
	endpoint := opts.Get("endpoint", fmt.Sprintf("https://email.%s.amazonaws.com", region))
	return &Backend{
		region:           region,
		endpoint:         strings.TrimSuffix(endpoint, "/"),
		configurationSet: opts.Get("configuration_set", ""),
		now:              time.Now,
	}, nil
}

// Name returns the provider name.
func (b *Backend) Name() string { return Name }

// Capabilities reports what SES can express and how it identifies sends.
func (b *Backend) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		Unsupported: []provider.Feature{
			provider.FeatureMergeData,
			provider.FeatureSendAt,
			provider.FeatureTrackOpens,
			provider.FeatureTrackClicks,
		},
		IDMode: status.SharedID,
	}
}

// BuildPayload maps the envelope onto a SendEmail request with simple
// content.
func (b *Backend) BuildPayload(env *provider.Envelope) (*provider.Request, error) {
	msg := env.Message
	caps := b.Capabilities()

	input := sendEmailInput{
		FromEmailAddress: aws.String(msg.From.String()),
		Destination: destination{
			ToAddresses:  formatAddresses(msg.To),
			CcAddresses:  formatAddresses(msg.Cc),
			BccAddresses: formatAddresses(msg.Bcc),
		},
		Content: emailContent{Simple: &simpleMessage{
			Subject: content{Data: aws.String(msg.Subject), Charset: aws.String(charset)},
			Body:    buildBody(msg),
			Headers: buildHeaders(env, caps),
		}},
	}
	if b.configurationSet != "" {
		input.ConfigurationSetName = aws.String(b.configurationSet)
	}
	if env.Uses(caps, provider.FeatureReplyTo) {
		input.ReplyToAddresses = formatAddresses(msg.ReplyTo)
	}
	if env.Uses(caps, provider.FeatureAttachments) {
		input.Content.Simple.Attachments = buildAttachments(msg.Attachments)
	}
	if env.Uses(caps, provider.FeatureMetadata) {
		input.EmailTags = buildTags(msg.Metadata)
	}

	payload, err := provider.EncodeJSON(input, env.ESPExtra)
	if err != nil {
		return nil, fmt.Errorf("ses: %w", err)
	}

	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	return &provider.Request{
		Method: http.MethodPost,
		URL:    b.endpoint + sendEmailPath,
		Header: header,
		Body:   payload,
	}, nil
}

// ParseResponse reports every recipient as queued under the SES message id.
func (b *Backend) ParseResponse(env *provider.Envelope, resp *provider.Response) (*status.Status, error) {
	if !resp.OK() {
		return nil, mailerr.NewAPIError(Name, resp.StatusCode, resp.Body, errorExtractor(resp.Header))
	}

	var out sendEmailOutput
	if len(resp.Body) > 0 {
		if err := json.Unmarshal(resp.Body, &out); err != nil {
			return nil, &mailerr.APIError{
				Provider:    Name,
				StatusCode:  resp.StatusCode,
				Description: fmt.Sprintf("unparseable success response: %v", err),
				RawPayload:  resp.Body,
				Err:         err,
			}
		}
	}
	return status.Uniform(env.Recipients(), status.Queued, out.MessageId), nil
}

// errorExtractor prefixes the error message with the SES error type, which
// arrives in a header rather than the body.
func errorExtractor(h http.Header) mailerr.Extractor {
	errType, _, _ := strings.Cut(h.Get("X-Amzn-ErrorType"), ":")
	return func(body []byte) []string {
		msgs := mailerr.TopLevelMessage(body)
		if errType == "" {
			return msgs
		}
		if len(msgs) == 0 {
			return []string{errType}
		}
		return lo.Map(msgs, func(m string, _ int) string { return errType + ": " + m })
	}
}

func buildBody(msg *message.Message) body {
	var b body
	if text := msg.TextBody(); text != "" {
		b.Text = &content{Data: aws.String(text), Charset: aws.String(charset)}
	}
	if html := msg.HTMLBody(); html != "" {
		b.Html = &content{Data: aws.String(html), Charset: aws.String(charset)}
	}
	return b
}

// buildHeaders emits custom headers sorted by name, then one X-Tag header
// per tag.
func buildHeaders(env *provider.Envelope, caps provider.Capabilities) []messageHeader {
	msg := env.Message
	names := lo.Keys(msg.Headers)
	slices.Sort(names)

	out := lo.Map(names, func(n string, _ int) messageHeader {
		return messageHeader{Name: n, Value: msg.Headers[n]}
	})
	if env.Uses(caps, provider.FeatureTags) {
		for _, tag := range msg.Tags {
			out = append(out, messageHeader{Name: tagHeader, Value: tag})
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func buildAttachments(atts []message.Attachment) []attachment {
	return lo.Map(atts, func(a message.Attachment, _ int) attachment {
		out := attachment{
			RawContent:              base64.StdEncoding.EncodeToString(a.Content),
			FileName:                a.Filename,
			ContentType:             a.MimeType,
			ContentDisposition:      "ATTACHMENT",
			ContentTransferEncoding: "BASE64",
		}
		if a.Inline() {
			out.ContentDisposition = "INLINE"
			out.ContentId = aws.String(a.ContentID)
			if out.FileName == "" {
				out.FileName = a.ContentID
			}
		}
		return out
	})
}

func buildTags(metadata map[string]message.Value) []messageTag {
	names := lo.Keys(metadata)
	slices.Sort(names)
	return lo.Map(names, func(n string, _ int) messageTag {
		return messageTag{Name: n, Value: metadata[n].String()}
	})
}

func formatAddresses(list []message.Address) []string {
	if len(list) == 0 {
		return nil
	}
	return lo.Map(list, func(a message.Address, _ int) string { return a.String() })
}
