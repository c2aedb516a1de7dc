// Package message defines the provider-neutral representation of an outbound
// email and its delivery options.
package message

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// Common body part mime types.
const (
	TypeTextPlain = "text/plain"
	TypeTextHTML  = "text/html"
)

// Address is an email address with an optional display name.
type Address struct {
	Email string `validate:"required,rfc5322"`
	Name  string
}

// ParseAddress parses "Name <local@domain>" or a bare "local@domain".
func ParseAddress(s string) (Address, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(s))
	if err != nil {
		return Address{}, fmt.Errorf("parse address %q: %w", s, err)
	}
	return Address{Email: addr.Address, Name: addr.Name}, nil
}

// ParseAddressList parses each entry with ParseAddress.
func ParseAddressList(list []string) ([]Address, error) {
	out := make([]Address, 0, len(list))
	for _, s := range list {
		a, err := ParseAddress(s)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// String formats the address for a header, quoting the name when needed.
func (a Address) String() string {
	if a.Name == "" {
		return a.Email
	}
	return (&mail.Address{Name: a.Name, Address: a.Email}).String()
}

// Domain returns the part after the last "@", lowercased.
func (a Address) Domain() string {
	i := strings.LastIndex(a.Email, "@")
	if i < 0 {
		return ""
	}
	return strings.ToLower(a.Email[i+1:])
}

// BodyPart is one rendering of the message body.
type BodyPart struct {
	Content  string
	MimeType string
}

// Attachment is a file carried with the message. A non-empty ContentID makes
// it an inline attachment referenced from HTML as "cid:<ContentID>".
type Attachment struct {
	Filename  string
	Content   []byte
	MimeType  string
	ContentID string
}

// Inline reports whether the attachment is embedded in the HTML body.
func (a Attachment) Inline() bool {
	return a.ContentID != ""
}

// Message is the canonical outbound email. It must not be modified after it
// has been handed to the dispatcher.
type Message struct {
	Subject string
	// Body holds the plain text part first, followed by any alternatives.
	Body []BodyPart

	From    Address   `validate:"required"`
	To      []Address `validate:"dive"`
	Cc      []Address `validate:"dive"`
	Bcc     []Address `validate:"dive"`
	ReplyTo []Address `validate:"dive"`

	Headers     map[string]string
	Attachments []Attachment `validate:"dive"`

	Tags     []string `validate:"dive,required"`
	Metadata map[string]Value
	// MergeData maps a "to" address to its substitution values.
	MergeData map[string]map[string]string

	SendAt      *time.Time
	TrackOpens  *bool
	TrackClicks *bool

	// ESPExtra holds raw provider-specific overrides applied after the
	// backend has built its payload.
	ESPExtra map[string]any
}

// New returns a message with a plain text body.
func New(subject, text string, from Address, to ...Address) *Message {
	return &Message{
		Subject: subject,
		Body:    []BodyPart{{Content: text, MimeType: TypeTextPlain}},
		From:    from,
		To:      to,
	}
}

// AttachAlternative appends another rendering of the body, such as HTML.
func (m *Message) AttachAlternative(content, mimeType string) {
	m.Body = append(m.Body, BodyPart{Content: content, MimeType: mimeType})
}

// Attach appends a regular attachment.
func (m *Message) Attach(filename string, content []byte, mimeType string) {
	m.Attachments = append(m.Attachments, Attachment{
		Filename: filename,
		Content:  content,
		MimeType: mimeType,
	})
}

// AttachInline appends an inline attachment and returns the content id to
// reference from HTML as "cid:<id>".
func (m *Message) AttachInline(filename string, content []byte, mimeType, contentID string) string {
	m.Attachments = append(m.Attachments, Attachment{
		Filename:  filename,
		Content:   content,
		MimeType:  mimeType,
		ContentID: contentID,
	})
	return contentID
}

// Part returns the first body part with the given mime type.
func (m *Message) Part(mimeType string) (BodyPart, bool) {
	for _, p := range m.Body {
		if strings.EqualFold(p.MimeType, mimeType) {
			return p, true
		}
	}
	return BodyPart{}, false
}

// TextBody returns the plain text body, or "".
func (m *Message) TextBody() string {
	p, _ := m.Part(TypeTextPlain)
	return p.Content
}

// HTMLBody returns the HTML alternative, or "".
func (m *Message) HTMLBody() string {
	p, _ := m.Part(TypeTextHTML)
	return p.Content
}

// Recipients returns to, cc and bcc addresses in declaration order with
// duplicates removed.
func (m *Message) Recipients() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range [][]Address{m.To, m.Cc, m.Bcc} {
		for _, a := range list {
			key := strings.ToLower(a.Email)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, a.Email)
		}
	}
	return out
}

// Header returns a custom header value, matching the name case-insensitively.
func (m *Message) Header(name string) (string, bool) {
	for k, v := range m.Headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}
