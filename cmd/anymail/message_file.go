package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shineum/anymail-lite/internal/message"
	"github.com/shineum/anymail-lite/internal/parser"
)

// messageFile is the YAML form of a message accepted by "send --message".
// Addresses use "Name <local@domain>" or a bare address.
type messageFile struct {
	From    string   `yaml:"from"`
	To      []string `yaml:"to"`
	Cc      []string `yaml:"cc"`
	Bcc     []string `yaml:"bcc"`
	ReplyTo []string `yaml:"reply_to"`

	Subject string `yaml:"subject"`
	Text    string `yaml:"text"`
	HTML    string `yaml:"html"`

	Headers     map[string]string            `yaml:"headers"`
	Attachments []attachmentFile             `yaml:"attachments"`
	Tags        []string                     `yaml:"tags"`
	Metadata    map[string]any               `yaml:"metadata"`
	MergeData   map[string]map[string]string `yaml:"merge_data"`

	SendAt      *time.Time `yaml:"send_at"`
	TrackOpens  *bool      `yaml:"track_opens"`
	TrackClicks *bool      `yaml:"track_clicks"`

	ESPExtra map[string]any `yaml:"esp_extra"`
}

// attachmentFile takes its content from Path, resolved against the message
// file's directory, or from the literal Content.
type attachmentFile struct {
	Filename  string `yaml:"filename"`
	Path      string `yaml:"path"`
	Content   string `yaml:"content"`
	MimeType  string `yaml:"mime_type"`
	ContentID string `yaml:"content_id"`
}

// loadMessageFile reads a YAML message description.
func loadMessageFile(path string) (*message.Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read message file: %w", err)
	}

	var mf messageFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("failed to parse message file: %w", err)
	}
	return mf.toMessage(filepath.Dir(path))
}

// loadEML reads a raw RFC 5322 message.
func loadEML(path string) (*message.Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read eml file: %w", err)
	}
	return parser.Parse(data)
}

func (mf *messageFile) toMessage(baseDir string) (*message.Message, error) {
	msg := &message.Message{
		Subject:     mf.Subject,
		Headers:     mf.Headers,
		Tags:        mf.Tags,
		MergeData:   mf.MergeData,
		SendAt:      mf.SendAt,
		TrackOpens:  mf.TrackOpens,
		TrackClicks: mf.TrackClicks,
		ESPExtra:    mf.ESPExtra,
	}

	var err error
	if mf.From != "" {
		if msg.From, err = message.ParseAddress(mf.From); err != nil {
			return nil, fmt.Errorf("from: %w", err)
		}
	}
	for _, field := range []struct {
		name string
		src  []string
		dst  *[]message.Address
	}{
		{"to", mf.To, &msg.To},
		{"cc", mf.Cc, &msg.Cc},
		{"bcc", mf.Bcc, &msg.Bcc},
		{"reply_to", mf.ReplyTo, &msg.ReplyTo},
	} {
		if len(field.src) == 0 {
			continue
		}
		if *field.dst, err = message.ParseAddressList(field.src); err != nil {
			return nil, fmt.Errorf("%s: %w", field.name, err)
		}
	}

	if mf.Text != "" || mf.HTML == "" {
		msg.Body = append(msg.Body, message.BodyPart{Content: mf.Text, MimeType: message.TypeTextPlain})
	}
	if mf.HTML != "" {
		msg.AttachAlternative(mf.HTML, message.TypeTextHTML)
	}

	if len(mf.Metadata) > 0 {
		msg.Metadata = make(map[string]message.Value, len(mf.Metadata))
		for k, v := range mf.Metadata {
			if msg.Metadata[k], err = message.ValueOf(v); err != nil {
				return nil, fmt.Errorf("metadata %q: %w", k, err)
			}
		}
	}

	for i, af := range mf.Attachments {
		content := []byte(af.Content)
		if af.Path != "" {
			p := af.Path
			if !filepath.IsAbs(p) {
				p = filepath.Join(baseDir, p)
			}
			if content, err = os.ReadFile(p); err != nil {
				return nil, fmt.Errorf("attachments[%d]: %w", i, err)
			}
		}

		filename := af.Filename
		if filename == "" && af.Path != "" {
			filename = filepath.Base(af.Path)
		}
		mimeType := af.MimeType
		if mimeType == "" {
			mimeType = mime.TypeByExtension(filepath.Ext(filename))
		}
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}

		if af.ContentID != "" {
			msg.AttachInline(filename, content, mimeType, af.ContentID)
		} else {
			msg.Attach(filename, content, mimeType)
		}
	}

	return msg, nil
}
