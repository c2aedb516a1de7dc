package provider

import (
	"slices"

	"github.com/shineum/anymail-lite/internal/mailerr"
	"github.com/shineum/anymail-lite/internal/message"
	"github.com/shineum/anymail-lite/internal/status"
)

// Feature names an optional message option.
type Feature string

const (
	FeatureMergeData   Feature = "merge_data"
	FeatureSendAt      Feature = "send_at"
	FeatureTrackOpens  Feature = "track_opens"
	FeatureTrackClicks Feature = "track_clicks"
	FeatureMetadata    Feature = "metadata"
	FeatureTags        Feature = "tags"
	FeatureAttachments Feature = "attachments"
	FeatureReplyTo     Feature = "reply_to"
)

// Capabilities is a backend's static self-description.
type Capabilities struct {
	// Unsupported lists the options the provider cannot express.
	Unsupported []Feature

	// IDMode says how the provider identifies accepted messages.
	IDMode status.IDMode

	// GeneratesMessageID asks the dispatcher to assign a
	// "<uuid@sender-domain>" Message-ID before the payload is built.
	GeneratesMessageID bool
}

// Supports reports whether f can be expressed.
func (c Capabilities) Supports(f Feature) bool {
	return !slices.Contains(c.Unsupported, f)
}

// Requested lists the optional features the message actually uses, in a
// fixed order.
func Requested(m *message.Message) []Feature {
	var out []Feature
	if len(m.MergeData) > 0 {
		out = append(out, FeatureMergeData)
	}
	if m.SendAt != nil {
		out = append(out, FeatureSendAt)
	}
	if m.TrackOpens != nil {
		out = append(out, FeatureTrackOpens)
	}
	if m.TrackClicks != nil {
		out = append(out, FeatureTrackClicks)
	}
	if len(m.Metadata) > 0 {
		out = append(out, FeatureMetadata)
	}
	if len(m.Tags) > 0 {
		out = append(out, FeatureTags)
	}
	if len(m.Attachments) > 0 {
		out = append(out, FeatureAttachments)
	}
	if len(m.ReplyTo) > 0 {
		out = append(out, FeatureReplyTo)
	}
	return out
}

// CheckSupport returns the requested features the backend will drop. Unless
// ignore is set, the first of them fails with *mailerr.UnsupportedFeatureError.
func CheckSupport(b Backend, m *message.Message, ignore bool) ([]Feature, error) {
	caps := b.Capabilities()
	var dropped []Feature
	for _, f := range Requested(m) {
		if caps.Supports(f) {
			continue
		}
		if !ignore {
			return nil, &mailerr.UnsupportedFeatureError{Provider: b.Name(), Feature: string(f)}
		}
		dropped = append(dropped, f)
	}
	return dropped, nil
}

// Uses reports whether the envelope's message requests f and the backend
// may encode it. Backends call this while building, so a dropped feature is
// simply left out.
func (e *Envelope) Uses(caps Capabilities, f Feature) bool {
	return caps.Supports(f) && slices.Contains(Requested(e.Message), f)
}
