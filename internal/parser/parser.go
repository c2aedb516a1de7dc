// Package parser converts RFC 5322 messages, including MIME multipart
// bodies, into the provider-neutral message model.
package parser

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"strings"

	"github.com/shineum/anymail-lite/internal/message"
)

var wordDecoder = new(mime.WordDecoder)

// Parse parses a raw RFC 5322 email message into a Message. It keeps display
// names, Reply-To, the Message-ID and custom "X-" headers. Parts carrying a
// Content-ID become inline attachments. Unrecognized MIME parts are logged
// as warnings and skipped.
func Parse(raw []byte) (*message.Message, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	result := &message.Message{}

	from, err := parseAddressList(msg.Header, "From")
	if err != nil {
		return nil, err
	}
	if len(from) > 0 {
		result.From = from[0]
	}
	for _, field := range []struct {
		name string
		dst  *[]message.Address
	}{
		{"To", &result.To},
		{"Cc", &result.Cc},
		{"Bcc", &result.Bcc},
		{"Reply-To", &result.ReplyTo},
	} {
		if *field.dst, err = parseAddressList(msg.Header, field.name); err != nil {
			return nil, err
		}
	}

	result.Subject = decodeHeader(msg.Header.Get("Subject"))
	result.Headers = customHeaders(msg.Header)

	contentType := msg.Header.Get("Content-Type")
	if contentType == "" {
		contentType = message.TypeTextPlain
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		// If content type is unparseable, treat as plain text
		slog.Warn("failed to parse content type, treating as plain text",
			"content_type", contentType,
			"error", err,
		)
		body, readErr := io.ReadAll(msg.Body)
		if readErr != nil {
			return nil, fmt.Errorf("failed to read message body: %w", readErr)
		}
		result.Body = append(result.Body, message.BodyPart{Content: string(body), MimeType: message.TypeTextPlain})
		return result, nil
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return nil, fmt.Errorf("multipart message missing boundary")
		}
		if err := parseMultipart(msg.Body, boundary, result); err != nil {
			return nil, fmt.Errorf("failed to parse multipart message: %w", err)
		}
	} else {
		body, err := decodeBody(msg.Body, msg.Header.Get("Content-Transfer-Encoding"))
		if err != nil {
			return nil, fmt.Errorf("failed to read message body: %w", err)
		}
		switch mediaType {
		case message.TypeTextPlain, message.TypeTextHTML:
			result.Body = append(result.Body, message.BodyPart{Content: string(body), MimeType: mediaType})
		default:
			slog.Warn("unrecognized top-level content type",
				"content_type", mediaType,
			)
			result.Body = append(result.Body, message.BodyPart{Content: string(body), MimeType: message.TypeTextPlain})
		}
	}

	sortBody(result)
	return result, nil
}

// parseMultipart processes a multipart MIME body, extracting the first
// text/plain and text/html parts, attachments and inline images.
func parseMultipart(body io.Reader, boundary string, result *message.Message) error {
	reader := multipart.NewReader(body, boundary)

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read next part: %w", err)
		}

		partContentType := part.Header.Get("Content-Type")
		if partContentType == "" {
			partContentType = message.TypeTextPlain
		}

		mediaType, params, err := mime.ParseMediaType(partContentType)
		if err != nil {
			slog.Warn("failed to parse part content type, skipping",
				"content_type", partContentType,
				"error", err,
			)
			continue
		}

		disposition, _, _ := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
		contentID := strings.Trim(strings.TrimSpace(part.Header.Get("Content-Id")), "<>")

		if strings.HasPrefix(mediaType, "multipart/") {
			nestedBoundary := params["boundary"]
			if nestedBoundary == "" {
				slog.Warn("nested multipart missing boundary, skipping")
				continue
			}
			if err := parseMultipart(part, nestedBoundary, result); err != nil {
				slog.Warn("failed to parse nested multipart",
					"error", err,
				)
			}
			continue
		}

		content, err := readPartContent(part)
		if err != nil {
			slog.Warn("failed to read part content",
				"content_type", mediaType,
				"error", err,
			)
			continue
		}

		switch {
		case disposition == "attachment":
			result.Attach(extractFilename(part, params), content, mediaType)
		case contentID != "":
			result.AttachInline(part.FileName(), content, mediaType, contentID)
		case mediaType == message.TypeTextPlain || mediaType == message.TypeTextHTML:
			if _, ok := result.Part(mediaType); !ok {
				result.Body = append(result.Body, message.BodyPart{Content: string(content), MimeType: mediaType})
			}
		default:
			// Check if it has a filename even without attachment disposition
			if part.FileName() != "" || params["name"] != "" {
				result.Attach(extractFilename(part, params), content, mediaType)
			} else {
				slog.Warn("unrecognized MIME part, skipping",
					"content_type", mediaType,
					"disposition", disposition,
				)
			}
		}
	}

	return nil
}

// readPartContent reads the full content of a MIME part. The multipart
// reader already undoes quoted-printable.
func readPartContent(part *multipart.Part) ([]byte, error) {
	return decodeBody(part, part.Header.Get("Content-Transfer-Encoding"))
}

// decodeBody reads r and undoes its Content-Transfer-Encoding.
func decodeBody(r io.Reader, encoding string) ([]byte, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		cleaned := strings.NewReplacer("\r", "", "\n", "").Replace(string(raw))
		decoded, err := base64.StdEncoding.DecodeString(cleaned)
		if err != nil {
			// Try with RawStdEncoding for unpadded base64
			decoded, err = base64.RawStdEncoding.DecodeString(cleaned)
			if err != nil {
				return nil, fmt.Errorf("failed to decode base64 content: %w", err)
			}
		}
		return decoded, nil
	case "quoted-printable":
		decoded, err := io.ReadAll(quotedprintable.NewReader(bytes.NewReader(raw)))
		if err != nil {
			return nil, fmt.Errorf("failed to decode quoted-printable content: %w", err)
		}
		return decoded, nil
	default:
		return raw, nil
	}
}

// extractFilename extracts the filename from a MIME part, checking both
// Content-Disposition and Content-Type parameters.
func extractFilename(part *multipart.Part, params map[string]string) string {
	if fn := part.FileName(); fn != "" {
		return fn
	}
	if name, ok := params["name"]; ok && name != "" {
		return decodeHeader(name)
	}
	// Generate a fallback name from the media type; regular attachments
	// need one.
	if mediaType, _, err := mime.ParseMediaType(part.Header.Get("Content-Type")); err == nil {
		parts := strings.SplitN(mediaType, "/", 2)
		if len(parts) == 2 {
			return "attachment." + parts[1]
		}
	}
	return "attachment"
}

// parseAddressList parses one address header. Unlike a bare split, a
// malformed list is an error so that bad recipients are never sent.
func parseAddressList(h mail.Header, name string) ([]message.Address, error) {
	if h.Get(name) == "" {
		return nil, nil
	}
	addresses, err := h.AddressList(name)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s header: %w", name, err)
	}

	result := make([]message.Address, 0, len(addresses))
	for _, addr := range addresses {
		result = append(result, message.Address{Email: addr.Address, Name: addr.Name})
	}
	return result, nil
}

// customHeaders keeps the Message-ID and every "X-" header.
func customHeaders(h mail.Header) map[string]string {
	out := make(map[string]string)
	for key, values := range h {
		canonical := textproto.CanonicalMIMEHeaderKey(key)
		switch {
		case canonical == "Message-Id":
			out["Message-ID"] = values[0]
		case strings.HasPrefix(canonical, "X-"):
			out[canonical] = decodeHeader(strings.Join(values, ", "))
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func decodeHeader(s string) string {
	decoded, err := wordDecoder.DecodeHeader(s)
	if err != nil {
		return s
	}
	return decoded
}

// sortBody puts the plain text part first.
func sortBody(m *message.Message) {
	for i, p := range m.Body {
		if i > 0 && p.MimeType == message.TypeTextPlain {
			m.Body[0], m.Body[i] = m.Body[i], m.Body[0]
			return
		}
	}
}
