package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/shineum/anymail-lite/internal/provider"
)

const separator = "========================================\n"

// Stdout prints requests instead of sending them and answers every one
// with 202 Accepted. It backs dry runs.
type Stdout struct {
	// writer is the output destination, defaulting to os.Stdout.
	writer io.Writer
}

// NewStdout creates a dry-run transport that writes to os.Stdout.
func NewStdout() *Stdout {
	return &Stdout{writer: os.Stdout}
}

// NewStdoutWithWriter creates a dry-run transport that writes to w.
func NewStdoutWithWriter(w io.Writer) *Stdout {
	return &Stdout{writer: w}
}

// Do prints the request in a readable form with credentials redacted.
func (s *Stdout) Do(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString(separator)
	fmt.Fprintf(&b, "%s %s\n", req.Method, req.URL)

	names := lo.Keys(req.Header)
	slices.Sort(names)
	for _, name := range names {
		value := strings.Join(req.Header[name], ", ")
		if isSecretHeader(name) {
			value = redact(value)
		}
		fmt.Fprintf(&b, "%s: %s\n", name, value)
	}

	form, isForm := formBody(req)
	fmt.Fprintf(&b, "Body (%s):\n", formatSize(len(req.Body)))
	var pretty bytes.Buffer
	if isForm {
		b.WriteString(redactForm(form) + "\n")
	} else if json.Indent(&pretty, req.Body, "", "  ") == nil {
		b.WriteString(pretty.String() + "\n")
	} else {
		b.WriteString(string(req.Body) + "\n")
	}
	b.WriteString(separator)

	if _, err := fmt.Fprint(s.writer, b.String()); err != nil {
		return nil, fmt.Errorf("write dry-run output: %w", err)
	}

	header := make(http.Header)
	if isForm && form.Has("grant_type") {
		// OAuth2 token request: hand back a placeholder token so the send
		// itself can be printed too.
		header.Set("Content-Type", "application/json")
		return &provider.Response{StatusCode: http.StatusOK, Header: header, Body: []byte(dryRunToken)}, nil
	}
	header.Set("X-Message-Id", "dry-run")
	return &provider.Response{StatusCode: http.StatusAccepted, Header: header}, nil
}

const dryRunToken = `{"access_token":"dry-run","token_type":"Bearer","expires_in":3600}`

func formBody(req *provider.Request) (url.Values, bool) {
	mediaType, _, err := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/x-www-form-urlencoded" {
		return nil, false
	}
	form, err := url.ParseQuery(string(req.Body))
	if err != nil {
		return nil, false
	}
	return form, true
}

// redactForm hides client secrets and passwords in a form body.
func redactForm(form url.Values) string {
	keys := lo.Keys(form)
	slices.Sort(keys)
	var pairs []string
	for _, k := range keys {
		for _, v := range form[k] {
			switch k {
			case "client_secret", "password", "client_assertion":
				v = "[REDACTED]"
			default:
				v = url.QueryEscape(v)
			}
			pairs = append(pairs, url.QueryEscape(k)+"="+v)
		}
	}
	return strings.Join(pairs, "&")
}
