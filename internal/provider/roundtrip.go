package provider

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
)

// HTTPClient returns an *http.Client whose requests are executed by t. It
// lets libraries that insist on an http.Client, such as OAuth2 token
// sources, share the dispatcher's transport instead of dialing on their own.
func HTTPClient(t Transport) *http.Client {
	return &http.Client{Transport: transportRoundTripper{t: t}}
}

type transportRoundTripper struct {
	t Transport
}

func (rt transportRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	var body []byte
	if r.Body != nil {
		var err error
		body, err = io.ReadAll(r.Body)
		_ = r.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
	}

	resp, err := rt.t.Do(r.Context(), &Request{
		Method: r.Method,
		URL:    r.URL.String(),
		Header: r.Header.Clone(),
		Body:   body,
	})
	if err != nil {
		return nil, err
	}

	header := resp.Header
	if header == nil {
		header = make(http.Header)
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		StatusCode:    resp.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(resp.Body)),
		ContentLength: int64(len(resp.Body)),
		Request:       r,
	}, nil
}
