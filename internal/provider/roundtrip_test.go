package provider

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type transportFunc func(ctx context.Context, req *Request) (*Response, error)

func (f transportFunc) Do(ctx context.Context, req *Request) (*Response, error) { return f(ctx, req) }

func TestHTTPClient_UsesTransport(t *testing.T) {
	t.Parallel()

	var got *Request
	client := HTTPClient(transportFunc(func(_ context.Context, req *Request) (*Response, error) {
		got = req
		return &Response{StatusCode: http.StatusCreated, Body: []byte("done")}, nil
	}))

	req, err := http.NewRequest(http.MethodPost, "https://token.example.com/oauth?x=1", strings.NewReader("a=b"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.NotNil(t, got)
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "https://token.example.com/oauth?x=1", got.URL)
	assert.Equal(t, "application/x-www-form-urlencoded", got.Header.Get("Content-Type"))
	assert.Equal(t, "a=b", string(got.Body))

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "done", string(body))
}

func TestHTTPClient_TransportError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	client := HTTPClient(transportFunc(func(context.Context, *Request) (*Response, error) {
		return nil, boom
	}))

	_, err := client.Get("https://example.com")
	assert.ErrorIs(t, err, boom)
}
