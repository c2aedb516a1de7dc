package mailerr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAPIError_ErrorsArrayObjects(t *testing.T) {
	t.Parallel()

	body := []byte(`{"errors":[{"field":null,"message":"The provided authorization grant is invalid, expired, or revoked"}]}`)
	err := NewAPIError("sendgrid", http.StatusBadRequest, body, ErrorsArray)

	assert.Equal(t, 400, err.StatusCode)
	assert.Equal(t, "The provided authorization grant is invalid, expired, or revoked", err.Description)
	assert.Equal(t, body, err.RawPayload)
	assert.Contains(t, err.Error(), "authorization grant is invalid")
	assert.Contains(t, err.Error(), "sendgrid API response 400")
}

func TestNewAPIError_ErrorsArrayStrings(t *testing.T) {
	t.Parallel()

	body := []byte(`{"message":"error","errors":["Bad username / password","Second problem"]}`)
	err := NewAPIError("sendgrid", http.StatusBadRequest, body, ErrorsArray)

	assert.Equal(t, "Bad username / password; Second problem", err.Description)
}

func TestNewAPIError_TopLevelMessageFallback(t *testing.T) {
	t.Parallel()

	err := NewAPIError("sendgrid", http.StatusForbidden, []byte(`{"message":"access forbidden"}`), ErrorsArray)
	assert.Equal(t, "access forbidden", err.Description)
}

func TestNewAPIError_NestedError(t *testing.T) {
	t.Parallel()

	body := []byte(`{"error":{"code":"ErrorInvalidRecipients","message":"At least one recipient is not valid."}}`)
	err := NewAPIError("graph", http.StatusBadRequest, body, NestedError)

	assert.Equal(t, "ErrorInvalidRecipients: At least one recipient is not valid.", err.Description)
}

func TestNewAPIError_FallsBackToRawBody(t *testing.T) {
	t.Parallel()

	err := NewAPIError("sendgrid", http.StatusBadGateway, []byte("  <html>upstream down</html>\n"), ErrorsArray)
	assert.Equal(t, "<html>upstream down</html>", err.Description)
}

func TestNewAPIError_EmptyBodyUsesStatusText(t *testing.T) {
	t.Parallel()

	err := NewAPIError("ses", http.StatusServiceUnavailable, nil, TopLevelMessage)
	assert.Equal(t, "Service Unavailable", err.Description)
	assert.Empty(t, err.RawPayload)
}

func TestNewAPIError_CopiesPayload(t *testing.T) {
	t.Parallel()

	body := []byte(`{"message":"x"}`)
	err := NewAPIError("ses", http.StatusBadRequest, body, TopLevelMessage)
	body[2] = 'X'

	assert.Equal(t, `{"message":"x"}`, string(err.RawPayload))
}

func TestTopLevelMessage_CapitalizedKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"Email address is not verified."},
		TopLevelMessage([]byte(`{"Message":"Email address is not verified."}`)))
	assert.Nil(t, TopLevelMessage([]byte(`not json`)))
}

func TestAPIError_Transient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code int
		want bool
	}{
		{0, true},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.code), func(t *testing.T) {
			err := &APIError{StatusCode: tt.code}
			assert.Equal(t, tt.want, err.Transient())
		})
	}
}

func TestAPIError_AuthFailure(t *testing.T) {
	t.Parallel()

	assert.True(t, (&APIError{StatusCode: http.StatusUnauthorized}).AuthFailure())
	assert.True(t, (&APIError{StatusCode: http.StatusForbidden}).AuthFailure())
	assert.False(t, (&APIError{StatusCode: http.StatusBadRequest}).AuthFailure())
}

func TestAPIError_UnwrapsTransportCause(t *testing.T) {
	t.Parallel()

	var err error = &APIError{Provider: "sendgrid", Description: "context canceled", Err: context.Canceled}
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, "sendgrid API request failed: context canceled", err.Error())

	var apiErr *APIError
	require.True(t, errors.As(fmt.Errorf("send: %w", err), &apiErr))
	assert.Equal(t, 0, apiErr.StatusCode)
}

func TestValidationError_Message(t *testing.T) {
	t.Parallel()

	err := &ValidationError{Field: "merge_data[x@example.com]", Reason: "address is not in to"}
	assert.Equal(t, "invalid message: merge_data[x@example.com]: address is not in to", err.Error())
}

func TestUnsupportedFeatureError_Message(t *testing.T) {
	t.Parallel()

	err := &UnsupportedFeatureError{Provider: "ses", Feature: "merge_data"}
	assert.Contains(t, err.Error(), "ses does not support merge_data")
}
