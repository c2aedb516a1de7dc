package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/shineum/anymail-lite/internal/mailerr"
	"github.com/shineum/anymail-lite/internal/provider"
)

// Authenticate attaches a bearer token. An API key is used as a pre-issued
// access token; a username/password pair is the application's client id and
// secret, exchanged for a token through t on every call. Nothing is cached,
// so the backend stays free of shared state.
func (b *Backend) Authenticate(ctx context.Context, req *provider.Request, creds provider.Credentials, t provider.Transport) (*provider.Request, error) {
	scheme, err := creds.Scheme()
	if err != nil {
		return nil, err
	}

	token := creds.APIKey
	if scheme == provider.SchemeBasic {
		token, err = b.clientCredentialsToken(ctx, t, creds.Username, creds.Password)
		if err != nil {
			return nil, err
		}
	}

	out := req.Clone()
	out.Header.Set("Authorization", "Bearer "+token)
	return out, nil
}

func (b *Backend) clientCredentialsToken(ctx context.Context, t provider.Transport, clientID, clientSecret string) (string, error) {
	if b.tokenURL == "" {
		return "", &mailerr.ConfigError{Reason: "graph client credentials require provider option tenant_id"}
	}
	if t == nil {
		return "", &mailerr.ConfigError{Reason: "graph client credentials need a transport for the token request"}
	}

	cfg := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     b.tokenURL,
		Scopes:       []string{b.scope},
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	tok, err := cfg.Token(context.WithValue(ctx, oauth2.HTTPClient, provider.HTTPClient(t)))
	if err == nil {
		return tok.AccessToken, nil
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		apiErr := mailerr.NewAPIError(Name, retrieveErr.Response.StatusCode, retrieveErr.Body, tokenErrorText)
		apiErr.Err = err
		return "", apiErr
	}
	return "", &mailerr.APIError{
		Provider:    Name,
		Description: fmt.Sprintf("token request failed: %v", err),
		Err:         err,
	}
}

// tokenErrorText reads the OAuth2 error_description, then the error code.
func tokenErrorText(body []byte) []string {
	var resp struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil
	}
	switch {
	case resp.ErrorDescription != "" && resp.Error != "":
		return []string{resp.Error + ": " + resp.ErrorDescription}
	case resp.Error != "":
		return []string{resp.Error}
	default:
		return nil
	}
}
