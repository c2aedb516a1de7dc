package ses

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"github.com/shineum/anymail-lite/internal/mailerr"
	"github.com/shineum/anymail-lite/internal/provider"
)

const signingService = "ses"

// Authenticate signs the request with AWS Signature Version 4. The username
// and password are the access key id and secret access key; SES has no
// API-key scheme, so an api_key alone is a configuration error.
func (b *Backend) Authenticate(ctx context.Context, req *provider.Request, creds provider.Credentials, _ provider.Transport) (*provider.Request, error) {
	if creds.Username == "" || creds.Password == "" {
		if _, err := creds.Scheme(); err != nil {
			return nil, err
		}
		return nil, &mailerr.ConfigError{Reason: "ses signs requests with username (access key id) and password (secret access key); api_key is not supported"}
	}

	awsCreds, err := credentials.NewStaticCredentialsProvider(creds.Username, creds.Password, "").Retrieve(ctx)
	if err != nil {
		return nil, fmt.Errorf("ses: retrieve credentials: %w", err)
	}

	out := req.Clone()
	httpReq, err := http.NewRequestWithContext(ctx, out.Method, out.URL, bytes.NewReader(out.Body))
	if err != nil {
		return nil, fmt.Errorf("ses: build signing request: %w", err)
	}
	httpReq.Header = out.Header

	sum := sha256.Sum256(out.Body)
	err = v4.NewSigner().SignHTTP(ctx, awsCreds, httpReq, hex.EncodeToString(sum[:]), signingService, b.region, b.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("ses: sign request: %w", err)
	}
	return out, nil
}
