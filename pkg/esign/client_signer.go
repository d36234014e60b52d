package esign

import (
	"context"
	"errors"
	"net/http"
	"net/url"
)

// ErrEmptySignerToken is returned for signer calls made without a token.
var ErrEmptySignerToken = errors.New("esign: empty signer token")

func signerPath(token string) string {
	return "/signers/" + url.PathEscape(token) + "/"
}

// ResolveSigner resolves an opaque signer token to its signing context.
func (c *SDKClient) ResolveSigner(ctx context.Context, signerToken string) (*SignerSession, error) {
	if signerToken == "" {
		return nil, ErrEmptySignerToken
	}

	resp, err := c.doRequest(ctx, http.MethodGet, signerPath(signerToken), nil, nil)
	if err != nil {
		return nil, err
	}

	var out SignerSession
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}

	return &out, nil
}

// SignerInputs returns the field endpoint for a signer token. Signer calls
// carry no Authorization header; the token itself scopes access.
func (c *SDKClient) SignerInputs(signerToken string) *SignerInputsEndpoint {
	base := signerPath(signerToken)
	return &SignerInputsEndpoint{
		InputsEndpoint: InputsEndpoint{do: c.doRequest, path: base + "inputs/"},
		submitPath:     base + "submit/",
	}
}
