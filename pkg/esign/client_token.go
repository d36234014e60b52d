package esign

import (
	"context"
	"net/http"
)

// ObtainToken exchanges credentials for a token pair.
func (c *SDKClient) ObtainToken(ctx context.Context, email, password string) (*TokenPair, error) {
	body, headers, err := jsonBody(credentialsRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/auth/token/", body, headers)
	if err != nil {
		return nil, err
	}

	var pair TokenPair
	if err := decodeJSON(resp, &pair, http.StatusOK); err != nil {
		return nil, err
	}

	return &pair, nil
}

// RefreshAccess requests a new access token using a refresh token.
func (c *SDKClient) RefreshAccess(ctx context.Context, refresh string) (*RefreshResponse, error) {
	body, headers, err := jsonBody(refreshRequest{Refresh: refresh})
	if err != nil {
		return nil, err
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/auth/token/refresh/", body, headers)
	if err != nil {
		return nil, err
	}

	var out RefreshResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}

	return &out, nil
}

// Register creates an account. It does not log in.
func (c *SDKClient) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	body, headers, err := jsonBody(req)
	if err != nil {
		return nil, err
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/auth/register/", body, headers)
	if err != nil {
		return nil, err
	}

	var user User
	if err := decodeJSON(resp, &user, http.StatusCreated); err != nil {
		return nil, err
	}

	return &user, nil
}
