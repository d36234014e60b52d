package esign

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
)

// GetUser fetches a user by id.
func (s *Session) GetUser(ctx context.Context, id int64) (*User, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/users/"+strconv.FormatInt(id, 10)+"/", nil, nil)
	if err != nil {
		return nil, err
	}

	var user User
	if err := decodeJSON(resp, &user, http.StatusOK); err != nil {
		return nil, err
	}

	return &user, nil
}

// CurrentUser fetches the account the access token was issued to.
func (s *Session) CurrentUser(ctx context.Context) (*User, error) {
	if _, err := s.RequireToken(ctx); err != nil {
		return nil, err
	}

	claims, err := s.Claims()
	if err != nil {
		return nil, err
	}

	id := claims.AccountID()
	if id == 0 {
		return nil, fmt.Errorf("access token carries no account id")
	}

	return s.GetUser(ctx, id)
}

// ContractInputs returns the authenticated field endpoint for a contract.
func (s *Session) ContractInputs(contractID int64) *InputsEndpoint {
	return &InputsEndpoint{
		do:   s.doAuthRequest,
		path: "/contracts/" + strconv.FormatInt(contractID, 10) + "/inputs/",
	}
}
