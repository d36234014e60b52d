package fakeapi_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/aussiebroadwan/countersign/internal/fakeapi"
	"github.com/aussiebroadwan/countersign/internal/fakeapi/fakeapitest"
	"github.com/aussiebroadwan/countersign/internal/tokenstore/memory"
	"github.com/aussiebroadwan/countersign/pkg/esign"
	"github.com/stretchr/testify/require"
)

func TestLoginAndRefresh(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	backend, srv := fakeapitest.New(t, fakeapi.Options{RotateRefresh: true})
	demo, err := fakeapi.Seed(backend, "owner@example.com", "password123")
	require.NoError(t, err)

	client := esign.NewSDKClient(srv.URL)

	_, err = client.ObtainToken(ctx, "owner@example.com", "nope")
	require.True(t, esign.IsAuthError(err))

	pair, err := client.ObtainToken(ctx, "Owner@Example.com", "password123")
	require.NoError(t, err)
	require.NotEmpty(t, pair.Access)
	require.NotEmpty(t, pair.Refresh)

	refreshed, err := client.RefreshAccess(ctx, pair.Refresh)
	require.NoError(t, err)
	require.NotEmpty(t, refreshed.Access)
	require.NotEmpty(t, refreshed.Refresh)
	require.NotEqual(t, pair.Refresh, refreshed.Refresh)

	_, err = client.RefreshAccess(ctx, pair.Refresh)
	require.True(t, esign.IsAuthError(err), "rotated refresh tokens are single use")

	s := client.NewSession(memory.New(&esign.TokenPair{Access: refreshed.Access, Refresh: refreshed.Refresh}), nil)
	require.NoError(t, s.UpdateToken(ctx))

	user, err := s.CurrentUser(ctx)
	require.NoError(t, err)
	require.Equal(t, demo.User.ID, user.ID)

	_, err = s.GetUser(ctx, demo.User.ID+100)
	var apiErr *esign.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusForbidden, apiErr.StatusCode)
}

func TestRegister(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	_, srv := fakeapitest.New(t, fakeapi.Options{})
	client := esign.NewSDKClient(srv.URL)

	user, err := client.Register(ctx, esign.RegisterRequest{Email: "new@example.com", Password: "longenough", FirstName: "New"})
	require.NoError(t, err)
	require.NotZero(t, user.ID)

	_, err = client.Register(ctx, esign.RegisterRequest{Email: "new@example.com", Password: "longenough"})
	var apiErr *esign.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	require.Contains(t, apiErr.Detail, "email")

	_, err = client.Register(ctx, esign.RegisterRequest{Email: "bad", Password: "short"})
	require.ErrorAs(t, err, &apiErr)
	require.Contains(t, apiErr.Detail, "password")
}

func TestContractAndSignerInputs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	backend, srv := fakeapitest.New(t, fakeapi.Options{})
	demo, err := fakeapi.Seed(backend, "owner@example.com", "password123")
	require.NoError(t, err)

	client := esign.NewSDKClient(srv.URL)

	signer, err := client.ResolveSigner(ctx, demo.SignerToken)
	require.NoError(t, err)
	require.Equal(t, demo.ContractID, signer.AgreementID)
	require.Equal(t, 4, signer.FieldsCount)

	_, err = client.ResolveSigner(ctx, "unknown")
	var apiErr *esign.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusNotFound, apiErr.StatusCode)

	fields := client.SignerInputs(demo.SignerToken)
	inputs, err := fields.List(ctx)
	require.NoError(t, err)
	require.Len(t, inputs, 4)

	require.Error(t, fields.Submit(ctx), "required inputs are empty")

	updates := make([]esign.InputUpdate, 0, len(inputs))
	for _, in := range inputs {
		updates = append(updates, esign.InputUpdate{ID: in.ID, Completed: true, Value: "x"})
	}
	mapping, err := fields.Save(ctx, updates)
	require.NoError(t, err)
	require.Len(t, mapping, 4)
	for old, cur := range mapping {
		require.Equal(t, old, cur)
	}

	_, err = fields.Save(ctx, []esign.InputUpdate{{ID: 9999}})
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)

	require.NoError(t, fields.Submit(ctx))
	require.True(t, backend.Submitted(demo.SignerToken))

	t.Run("contract inputs need the owner's token", func(t *testing.T) {
		pair, err := backend.IssueTokens(demo.User.ID)
		require.NoError(t, err)

		s := client.NewSession(memory.New(&pair), nil)
		require.NoError(t, s.UpdateToken(ctx))

		got, err := s.ContractInputs(demo.ContractID).List(ctx)
		require.NoError(t, err)
		require.Len(t, got, 4)
		require.True(t, got[0].Completed)

		anon := client.NewSession(memory.New(nil), nil)
		_, err = anon.ContractInputs(demo.ContractID).List(ctx)
		var noTok *esign.NoTokenError
		require.ErrorAs(t, err, &noTok)
	})
}

func TestExpiredRefreshTokensAreRejectedAndSwept(t *testing.T) {
	t.Parallel()

	now := time.Now()
	backend, err := fakeapi.NewBackend(fakeapi.Options{
		Secret:     fakeapitest.Secret,
		RefreshTTL: time.Minute,
		Now:        func() time.Time { return now },
	})
	require.NoError(t, err)
	demo, err := fakeapi.Seed(backend, "owner@example.com", "password123")
	require.NoError(t, err)

	pair, err := backend.IssueTokens(demo.User.ID)
	require.NoError(t, err)
	_, err = backend.IssueTokens(demo.User.ID)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)

	_, err = backend.Refresh(pair.Refresh)
	require.ErrorIs(t, err, fakeapi.ErrBadCredentials)

	require.Equal(t, 1, backend.DeleteExpiredRefreshTokens(), "the rejected one was already dropped")
}
