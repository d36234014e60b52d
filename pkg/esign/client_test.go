package esign_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/countersign/pkg/esign"
	"github.com/stretchr/testify/require"
)

func TestFieldTypeDecode(t *testing.T) {
	t.Parallel()

	var in esign.Input
	require.NoError(t, json.Unmarshal([]byte(`{"id":1,"type":"date","required":true}`), &in))
	require.Equal(t, esign.FieldDate, in.Type)

	err := json.Unmarshal([]byte(`{"id":1,"type":"checkbox"}`), &in)
	require.ErrorIs(t, err, esign.ErrUnknownFieldType)

	require.True(t, esign.FieldSignature.IsText())
	require.False(t, esign.FieldDate.IsText())
}

func TestObtainToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/token/", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req["password"] != "hunter2" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"No active account found with the given credentials"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access":"A","refresh":"R"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := esign.NewSDKClient(srv.URL + "/")

	pair, err := client.ObtainToken(ctx, "jo@example.com", "hunter2")
	require.NoError(t, err)
	require.Equal(t, &esign.TokenPair{Access: "A", Refresh: "R"}, pair)

	_, err = client.ObtainToken(ctx, "jo@example.com", "wrong")
	require.True(t, esign.IsAuthError(err))
	var apiErr *esign.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "No active account found with the given credentials", apiErr.Detail)
}

func TestRegister_FieldErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"password":["too short"],"email":["already registered"]}`))
	}))
	t.Cleanup(srv.Close)

	_, err := esign.NewSDKClient(srv.URL).Register(context.Background(), esign.RegisterRequest{Email: "x"})
	var apiErr *esign.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	require.Equal(t, "email: already registered; password: too short", apiErr.Detail)
	require.False(t, esign.IsAuthError(err))
}

func TestSignerInputs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var saved []esign.InputUpdate
	var submitted atomic.Bool

	mux := http.NewServeMux()
	mux.HandleFunc("GET /signers/tok-1/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"signer_id":4,"agreement_id":9,"signer_role":"client","fields_count":2,"organization_id":1}`))
	})
	mux.HandleFunc("GET /signers/tok-1/inputs/", func(w http.ResponseWriter, r *http.Request) {
		require.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[{"id":1,"type":"name","required":true},{"id":2,"type":"date"}]`))
	})
	mux.HandleFunc("POST /signers/tok-1/inputs/", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&saved))
		_, _ = w.Write([]byte(`{"1":11,"2":12}`))
	})
	mux.HandleFunc("POST /signers/tok-1/submit/", func(w http.ResponseWriter, r *http.Request) {
		submitted.Store(true)
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := esign.NewSDKClient(srv.URL)

	signer, err := client.ResolveSigner(ctx, "tok-1")
	require.NoError(t, err)
	require.Equal(t, int64(9), signer.AgreementID)
	require.Equal(t, 2, signer.FieldsCount)

	_, err = client.ResolveSigner(ctx, "")
	require.ErrorIs(t, err, esign.ErrEmptySignerToken)

	fields := client.SignerInputs("tok-1")

	inputs, err := fields.List(ctx)
	require.NoError(t, err)
	require.Len(t, inputs, 2)
	require.Equal(t, esign.FieldName, inputs[0].Type)

	mapping, err := fields.Save(ctx, []esign.InputUpdate{{ID: 1, Completed: true, Value: "John"}, {ID: 2}})
	require.NoError(t, err)
	require.Equal(t, esign.IDMapping{1: 11, 2: 12}, mapping)
	require.Equal(t, []esign.InputUpdate{{ID: 1, Completed: true, Value: "John"}, {ID: 2}}, saved)

	require.NoError(t, fields.Submit(ctx))
	require.True(t, submitted.Load())
}

func TestSignerInputs_UnknownFieldTypeFailsDecode(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":1,"type":"stamp"}]`))
	}))
	t.Cleanup(srv.Close)

	_, err := esign.NewSDKClient(srv.URL).SignerInputs("x").List(context.Background())
	require.ErrorIs(t, err, esign.ErrUnknownFieldType)
}

func TestSessionRequests(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	access := mint(t, 7, time.Hour)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /users/7/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+access {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"Given token not valid for any token type","code":"token_not_valid"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":7,"email":"jo@example.com","first_name":"Jo","last_name":"Citizen","organization_id":1}`))
	})
	mux.HandleFunc("GET /contracts/3/inputs/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"revoked","code":"token_not_valid"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	t.Run("current user", func(t *testing.T) {
		s, _, _ := newSession(t, srv.URL, &esign.TokenPair{Access: access, Refresh: "R"})

		user, err := s.CurrentUser(ctx)
		require.NoError(t, err)
		require.Equal(t, int64(7), user.ID)
		require.Equal(t, "Jo", user.FirstName)
	})

	t.Run("no token", func(t *testing.T) {
		s, _, _ := newSession(t, srv.URL, nil)

		_, err := s.GetUser(ctx, 7)
		var noTok *esign.NoTokenError
		require.ErrorAs(t, err, &noTok)
		require.Equal(t, "GET /users/7/", noTok.Op)
	})

	t.Run("401 is reported to the observer", func(t *testing.T) {
		s, store, obs := newSession(t, srv.URL, &esign.TokenPair{Access: access, Refresh: "R"})

		_, err := s.ContractInputs(3).List(ctx)
		require.True(t, esign.IsAuthError(err))
		require.Len(t, obs.failures, 1)

		_, err = store.Load(ctx)
		require.ErrorIs(t, err, esign.ErrNoTokens)
	})
}
