package fakeapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/countersign/pkg/esign"
	"github.com/aussiebroadwan/countersign/pkg/httpx"
	"github.com/aussiebroadwan/countersign/pkg/slogx"
)

type AuthHandler struct {
	Backend *Backend
}

func (h *AuthHandler) HandleObtain(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteDetail(w, http.StatusBadRequest, "parse_error", err.Error())
		return
	}

	pair, err := h.Backend.Login(req.Email, req.Password)
	if err != nil {
		slogx.FromContext(r.Context()).Info("login rejected", "err", err)
		httpx.WriteDetail(w, http.StatusUnauthorized, "no_active_account", "No active account found with the given credentials")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, pair)
}

func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Refresh == "" {
		httpx.WriteJSON(w, http.StatusBadRequest, map[string][]string{"refresh": {"This field is required."}})
		return
	}

	resp, err := h.Backend.Refresh(req.Refresh)
	if err != nil {
		httpx.WriteDetail(w, http.StatusUnauthorized, "token_not_valid", "Token is invalid or expired")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req esign.RegisterRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteDetail(w, http.StatusBadRequest, "parse_error", err.Error())
		return
	}

	fieldErrs := map[string][]string{}
	if !strings.Contains(req.Email, "@") {
		fieldErrs["email"] = []string{"Enter a valid email address."}
	}
	if len(req.Password) < 8 {
		fieldErrs["password"] = []string{"This password is too short. It must contain at least 8 characters."}
	}
	if len(fieldErrs) > 0 {
		httpx.WriteJSON(w, http.StatusBadRequest, fieldErrs)
		return
	}

	user, err := h.Backend.Register(req)
	switch {
	case errors.Is(err, ErrAlreadyExists):
		httpx.WriteJSON(w, http.StatusBadRequest, map[string][]string{"email": {"user with this email already exists."}})
		return
	case err != nil:
		slogx.FromContext(r.Context()).Error("register failed", "err", err)
		httpx.WriteDetail(w, http.StatusInternalServerError, "", "A server error occurred.")
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, user)
}
