package fakeapi

import (
	"net/http"
	"strconv"

	"github.com/aussiebroadwan/countersign/pkg/httpx"
)

type UsersHandler struct {
	Backend *Backend
}

// HandleGet only lets an account read itself.
func (h *UsersHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		httpx.WriteDetail(w, http.StatusNotFound, "not_found", "Not found.")
		return
	}

	if httpx.UserIDFromContext(r.Context()) != id {
		httpx.WriteDetail(w, http.StatusForbidden, "permission_denied", "You do not have permission to perform this action.")
		return
	}

	user, err := h.Backend.User(id)
	if err != nil {
		httpx.WriteDetail(w, http.StatusNotFound, "not_found", "Not found.")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, user)
}
