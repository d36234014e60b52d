package fakeapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/aussiebroadwan/countersign/pkg/esign"
	"github.com/aussiebroadwan/countersign/pkg/httpx"
	"github.com/aussiebroadwan/countersign/pkg/slogx"
)

type InputsHandler struct {
	Backend *Backend
}

func (h *InputsHandler) HandleContractList(w http.ResponseWriter, r *http.Request) {
	contractID, ok := contractIDFromPath(w, r)
	if !ok {
		return
	}

	inputs, err := h.Backend.ContractInputs(httpx.UserIDFromContext(r.Context()), contractID)
	if err != nil {
		writeBackendError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, inputs)
}

func (h *InputsHandler) HandleContractSave(w http.ResponseWriter, r *http.Request) {
	contractID, ok := contractIDFromPath(w, r)
	if !ok {
		return
	}

	var updates []esign.InputUpdate
	if err := httpx.DecodeJSON(r, &updates); err != nil {
		httpx.WriteDetail(w, http.StatusBadRequest, "parse_error", err.Error())
		return
	}

	mapping, err := h.Backend.SaveContractInputs(httpx.UserIDFromContext(r.Context()), contractID, updates)
	if err != nil {
		writeBackendError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, mapping)
}

func (h *InputsHandler) HandleSigner(w http.ResponseWriter, r *http.Request) {
	session, err := h.Backend.Signer(r.PathValue("token"))
	if err != nil {
		writeBackendError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, session)
}

func (h *InputsHandler) HandleSignerList(w http.ResponseWriter, r *http.Request) {
	inputs, err := h.Backend.SignerInputs(r.PathValue("token"))
	if err != nil {
		writeBackendError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, inputs)
}

func (h *InputsHandler) HandleSignerSave(w http.ResponseWriter, r *http.Request) {
	var updates []esign.InputUpdate
	if err := httpx.DecodeJSON(r, &updates); err != nil {
		httpx.WriteDetail(w, http.StatusBadRequest, "parse_error", err.Error())
		return
	}

	mapping, err := h.Backend.SaveSignerInputs(r.PathValue("token"), updates)
	if err != nil {
		writeBackendError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, mapping)
}

func (h *InputsHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := h.Backend.Submit(r.PathValue("token")); err != nil {
		writeBackendError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func contractIDFromPath(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		httpx.WriteDetail(w, http.StatusNotFound, "not_found", "Not found.")
		return 0, false
	}
	return id, true
}

func writeBackendError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.WriteDetail(w, http.StatusNotFound, "not_found", "Not found.")
	case errors.Is(err, ErrUnknownInput), errors.Is(err, ErrIncomplete):
		httpx.WriteDetail(w, http.StatusBadRequest, "invalid", err.Error())
	case errors.Is(err, ErrSubmitted):
		httpx.WriteDetail(w, http.StatusConflict, "already_submitted", "This signature has already been submitted.")
	case errors.Is(err, ErrUnavailable):
		httpx.WriteDetail(w, http.StatusServiceUnavailable, "unavailable", "Service temporarily unavailable, try again later.")
	default:
		slogx.FromContext(r.Context()).Error("backend error", "err", err)
		httpx.WriteDetail(w, http.StatusInternalServerError, "", "A server error occurred.")
	}
}
