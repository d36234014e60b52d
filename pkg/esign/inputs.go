package esign

import (
	"context"
	"net/http"
)

// InputsEndpoint reads and writes the input fields of one document, either
// through a contract id (authenticated) or a signer token.
type InputsEndpoint struct {
	do   requestFunc
	path string
}

// List fetches the current field list.
func (e *InputsEndpoint) List(ctx context.Context) ([]Input, error) {
	resp, err := e.do(ctx, http.MethodGet, e.path, nil, nil)
	if err != nil {
		return nil, err
	}

	var inputs []Input
	if err := decodeJSON(resp, &inputs, http.StatusOK); err != nil {
		return nil, err
	}

	return inputs, nil
}

// Save writes the full set of field values and returns the backend's id mapping.
func (e *InputsEndpoint) Save(ctx context.Context, updates []InputUpdate) (IDMapping, error) {
	if updates == nil {
		updates = []InputUpdate{}
	}

	body, headers, err := jsonBody(updates)
	if err != nil {
		return nil, err
	}

	resp, err := e.do(ctx, http.MethodPost, e.path, body, headers)
	if err != nil {
		return nil, err
	}

	mapping := IDMapping{}
	if err := decodeJSON(resp, &mapping, http.StatusOK); err != nil {
		return nil, err
	}

	return mapping, nil
}

// SignerInputsEndpoint is an InputsEndpoint scoped by a signer token, which
// can also finalise the signature.
type SignerInputsEndpoint struct {
	InputsEndpoint
	submitPath string
}

// Submit finalises the signer's part of the agreement.
func (e *SignerInputsEndpoint) Submit(ctx context.Context) error {
	resp, err := e.do(ctx, http.MethodPost, e.submitPath, nil, nil)
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusOK, http.StatusNoContent)
}
