package esign

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ============================================================================
// Credentials
// ============================================================================

// TokenPair is the access/refresh credential pair issued by the backend.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// RefreshResponse is returned by the refresh endpoint. Refresh is only set
// when the backend rotates refresh tokens.
type RefreshResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

// RegisterRequest creates a new account.
type RegisterRequest struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	OrganizationName string `json:"organization_name,omitempty"`
}

// ============================================================================
// Accounts and signer sessions
// ============================================================================

// User is an account on the signing backend.
type User struct {
	ID             int64  `json:"id"`
	Email          string `json:"email"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	OrganizationID int64  `json:"organization_id"`
}

// SignerSession is the read-only context a signer token resolves to.
type SignerSession struct {
	SignerID       int64  `json:"signer_id"`
	AgreementID    int64  `json:"agreement_id"`
	SignerRole     string `json:"signer_role"`
	FieldsCount    int    `json:"fields_count"`
	OrganizationID int64  `json:"organization_id"`
}

// ============================================================================
// Input fields
// ============================================================================

// ErrUnknownFieldType is returned when decoding an input whose type is not
// one of the known field types.
var ErrUnknownFieldType = errors.New("esign: unknown field type")

// FieldType discriminates what kind of value an Input holds.
type FieldType string

const (
	FieldName      FieldType = "name"
	FieldText      FieldType = "text"
	FieldDate      FieldType = "date"
	FieldSignature FieldType = "signature"
)

// ParseFieldType validates s as a FieldType.
func ParseFieldType(s string) (FieldType, error) {
	switch t := FieldType(s); t {
	case FieldName, FieldText, FieldDate, FieldSignature:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFieldType, s)
	}
}

// UnmarshalJSON rejects unknown field types at the decode boundary.
func (t *FieldType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("field type: %w", err)
	}

	parsed, err := ParseFieldType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// IsText reports whether the field takes a free-form string value.
func (t FieldType) IsText() bool {
	return t == FieldName || t == FieldText || t == FieldSignature
}

// Input is one fillable region of a document page.
type Input struct {
	ID          int64     `json:"id"`
	Type        FieldType `json:"type"`
	X           float64   `json:"x"`
	Y           float64   `json:"y"`
	Width       float64   `json:"width"`
	Height      float64   `json:"height"`
	Placeholder string    `json:"placeholder"`
	Required    bool      `json:"required"`
	Value       string    `json:"value"`
	Completed   bool      `json:"completed"`
	Page        int       `json:"page"`
	Signer      int64     `json:"signer"`
}

// InputUpdate is the per-field tuple written back to the backend.
type InputUpdate struct {
	ID        int64  `json:"id"`
	Completed bool   `json:"completed"`
	Value     string `json:"value"`
}

// IDMapping maps submitted input ids to the ids the backend stored them under.
// On the wire it is an object keyed by the old id: {"12": 40}.
type IDMapping map[int64]int64
