package fakeapi

import (
	"fmt"

	"github.com/aussiebroadwan/countersign/pkg/esign"
)

// Demo is the fixture Seed creates.
type Demo struct {
	User        esign.User
	Password    string
	ContractID  int64
	SignerToken string
}

// Seed creates one account, one contract with a field of each type, and a
// signer token for it.
func Seed(b *Backend, email, password string) (Demo, error) {
	user, err := b.Register(esign.RegisterRequest{
		Email:     email,
		Password:  password,
		FirstName: "Demo",
		LastName:  "Owner",
	})
	if err != nil {
		return Demo{}, fmt.Errorf("seed user: %w", err)
	}

	contractID, _ := b.AddContract(user.ID, []esign.Input{
		{Type: esign.FieldName, X: 72, Y: 640, Width: 200, Height: 24, Placeholder: "Full name", Required: true, Page: 1},
		{Type: esign.FieldDate, X: 320, Y: 640, Width: 120, Height: 24, Placeholder: "Date", Required: true, Page: 1},
		{Type: esign.FieldText, X: 72, Y: 600, Width: 368, Height: 24, Placeholder: "Notes", Page: 1},
		{Type: esign.FieldSignature, X: 72, Y: 120, Width: 240, Height: 60, Placeholder: "Sign here", Required: true, Page: 2},
	})

	token, err := b.AddSigner(contractID, "client")
	if err != nil {
		return Demo{}, fmt.Errorf("seed signer: %w", err)
	}

	return Demo{User: user, Password: password, ContractID: contractID, SignerToken: token}, nil
}
