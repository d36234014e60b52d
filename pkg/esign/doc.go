/*
Package esign provides a client SDK for the document signing backend.

# SDKClient vs Session

The package is organized around two main types:

  - SDKClient: unauthenticated operations (login, refresh, registration and
    everything scoped by a signer token)
  - Session: authenticated operations, with the token pair kept in a
    TokenStore and refreshed when the access token expires

	client := esign.NewSDKClient("https://api.example.com")

	pair, err := client.ObtainToken(ctx, email, password)
	session := client.NewSession(store, observer)
	err = session.SetTokens(ctx, *pair)

	user, err := session.CurrentUser(ctx)

# Tokens

GetToken returns "" when no pair is held, and refreshes an expired access
token before returning it. RequireToken turns the empty result into a
*NoTokenError; every authenticated call goes through it.

A failed refresh is never returned to the caller. It is reported to the
session's AuthObserver, which owns purging storage and demoting whatever
session state the application keeps.

# Input fields

	fields := client.SignerInputs(signerToken)
	inputs, err := fields.List(ctx)
	mapping, err := fields.Save(ctx, updates)
	err = fields.Submit(ctx)

Input.Type is validated while decoding; an unknown field type fails the
whole response with ErrUnknownFieldType.
*/
package esign
