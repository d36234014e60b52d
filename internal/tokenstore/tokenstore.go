// Package tokenstore holds the durable client storage for the token pair.
package tokenstore

// Key is the storage key the token pair is kept under.
const Key = "authTokens"
