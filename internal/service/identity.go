package service

import "context"

// GoogleIdentity is a Google account asserted by a verified ID token.
type GoogleIdentity struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

// IdentityVerifier turns a Google ID token into a verified identity.
type IdentityVerifier interface {
	Verify(ctx context.Context, credential string) (GoogleIdentity, error)
}
