// Package google verifies Google ID tokens and runs the OAuth2 redirect flow.
package google

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"calendarapp/internal/service"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const (
	Issuer  = "https://accounts.google.com"
	JWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

	scopeEmail   = "email"
	scopeProfile = "profile"
)

var (
	ErrMissingIDToken = errors.New("token response has no id_token")
	ErrUnverifiedMail = errors.New("google account email is not verified")
)

// Config holds the OAuth client registration.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

type claims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// Verifier checks Google-signed ID tokens for one client id.
type Verifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewVerifier builds a verifier backed by Google's published signing keys.
// Keys are fetched lazily, so construction does no network I/O.
func NewVerifier(ctx context.Context, clientID string) *Verifier {
	keySet := oidc.NewRemoteKeySet(ctx, JWKSURL)
	return NewVerifierWithKeySet(keySet, clientID)
}

// NewVerifierWithKeySet builds a verifier over an explicit key set.
func NewVerifierWithKeySet(keySet oidc.KeySet, clientID string) *Verifier {
	return &Verifier{verifier: oidc.NewVerifier(Issuer, keySet, &oidc.Config{ClientID: clientID})}
}

// Verify implements service.IdentityVerifier.
func (v *Verifier) Verify(ctx context.Context, credential string) (service.GoogleIdentity, error) {
	if strings.TrimSpace(credential) == "" {
		return service.GoogleIdentity{}, errors.New("empty credential")
	}

	tok, err := v.verifier.Verify(ctx, credential)
	if err != nil {
		return service.GoogleIdentity{}, fmt.Errorf("verify id token: %w", err)
	}

	var c claims
	if err := tok.Claims(&c); err != nil {
		return service.GoogleIdentity{}, fmt.Errorf("read claims: %w", err)
	}
	if c.Email != "" && !c.EmailVerified {
		return service.GoogleIdentity{}, ErrUnverifiedMail
	}

	return service.GoogleIdentity{
		Subject: tok.Subject,
		Email:   c.Email,
		Name:    c.Name,
		Picture: c.Picture,
	}, nil
}

// Provider drives the browser redirect flow.
type Provider struct {
	cfg      *oauth2.Config
	verifier *Verifier
}

func NewProvider(cfg Config, verifier *Verifier) *Provider {
	return &Provider{
		cfg: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{oidc.ScopeOpenID, scopeProfile, scopeEmail},
			Endpoint:     endpoints.Google,
		},
		verifier: verifier,
	}
}

// LoginURL returns the consent page URL for state.
func (p *Provider) LoginURL(state string) string {
	return p.cfg.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

// Exchange trades an authorization code for a verified identity.
func (p *Provider) Exchange(ctx context.Context, code string) (service.GoogleIdentity, error) {
	tok, err := p.cfg.Exchange(ctx, code)
	if err != nil {
		return service.GoogleIdentity{}, fmt.Errorf("exchange code: %w", err)
	}

	raw, ok := tok.Extra("id_token").(string)
	if !ok || raw == "" {
		return service.GoogleIdentity{}, ErrMissingIDToken
	}
	return p.verifier.Verify(ctx, raw)
}

// NewState returns a random value for the OAuth state parameter.
func NewState() string {
	b := make([]byte, 32)
	// rand.Read never returns an error
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
