package google

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"net/url"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testClientID = "client-123.apps.googleusercontent.com"

func signToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return tok
}

func baseClaims() jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss":            Issuer,
		"aud":            testClientID,
		"sub":            "1098765",
		"email":          "ada@example.com",
		"email_verified": true,
		"name":           "Ada",
		"picture":        "https://lh3.googleusercontent.com/a/ada",
		"iat":            now.Unix(),
		"exp":            now.Add(time.Hour).Unix(),
	}
}

func newTestVerifier(t *testing.T) (*Verifier, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	keySet := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}}
	return NewVerifierWithKeySet(keySet, testClientID), key
}

func TestVerifier_Verify(t *testing.T) {
	v, key := newTestVerifier(t)
	ctx := context.Background()

	t.Run("valid token", func(t *testing.T) {
		id, err := v.Verify(ctx, signToken(t, key, baseClaims()))
		require.NoError(t, err)
		assert.Equal(t, "1098765", id.Subject)
		assert.Equal(t, "ada@example.com", id.Email)
		assert.Equal(t, "Ada", id.Name)
		assert.Equal(t, "https://lh3.googleusercontent.com/a/ada", id.Picture)
	})

	tests := []struct {
		name   string
		mutate func(c jwt.MapClaims)
	}{
		{"wrong audience", func(c jwt.MapClaims) { c["aud"] = "someone-else" }},
		{"wrong issuer", func(c jwt.MapClaims) { c["iss"] = "https://evil.example.com" }},
		{"expired", func(c jwt.MapClaims) { c["exp"] = time.Now().Add(-time.Hour).Unix() }},
		{"unverified email", func(c jwt.MapClaims) { c["email_verified"] = false }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := baseClaims()
			tt.mutate(c)
			_, err := v.Verify(ctx, signToken(t, key, c))
			assert.Error(t, err)
		})
	}

	t.Run("foreign key", func(t *testing.T) {
		other, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		_, err = v.Verify(ctx, signToken(t, other, baseClaims()))
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := v.Verify(ctx, "not-a-jwt")
		assert.Error(t, err)
		_, err = v.Verify(ctx, "")
		assert.Error(t, err)
	})
}

func TestProvider_LoginURL(t *testing.T) {
	v, _ := newTestVerifier(t)
	p := NewProvider(Config{
		ClientID:     testClientID,
		ClientSecret: "secret",
		RedirectURL:  "http://localhost:8080/login/oauth2/code/google",
	}, v)

	raw := p.LoginURL("state-abc")
	u, err := url.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "accounts.google.com", u.Host)
	q := u.Query()
	assert.Equal(t, "state-abc", q.Get("state"))
	assert.Equal(t, testClientID, q.Get("client_id"))
	assert.Equal(t, "select_account", q.Get("prompt"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Contains(t, q.Get("scope"), "openid")
	assert.Equal(t, "http://localhost:8080/login/oauth2/code/google", q.Get("redirect_uri"))
}

func TestNewState(t *testing.T) {
	a, b := NewState(), NewState()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 43)
}
