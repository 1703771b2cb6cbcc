package identity_test

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthfolio/tracker-manager/internal/identity"
	"github.com/healthfolio/tracker-manager/internal/serviceerr"
)

// fakeIssuer is a minimal OIDC issuer serving a discovery document and a JWKS
// for a freshly generated RSA key.
type fakeIssuer struct {
	srv    *httptest.Server
	key    *rsa.PrivateKey
	signer jose.Signer
}

func newFakeIssuer(t *testing.T) *fakeIssuer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err, "generating RSA key")

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: key},
		(&jose.SignerOptions{}).WithType("JWT").WithHeader("kid", "test-key"),
	)
	require.NoError(t, err, "creating signer")

	issuer := &fakeIssuer{key: key, signer: signer}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"issuer":   issuer.srv.URL,
			"jwks_uri": issuer.srv.URL + "/keys",
		})
	})
	mux.HandleFunc("/keys", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(jose.JSONWebKeySet{
			Keys: []jose.JSONWebKey{{
				Key:       key.Public(),
				KeyID:     "test-key",
				Algorithm: string(jose.RS256),
				Use:       "sig",
			}},
		})
	})

	issuer.srv = httptest.NewServer(mux)
	t.Cleanup(issuer.srv.Close)

	return issuer
}

func (f *fakeIssuer) assertion(t *testing.T, claims jwt.Claims) string {
	t.Helper()

	raw, err := jwt.Signed(f.signer).Claims(claims).Serialize()
	require.NoError(t, err, "signing assertion")

	return raw
}

func TestOIDCVerifier_Verify(t *testing.T) {
	issuer := newFakeIssuer(t)

	const audience = "tracker-manager"

	v, err := identity.NewOIDCVerifier(issuer.srv.URL, audience, issuer.srv.Client())
	require.NoError(t, err, "NewOIDCVerifier()")

	validClaims := func() jwt.Claims {
		return jwt.Claims{
			Issuer:   issuer.srv.URL,
			Subject:  "user-42",
			Audience: jwt.Audience{audience},
			Expiry:   jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt: jwt.NewNumericDate(time.Now()),
		}
	}

	tests := []struct {
		name        string
		assertion   func() string
		wantSubject string
		wantErr     error
	}{
		{
			name:        "Success",
			assertion:   func() string { return issuer.assertion(t, validClaims()) },
			wantSubject: "user-42",
		},
		{
			name:      "Empty assertion",
			assertion: func() string { return "" },
			wantErr:   serviceerr.ErrUnauthenticated,
		},
		{
			name:      "Garbage assertion",
			assertion: func() string { return "not.a.jwt" },
			wantErr:   serviceerr.ErrUnauthenticated,
		},
		{
			name: "Expired",
			assertion: func() string {
				claims := validClaims()
				claims.Expiry = jwt.NewNumericDate(time.Now().Add(-time.Minute))
				return issuer.assertion(t, claims)
			},
			wantErr: serviceerr.ErrUnauthenticated,
		},
		{
			name: "Wrong audience",
			assertion: func() string {
				claims := validClaims()
				claims.Audience = jwt.Audience{"someone-else"}
				return issuer.assertion(t, claims)
			},
			wantErr: serviceerr.ErrUnauthenticated,
		},
		{
			name: "Wrong issuer",
			assertion: func() string {
				claims := validClaims()
				claims.Issuer = "https://rogue.example.com"
				return issuer.assertion(t, claims)
			},
			wantErr: serviceerr.ErrUnauthenticated,
		},
		{
			name: "Missing subject",
			assertion: func() string {
				claims := validClaims()
				claims.Subject = ""
				return issuer.assertion(t, claims)
			},
			wantErr: serviceerr.ErrUnauthenticated,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject, err := v.Verify(t.Context(), tt.assertion())
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Verify() error = %v, want %v", err, tt.wantErr)
				}
				return
			}

			require.NoError(t, err, "Verify()")
			assert.Equal(t, tt.wantSubject, subject)
		})
	}
}

func TestOIDCVerifier_SignatureFromUnknownKeyRejected(t *testing.T) {
	issuer := newFakeIssuer(t)
	rogue := newFakeIssuer(t)

	const audience = "tracker-manager"

	v, err := identity.NewOIDCVerifier(issuer.srv.URL, audience, issuer.srv.Client())
	require.NoError(t, err, "NewOIDCVerifier()")

	// Signed by a key the issuer never published.
	assertion := rogue.assertion(t, jwt.Claims{
		Issuer:   issuer.srv.URL,
		Subject:  "user-42",
		Audience: jwt.Audience{audience},
		Expiry:   jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	_, err = v.Verify(t.Context(), assertion)
	if !errors.Is(err, serviceerr.ErrUnauthenticated) {
		t.Fatalf("Verify() error = %v, want ErrUnauthenticated", err)
	}
}

func TestNewOIDCVerifier_Configuration(t *testing.T) {
	_, err := identity.NewOIDCVerifier("", "aud", nil)
	assert.ErrorIs(t, err, serviceerr.ErrConfiguration, "missing issuer")

	_, err = identity.NewOIDCVerifier("https://idp.example.com", "", nil)
	assert.ErrorIs(t, err, serviceerr.ErrConfiguration, "missing audience")
}
