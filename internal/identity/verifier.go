// Package identity verifies the caller's identity assertion against the
// configured OIDC issuer and extracts the user identifier.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/patrickmn/go-cache"
	"github.com/zitadel/oidc/v3/pkg/client"

	"github.com/healthfolio/tracker-manager/internal/serviceerr"
)

// Verifier turns a raw identity assertion into a verified user identifier.
type Verifier interface {
	Verify(ctx context.Context, assertion string) (string, error)
}

// signatureAlgs lists the signing algorithms accepted from the issuer.
// Symmetric algorithms are deliberately excluded.
var signatureAlgs = []jose.SignatureAlgorithm{
	jose.RS256, jose.RS384, jose.RS512,
	jose.ES256, jose.ES384, jose.ES512,
	jose.PS256, jose.PS384, jose.PS512,
}

const keySetCacheKey = "jwks"

type OIDCVerifier struct {
	issuerURL string
	audience  string
	client    *http.Client
	keySets   *cache.Cache
	now       func() time.Time
}

var _ = Verifier(&OIDCVerifier{})

func NewOIDCVerifier(issuerURL, audience string, httpClient *http.Client) (*OIDCVerifier, error) {
	if issuerURL == "" {
		return nil, serviceerr.ErrConfiguration.WithDescription("identity issuer URL is not set")
	}

	if audience == "" {
		return nil, serviceerr.ErrConfiguration.WithDescription("identity audience is not set")
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &OIDCVerifier{
		issuerURL: issuerURL,
		audience:  audience,
		client:    httpClient,
		keySets:   cache.New(5*time.Minute, 10*time.Minute),
		now:       time.Now,
	}, nil
}

// Verify checks the assertion's signature, issuer, audience, and validity
// window, and returns its subject.
func (v *OIDCVerifier) Verify(ctx context.Context, assertion string) (string, error) {
	if assertion == "" {
		return "", serviceerr.ErrUnauthenticated.WithDescription("missing identity assertion")
	}

	token, err := jwt.ParseSigned(assertion, signatureAlgs)
	if err != nil {
		return "", serviceerr.ErrUnauthenticated.WithDescription("malformed identity assertion")
	}

	keySet, err := v.keySet(ctx)
	if err != nil {
		return "", fmt.Errorf("getting issuer keyset: %w", err)
	}

	var claims jwt.Claims
	if err := token.Claims(keySet, &claims); err != nil {
		return "", serviceerr.ErrUnauthenticated.WithDescription("invalid assertion signature")
	}

	err = claims.Validate(jwt.Expected{
		Issuer:      v.issuerURL,
		AnyAudience: []string{v.audience},
		Time:        v.now(),
	})
	if err != nil {
		return "", serviceerr.ErrUnauthenticated.WithDescription("assertion claims rejected")
	}

	if claims.Subject == "" {
		return "", serviceerr.ErrUnauthenticated.WithDescription("assertion carries no subject")
	}

	return claims.Subject, nil
}

func (v *OIDCVerifier) keySet(ctx context.Context) (*jose.JSONWebKeySet, error) {
	if cached, ok := v.keySets.Get(keySetCacheKey); ok {
		if keySet, ok := cached.(*jose.JSONWebKeySet); ok {
			return keySet, nil
		}
	}

	discovery, err := client.Discover(ctx, v.issuerURL, v.client)
	if err != nil {
		return nil, fmt.Errorf("discovering issuer configuration: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, discovery.JwksURI, nil)
	if err != nil {
		return nil, fmt.Errorf("creating a new HTTP request: %w", err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing an http request: %w", err)
	}
	defer resp.Body.Close()

	var keySet jose.JSONWebKeySet
	if err := json.NewDecoder(resp.Body).Decode(&keySet); err != nil {
		return nil, fmt.Errorf("decoding keyset response: %w", err)
	}

	v.keySets.Set(keySetCacheKey, &keySet, cache.DefaultExpiration)

	return &keySet, nil
}
