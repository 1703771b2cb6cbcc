// Package pkce mints the random material used to bind an authorization code
// to the client that requested it: the PKCE verifier/challenge pair and the
// anti-CSRF state token.
package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"log/slog"
	"math/big"
)

const (
	MethodS256 = "S256"
	// MethodPlain transmits the verifier itself as the challenge. An attacker
	// who observes the authorization URL then holds the verifier too, so this
	// exists only as a legacy fallback for providers without S256 support.
	MethodPlain = "plain"
)

type PKCE struct {
	Verifier  string
	Challenge string
	Method    string
}

type Source struct {
	method string
}

// NewSource returns a generator for the given challenge method. Anything
// other than MethodPlain falls through to S256.
func NewSource(method string) Source {
	if method == MethodPlain {
		slog.Warn("PKCE configured with the plain challenge method; the verifier is exposed in the authorization URL, use S256 unless the provider cannot support it")
		return Source{method: MethodPlain}
	}

	return Source{method: MethodS256}
}

func (p Source) randBytes(n int) []byte {
	b := make([]byte, n)
	_, _ = rand.Read(b)

	return b
}

func (p Source) randString(n int) string {
	const letters = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-"

	ret := make([]byte, n)
	for i := range n {
		num, _ := rand.Int(rand.Reader, big.NewInt(int64(len(letters))))
		ret[i] = letters[num.Int64()]
	}

	return string(ret)
}

// PKCE returns a fresh verifier/challenge pair. Every call draws new
// randomness; a verifier is never reused across invocations.
func (p Source) PKCE() PKCE {
	const n = 32

	verifierBuf := make([]byte, base64.RawURLEncoding.EncodedLen(n))
	base64.RawURLEncoding.Encode(verifierBuf, p.randBytes(n))

	if p.method == MethodPlain {
		return PKCE{
			Verifier:  string(verifierBuf),
			Challenge: string(verifierBuf),
			Method:    MethodPlain,
		}
	}

	challengeSHA := sha256.Sum256(verifierBuf)
	challengeBuf := make([]byte, base64.RawURLEncoding.EncodedLen(len(challengeSHA)))
	base64.RawURLEncoding.Encode(challengeBuf, challengeSHA[:])

	return PKCE{
		Verifier:  string(verifierBuf),
		Challenge: string(challengeBuf),
		Method:    MethodS256,
	}
}

// State mints the single-use token correlating the two redirect legs.
func (p Source) State() string {
	return p.randString(64) // Entropy E = L * log2(63) = 64 * log2(63) = 382.6 bits
}
