// Package apikey provides an API key authenticator for automation
// clients. Bearer tokens are compared against SHA-256 hashes of the
// configured keys in constant time, and each key acts as one user.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strconv"

	"github.com/rhuss/slidewright/pkg/auth"
)

// KeyEntry maps a key hash to an identity.
type KeyEntry struct {
	KeyHash  [32]byte
	Identity auth.Identity
}

// Authenticator validates bearer tokens against a static key store.
type Authenticator struct {
	keys []KeyEntry
}

// RawKeyEntry is the configuration format for API keys.
type RawKeyEntry struct {
	Key    string
	UserID int64

	// ServiceTier selects the rate limit. Default: "automation".
	ServiceTier string
}

// New creates an API key authenticator. Keys are hashed immediately;
// plaintext keys are not stored.
func New(entries []RawKeyEntry) *Authenticator {
	a := &Authenticator{}
	for _, e := range entries {
		tier := e.ServiceTier
		if tier == "" {
			tier = "automation"
		}
		a.keys = append(a.keys, KeyEntry{
			KeyHash: sha256.Sum256([]byte(e.Key)),
			Identity: auth.Identity{
				Subject:     "apikey:" + strconv.FormatInt(e.UserID, 10),
				UserID:      e.UserID,
				ServiceTier: tier,
			},
		})
	}
	return a
}

// Authenticate extracts the bearer token and validates it.
// Returns Yes if valid, No if bearer token present but invalid,
// Abstain if no Authorization header or not a Bearer token.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.AuthResult {
	token, ok := auth.BearerToken(r)
	if !ok {
		return auth.AuthResult{Decision: auth.Abstain}
	}
	if token == "" {
		return auth.AuthResult{Decision: auth.No, Err: auth.ErrUnauthenticated}
	}

	tokenHash := sha256.Sum256([]byte(token))

	// Check every entry so timing does not reveal the matching position.
	var match *KeyEntry
	for i := range a.keys {
		if subtle.ConstantTimeCompare(tokenHash[:], a.keys[i].KeyHash[:]) == 1 {
			match = &a.keys[i]
		}
	}
	if match == nil {
		return auth.AuthResult{Decision: auth.No, Err: auth.ErrUnauthenticated}
	}

	id := match.Identity
	return auth.AuthResult{Decision: auth.Yes, Identity: &id}
}
