// Package jwt issues and validates the HS256 access tokens handed out at
// login. Tokens carry the user's email as subject and the numeric user ID
// in a user_id claim.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/rhuss/slidewright/pkg/auth"
)

// DefaultTTL is the token lifetime when none is configured.
const DefaultTTL = 30 * time.Minute

// Config holds the signing and validation settings.
type Config struct {
	// Secret is the HMAC key. Required.
	Secret []byte

	// Issuer is set as the iss claim and, when non-empty, required on
	// validation.
	Issuer string

	// Audience is set as the aud claim and, when non-empty, required on
	// validation.
	Audience string

	// TTL is the token lifetime. Default: 30 minutes.
	TTL time.Duration
}

func (c *Config) applyDefaults() {
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
}

// Claims are the claims of an access token.
type Claims struct {
	UserID int64 `json:"user_id"`
	jwtlib.RegisteredClaims
}

// Issuer signs access tokens.
type Issuer struct {
	config Config
	now    func() time.Time
}

// NewIssuer creates an Issuer. The secret must not be empty.
func NewIssuer(cfg Config) (*Issuer, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("jwt: secret must not be empty")
	}
	cfg.applyDefaults()
	return &Issuer{config: cfg, now: time.Now}, nil
}

// TTL returns the configured token lifetime.
func (i *Issuer) TTL() time.Duration { return i.config.TTL }

// Issue returns a signed token for the user and its expiry.
func (i *Issuer) Issue(userID int64, email string) (string, time.Time, error) {
	now := i.now()
	exp := now.Add(i.config.TTL)

	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   email,
			Issuer:    i.config.Issuer,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(exp),
		},
	}
	if i.config.Audience != "" {
		claims.Audience = jwtlib.ClaimStrings{i.config.Audience}
	}

	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(i.config.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, exp, nil
}

// Authenticator validates HS256 bearer tokens.
type Authenticator struct {
	config Config
}

// New creates a JWT authenticator with the given configuration.
func New(cfg Config) *Authenticator {
	cfg.applyDefaults()
	return &Authenticator{config: cfg}
}

// Authenticate extracts a bearer token from the Authorization header,
// validates it as a JWT, and returns an identity on success.
//
// Decision outcomes:
//   - Abstain: no bearer token, or a token that is not shaped like a JWT
//     (left for the API key authenticator)
//   - No: a JWT that fails validation (expired, wrong issuer, bad signature, etc.)
//   - Yes: valid JWT with populated Identity
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.AuthResult {
	tokenStr, ok := auth.BearerToken(r)
	if !ok {
		return auth.AuthResult{Decision: auth.Abstain}
	}
	if strings.Count(tokenStr, ".") != 2 {
		return auth.AuthResult{Decision: auth.Abstain}
	}

	claims, err := a.Parse(tokenStr)
	if err != nil {
		slog.Debug("JWT validation failed", "error", err)
		return auth.AuthResult{
			Decision: auth.No,
			Err:      fmt.Errorf("invalid JWT: %w", err),
		}
	}

	if claims.Subject == "" && claims.UserID == 0 {
		return auth.AuthResult{
			Decision: auth.No,
			Err:      errors.New("JWT names no user"),
		}
	}

	subject := claims.Subject
	if subject == "" {
		subject = strconv.FormatInt(claims.UserID, 10)
	}
	return auth.AuthResult{
		Decision: auth.Yes,
		Identity: &auth.Identity{
			Subject:     subject,
			UserID:      claims.UserID,
			ServiceTier: "default",
		},
	}
}

// Parse validates tokenStr and returns its claims.
func (a *Authenticator) Parse(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(token *jwtlib.Token) (any, error) {
		return a.config.Secret, nil
	}, a.parserOptions()...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token is not valid")
	}
	return claims, nil
}

func (a *Authenticator) parserOptions() []jwtlib.ParserOption {
	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithExpirationRequired(),
	}
	if a.config.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(a.config.Issuer))
	}
	if a.config.Audience != "" {
		opts = append(opts, jwtlib.WithAudience(a.config.Audience))
	}
	return opts
}
