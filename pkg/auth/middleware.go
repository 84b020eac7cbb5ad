package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rhuss/slidewright/pkg/api"
	"github.com/rhuss/slidewright/pkg/observability"
	"github.com/rhuss/slidewright/pkg/storage"
)

// UserLookup loads the users identities refer to.
type UserLookup interface {
	GetUser(ctx context.Context, id int64) (*storage.User, error)
	GetUserByEmail(ctx context.Context, email string) (*storage.User, error)
}

// Middleware creates HTTP middleware from an AuthChain, the user store and
// an optional RateLimiter. Requests whose path matches bypassEndpoints
// skip authentication. An entry ending in "*" matches by prefix.
func Middleware(chain *AuthChain, users UserLookup, limiter RateLimiter, bypassEndpoints []string) func(http.Handler) http.Handler {
	exact := make(map[string]bool, len(bypassEndpoints))
	var prefixes []string
	for _, ep := range bypassEndpoints {
		if p, ok := strings.CutSuffix(ep, "*"); ok {
			prefixes = append(prefixes, p)
			continue
		}
		exact[ep] = true
	}
	bypassed := func(path string) bool {
		if exact[path] {
			return true
		}
		for _, p := range prefixes {
			if strings.HasPrefix(path, p) {
				return true
			}
		}
		return false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if bypassed(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			result := chain.Authenticate(r.Context(), r)
			if result.Decision != Yes || result.Identity == nil {
				slog.Warn("authentication failed",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"error", result.Err,
				)
				writeError(w, http.StatusUnauthorized, api.NewUnauthorizedError("Could not validate credentials"))
				return
			}

			user, err := resolveUser(r.Context(), users, result.Identity)
			switch {
			case errors.Is(err, storage.ErrNotFound):
				slog.Warn("authenticated subject has no user", "subject", result.Identity.Subject)
				writeError(w, http.StatusUnauthorized, api.NewUnauthorizedError("Could not validate credentials"))
				return
			case err != nil:
				slog.Error("loading authenticated user", "subject", result.Identity.Subject, "error", err)
				writeError(w, http.StatusInternalServerError, api.NewServerError("internal authentication error"))
				return
			case !user.IsActive:
				writeError(w, http.StatusForbidden, api.NewForbiddenError("Inactive user"))
				return
			}

			slog.Debug("authentication succeeded",
				"subject", result.Identity.Subject,
				"user_id", user.ID,
				"path", r.URL.Path,
			)

			if limiter != nil {
				if err := limiter.Allow(r.Context(), result.Identity); err != nil {
					tier := tierOf(result.Identity)
					slog.Warn("rate limit exceeded", "subject", result.Identity.Subject, "tier", tier)
					observability.RateLimitRejectedTotal.WithLabelValues(tier).Inc()
					writeError(w, http.StatusTooManyRequests, api.NewTooManyRequestsError("rate limit exceeded"))
					return
				}
			}

			ctx := SetIdentity(r.Context(), result.Identity)
			ctx = SetUser(ctx, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func resolveUser(ctx context.Context, users UserLookup, id *Identity) (*storage.User, error) {
	if users == nil {
		return nil, storage.ErrNotFound
	}
	if id.UserID > 0 {
		return users.GetUser(ctx, id.UserID)
	}
	if id.Subject == "" {
		return nil, storage.ErrNotFound
	}
	return users.GetUserByEmail(ctx, id.Subject)
}

func writeError(w http.ResponseWriter, status int, apiErr *api.APIError) {
	w.Header().Set("Content-Type", "application/json")
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: apiErr})
}

// DefaultBypassEndpoints lists endpoints that skip authentication.
var DefaultBypassEndpoints = []string{
	"/",
	"/health",
	"/healthz",
	"/readyz",
	"/metrics",
	"/api/users/register",
	"/api/users/login",
	"/api/generate",
	"/api/generate-async",
	"/api/generate-from-file-async",
	"/api/generation/*",
	"/api/generations",
	"/mcp*",
}
