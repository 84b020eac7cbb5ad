// Package auth authenticates API callers and ties requests to users.
//
// Authentication uses a chain-of-responsibility pattern with three-outcome
// voting: each authenticator returns Yes (identity found), No (credentials
// invalid), or Abstain (can't handle). A configurable default decides when
// all authenticators abstain.
//
// The middleware resolves the identity to a stored user, rejects inactive
// accounts, applies the per-user rate limit and scopes storage access to
// the user's own presentations.
package auth
