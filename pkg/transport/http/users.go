package http

import (
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/rhuss/slidewright/pkg/api"
	"github.com/rhuss/slidewright/pkg/auth"
	"github.com/rhuss/slidewright/pkg/auth/password"
	"github.com/rhuss/slidewright/pkg/storage"
	"github.com/rhuss/slidewright/pkg/transport"
)

const (
	messageEmailTaken     = "Email already registered"
	messageBadCredentials = "Incorrect email or password"
)

var errNoStore = api.NewUnavailableError("user storage is not configured")

// currentUser returns the authenticated user or writes 401.
func currentUser(w http.ResponseWriter, r *http.Request) (*storage.User, bool) {
	u := auth.UserFromContext(r.Context())
	if u == nil {
		transport.WriteAPIError(w, api.NewUnauthorizedError("Could not validate credentials"))
		return nil, false
	}
	return u, true
}

// handleRegister handles POST /api/users/register.
func (a *Adapter) handleRegister(w http.ResponseWriter, r *http.Request) {
	if a.deps.Store == nil {
		transport.WriteAPIError(w, errNoStore)
		return
	}

	var req api.RegisterRequest
	if err := a.decodeJSON(w, r, &req); err != nil {
		transport.WriteError(w, r, err)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if apiErr := api.ValidateRegister(&req); apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}

	if _, err := a.deps.Store.GetUserByEmail(r.Context(), req.Email); err == nil {
		transport.WriteAPIError(w, api.NewInvalidRequestError("email", messageEmailTaken))
		return
	} else if !errors.Is(err, storage.ErrNotFound) {
		transport.WriteError(w, r, err)
		return
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		if password.IsTooLong(err) {
			transport.WriteAPIError(w, api.NewInvalidRequestError("password", "Password is too long"))
			return
		}
		transport.WriteError(w, r, err)
		return
	}

	u := &storage.User{Email: req.Email, Name: req.Name, PasswordHash: hash, IsActive: true}
	if err := a.deps.Store.CreateUser(r.Context(), u); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			transport.WriteAPIError(w, api.NewInvalidRequestError("email", messageEmailTaken))
			return
		}
		transport.WriteError(w, r, err)
		return
	}

	a.config.Logger.Info("user registered", "user_id", u.ID)
	transport.WriteJSON(w, http.StatusCreated, u.Response())
}

// handleLogin handles POST /api/users/login. It accepts a JSON body or an
// OAuth2 password form, where the email travels as "username".
func (a *Adapter) handleLogin(w http.ResponseWriter, r *http.Request) {
	if a.deps.Store == nil || a.deps.Issuer == nil {
		transport.WriteAPIError(w, errNoStore)
		return
	}

	req, err := a.loginRequest(w, r)
	if err != nil {
		transport.WriteError(w, r, err)
		return
	}

	u, err := a.deps.Store.GetUserByEmail(r.Context(), strings.TrimSpace(req.Email))
	switch {
	case errors.Is(err, storage.ErrNotFound):
		transport.WriteAPIError(w, api.NewUnauthorizedError(messageBadCredentials))
		return
	case err != nil:
		transport.WriteError(w, r, err)
		return
	}
	if !password.Verify(u.PasswordHash, req.Password) {
		transport.WriteAPIError(w, api.NewUnauthorizedError(messageBadCredentials))
		return
	}
	if !u.IsActive {
		transport.WriteAPIError(w, api.NewForbiddenError("Inactive user"))
		return
	}

	token, _, err := a.deps.Issuer.Issue(u.ID, u.Email)
	if err != nil {
		transport.WriteError(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, api.TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        u.Response(),
	})
}

func (a *Adapter) loginRequest(w http.ResponseWriter, r *http.Request) (*api.LoginRequest, error) {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt != "application/x-www-form-urlencoded" && mt != "multipart/form-data" {
		var req api.LoginRequest
		if err := a.decodeJSON(w, r, &req); err != nil {
			return nil, err
		}
		return &req, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)
	if err := r.ParseMultipartForm(a.config.MaxBodySize); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return nil, api.NewInvalidRequestError("body", "invalid form: "+err.Error())
	}
	req := &api.LoginRequest{
		Email:    r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	}
	if req.Email == "" {
		req.Email = r.PostFormValue("email")
	}
	if req.Email == "" || req.Password == "" {
		return nil, api.NewInvalidRequestError("username", "username and password are required")
	}
	return req, nil
}

// handleGetMe handles GET /api/users/me.
func (a *Adapter) handleGetMe(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	transport.WriteJSON(w, http.StatusOK, u.Response())
}

// handleUpdateMe handles PUT /api/users/me.
func (a *Adapter) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	current, ok := currentUser(w, r)
	if !ok {
		return
	}
	if a.deps.Store == nil {
		transport.WriteAPIError(w, errNoStore)
		return
	}

	var req api.UserUpdateRequest
	if err := a.decodeJSON(w, r, &req); err != nil {
		transport.WriteError(w, r, err)
		return
	}
	if req.Email != nil {
		email := strings.TrimSpace(*req.Email)
		req.Email = &email
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		req.Name = &name
	}
	if apiErr := api.ValidateUserUpdate(&req); apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}

	u := *current
	if req.Email != nil && !strings.EqualFold(*req.Email, u.Email) {
		other, err := a.deps.Store.GetUserByEmail(r.Context(), *req.Email)
		switch {
		case err == nil && other.ID != u.ID:
			transport.WriteAPIError(w, api.NewInvalidRequestError("email", messageEmailTaken))
			return
		case err != nil && !errors.Is(err, storage.ErrNotFound):
			transport.WriteError(w, r, err)
			return
		}
		u.Email = *req.Email
	}
	if req.Name != nil {
		u.Name = *req.Name
	}
	if req.Password != nil {
		hash, err := password.Hash(*req.Password)
		if err != nil {
			if password.IsTooLong(err) {
				transport.WriteAPIError(w, api.NewInvalidRequestError("password", "Password is too long"))
				return
			}
			transport.WriteError(w, r, err)
			return
		}
		u.PasswordHash = hash
	}

	if err := a.deps.Store.UpdateUser(r.Context(), &u); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			transport.WriteAPIError(w, api.NewInvalidRequestError("email", messageEmailTaken))
			return
		}
		transport.WriteError(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, u.Response())
}
