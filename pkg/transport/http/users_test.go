package http

import (
	gohttp "net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/rhuss/slidewright/pkg/api"
)

func strPtr(s string) *string { return &s }

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, "POST", "/api/users/register", "", api.RegisterRequest{
		Email: "  ada@example.com ", Password: "correct-horse", Name: "Ada",
	})
	if resp.StatusCode != gohttp.StatusCreated {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, readBody(t, resp))
	}
	var u api.UserResponse
	decode(t, resp, &u)
	if u.ID == 0 || u.Email != "ada@example.com" || u.Name != "Ada" {
		t.Errorf("user = %+v", u)
	}

	tests := []struct {
		name      string
		req       api.RegisterRequest
		wantParam string
		wantMsg   string
	}{
		{
			name:      "duplicate email",
			req:       api.RegisterRequest{Email: "ada@example.com", Password: "correct-horse", Name: "Ada"},
			wantParam: "email",
			wantMsg:   messageEmailTaken,
		},
		{
			name:      "duplicate email in other case",
			req:       api.RegisterRequest{Email: "ADA@example.com", Password: "correct-horse", Name: "Ada"},
			wantParam: "email",
			wantMsg:   messageEmailTaken,
		},
		{
			name:      "short password",
			req:       api.RegisterRequest{Email: "bob@example.com", Password: "short", Name: "Bob"},
			wantParam: "password",
		},
		{
			name:      "password beyond bcrypt limit",
			req:       api.RegisterRequest{Email: "bob@example.com", Password: strings.Repeat("p", 80), Name: "Bob"},
			wantParam: "password",
			wantMsg:   "Password is too long",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, "POST", "/api/users/register", "", tt.req)
			apiErr := expectError(t, resp, gohttp.StatusBadRequest, api.ErrorTypeInvalidRequest)
			if apiErr.Param != tt.wantParam {
				t.Errorf("param = %q, want %q", apiErr.Param, tt.wantParam)
			}
			if tt.wantMsg != "" && apiErr.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", apiErr.Message, tt.wantMsg)
			}
		})
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerUser(t, "ada@example.com")
	if token == "" {
		t.Fatal("empty token")
	}

	// OAuth2 password form, email in "username".
	form := url.Values{"username": {"ada@example.com"}, "password": {"correct-horse"}}
	resp, err := gohttp.PostForm(env.srv.URL+"/api/users/login", form)
	if err != nil {
		t.Fatalf("PostForm: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != gohttp.StatusOK {
		t.Fatalf("form login status = %d, body = %s", resp.StatusCode, readBody(t, resp))
	}
	var tok api.TokenResponse
	decode(t, resp, &tok)
	if tok.TokenType != "bearer" || tok.User.Email != "ada@example.com" {
		t.Errorf("token response = %+v", tok)
	}

	resp = env.do(t, "POST", "/api/users/login", "", api.LoginRequest{Email: "ada@example.com", Password: "wrong-horse"})
	apiErr := expectError(t, resp, gohttp.StatusUnauthorized, api.ErrorTypeUnauthorized)
	if apiErr.Message != messageBadCredentials {
		t.Errorf("message = %q", apiErr.Message)
	}
	if got := resp.Header.Get("WWW-Authenticate"); got != "Bearer" {
		t.Errorf("WWW-Authenticate = %q, want Bearer", got)
	}

	resp = env.do(t, "POST", "/api/users/login", "", api.LoginRequest{Email: "nobody@example.com", Password: "correct-horse"})
	apiErr = expectError(t, resp, gohttp.StatusUnauthorized, api.ErrorTypeUnauthorized)
	if apiErr.Message != messageBadCredentials {
		t.Errorf("unknown user message = %q, want the wrong-password message", apiErr.Message)
	}

	resp, err = gohttp.PostForm(env.srv.URL+"/api/users/login", url.Values{"username": {"ada@example.com"}})
	if err != nil {
		t.Fatalf("PostForm: %v", err)
	}
	defer resp.Body.Close()
	expectError(t, resp, gohttp.StatusBadRequest, api.ErrorTypeInvalidRequest)
}

func TestLoginInactiveUser(t *testing.T) {
	env := newTestEnv(t)
	seedUser(t, env.store, "idle@example.com", false)

	resp := env.do(t, "POST", "/api/users/login", "", api.LoginRequest{Email: "idle@example.com", Password: "correct-horse"})
	expectError(t, resp, gohttp.StatusForbidden, api.ErrorTypeForbidden)
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerUser(t, "ada@example.com")
	env.registerUser(t, "bob@example.com")

	resp := env.do(t, "GET", "/api/users/me", token, nil)
	var me api.UserResponse
	decode(t, resp, &me)
	if me.Email != "ada@example.com" {
		t.Fatalf("me = %+v", me)
	}

	resp = env.do(t, "PUT", "/api/users/me", token, api.UserUpdateRequest{Email: strPtr("bob@example.com")})
	apiErr := expectError(t, resp, gohttp.StatusBadRequest, api.ErrorTypeInvalidRequest)
	if apiErr.Message != messageEmailTaken {
		t.Errorf("message = %q", apiErr.Message)
	}

	resp = env.do(t, "PUT", "/api/users/me", token, api.UserUpdateRequest{
		Name:     strPtr("Ada Lovelace"),
		Password: strPtr("new-password"),
	})
	if resp.StatusCode != gohttp.StatusOK {
		t.Fatalf("update status = %d, body = %s", resp.StatusCode, readBody(t, resp))
	}
	var updated api.UserResponse
	decode(t, resp, &updated)
	if updated.Name != "Ada Lovelace" || updated.ID != me.ID {
		t.Errorf("updated = %+v", updated)
	}

	// The new password replaces the old one.
	resp = env.do(t, "POST", "/api/users/login", "", api.LoginRequest{Email: "ada@example.com", Password: "correct-horse"})
	expectError(t, resp, gohttp.StatusUnauthorized, api.ErrorTypeUnauthorized)
	resp = env.do(t, "POST", "/api/users/login", "", api.LoginRequest{Email: "ada@example.com", Password: "new-password"})
	if resp.StatusCode != gohttp.StatusOK {
		t.Errorf("login with new password = %d", resp.StatusCode)
	}

	resp = env.do(t, "GET", "/api/users/me", "not-a-token", nil)
	expectError(t, resp, gohttp.StatusUnauthorized, api.ErrorTypeUnauthorized)
}

func TestUpdateMeTrimsEmail(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerUser(t, "ada@example.com")

	resp := env.do(t, "PUT", "/api/users/me", token, api.UserUpdateRequest{Email: strPtr("  ada.l@example.com \n")})
	if resp.StatusCode != gohttp.StatusOK {
		t.Fatalf("update status = %d, body = %s", resp.StatusCode, readBody(t, resp))
	}
	var updated api.UserResponse
	decode(t, resp, &updated)
	if updated.Email != "ada.l@example.com" {
		t.Errorf("email = %q, want trimmed", updated.Email)
	}

	resp = env.do(t, "POST", "/api/users/login", "", api.LoginRequest{Email: "ada.l@example.com", Password: "correct-horse"})
	if resp.StatusCode != gohttp.StatusOK {
		t.Errorf("login with trimmed email = %d", resp.StatusCode)
	}
}
