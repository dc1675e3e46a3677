package server

import (
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body := decodeJSON(t, w); body["status"] != "up" {
		t.Fatalf("expected status up, got %v", body)
	}
}

func TestRegisterLoginAndMe(t *testing.T) {
	env := newTestEnv(t)
	token, userID := env.registerUser(t, "benawad")

	// The registration token works immediately
	w := env.do(t, http.MethodGet, "/api/me", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	me := decodeJSON(t, w)
	if int(me["id"].(float64)) != userID {
		t.Fatalf("me: expected id %d, got %v", userID, me["id"])
	}
	if me["username"] != "benawad" {
		t.Fatalf("me: unexpected username %v", me["username"])
	}

	// Login by username
	w = env.do(t, http.MethodPost, "/api/login", "", gin.H{
		"username_or_email": "benawad",
		"password":          "secret1",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login by username: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// Login by email
	w = env.do(t, http.MethodPost, "/api/login", "", gin.H{
		"username_or_email": "benawad@example.com",
		"password":          "secret1",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login by email: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// Wrong password
	w = env.do(t, http.MethodPost, "/api/login", "", gin.H{
		"username_or_email": "benawad",
		"password":          "wrong-password",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: expected 401, got %d", w.Code)
	}
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name  string
		body  gin.H
		field string
	}{
		{"short username", gin.H{"username": "benny", "email": "a@b.co", "password": "secret1"}, "username"},
		{"bad email", gin.H{"username": "benawad", "email": "nope", "password": "secret1"}, "email"},
		{"short password", gin.H{"username": "benawad", "email": "a@b.co", "password": "12345"}, "password"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/register", "", tc.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
			if field := fieldOf(t, decodeJSON(t, w)); field != tc.field {
				t.Fatalf("expected field %q, got %q", tc.field, field)
			}
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.registerUser(t, "benawad")

	w := env.do(t, http.MethodPost, "/api/register", "", gin.H{
		"username": "someoneelse",
		"email":    "benawad@example.com",
		"password": "secret1",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if field := fieldOf(t, decodeJSON(t, w)); field != "email" {
		t.Fatalf("expected email field error, got %q", field)
	}
}

func TestMeRequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/me", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestForgotAndChangePassword(t *testing.T) {
	env := newTestEnv(t)
	env.registerUser(t, "benawad")

	// Unknown email still answers ok and sends nothing
	w := env.do(t, http.MethodPost, "/api/forgot-password", "", gin.H{"email": "nobody@example.com"})
	if w.Code != http.StatusOK {
		t.Fatalf("forgot unknown: expected 200, got %d", w.Code)
	}
	if len(env.mail.sent) != 0 {
		t.Fatalf("expected no mail for unknown email, got %d", len(env.mail.sent))
	}

	// Known email gets a reset link
	w = env.do(t, http.MethodPost, "/api/forgot-password", "", gin.H{"email": "benawad@example.com"})
	if w.Code != http.StatusOK {
		t.Fatalf("forgot known: expected 200, got %d", w.Code)
	}
	if len(env.mail.sent) != 1 {
		t.Fatalf("expected one mail, got %d", len(env.mail.sent))
	}
	mail := env.mail.sent[0]
	if mail.To != "benawad@example.com" {
		t.Fatalf("unexpected recipient %q", mail.To)
	}
	// Extract the token from the mailed link
	href := mail.HTML[strings.Index(mail.HTML, `"`)+1 : strings.Index(mail.HTML, `">`)]
	token := href[strings.LastIndex(href, "/")+1:]
	if token == "" {
		t.Fatalf("no token in mail body %q", mail.HTML)
	}

	// Confirmation mismatch is a field error
	w = env.do(t, http.MethodPost, "/api/change-password", "", gin.H{
		"token":                 token,
		"new_password":          "changed1",
		"password_confirmation": "different",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("mismatch: expected 400, got %d", w.Code)
	}

	// Valid change signs the user in
	w = env.do(t, http.MethodPost, "/api/change-password", "", gin.H{
		"token":                 token,
		"new_password":          "changed1",
		"password_confirmation": "changed1",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("change: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if tok, _ := decodeJSON(t, w)["token"].(string); tok == "" {
		t.Fatalf("expected a session token after password change")
	}

	// The token is single use
	w = env.do(t, http.MethodPost, "/api/change-password", "", gin.H{
		"token":                 token,
		"new_password":          "changed2",
		"password_confirmation": "changed2",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("replay: expected 400, got %d", w.Code)
	}

	// Old password no longer works, new one does
	w = env.do(t, http.MethodPost, "/api/login", "", gin.H{
		"username_or_email": "benawad",
		"password":          "secret1",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("old password: expected 401, got %d", w.Code)
	}
	w = env.do(t, http.MethodPost, "/api/login", "", gin.H{
		"username_or_email": "benawad",
		"password":          "changed1",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("new password: expected 200, got %d", w.Code)
	}
}
