package handlers

import (
	"strings"
	"testing"

	"github.com/myeljoud/lireddit-server/internal/models"
)

func TestValidateRegister(t *testing.T) {
	valid := models.RegisterRequest{
		Username: "benawad",
		Email:    "ben@example.com",
		Password: "secret1",
	}

	cases := []struct {
		name   string
		mutate func(*models.RegisterRequest)
		field  string
	}{
		{"valid", func(r *models.RegisterRequest) {}, ""},
		{"missing username", func(r *models.RegisterRequest) { r.Username = "" }, "username"},
		{"short username", func(r *models.RegisterRequest) { r.Username = "benny" }, "username"},
		{"missing email", func(r *models.RegisterRequest) { r.Email = "" }, "email"},
		{"bad email", func(r *models.RegisterRequest) { r.Email = "not-an-email" }, "email"},
		{"missing password", func(r *models.RegisterRequest) { r.Password = "" }, "password"},
		{"short password", func(r *models.RegisterRequest) { r.Password = "12345" }, "password"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := valid
			tc.mutate(&input)
			field, _, ok := validateRegister(input)
			if tc.field == "" {
				if !ok {
					t.Fatalf("expected valid input, got error on field %q", field)
				}
				return
			}
			if ok {
				t.Fatalf("expected validation error on field %q", tc.field)
			}
			if field != tc.field {
				t.Fatalf("expected field %q, got %q", tc.field, field)
			}
		})
	}
}

func TestEmailPattern(t *testing.T) {
	valid := []string{"a@b.co", "first.last+tag@sub.domain.org", "USER@EXAMPLE.COM"}
	invalid := []string{"plainaddress", "@missing.local", "user@", "user@domain", "user@domain.toolong"}

	for _, email := range valid {
		if !emailPattern.MatchString(email) {
			t.Errorf("expected %q to be valid", email)
		}
	}
	for _, email := range invalid {
		if emailPattern.MatchString(email) {
			t.Errorf("expected %q to be invalid", email)
		}
	}
}

func TestBodySnippet(t *testing.T) {
	short := "short body"
	if got := bodySnippet(short); got != short {
		t.Fatalf("expected short body unchanged, got %q", got)
	}

	long := strings.Repeat("x", 80)
	got := bodySnippet(long)
	if len(got) != snippetLength+3 {
		t.Fatalf("expected %d chars, got %d", snippetLength+3, len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("expected ellipsis suffix, got %q", got)
	}
}
