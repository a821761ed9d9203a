package auth

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestAuthorizer(t *testing.T) *Authorizer {
	t.Helper()

	a, err := NewAuthorizer("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("new authorizer: %v", err)
	}

	return a
}

func TestNewAuthorizerRequiresSecret(t *testing.T) {
	if _, err := NewAuthorizer("", time.Hour); !errors.Is(err, ErrEmptySecret) {
		t.Fatalf("expected ErrEmptySecret, got %v", err)
	}
}

func TestIssueAndVerify(t *testing.T) {
	a := newTestAuthorizer(t)

	token, err := a.IssueToken("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	userID, err := a.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	if userID != "user-1" {
		t.Fatalf("expected user-1, got %q", userID)
	}
}

func TestVerifyRejects(t *testing.T) {
	a := newTestAuthorizer(t)

	other, err := NewAuthorizer("other-secret", time.Hour)
	if err != nil {
		t.Fatalf("new authorizer: %v", err)
	}

	foreign, _ := other.IssueToken("user-1")

	expired := newTestAuthorizer(t)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	stale, _ := expired.IssueToken("user-1")

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserID: "user-1",
	})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	cases := map[string]string{
		"garbage":      "not-a-token",
		"wrong secret": foreign,
		"expired":      stale,
		"alg none":     unsigned,
	}

	for name, token := range cases {
		if _, err := a.Verify(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

func TestCheck(t *testing.T) {
	a := newTestAuthorizer(t)
	token, _ := a.IssueToken("user-7")

	cases := []struct {
		name   string
		header string
		status Status
		userID string
	}{
		{name: "absent", status: StatusAbsent},
		{name: "bearer", header: "Bearer " + token, status: StatusAuthenticated, userID: "user-7"},
		{name: "lowercase scheme", header: "bearer " + token, status: StatusAuthenticated, userID: "user-7"},
		{name: "basic", header: "Basic dXNlcjpwYXNz", status: StatusInvalid},
		{name: "bad token", header: "Bearer abc.def.ghi", status: StatusInvalid},
	}

	for _, tc := range cases {
		r := httptest.NewRequest("GET", "/api/calendar", nil)
		if tc.header != "" {
			r.Header.Set("Authorization", tc.header)
		}

		out := a.Check(r)
		if out.Status != tc.status || out.UserID != tc.userID {
			t.Fatalf("%s: expected %v/%q, got %v/%q (%v)", tc.name, tc.status, tc.userID, out.Status, out.UserID, out.Err)
		}
	}
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	if !CheckPassword(hash, "correct horse") {
		t.Fatalf("expected password to match")
	}

	if CheckPassword(hash, "wrong horse") {
		t.Fatalf("expected mismatch")
	}
}
