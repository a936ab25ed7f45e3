package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-key"

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func TestVerifyValidToken(t *testing.T) {
	v, err := NewVerifier(testSecret, "")
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	tok := signedToken(t, jwt.MapClaims{
		"sub":  "user-42",
		"name": "Jamie",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	id, err := v.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id.ParticipantID != "user-42" || id.DisplayName != "Jamie" {
		t.Errorf("identity = %+v", id)
	}
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	v, _ := NewVerifier(testSecret, "")

	if _, err := v.Verify(""); !errors.Is(err, ErrMissingToken) {
		t.Errorf("empty token error = %v, want ErrMissingToken", err)
	}
	if _, err := v.Verify("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("garbage token error = %v, want ErrInvalidToken", err)
	}

	expired := signedToken(t, jwt.MapClaims{
		"sub": "user-42",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	if _, err := v.Verify(expired); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired token error = %v, want ErrInvalidToken", err)
	}

	noSubject := signedToken(t, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	if _, err := v.Verify(noSubject); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("subject-less token error = %v, want ErrInvalidToken", err)
	}
}

func TestExtractBearer(t *testing.T) {
	if tok, err := ExtractBearer("Bearer abc", ""); err != nil || tok != "abc" {
		t.Errorf("header extract = %q, %v", tok, err)
	}
	if tok, err := ExtractBearer("", "xyz"); err != nil || tok != "xyz" {
		t.Errorf("query extract = %q, %v", tok, err)
	}
	if _, err := ExtractBearer("", ""); !errors.Is(err, ErrMissingToken) {
		t.Errorf("missing error = %v", err)
	}
	if _, err := ExtractBearer("Basic abc", ""); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("non-bearer error = %v", err)
	}
}
