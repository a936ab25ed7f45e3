// Package auth verifies the identity token a client presents when opening a
// connection. A missing or invalid token is fatal to the connection.
package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("identity token missing")
	ErrInvalidToken = errors.New("identity token invalid")
)

// Identity is the resolved participant behind a connection.
type Identity struct {
	ParticipantID string
	DisplayName   string
}

// Verifier validates HMAC-signed bearer tokens issued by the control plane.
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier returns a verifier for the given shared secret. issuer is
// optional; when set, tokens must carry it.
func NewVerifier(secret, issuer string) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth secret not configured")
	}
	return &Verifier{secret: []byte(secret), issuer: issuer}, nil
}

// Verify parses and validates tokenStr and extracts the participant identity
// from its claims.
func (v *Verifier) Verify(tokenStr string) (*Identity, error) {
	if strings.TrimSpace(tokenStr) == "" {
		return nil, ErrMissingToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	name, _ := claims["name"].(string)
	if name == "" {
		name = sub
	}

	return &Identity{ParticipantID: sub, DisplayName: name}, nil
}

// ExtractBearer pulls the token out of an Authorization header or, for
// websocket upgrades where browsers cannot set headers, a query parameter
// value.
func ExtractBearer(header, queryToken string) (string, error) {
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return "", ErrInvalidToken
		}
		return strings.TrimSpace(parts[1]), nil
	}
	if queryToken != "" {
		return queryToken, nil
	}
	return "", ErrMissingToken
}
