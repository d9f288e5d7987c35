package server

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/dREST/lib/model"
	"github.com/ValentinKolb/dREST/rest/transport"
	"github.com/golang-jwt/jwt"
)

// --------------------------------------------------------------------------
// Default (allow all) Implementations
// --------------------------------------------------------------------------

type allowAllAuthenticator struct{}

// NewAllowAllAuthenticator creates an authenticator that accepts every
// request as anonymous.
func NewAllowAllAuthenticator() IAuthenticator {
	return allowAllAuthenticator{}
}

func (allowAllAuthenticator) Authenticate(_ *transport.Request) (string, error) {
	return "", nil
}

type allowAllAuthorizer struct{}

// NewAllowAllAuthorizer creates an authorizer that permits every
// operation.
func NewAllowAllAuthorizer() IAuthorizer {
	return allowAllAuthorizer{}
}

func (allowAllAuthorizer) Authorize(_, _ string, _ model.Operation) bool {
	return true
}

// --------------------------------------------------------------------------
// JWT Bearer Token Authenticator
// --------------------------------------------------------------------------

type jwtAuthenticator struct {
	secret []byte
}

// NewJWTAuthenticator creates an authenticator that requires an
// HMAC-signed bearer token on every request. The token's subject claim
// becomes the principal.
func NewJWTAuthenticator(secret string) IAuthenticator {
	return &jwtAuthenticator{secret: []byte(secret)}
}

func (a *jwtAuthenticator) Authenticate(req *transport.Request) (string, error) {
	raw, ok := strings.CutPrefix(req.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return "", fmt.Errorf("missing bearer token")
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok {
		if sub, ok := claims["sub"].(string); ok {
			return sub, nil
		}
	}
	return "", nil
}
