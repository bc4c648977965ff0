package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/mcoot/gamerelay/internal/api/apierr"
	"github.com/mcoot/gamerelay/internal/model"
)

type contextKey string

const tokenContextKey contextKey = "token"

// Authorizer checks a bearer token against a set of acceptable permissions
type Authorizer interface {
	Authorize(id model.TokenID, anyOf ...string) (model.Token, error)
}

// Auth creates authentication middleware accepting tokens that hold any of anyOf
func Auth(tokens Authorizer, anyOf ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := extractToken(r)
			if id == "" {
				apierr.WriteError(w, apierr.NewUnauthorizedError(""))
				return
			}

			token, err := tokens.Authorize(model.TokenID(id), anyOf...)
			if err != nil {
				apierr.WriteError(w, unauthorized(err))
				return
			}

			ctx := context.WithValue(r.Context(), tokenContextKey, &token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(err error) error {
	switch {
	case errors.Is(err, model.ErrTokenNotFound):
		return apierr.NewUnauthorizedError("Unknown token")
	case errors.Is(err, model.ErrTokenExpired):
		return apierr.NewUnauthorizedError("Token expired")
	case errors.Is(err, model.ErrInsufficientPermissions):
		return apierr.NewUnauthorizedError("Token lacks the required permission")
	default:
		return err
	}
}

// extractToken reads the token from "Authorization: Token <t>", also accepting the Bearer scheme
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	for _, scheme := range []string{"Token ", "Bearer "} {
		if strings.HasPrefix(authHeader, scheme) {
			return strings.TrimSpace(strings.TrimPrefix(authHeader, scheme))
		}
	}
	return ""
}

// GetToken returns the authenticated token from the request context
func GetToken(ctx context.Context) *model.Token {
	token, _ := ctx.Value(tokenContextKey).(*model.Token)
	return token
}

// MustGetToken returns the authenticated token or panics
func MustGetToken(ctx context.Context) *model.Token {
	token := GetToken(ctx)
	if token == nil {
		panic("no token in context - auth middleware not applied?")
	}
	return token
}
