package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/taskhub/apiserver/internal/services"
)

// RequireAuth is the gate every protected route passes through. It
// resolves the bearer token to a live user+session pair and attaches
// both to the request context; handlers read identity only from there.
func RequireAuth(users *services.UserService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := bearerToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			user, token, err := users.Authenticate(r.Context(), rawToken)
			if err != nil {
				if errors.Is(err, services.ErrInvalidToken) {
					writeError(w, http.StatusUnauthorized, "unauthorized")
					return
				}
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}

			ctx := context.WithValue(r.Context(), contextUserKey, user)
			ctx = context.WithValue(ctx, contextTokenKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
