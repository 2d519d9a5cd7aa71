package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/camden-git/fieldsurvey/models"
	"github.com/camden-git/fieldsurvey/repository"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

const (
	// UserContextKey is the key used to store the user object in the request context.
	UserContextKey ContextKey = "user"
)

// tokenFromRequest reads a bearer token from the Authorization header, or
// from the access_token query parameter for clients that cannot set headers
// (browser websockets).
func tokenFromRequest(r *http.Request) (string, bool) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return "", false
		}
		return parts[1], true
	}
	if token := r.URL.Query().Get("access_token"); token != "" {
		return token, true
	}
	return "", false
}

// AuthMiddleware creates a middleware handler for JWT authentication.
// It verifies the token and, if valid, fetches the user and adds them to the request context.
func AuthMiddleware(tokens *TokenIssuer, userRepo repository.UserRepository, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, ok := tokenFromRequest(r)
		if !ok {
			WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Authorization header format must be Bearer {token}")
			return
		}

		userID, err := tokens.Parse(tokenString)
		if err != nil {
			WriteAPIError(w, http.StatusUnauthorized, "invalid_token", err.Error())
			return
		}

		user, err := userRepo.GetByID(userID)
		if err != nil {
			// user deleted after the token was issued
			WriteAPIError(w, http.StatusUnauthorized, "invalid_token", "User not found")
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth adapts AuthMiddleware to chi's middleware signature.
func RequireAuth(tokens *TokenIssuer, userRepo repository.UserRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return AuthMiddleware(tokens, userRepo, next)
	}
}

// currentUser returns the authenticated user. Handlers behind AuthMiddleware
// always have one.
func currentUser(r *http.Request) *models.User {
	user, _ := r.Context().Value(UserContextKey).(*models.User)
	return user
}
