package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/jrsteele09/flowcraft-client/users"
	"github.com/rs/zerolog/log"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyUser stores the authenticated *users.User
	ContextKeyUser ContextKey = "user"
)

// RequireAuth is middleware that validates a Bearer access token and loads
// its user into the request context.
func (s *Server) RequireAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeUnauthorized(w, "Not authenticated")
				return
			}

			userID, err := s.tokens.Verify(token)
			if err != nil {
				log.Debug().Err(err).Str("path", r.URL.Path).Msg("Rejected access token")
				writeUnauthorized(w, "Could not validate credentials")
				return
			}

			user, err := s.repos.Users.GetByID(userID)
			if errors.Is(err, users.ErrNotFound) {
				writeDetail(w, http.StatusNotFound, "User not found")
				return
			}
			if err != nil {
				log.Err(err).Str("user_id", userID).Msg("RequireAuth: user lookup failed")
				writeDetail(w, http.StatusInternalServerError, "Internal server error")
				return
			}
			if !user.Active {
				writeDetail(w, http.StatusBadRequest, "Inactive user")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyUser, user)
			next(w, r.WithContext(ctx))
		}
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// currentUser returns the user RequireAuth put in the context.
func currentUser(r *http.Request) *users.User {
	user, _ := r.Context().Value(ContextKeyUser).(*users.User)
	return user
}

func writeUnauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeDetail(w, http.StatusUnauthorized, detail)
}
