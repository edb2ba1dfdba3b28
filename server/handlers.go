package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jrsteele09/flowcraft-client/authmodel"
	"github.com/jrsteele09/flowcraft-client/token/refresh"
	"github.com/jrsteele09/flowcraft-client/users"
	"github.com/rs/zerolog/log"
)

const contentTypeJSON = "application/json; charset=utf-8"

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// HealthHandler reports liveness.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}
}

func (s *Server) notFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusNotFound, "Not Found")
	}
}

// RegisterHandler creates an account. It does not issue tokens.
func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req authmodel.RegisterRequest
		if !s.decode(w, r, &req) {
			return
		}

		if _, err := s.repos.Users.GetByEmail(req.Email); err == nil {
			writeDetail(w, http.StatusBadRequest, "Email already registered")
			return
		} else if !errors.Is(err, users.ErrNotFound) {
			s.internalError(w, r, "Registration failed", err)
			return
		}

		hash, err := users.HashPassword(req.Password)
		if err != nil {
			s.internalError(w, r, "Registration failed", err)
			return
		}

		now := NowTimeFunc().UTC()
		user := &users.User{
			Email:            req.Email,
			PasswordHash:     hash,
			FirstName:        req.FirstName,
			LastName:         req.LastName,
			Active:           true,
			SubscriptionTier: users.TierFree,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := s.repos.Users.Upsert(user); err != nil {
			s.internalError(w, r, "Registration failed", err)
			return
		}

		log.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("User registered")
		writeJSON(w, http.StatusOK, user.Profile())
	}
}

// LoginHandler exchanges email and password for a token pair.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req authmodel.LoginRequest
		if !s.decode(w, r, &req) {
			return
		}

		user, err := s.repos.Users.GetByEmail(req.Email)
		if err != nil && !errors.Is(err, users.ErrNotFound) {
			s.internalError(w, r, "Login failed", err)
			return
		}
		if user == nil || !user.CheckPassword(req.Password) {
			writeUnauthorized(w, "Incorrect email or password")
			return
		}
		if !user.Active {
			writeDetail(w, http.StatusBadRequest, "Inactive user")
			return
		}

		refreshToken, err := s.refresh.Create(user.ID)
		if err != nil {
			s.internalError(w, r, "Login failed", err)
			return
		}
		s.writeTokens(w, r, user, refreshToken)
	}
}

// RefreshHandler rotates a refresh token: the presented token is consumed
// and a new pair is returned.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req authmodel.RefreshRequest
		if !s.decode(w, r, &req) {
			return
		}

		userID, refreshToken, err := s.refresh.Rotate(req.RefreshToken)
		switch {
		case errors.Is(err, refresh.ErrInvalidRefreshToken):
			writeUnauthorized(w, "Invalid refresh token")
			return
		case errors.Is(err, refresh.ErrRefreshTokenExpired):
			writeUnauthorized(w, "Refresh token expired")
			return
		case err != nil:
			s.internalError(w, r, "Token refresh failed", err)
			return
		}

		user, err := s.repos.Users.GetByID(userID)
		if err != nil {
			s.refresh.Revoke(refreshToken)
			writeUnauthorized(w, "Invalid token payload")
			return
		}
		s.writeTokens(w, r, user, refreshToken)
	}
}

// LogoutHandler revokes the refresh token when one is sent. Access tokens
// stay valid until they expire; clients discard them.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req authmodel.RefreshRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.RefreshToken != "" {
				s.refresh.Revoke(req.RefreshToken)
			}
		}
		writeJSON(w, http.StatusOK, authmodel.MessageResponse{Message: "Successfully logged out"})
	}
}

func (s *Server) ProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, currentUser(r).Profile())
	}
}

// UpdateProfileHandler applies the fields present in the body.
func (s *Server) UpdateProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var update users.ProfileUpdate
		if !s.decode(w, r, &update) {
			return
		}

		user := currentUser(r)
		if update.FirstName != nil {
			user.FirstName = *update.FirstName
		}
		if update.LastName != nil {
			user.LastName = *update.LastName
		}
		if update.Password != nil {
			hash, err := users.HashPassword(*update.Password)
			if err != nil {
				s.internalError(w, r, "Profile update failed", err)
				return
			}
			user.PasswordHash = hash
		}
		user.UpdatedAt = NowTimeFunc().UTC()

		if err := s.repos.Users.Upsert(user); err != nil {
			s.internalError(w, r, "Profile update failed", err)
			return
		}
		writeJSON(w, http.StatusOK, user.Profile())
	}
}

// TestTokenHandler confirms the bearer token is valid.
func (s *Server) TestTokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := currentUser(r)
		writeJSON(w, http.StatusOK, authmodel.TokenValidation{Valid: true, UserID: user.ID, Email: user.Email})
	}
}

func (s *Server) writeTokens(w http.ResponseWriter, r *http.Request, user *users.User, refreshToken string) {
	accessToken, err := s.tokens.CreateAccessToken(user)
	if err != nil {
		s.refresh.Revoke(refreshToken)
		s.internalError(w, r, "Failed to issue tokens", err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	writeJSON(w, http.StatusOK, authmodel.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		ExpiresIn:    int(s.tokens.Expiry().Seconds()),
	})
}

// decode reads a JSON body into v and validates it. It writes the error
// response itself and reports whether the handler should continue.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid request body")
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, validationDetail(err))
		return false
	}
	return true
}

func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", strings.ToLower(fe.Field())))
		case "email":
			msgs = append(msgs, fmt.Sprintf("%s is not a valid email address", strings.ToLower(fe.Field())))
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s characters", strings.ToLower(fe.Field()), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s validation", strings.ToLower(fe.Field()), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, detail string, err error) {
	logError(r.Method, r.URL.Path, err.Error())
	log.Err(err).Str("path", r.URL.Path).Msg(detail)
	writeDetail(w, http.StatusInternalServerError, detail)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDetail writes the backend's error shape: {"detail": "..."}.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, authmodel.ErrorResponse{Detail: detail})
}
