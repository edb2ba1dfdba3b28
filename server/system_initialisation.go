package server

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/jrsteele09/flowcraft-client/internal/config"
	"github.com/jrsteele09/flowcraft-client/users"
	"github.com/rs/zerolog/log"
)

// InitialiseSystem creates the demo account when one is configured and does
// not exist yet.
func (s *Server) InitialiseSystem(config config.Config) error {
	email := config.GetDemoUserEmail()
	if email == "" {
		return nil
	}

	generatedPassword, err := s.createDemoUser(email, config.GetDemoUserPassword())
	if err != nil {
		return fmt.Errorf("[Server InitialiseSystem] failed to bootstrap demo user: %w", err)
	}

	if generatedPassword != "" {
		log.Printf("👤 Demo Account Credentials:")
		log.Printf("   Email:       %s", email)
		log.Printf("   Password:    %s", generatedPassword)
		log.Printf("")
	}
	return nil
}

// createDemoUser returns the generated password, or "" when the account
// already existed or its password came from configuration.
func (s *Server) createDemoUser(email, password string) (string, error) {
	_, err := s.repos.Users.GetByEmail(email)
	if err == nil {
		return "", nil
	}
	if !errors.Is(err, users.ErrNotFound) {
		return "", err
	}

	var generated string
	if password == "" {
		generated = generateRandomString(12)
		password = generated
	}
	if err := users.ValidatePasswordStrength(password); err != nil {
		return "", err
	}

	hash, err := users.HashPassword(password)
	if err != nil {
		return "", err
	}
	now := NowTimeFunc().UTC()
	err = s.repos.Users.Upsert(&users.User{
		Email:            email,
		PasswordHash:     hash,
		FirstName:        "Demo",
		LastName:         "User",
		Active:           true,
		Verified:         true,
		SubscriptionTier: users.TierPro,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	if err != nil {
		return "", err
	}
	return generated, nil
}

// generateRandomString creates a random base64url string
func generateRandomString(length int) string {
	b := make([]byte, length)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
