package refresh

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/pkg/errors"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

var (
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)

// Manager handles refresh token creation, validation, and rotation
type Manager struct {
	repo   Repo
	length int
	expiry time.Duration
}

// NewManager creates a new refresh token manager. length is the number of
// random bytes behind each token.
func NewManager(repo Repo, length int, expiry time.Duration) *Manager {
	return &Manager{
		repo:   repo,
		length: length,
		expiry: expiry,
	}
}

// Create generates a new refresh token for the user and stores it
func (m *Manager) Create(userID string) (string, error) {
	tokenBytes := make([]byte, m.length)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", errors.Wrap(err, "Manager.Create rand.Read")
	}

	tokenStr := hex.EncodeToString(tokenBytes)
	if err := m.repo.Upsert(&StoredRefreshToken{
		Token:  tokenStr,
		UserID: userID,
		Iat:    NowTimeFunc(),
	}); err != nil {
		return "", errors.Wrap(err, "Manager.Create Upsert")
	}

	return tokenStr, nil
}

// Rotate consumes a refresh token and issues its replacement. The presented
// token is deleted whether or not rotation succeeds, so it can never be replayed.
func (m *Manager) Rotate(token string) (userID, newToken string, err error) {
	rt, err := m.repo.Get(token)
	if err != nil {
		return "", "", ErrInvalidRefreshToken
	}
	if err := m.repo.Delete(token); err != nil {
		// Lost a race with a concurrent rotation of the same token.
		if errors.Is(err, ErrNotFound) {
			return "", "", ErrInvalidRefreshToken
		}
		return "", "", errors.Wrap(err, "Manager.Rotate Delete")
	}
	if m.IsExpired(rt) {
		return "", "", ErrRefreshTokenExpired
	}

	newToken, err = m.Create(rt.UserID)
	if err != nil {
		return "", "", errors.Wrap(err, "Manager.Rotate Create")
	}
	return rt.UserID, newToken, nil
}

// Revoke deletes a refresh token. Unknown tokens are ignored.
func (m *Manager) Revoke(token string) {
	_ = m.repo.Delete(token)
}

// IsExpired checks if a refresh token has outlived the configured expiry
func (m *Manager) IsExpired(rt *StoredRefreshToken) bool {
	return NowTimeFunc().Sub(rt.Iat) > m.expiry
}
