package sessions

import "errors"

// Fixed keys the token pair is persisted under. A missing key of either
// kind means the persisted session is unauthenticated.
const (
	AccessTokenKey  = "access_token"
	RefreshTokenKey = "refresh_token"
)

var ErrNotFound = errors.New("session key not found")

// Repo is the durable key-value storage behind a Store.
type Repo interface {
	// Get returns the stored value or ErrNotFound
	Get(key string) (string, error)

	// SetAll writes every pair, atomically where the backend allows it
	SetAll(values map[string]string) error

	// Delete removes the keys. Missing keys are not an error.
	Delete(keys ...string) error
}
