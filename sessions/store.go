package sessions

import (
	"errors"
	"sync"

	"github.com/jrsteele09/flowcraft-client/token/jwt"
	"github.com/jrsteele09/flowcraft-client/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

var ErrNoToken = errors.New("no access token stored")

var _ oauth2.TokenSource = (*Store)(nil)

// Store owns the session's token pair and the cached profile of the
// authenticated user.
//
// In-memory state is guarded by mu: SetTokens and Clear replace both tokens
// under one write lock, so a reader never sees a torn pair. Persistence runs
// outside mu but inside persistMu, keeping the durable copy in the same
// order as memory without making readers wait on I/O.
type Store struct {
	mu      sync.RWMutex
	token   *oauth2.Token
	user    *users.Profile
	loading bool

	persistMu sync.Mutex
	repo      Repo
	degraded  bool

	listeners listeners
	logger    zerolog.Logger
}

type Option func(*Store)

// WithLogger sets the logger used for persistence warnings. Defaults to the
// global zerolog logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates a store and loads any token pair persisted by a previous
// process. A nil repo keeps the session in memory only.
func NewStore(repo Repo, opts ...Option) *Store {
	s := &Store{
		repo:   repo,
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.token = s.load()
	return s
}

func (s *Store) load() *oauth2.Token {
	if s.repo == nil {
		return nil
	}
	access, err := s.repo.Get(AccessTokenKey)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn().Err(err).Msg("Failed to read persisted access token")
		}
		return nil
	}
	refresh, err := s.repo.Get(RefreshTokenKey)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn().Err(err).Msg("Failed to read persisted refresh token")
		}
		return nil
	}
	if access == "" || refresh == "" {
		return nil
	}
	return withExpiry(&oauth2.Token{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"})
}

// AccessToken returns the current access token. It never fails; a missing
// token is reported as false.
func (s *Store) AccessToken() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == nil || s.token.AccessToken == "" {
		return "", false
	}
	return s.token.AccessToken, true
}

// RefreshToken returns the current refresh token.
func (s *Store) RefreshToken() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == nil || s.token.RefreshToken == "" {
		return "", false
	}
	return s.token.RefreshToken, true
}

// Tokens returns both tokens from one consistent read. ok is false unless both are present.
func (s *Store) Tokens() (access, refresh string, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == nil {
		return "", "", false
	}
	return s.token.AccessToken, s.token.RefreshToken, s.token.AccessToken != "" && s.token.RefreshToken != ""
}

// Token implements oauth2.TokenSource over the stored access token.
// Callers get a copy; the store keeps ownership of its token.
func (s *Store) Token() (*oauth2.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == nil || s.token.AccessToken == "" {
		return nil, ErrNoToken
	}
	tok := *s.token
	return &tok, nil
}

// SetTokens replaces both tokens and persists them.
func (s *Store) SetTokens(access, refresh string) {
	s.SetToken(&oauth2.Token{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"})
}

// SetToken replaces both tokens from an oauth2.Token. An unset Expiry is
// filled from the access token's "exp" claim when it is a JWT. A nil token
// is ignored; use Clear to end a session.
func (s *Store) SetToken(tok *oauth2.Token) {
	if tok == nil {
		return
	}
	next := withExpiry(&oauth2.Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
	})

	s.persistMu.Lock()
	s.mu.Lock()
	prev := s.statusLocked()
	s.token = next
	cur := s.statusLocked()
	s.mu.Unlock()
	s.save(next)
	s.persistMu.Unlock()

	s.listeners.publish(Event{Previous: prev, Current: cur, Cause: CauseTokensUpdated})
}

// User returns a copy of the cached profile, or nil.
func (s *Store) User() *users.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// SetUser caches the profile. It is independent of token presence.
func (s *Store) SetUser(profile *users.Profile) {
	var u *users.Profile
	if profile != nil {
		cp := *profile
		u = &cp
	}

	s.mu.Lock()
	prev := s.statusLocked()
	s.user = u
	cur := s.statusLocked()
	s.mu.Unlock()

	s.listeners.publish(Event{Previous: prev, Current: cur, Cause: CauseUserUpdated})
}

// SetLoading marks a login or startup validation as in flight.
func (s *Store) SetLoading(loading bool) {
	s.mu.Lock()
	prev := s.statusLocked()
	s.loading = loading
	cur := s.statusLocked()
	s.mu.Unlock()

	if prev != cur {
		s.listeners.publish(Event{Previous: prev, Current: cur, Cause: CauseLoading})
	}
}

// Clear removes both tokens and the cached user. It is idempotent: clearing
// an empty store changes nothing and publishes nothing.
func (s *Store) Clear() {
	s.ClearWithCause(CauseCleared)
}

// ClearWithCause is Clear with the reason reported to listeners.
func (s *Store) ClearWithCause(cause Cause) {
	s.persistMu.Lock()
	s.mu.Lock()
	prev := s.statusLocked()
	hadState := s.token != nil || s.user != nil || s.loading
	s.token = nil
	s.user = nil
	s.loading = false
	s.mu.Unlock()
	s.remove()
	s.persistMu.Unlock()

	if hadState {
		s.listeners.publish(Event{Previous: prev, Current: Unauthenticated, Cause: cause})
	}
}

// Status derives the session status from the current contents.
func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statusLocked()
}

func (s *Store) statusLocked() Status {
	if s.token != nil && s.token.AccessToken != "" && s.token.RefreshToken != "" && s.user != nil {
		return Authenticated
	}
	if s.loading {
		return Authenticating
	}
	return Unauthenticated
}

// save must be called with persistMu held. A failed write is logged and the
// store stays in memory for the rest of the process.
func (s *Store) save(tok *oauth2.Token) {
	if s.repo == nil || s.degraded {
		return
	}
	err := s.repo.SetAll(map[string]string{
		AccessTokenKey:  tok.AccessToken,
		RefreshTokenKey: tok.RefreshToken,
	})
	if err == nil {
		return
	}
	s.degraded = true
	s.logger.Error().Err(err).Msg("Failed to persist session tokens, continuing in memory only")

	// a stale pair left behind would be loaded by the next process
	if err := s.repo.Delete(AccessTokenKey, RefreshTokenKey); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to remove stale persisted session tokens")
	}
}

// remove must be called with persistMu held. Deletes are attempted even
// when degraded.
func (s *Store) remove() {
	if s.repo == nil {
		return
	}
	if err := s.repo.Delete(AccessTokenKey, RefreshTokenKey); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to remove persisted session tokens")
	}
}

// Persistent reports whether token writes still reach durable storage.
func (s *Store) Persistent() bool {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	return s.repo != nil && !s.degraded
}

func withExpiry(tok *oauth2.Token) *oauth2.Token {
	if tok.Expiry.IsZero() {
		if exp, ok := jwt.ExpiresAt(tok.AccessToken); ok {
			tok.Expiry = exp
		}
	}
	return tok
}
