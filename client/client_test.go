package client_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/flowcraft-client/authmodel"
	"github.com/jrsteele09/flowcraft-client/client"
	"github.com/jrsteele09/flowcraft-client/internal/utils"
	"github.com/jrsteele09/flowcraft-client/sessions"
	"github.com/jrsteele09/flowcraft-client/sessions/repofakes"
	"github.com/jrsteele09/flowcraft-client/users"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	apiPrefix        = "/api/v1"
	testUserEmail    = "john.doe@example.com"
	testUserPassword = "password123"
)

var testProfile = users.Profile{
	ID:               "user-1",
	Email:            testUserEmail,
	FirstName:        "John",
	LastName:         "Doe",
	IsActive:         true,
	SubscriptionTier: users.TierPro,
	CreatedAt:        time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
}

// recordedCall is one request as the backend saw it.
type recordedCall struct {
	Method        string
	Path          string
	Authorization string
	Body          []byte
}

// fakeBackend routes "METHOD /path" to scripted handlers and records every call.
type fakeBackend struct {
	mu       sync.Mutex
	calls    []recordedCall
	handlers map[string]http.HandlerFunc
}

func (b *fakeBackend) handle(pattern string, h http.HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[pattern] = h
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	path := r.URL.Path[len(apiPrefix):]

	b.mu.Lock()
	b.calls = append(b.calls, recordedCall{
		Method:        r.Method,
		Path:          path,
		Authorization: r.Header.Get("Authorization"),
		Body:          body,
	})
	h, ok := b.handlers[r.Method+" "+path]
	b.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, authmodel.ErrorResponse{Detail: "Not Found"})
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	h(w, r)
}

func (b *fakeBackend) Calls() []recordedCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]recordedCall(nil), b.calls...)
}

func (b *fakeBackend) CallsTo(method, path string) []recordedCall {
	var matched []recordedCall
	for _, c := range b.Calls() {
		if c.Method == method && c.Path == path {
			matched = append(matched, c)
		}
	}
	return matched
}

type testFixture struct {
	backend *fakeBackend
	server  *httptest.Server
	repo    *repofakes.FakeSessionRepo
	store   *sessions.Store
	client  *client.Client
	events  *eventLog
}

type eventLog struct {
	mu     sync.Mutex
	events []sessions.Event
}

func (l *eventLog) record(e sessions.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) causes() []sessions.Cause {
	l.mu.Lock()
	defer l.mu.Unlock()
	causes := make([]sessions.Cause, 0, len(l.events))
	for _, e := range l.events {
		causes = append(causes, e.Cause)
	}
	return causes
}

func setupTestFixture(t *testing.T, opts ...client.Option) *testFixture {
	t.Helper()

	backend := &fakeBackend{handlers: make(map[string]http.HandlerFunc)}
	server := httptest.NewServer(backend)
	t.Cleanup(server.Close)

	repo := repofakes.NewFakeSessionRepo()
	store := sessions.NewStore(repo, sessions.WithLogger(zerolog.Nop()))
	events := &eventLog{}
	store.Subscribe(events.record)

	opts = append([]client.Option{client.WithLogger(zerolog.Nop())}, opts...)
	return &testFixture{
		backend: backend,
		server:  server,
		repo:    repo,
		store:   store,
		client:  client.New(server.URL+apiPrefix, store, opts...),
		events:  events,
	}
}

// seedSession puts the fixture in the Authenticated state without a login round trip.
func (f *testFixture) seedSession(access, refresh string) {
	f.store.SetTokens(access, refresh)
	p := testProfile
	f.store.SetUser(&p)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func tokensHandler(access, refresh string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, authmodel.TokenResponse{AccessToken: access, RefreshToken: refresh, TokenType: "bearer", ExpiresIn: 1800})
	}
}

func profileHandler(t *testing.T, wantAccess string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+wantAccess {
			writeJSON(w, http.StatusUnauthorized, authmodel.ErrorResponse{Detail: "Could not validate credentials"})
			return
		}
		writeJSON(w, http.StatusOK, testProfile)
	}
}

func detailHandler(status int, detail string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, status, authmodel.ErrorResponse{Detail: detail})
	}
}

func TestNew_Defaults(t *testing.T) {
	store := sessions.NewStore(nil)
	c := client.New("https://api.flowcraft.test/api/v1", store)

	require.Equal(t, "https://api.flowcraft.test/api/v1", c.BaseURL())
	require.Same(t, store, c.Session())
	require.Equal(t, sessions.Unauthenticated, c.Status())
}

func TestLogin(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		f := setupTestFixture(t)
		f.backend.handle("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
			var req authmodel.LoginRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			if req.Email != testUserEmail || req.Password != testUserPassword {
				writeJSON(w, http.StatusUnauthorized, authmodel.ErrorResponse{Detail: "Incorrect email or password"})
				return
			}
			tokensHandler("A1", "R1")(w, r)
		})
		f.backend.handle("GET /auth/profile", profileHandler(t, "A1"))

		profile, err := f.client.Login(context.Background(), testUserEmail, testUserPassword)
		require.NoError(t, err)
		require.Equal(t, testProfile, *profile)

		access, ok := f.store.AccessToken()
		require.True(t, ok)
		require.Equal(t, "A1", access)
		require.Equal(t, sessions.Authenticated, f.client.Status())
		require.Equal(t, testProfile, *f.store.User())
		require.Equal(t, "A1", f.repo.Values()[sessions.AccessTokenKey])

		login := f.backend.CallsTo(http.MethodPost, "/auth/login")
		require.Len(t, login, 1)
		require.Empty(t, login[0].Authorization, "login is unauthenticated")

		tok, err := f.store.Token()
		require.NoError(t, err)
		require.False(t, tok.Expiry.IsZero(), "expires_in is carried into the stored token")
	})

	t.Run("invalid credentials", func(t *testing.T) {
		f := setupTestFixture(t)
		f.backend.handle("POST /auth/login", detailHandler(http.StatusUnauthorized, "Incorrect email or password"))

		_, err := f.client.Login(context.Background(), testUserEmail, "wrong")
		require.ErrorIs(t, err, client.ErrInvalidCredentials)
		require.Contains(t, err.Error(), "Incorrect email or password")
		require.NotErrorIs(t, err, client.ErrSessionExpired)

		require.Equal(t, sessions.Unauthenticated, f.client.Status())
		require.Empty(t, f.backend.CallsTo(http.MethodPost, "/auth/refresh"), "a rejected login never refreshes")
	})

	t.Run("validation rejection", func(t *testing.T) {
		f := setupTestFixture(t)
		f.backend.handle("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": []map[string]string{{"msg": "value is not a valid email address"}}})
		})

		_, err := f.client.Login(context.Background(), "not-an-email", "x")
		require.ErrorIs(t, err, client.ErrInvalidCredentials)
		require.Contains(t, err.Error(), "value is not a valid email address")
	})

	t.Run("server error", func(t *testing.T) {
		f := setupTestFixture(t)
		f.backend.handle("POST /auth/login", detailHandler(http.StatusInternalServerError, "Login failed: db down"))

		_, err := f.client.Login(context.Background(), testUserEmail, testUserPassword)
		require.ErrorIs(t, err, client.ErrServer)
		require.NotErrorIs(t, err, client.ErrInvalidCredentials)

		serverErr, ok := client.AsServerError(err)
		require.True(t, ok)
		require.Equal(t, http.StatusInternalServerError, serverErr.StatusCode)
		require.Equal(t, "Login failed: db down", serverErr.Message)
	})

	t.Run("network error", func(t *testing.T) {
		f := setupTestFixture(t)
		f.server.Close()

		_, err := f.client.Login(context.Background(), testUserEmail, testUserPassword)
		require.ErrorIs(t, err, client.ErrNetwork)
		var netErr *client.NetworkError
		require.ErrorAs(t, err, &netErr)
		require.Equal(t, sessions.Unauthenticated, f.client.Status())
	})

	t.Run("profile failure rolls tokens back", func(t *testing.T) {
		f := setupTestFixture(t)
		f.backend.handle("POST /auth/login", tokensHandler("A1", "R1"))
		f.backend.handle("GET /auth/profile", detailHandler(http.StatusInternalServerError, "boom"))

		_, err := f.client.Login(context.Background(), testUserEmail, testUserPassword)
		require.ErrorIs(t, err, client.ErrServer)

		_, ok := f.store.AccessToken()
		require.False(t, ok)
		_, ok = f.store.RefreshToken()
		require.False(t, ok)
		require.Empty(t, f.repo.Values())
		require.Equal(t, sessions.Unauthenticated, f.client.Status())
		require.Len(t, f.backend.CallsTo(http.MethodGet, "/auth/profile"), 1, "the profile fetch has no recovery of its own")
		require.Empty(t, f.backend.CallsTo(http.MethodPost, "/auth/refresh"))
	})

	t.Run("missing tokens in response", func(t *testing.T) {
		f := setupTestFixture(t)
		f.backend.handle("POST /auth/login", tokensHandler("A1", ""))

		_, err := f.client.Login(context.Background(), testUserEmail, testUserPassword)
		require.ErrorIs(t, err, client.ErrServer)
		_, ok := f.store.AccessToken()
		require.False(t, ok)
	})

	t.Run("transitions through authenticating", func(t *testing.T) {
		f := setupTestFixture(t)
		f.backend.handle("POST /auth/login", tokensHandler("A1", "R1"))

		during := make(chan sessions.Status, 1)
		f.backend.handle("GET /auth/profile", func(w http.ResponseWriter, r *http.Request) {
			during <- f.store.Status()
			profileHandler(t, "A1")(w, r)
		})

		_, err := f.client.Login(context.Background(), testUserEmail, testUserPassword)
		require.NoError(t, err)
		require.Equal(t, sessions.Authenticating, <-during)
		require.Equal(t, sessions.Authenticated, f.client.Status())
	})
}

func TestLogout(t *testing.T) {
	f := setupTestFixture(t)
	f.seedSession("A1", "R1")

	f.client.Logout()

	_, ok := f.store.AccessToken()
	require.False(t, ok)
	_, ok = f.store.RefreshToken()
	require.False(t, ok)
	require.Nil(t, f.store.User())
	require.Equal(t, sessions.Unauthenticated, f.client.Status())
	require.Empty(t, f.repo.Values())
	require.Equal(t, sessions.CauseLogout, f.events.causes()[len(f.events.causes())-1])
	require.Empty(t, f.backend.Calls(), "logout makes no network call")

	// logging out twice is harmless
	f.client.Logout()
	require.Equal(t, sessions.Unauthenticated, f.client.Status())
}

func TestCheckSession(t *testing.T) {
	t.Run("valid token", func(t *testing.T) {
		f := setupTestFixture(t)
		f.store.SetTokens("A1", "R1")
		f.backend.handle("POST /auth/test-token", func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "Bearer A1", r.Header.Get("Authorization"))
			writeJSON(w, http.StatusOK, authmodel.TokenValidation{Valid: true, UserID: "user-1"})
		})
		f.backend.handle("GET /auth/profile", profileHandler(t, "A1"))

		require.True(t, f.client.CheckSession(context.Background()))
		require.Equal(t, sessions.Authenticated, f.client.Status())
		require.Equal(t, testProfile.ID, f.store.User().ID)
	})

	t.Run("reported invalid", func(t *testing.T) {
		f := setupTestFixture(t)
		f.store.SetTokens("A1", "R1")
		f.backend.handle("POST /auth/test-token", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, authmodel.TokenValidation{Valid: false})
		})

		require.False(t, f.client.CheckSession(context.Background()))
		_, ok := f.store.AccessToken()
		require.False(t, ok)
		require.Equal(t, sessions.Unauthenticated, f.client.Status())
	})

	t.Run("unauthorized does not refresh", func(t *testing.T) {
		f := setupTestFixture(t)
		f.store.SetTokens("A1", "R1")
		f.backend.handle("POST /auth/test-token", detailHandler(http.StatusUnauthorized, "Could not validate credentials"))
		f.backend.handle("POST /auth/refresh", tokensHandler("A2", "R2"))

		require.False(t, f.client.CheckSession(context.Background()))
		require.Empty(t, f.backend.CallsTo(http.MethodPost, "/auth/refresh"))
		_, ok := f.store.RefreshToken()
		require.False(t, ok)
		require.Contains(t, f.events.causes(), sessions.CauseExpired)
	})

	t.Run("profile failure", func(t *testing.T) {
		f := setupTestFixture(t)
		f.store.SetTokens("A1", "R1")
		f.backend.handle("POST /auth/test-token", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, authmodel.TokenValidation{Valid: true})
		})
		f.backend.handle("GET /auth/profile", detailHandler(http.StatusInternalServerError, "boom"))

		require.False(t, f.client.CheckSession(context.Background()))
		require.Equal(t, sessions.Unauthenticated, f.client.Status())
		_, ok := f.store.AccessToken()
		require.False(t, ok)
	})

	t.Run("network error", func(t *testing.T) {
		f := setupTestFixture(t)
		f.store.SetTokens("A1", "R1")
		f.server.Close()

		require.False(t, f.client.CheckSession(context.Background()))
		_, ok := f.store.AccessToken()
		require.False(t, ok)
	})

	t.Run("no stored token", func(t *testing.T) {
		f := setupTestFixture(t)

		require.False(t, f.client.CheckSession(context.Background()))
		require.Empty(t, f.backend.Calls())
	})
}

func TestRegister(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.handle("POST /auth/register", func(w http.ResponseWriter, r *http.Request) {
		var req authmodel.RegisterRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "Jane", req.FirstName)
		writeJSON(w, http.StatusOK, users.Profile{ID: "user-2", Email: req.Email, FirstName: req.FirstName, LastName: req.LastName, SubscriptionTier: users.TierFree})
	})

	profile, err := f.client.Register(context.Background(), authmodel.RegisterRequest{
		Email: "jane@example.com", Password: "password123", FirstName: "Jane", LastName: "Doe",
	})
	require.NoError(t, err)
	require.Equal(t, "user-2", profile.ID)
	require.Equal(t, sessions.Unauthenticated, f.client.Status(), "registering does not log in")

	f.backend.handle("POST /auth/register", detailHandler(http.StatusBadRequest, "Email already registered"))
	_, err = f.client.Register(context.Background(), authmodel.RegisterRequest{Email: "jane@example.com"})
	require.ErrorIs(t, err, client.ErrServer)
	require.Contains(t, err.Error(), "Email already registered")
}

func TestProfileAndUpdateProfile(t *testing.T) {
	f := setupTestFixture(t)
	f.seedSession("A1", "R1")

	updated := testProfile
	updated.FirstName = "Johnny"

	f.backend.handle("GET /auth/profile", profileHandler(t, "A1"))
	f.backend.handle("PUT /auth/profile", func(w http.ResponseWriter, r *http.Request) {
		var update users.ProfileUpdate
		require.NoError(t, json.NewDecoder(r.Body).Decode(&update))
		require.NotNil(t, update.FirstName)
		require.Nil(t, update.LastName)
		writeJSON(w, http.StatusOK, updated)
	})

	profile, err := f.client.Profile(context.Background())
	require.NoError(t, err)
	require.Equal(t, testProfile.ID, profile.ID)

	profile, err = f.client.UpdateProfile(context.Background(), users.ProfileUpdate{FirstName: utils.Ptr("Johnny")})
	require.NoError(t, err)
	require.Equal(t, "Johnny", profile.FirstName)
	require.Equal(t, "Johnny", f.store.User().FirstName)
}
