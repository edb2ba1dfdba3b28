package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/flowcraft-client/authmodel"
	"github.com/jrsteele09/flowcraft-client/client"
	"github.com/jrsteele09/flowcraft-client/sessions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// workflowsHandler accepts exactly one access token.
func workflowsHandler(validAccess string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+validAccess {
			writeJSON(w, http.StatusUnauthorized, authmodel.ErrorResponse{Detail: "Could not validate credentials"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"workflows": []string{"wf-1", "wf-2"}})
	}
}

func refreshHandler(t *testing.T, wantRefresh, access, refresh string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req authmodel.RefreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken != wantRefresh {
			writeJSON(w, http.StatusUnauthorized, authmodel.ErrorResponse{Detail: "Invalid refresh token"})
			return
		}
		tokensHandler(access, refresh)(w, r)
	}
}

func TestRequest_AttachesBearer(t *testing.T) {
	f := setupTestFixture(t)
	f.seedSession("A1", "R1")
	f.backend.handle("GET /workflows", workflowsHandler("A1"))

	resp, err := f.client.Request(context.Background(), http.MethodGet, "/workflows", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	calls := f.backend.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, "Bearer A1", calls[0].Authorization)
}

func TestRequest_WithoutSessionSendsNoBearer(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.handle("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	_, err := f.client.Request(context.Background(), http.MethodGet, "/health", nil)
	require.NoError(t, err)
	require.Empty(t, f.backend.Calls()[0].Authorization)
}

func TestRequest_SendsJSONBody(t *testing.T) {
	f := setupTestFixture(t)
	f.seedSession("A1", "R1")

	gotContentType := make(chan string, 1)
	f.backend.handle("POST /workflows", func(w http.ResponseWriter, r *http.Request) {
		gotContentType <- r.Header.Get("Content-Type")
		writeJSON(w, http.StatusCreated, map[string]string{"id": "wf-3"})
	})

	var created struct {
		ID string `json:"id"`
	}
	err := f.client.Do(context.Background(), http.MethodPost, "/workflows", map[string]string{"name": "nightly"}, &created)
	require.NoError(t, err)
	require.Equal(t, "wf-3", created.ID)
	require.Equal(t, "application/json", <-gotContentType)
	require.JSONEq(t, `{"name":"nightly"}`, string(f.backend.Calls()[0].Body))
}

// The documented recovery scenario: A1 is rejected, R1 is exchanged for
// (A2, R2), and the original call is replayed once with A2.
func TestRequest_RefreshesAndRetriesOnce(t *testing.T) {
	f := setupTestFixture(t)
	f.seedSession("A1", "R1")
	f.backend.handle("GET /workflows", workflowsHandler("A2"))
	f.backend.handle("POST /auth/refresh", refreshHandler(t, "R1", "A2", "R2"))

	var result map[string]any
	err := f.client.Do(context.Background(), http.MethodGet, "/workflows", nil, &result)
	require.NoError(t, err)
	require.Contains(t, result, "workflows")

	calls := f.backend.Calls()
	require.Len(t, calls, 3)
	require.Equal(t, http.MethodGet, calls[0].Method)
	require.Equal(t, "/workflows", calls[0].Path)
	require.Equal(t, "Bearer A1", calls[0].Authorization)
	require.Equal(t, http.MethodPost, calls[1].Method)
	require.Equal(t, "/auth/refresh", calls[1].Path)
	require.Empty(t, calls[1].Authorization, "the refresh call carries only the refresh token")
	require.JSONEq(t, `{"refresh_token":"R1"}`, string(calls[1].Body))
	require.Equal(t, "Bearer A2", calls[2].Authorization)

	access, refresh, ok := f.store.Tokens()
	require.True(t, ok)
	require.Equal(t, "A2", access)
	require.Equal(t, "R2", refresh)
	require.Equal(t, "A2", f.repo.Values()[sessions.AccessTokenKey])
	require.Equal(t, "R2", f.repo.Values()[sessions.RefreshTokenKey])
	require.Equal(t, sessions.Authenticated, f.client.Status())
}

func TestRequest_RetryPreservesMethodAndBody(t *testing.T) {
	f := setupTestFixture(t)
	f.seedSession("A1", "R1")
	f.backend.handle("POST /auth/refresh", refreshHandler(t, "R1", "A2", "R2"))
	f.backend.handle("PUT /workflows/wf-1", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer A2" {
			writeJSON(w, http.StatusUnauthorized, authmodel.ErrorResponse{Detail: "expired"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"id": "wf-1"})
	})

	_, err := f.client.Request(context.Background(), http.MethodPut, "/workflows/wf-1", map[string]bool{"enabled": true})
	require.NoError(t, err)

	puts := f.backend.CallsTo(http.MethodPut, "/workflows/wf-1")
	require.Len(t, puts, 2)
	require.Equal(t, puts[0].Body, puts[1].Body)
	require.JSONEq(t, `{"enabled":true}`, string(puts[1].Body))
}

func TestRequest_RetryRejectedAgainDoesNotRefreshTwice(t *testing.T) {
	f := setupTestFixture(t)
	f.seedSession("A1", "R1")
	f.backend.handle("GET /admin", detailHandler(http.StatusUnauthorized, "Not allowed"))
	f.backend.handle("POST /auth/refresh", refreshHandler(t, "R1", "A2", "R2"))

	_, err := f.client.Request(context.Background(), http.MethodGet, "/admin", nil)
	require.Error(t, err)
	require.NotErrorIs(t, err, client.ErrSessionExpired)

	serverErr, ok := client.AsServerError(err)
	require.True(t, ok)
	require.True(t, serverErr.IsUnauthorized())
	require.Equal(t, "Not allowed", serverErr.Message)

	require.Len(t, f.backend.CallsTo(http.MethodPost, "/auth/refresh"), 1)
	require.Len(t, f.backend.CallsTo(http.MethodGet, "/admin"), 2)

	// the refresh itself succeeded, so the session stands
	access, ok := f.store.AccessToken()
	require.True(t, ok)
	require.Equal(t, "A2", access)
}

func TestRequest_RefreshFailureExpiresSession(t *testing.T) {
	tests := []struct {
		name    string
		refresh http.HandlerFunc
	}{
		{
			name:    "refresh token rejected",
			refresh: detailHandler(http.StatusUnauthorized, "Invalid refresh token"),
		},
		{
			name:    "server error",
			refresh: detailHandler(http.StatusInternalServerError, "Token refresh failed"),
		},
		{
			name:    "incomplete response",
			refresh: tokensHandler("A2", ""),
		},
		{
			name: "malformed response",
			refresh: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("<html>gateway</html>"))
			},
		},
		{
			name: "connection dropped",
			refresh: func(w http.ResponseWriter, r *http.Request) {
				hj, ok := w.(http.Hijacker)
				if !ok {
					panic("response writer cannot hijack")
				}
				conn, _, err := hj.Hijack()
				if err == nil {
					_ = conn.Close()
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestFixture(t)
			f.seedSession("A1", "R1")
			f.backend.handle("GET /workflows", workflowsHandler("A2"))
			f.backend.handle("POST /auth/refresh", tt.refresh)

			_, err := f.client.Request(context.Background(), http.MethodGet, "/workflows", nil)
			require.ErrorIs(t, err, client.ErrSessionExpired)
			require.NotErrorIs(t, err, client.ErrNetwork, "a failed refresh is always reported as an expired session")

			_, ok := f.store.AccessToken()
			require.False(t, ok)
			_, ok = f.store.RefreshToken()
			require.False(t, ok)
			require.Nil(t, f.store.User())
			require.Empty(t, f.repo.Values())
			require.Equal(t, sessions.Unauthenticated, f.client.Status())
			require.Contains(t, f.events.causes(), sessions.CauseExpired)

			require.Len(t, f.backend.CallsTo(http.MethodPost, "/auth/refresh"), 1, "refresh is never retried")
			require.Len(t, f.backend.CallsTo(http.MethodGet, "/workflows"), 1, "the original call is not replayed")
		})
	}
}

func TestRequest_NoRefreshTokenExpiresWithoutCallingRefresh(t *testing.T) {
	f := setupTestFixture(t)
	f.store.SetTokens("A1", "")
	f.backend.handle("GET /workflows", workflowsHandler("A2"))

	_, err := f.client.Request(context.Background(), http.MethodGet, "/workflows", nil)
	require.ErrorIs(t, err, client.ErrSessionExpired)
	require.Empty(t, f.backend.CallsTo(http.MethodPost, "/auth/refresh"))
	_, ok := f.store.AccessToken()
	require.False(t, ok)
}

func TestRequest_OtherFailuresLeaveSessionAlone(t *testing.T) {
	tests := []struct {
		name   string
		status int
		detail string
	}{
		{name: "bad request", status: http.StatusBadRequest, detail: "Invalid workflow"},
		{name: "forbidden", status: http.StatusForbidden, detail: "Upgrade to pro"},
		{name: "not found", status: http.StatusNotFound, detail: "Workflow not found"},
		{name: "server error", status: http.StatusInternalServerError, detail: "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestFixture(t)
			f.seedSession("A1", "R1")
			f.backend.handle("GET /workflows/wf-9", detailHandler(tt.status, tt.detail))

			_, err := f.client.Request(context.Background(), http.MethodGet, "/workflows/wf-9", nil)
			require.ErrorIs(t, err, client.ErrServer)
			require.NotErrorIs(t, err, client.ErrSessionExpired)

			serverErr, ok := client.AsServerError(err)
			require.True(t, ok)
			require.Equal(t, tt.status, serverErr.StatusCode)
			require.Equal(t, tt.detail, serverErr.Message)

			access, refresh, ok := f.store.Tokens()
			require.True(t, ok)
			require.Equal(t, "A1", access)
			require.Equal(t, "R1", refresh)
			require.Equal(t, sessions.Authenticated, f.client.Status())
			require.Empty(t, f.backend.CallsTo(http.MethodPost, "/auth/refresh"))
		})
	}
}

func TestRequest_NetworkErrorLeavesSessionAlone(t *testing.T) {
	f := setupTestFixture(t)
	f.seedSession("A1", "R1")
	f.server.Close()

	_, err := f.client.Request(context.Background(), http.MethodGet, "/workflows", nil)
	require.ErrorIs(t, err, client.ErrNetwork)
	require.NotErrorIs(t, err, client.ErrSessionExpired)

	access, ok := f.store.AccessToken()
	require.True(t, ok)
	require.Equal(t, "A1", access)
}

func TestRequest_ContextCancelled(t *testing.T) {
	f := setupTestFixture(t)
	f.seedSession("A1", "R1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.client.Request(ctx, http.MethodGet, "/workflows", nil)
	require.ErrorIs(t, err, client.ErrNetwork)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, sessions.Authenticated, f.client.Status())
}

func TestRequest_QueryStringIsKept(t *testing.T) {
	f := setupTestFixture(t)
	f.seedSession("A1", "R1")

	gotQuery := make(chan string, 1)
	f.backend.handle("GET /workflows", func(w http.ResponseWriter, r *http.Request) {
		gotQuery <- r.URL.RawQuery
		writeJSON(w, http.StatusOK, map[string]any{})
	})

	_, err := f.client.Request(context.Background(), http.MethodGet, "/workflows?limit=10&offset=20", nil)
	require.NoError(t, err)
	require.Equal(t, "limit=10&offset=20", <-gotQuery)
}

func TestRequest_PathWithoutLeadingSlash(t *testing.T) {
	f := setupTestFixture(t)
	f.seedSession("A1", "R1")

	gotQuery := make(chan string, 1)
	f.backend.handle("GET /workflows", func(w http.ResponseWriter, r *http.Request) {
		gotQuery <- r.URL.RawQuery
		writeJSON(w, http.StatusOK, map[string]any{})
	})

	_, err := f.client.Request(context.Background(), http.MethodGet, "workflows?limit=5", nil)
	require.NoError(t, err)
	require.Equal(t, "limit=5", <-gotQuery)

	_, err = f.client.Request(context.Background(), http.MethodGet, "workflows", nil)
	require.NoError(t, err)
	require.Equal(t, "", <-gotQuery)
}

// Two calls that hold the same expired token each run their own refresh.
func TestRequest_ConcurrentCallsRefreshIndependently(t *testing.T) {
	f := setupTestFixture(t)
	f.seedSession("A1", "R1")

	var arrived sync.WaitGroup
	arrived.Add(2)
	var refreshes atomic.Int32

	f.backend.handle("GET /workflows", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer A1" {
			// hold both stale calls until each has been seen
			arrived.Done()
			waitTimeout(&arrived, 5*time.Second)
			writeJSON(w, http.StatusUnauthorized, authmodel.ErrorResponse{Detail: "expired"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{})
	})
	f.backend.handle("POST /auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		n := refreshes.Add(1)
		suffix := string(rune('1' + n))
		tokensHandler("A"+suffix, "R"+suffix)(w, r)
	})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.client.Request(context.Background(), http.MethodGet, "/workflows", nil)
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	require.EqualValues(t, 2, refreshes.Load())

	access, refresh, ok := f.store.Tokens()
	require.True(t, ok)
	require.Equal(t, access[1:], refresh[1:], "the stored pair is never torn")
}

func waitTimeout(wg *sync.WaitGroup, timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
	}
}

func TestRequest_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := setupTestFixture(t, client.WithMetrics(reg))
	f.seedSession("A1", "R1")
	f.backend.handle("GET /workflows", workflowsHandler("A2"))
	f.backend.handle("POST /auth/refresh", refreshHandler(t, "R1", "A2", "R2"))
	f.backend.handle("DELETE /workflows/wf-1", detailHandler(http.StatusNotFound, "Workflow not found"))

	_, err := f.client.Request(context.Background(), http.MethodGet, "/workflows", nil)
	require.NoError(t, err)
	_, err = f.client.Request(context.Background(), http.MethodDelete, "/workflows/wf-1", nil)
	require.ErrorIs(t, err, client.ErrServer)

	// a second client on the same registry shares the collectors
	client.New(f.server.URL+apiPrefix, f.store, client.WithMetrics(reg))

	expected := `
# HELP flowcraft_client_refresh_total Token refresh attempts by outcome.
# TYPE flowcraft_client_refresh_total counter
flowcraft_client_refresh_total{outcome="success"} 1
# HELP flowcraft_client_requests_total Authenticated requests by method and final outcome.
# TYPE flowcraft_client_requests_total counter
flowcraft_client_requests_total{method="DELETE",outcome="server_error"} 1
flowcraft_client_requests_total{method="GET",outcome="ok"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"flowcraft_client_refresh_total", "flowcraft_client_requests_total"))
}

func TestRequest_MetricsOnExpiry(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := setupTestFixture(t, client.WithMetrics(reg))
	f.seedSession("A1", "R1")
	f.backend.handle("GET /workflows", workflowsHandler("A2"))
	f.backend.handle("POST /auth/refresh", detailHandler(http.StatusUnauthorized, "Invalid refresh token"))

	_, err := f.client.Request(context.Background(), http.MethodGet, "/workflows", nil)
	require.ErrorIs(t, err, client.ErrSessionExpired)

	expected := `
# HELP flowcraft_client_session_expired_total Sessions cleared because a 401 could not be recovered.
# TYPE flowcraft_client_session_expired_total counter
flowcraft_client_session_expired_total 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "flowcraft_client_session_expired_total"))
	count, err := testutil.GatherAndCount(reg, "flowcraft_client_requests_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}
