package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dom/streamgate/internal/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI accepts only its current access token and rotates the pair on
// every successful refresh, rejecting reuse of an exchanged refresh token.
type fakeAPI struct {
	mu         sync.Mutex
	generation int
	access     string
	refresh    string

	refreshDelay   time.Duration
	refreshStatus  int
	refreshCalls   atomic.Int64
	dashboardCalls atomic.Int64
	logoutStatus   int
	watchReports   atomic.Int64
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()

	api := &fakeAPI{generation: 1, access: "access-1", refresh: "refresh-1", logoutStatus: http.StatusOK}
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/refresh", api.handleRefresh)
	mux.HandleFunc("/dashboard", api.requireAccess(func(w http.ResponseWriter, r *http.Request) {
		api.dashboardCalls.Add(1)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"videos":     []interface{}{},
			"pagination": map[string]interface{}{"page": 1, "limit": 10, "total": 0, "pages": 1},
		})
	}))
	mux.HandleFunc("/auth/logout", api.requireAccess(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, api.logoutStatus, map[string]string{"error": "boom", "code": "Internal"})
	}))
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid email or password", "code": "InvalidCredentials"})
	})
	mux.HandleFunc("/video/v1/watch", api.requireAccess(func(w http.ResponseWriter, r *http.Request) {
		api.watchReports.Add(1)
		var report client.WatchReport
		_ = json.NewDecoder(r.Body).Decode(&report)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"message":  "watch tracked",
			"progress": map[string]interface{}{"video_id": "v1", "position": report.Position},
			"stats":    map[string]interface{}{"view_count": 1},
		})
	}))
	mux.HandleFunc("/video/missing/info", api.requireAccess(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "video not found", "code": "NotFound"})
	}))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return api, server
}

func (a *fakeAPI) current() client.TokenPair {
	a.mu.Lock()
	defer a.mu.Unlock()
	return client.TokenPair{AccessToken: a.access, RefreshToken: a.refresh}
}

func (a *fakeAPI) requireAccess(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+a.current().AccessToken {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized", "code": "Unauthorized"})
			return
		}
		next(w, r)
	}
}

func (a *fakeAPI) handleRefresh(w http.ResponseWriter, r *http.Request) {
	a.refreshCalls.Add(1)
	time.Sleep(a.refreshDelay)
	if a.refreshStatus != 0 {
		writeJSON(w, a.refreshStatus, map[string]string{"error": http.StatusText(a.refreshStatus), "code": "RateLimited"})
		return
	}

	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	a.mu.Lock()
	defer a.mu.Unlock()
	if body.RefreshToken != a.refresh {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "session has been revoked", "code": "Unauthorized"})
		return
	}
	a.generation++
	a.access = fmt.Sprintf("access-%d", a.generation)
	a.refresh = fmt.Sprintf("refresh-%d", a.generation)
	writeJSON(w, http.StatusOK, client.TokenPair{AccessToken: a.access, RefreshToken: a.refresh})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newClient(t *testing.T, server *httptest.Server, pair client.TokenPair) *client.Client {
	t.Helper()
	session := client.NewSession(client.NewMemoryStore())
	require.NoError(t, session.Save(pair))
	return client.New(server.URL, session)
}

func TestClient_Do_RefreshesOnUnauthorized(t *testing.T) {
	api, server := newFakeAPI(t)
	c := newClient(t, server, client.TokenPair{AccessToken: "expired", RefreshToken: "refresh-1"})

	page, err := c.Dashboard(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Pagination.Page)

	assert.EqualValues(t, 1, api.refreshCalls.Load())
	pair, err := c.Session().Tokens()
	require.NoError(t, err)
	assert.Equal(t, api.current(), pair)
}

func TestClient_Do_CoalescesConcurrentRefreshes(t *testing.T) {
	api, server := newFakeAPI(t)
	api.refreshDelay = 100 * time.Millisecond
	c := newClient(t, server, client.TokenPair{AccessToken: "expired", RefreshToken: "refresh-1"})

	const callers = 20
	start := make(chan struct{})
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := c.Dashboard(context.Background(), 1, 10)
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.EqualValues(t, 1, api.refreshCalls.Load(), "exactly one refresh for concurrent 401s")
	assert.EqualValues(t, callers, api.dashboardCalls.Load())
}

func TestClient_Do_RefreshRejected(t *testing.T) {
	api, server := newFakeAPI(t)
	c := newClient(t, server, client.TokenPair{AccessToken: "expired", RefreshToken: "revoked"})

	_, err := c.Dashboard(context.Background(), 1, 10)
	assert.ErrorIs(t, err, client.ErrSessionExpired)
	assert.EqualValues(t, 1, api.refreshCalls.Load())
	assert.False(t, c.Session().SignedIn(), "tokens cleared")

	// Without tokens nothing is sent.
	_, err = c.Dashboard(context.Background(), 1, 10)
	assert.ErrorIs(t, err, client.ErrSessionExpired)
	assert.EqualValues(t, 1, api.refreshCalls.Load())
}

func TestClient_Do_RefreshSurvivesCanceledCaller(t *testing.T) {
	api, server := newFakeAPI(t)
	api.refreshDelay = 150 * time.Millisecond
	c := newClient(t, server, client.TokenPair{AccessToken: "expired", RefreshToken: "refresh-1"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Dashboard(ctx, 1, 10)
		firstErr <- err
	}()

	time.Sleep(20 * time.Millisecond)
	_, err := c.Dashboard(context.Background(), 1, 10)
	require.NoError(t, err, "a live caller is not failed by another caller's deadline")
	assert.ErrorIs(t, <-firstErr, context.DeadlineExceeded)

	pair, err := c.Session().Tokens()
	require.NoError(t, err)
	assert.Equal(t, api.current(), pair, "rotated pair is saved")

	_, err = c.Dashboard(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, api.refreshCalls.Load())
}

func TestClient_Do_RefreshAfterAbandonedExchange(t *testing.T) {
	api, server := newFakeAPI(t)
	api.refreshDelay = 100 * time.Millisecond
	c := newClient(t, server, client.TokenPair{AccessToken: "expired", RefreshToken: "refresh-1"})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := c.Dashboard(ctx, 1, 10)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.Eventually(t, func() bool {
		pair, err := c.Session().Tokens()
		return err == nil && pair == api.current() && pair.RefreshToken == "refresh-2"
	}, 2*time.Second, 10*time.Millisecond, "exchange finishes in the background")

	_, err = c.Dashboard(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, api.refreshCalls.Load())
	assert.True(t, c.Session().SignedIn())
}

func TestClient_Do_RefreshRateLimitedKeepsTokens(t *testing.T) {
	api, server := newFakeAPI(t)
	api.refreshStatus = http.StatusTooManyRequests
	c := newClient(t, server, client.TokenPair{AccessToken: "expired", RefreshToken: "refresh-1"})

	_, err := c.Dashboard(context.Background(), 1, 10)
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	assert.NotErrorIs(t, err, client.ErrSessionExpired)

	pair, err := c.Session().Tokens()
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", pair.RefreshToken, "tokens survive a rate-limited refresh")
}

func TestClient_Do_RetryStillUnauthorized(t *testing.T) {
	var refreshCalls atomic.Int64

	// A server that hands out tokens it then refuses.
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		writeJSON(w, http.StatusOK, client.TokenPair{AccessToken: "new", RefreshToken: "newer"})
	})
	mux.HandleFunc("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized", "code": "Unauthorized"})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	c := newClient(t, server, client.TokenPair{AccessToken: "old", RefreshToken: "refresh"})
	_, err := c.Me(context.Background())
	assert.ErrorIs(t, err, client.ErrSessionExpired)
	assert.EqualValues(t, 1, refreshCalls.Load(), "at most one retry per request")
	assert.False(t, c.Session().SignedIn())
}

func TestClient_Do_OtherErrorsAreTerminal(t *testing.T) {
	api, server := newFakeAPI(t)
	c := newClient(t, server, api.current())

	_, err := c.VideoInfo(context.Background(), "missing")
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "NotFound", apiErr.Code)
	assert.Equal(t, "video not found", apiErr.Message)
	assert.EqualValues(t, 0, api.refreshCalls.Load())
}

func TestClient_Login_UnauthorizedDoesNotRefresh(t *testing.T) {
	api, server := newFakeAPI(t)
	c := newClient(t, server, api.current())

	_, err := c.Login(context.Background(), "a@example.com", "wrong")
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "InvalidCredentials", apiErr.Code)
	assert.EqualValues(t, 0, api.refreshCalls.Load())
	assert.True(t, c.Session().SignedIn(), "stored tokens untouched")
}

func TestClient_Logout_ClearsTokensOnServerFailure(t *testing.T) {
	api, server := newFakeAPI(t)
	api.logoutStatus = http.StatusInternalServerError
	c := newClient(t, server, api.current())

	err := c.Logout(context.Background())
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.False(t, c.Session().SignedIn())
}

func TestClient_StreamURL(t *testing.T) {
	c := client.New("http://localhost:8080/", client.NewSession(client.NewMemoryStore()))
	assert.Equal(t,
		"http://localhost:8080/video/abc/stream?token=a.b%2Bc",
		c.StreamURL("abc", "a.b+c"))
}

func TestWatchReporter_FinishReportsOnce(t *testing.T) {
	api, server := newFakeAPI(t)
	c := newClient(t, server, api.current())

	reporter := c.NewWatchReporter("v1", 600)
	reporter.UpdatePosition(30)
	reporter.UpdatePosition(75.5)

	var wg sync.WaitGroup
	results := make([]*client.WatchResult, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := reporter.Finish(context.Background())
			assert.NoError(t, err)
			results[i] = result
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, api.watchReports.Load())
	require.NotNil(t, results[0])
	assert.Same(t, results[0], results[1])
	assert.Equal(t, 75.5, results[0].Progress.Position)
}
