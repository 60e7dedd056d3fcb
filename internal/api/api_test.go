package api

import (
	"context"
	"encoding/json"
	"errors"
	"humidcast/internal/logger"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUpstream mimics the telemetry API: one login route, the catalog root and
// the averages route. Tokens are numbered per login.
type fakeUpstream struct {
	logins      atomic.Int32
	loginStatus atomic.Int32

	mu       sync.Mutex
	rejected map[string]bool
	catalog  string
	averages map[string]string // sensor id -> raw JSON body
	lastAuth string
}

func newFakeUpstream(t *testing.T) (*fakeUpstream, *httptest.Server) {
	f := &fakeUpstream{
		rejected: map[string]bool{},
		averages: map[string]string{},
	}
	f.loginStatus.Store(http.StatusOK)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", f.handleLogin)
	mux.HandleFunc("GET /{$}", f.handleCatalog)
	mux.HandleFunc("GET /averages", f.handleAverages)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeUpstream) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username != "prediction_user" || req.Password != "secret" {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	if status := int(f.loginStatus.Load()); status != http.StatusOK {
		http.Error(w, "login unavailable", status)
		return
	}
	n := f.logins.Add(1)
	_ = json.NewEncoder(w).Encode(map[string]string{"token": "token-" + strconv.Itoa(int(n))})
}

func (f *fakeUpstream) authorized(w http.ResponseWriter, r *http.Request) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	auth := r.Header.Get("Authorization")
	f.lastAuth = auth
	if auth == "" || f.rejected[auth] {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return false
	}
	return true
}

func (f *fakeUpstream) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(w, r) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	_, _ = w.Write([]byte(f.catalog))
}

func (f *fakeUpstream) handleAverages(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(w, r) {
		return
	}
	id := r.URL.Query().Get("unique_identifiers")
	f.mu.Lock()
	body, ok := f.averages[id]
	f.mu.Unlock()
	if !ok {
		_, _ = w.Write([]byte(`{"labels":{}}`))
		return
	}
	_, _ = w.Write([]byte(body))
}

func (f *fakeUpstream) setCatalog(body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.catalog = body
}

func (f *fakeUpstream) setAverages(sensorID, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.averages[sensorID] = body
}

func (f *fakeUpstream) reject(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejected["Bearer "+token] = true
}

func (f *fakeUpstream) lastAuthorization() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastAuth
}

func newTestSession(srv *httptest.Server, password string) *Session {
	return NewSession(srv.URL, "prediction_user", password, srv.Client(), logger.Discard())
}

func TestSession_AcquireCachesToken(t *testing.T) {
	f, srv := newFakeUpstream(t)
	s := newTestSession(srv, "secret")

	tok1, err := s.Acquire(context.Background())
	require.NoError(t, err)
	tok2, err := s.Acquire(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "token-1", tok1)
	assert.Equal(t, tok1, tok2)
	assert.EqualValues(t, 1, f.logins.Load())
}

func TestSession_InvalidateForcesLogin(t *testing.T) {
	f, srv := newFakeUpstream(t)
	s := newTestSession(srv, "secret")

	tok1, err := s.Acquire(context.Background())
	require.NoError(t, err)

	s.Invalidate(tok1)
	tok2, err := s.Acquire(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "token-2", tok2)
	assert.EqualValues(t, 2, f.logins.Load())
}

func TestSession_StaleInvalidateIgnored(t *testing.T) {
	f, srv := newFakeUpstream(t)
	s := newTestSession(srv, "secret")

	tok1, _ := s.Acquire(context.Background())
	s.Invalidate(tok1)
	tok2, _ := s.Acquire(context.Background())

	// a worker still holding tok1 reports it late
	s.Invalidate(tok1)
	tok3, err := s.Acquire(context.Background())
	require.NoError(t, err)

	assert.Equal(t, tok2, tok3)
	assert.EqualValues(t, 2, f.logins.Load())
}

func TestSession_ConcurrentAcquireLogsInOnce(t *testing.T) {
	f, srv := newFakeUpstream(t)
	s := newTestSession(srv, "secret")

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Acquire(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, f.logins.Load())
}

func TestSession_LoginFailures(t *testing.T) {
	tests := []struct {
		name     string
		password string
		status   int
	}{
		{name: "bad credentials", password: "wrong", status: http.StatusOK},
		{name: "server error", password: "secret", status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, srv := newFakeUpstream(t)
			f.loginStatus.Store(int32(tt.status))
			s := newTestSession(srv, tt.password)

			_, err := s.Acquire(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrAuth)

			var statusErr *StatusError
			assert.True(t, errors.As(err, &statusErr))
		})
	}
}

func TestSession_TransportFailure(t *testing.T) {
	_, srv := newFakeUpstream(t)
	s := newTestSession(srv, "secret")
	srv.Close()

	_, err := s.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrAuth)
}

func TestSession_MissingToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()
	s := newTestSession(srv, "secret")

	_, err := s.Acquire(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuth)
	assert.Contains(t, err.Error(), "does not contain a token")
}
