package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"humidcast/internal/metrics"
	"humidcast/internal/models"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Session owns the upstream bearer credential. It logs in lazily with the
// configured principal and again after a consumer reports the token rejected.
type Session struct {
	baseURL  string
	username string
	password string
	client   *http.Client
	logger   *slog.Logger

	mu    sync.Mutex
	token string
}

// NewSession creates a session manager for the telemetry API at baseURL
func NewSession(baseURL, username, password string, client *http.Client, logger *slog.Logger) *Session {
	return &Session{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		client:   client,
		logger:   logger,
	}
}

// Acquire returns the held credential, logging in first if there is none.
// Concurrent callers wait for a single login.
func (s *Session) Acquire(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" {
		return s.token, nil
	}

	token, err := s.login(ctx)
	if err != nil {
		return "", err
	}
	s.token = token
	s.logger.Info("authenticated with telemetry API", "user", s.username)
	return token, nil
}

// Invalidate drops token so the next Acquire logs in again. It is a no-op
// when the session already holds a different token, which happens when
// another worker re-authenticated first.
func (s *Session) Invalidate(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.token == token {
		s.token = ""
		s.logger.Warn("telemetry API credential invalidated")
	}
}

func (s *Session) login(ctx context.Context) (string, error) {
	body, err := json.Marshal(models.LoginRequest{Username: s.username, Password: s.password})
	if err != nil {
		return "", fmt.Errorf("%w: failed to encode login request: %w", ErrAuth, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/login", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: failed to build login request: %w", ErrAuth, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		metrics.RecordUpstreamRequest("login", 0, time.Since(start))
		return "", fmt.Errorf("%w: failed to log in: %w", ErrAuth, err)
	}
	defer resp.Body.Close()
	metrics.RecordUpstreamRequest("login", resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %w", ErrAuth, newStatusError(resp))
	}

	var login models.LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&login); err != nil {
		return "", fmt.Errorf("%w: failed to decode login response: %w", ErrAuth, err)
	}
	if login.Token == "" {
		return "", fmt.Errorf("%w: login response does not contain a token", ErrAuth)
	}
	return login.Token, nil
}
