package glpi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/itsmkit/glpi-dashboard/internal/logger"
)

// SessionManager owns the session token lifecycle: lazy initialization,
// TTL-bounded reuse across goroutines, and invalidation after an upstream
// auth rejection so the next caller re-handshakes.
type SessionManager struct {
	baseURL    string
	appToken   string
	userToken  string
	ttl        time.Duration
	entityID   int
	switchEnts bool

	httpClient *http.Client
	log        logger.Logger
	onReuse    func()

	mu         sync.Mutex
	headers    map[string]string
	acquiredAt time.Time
}

// SessionConfig carries the credentials and session policy.
type SessionConfig struct {
	BaseURL        string
	AppToken       string
	UserToken      string
	TTL            time.Duration
	EntityID       int
	SwitchToEntity bool

	// OnReuse is invoked whenever a call is satisfied by the cached
	// session token instead of a fresh handshake. Optional.
	OnReuse func()
}

// NewSessionManager builds a manager; no handshake happens until the first
// Headers call.
func NewSessionManager(cfg SessionConfig, httpClient *http.Client, log logger.Logger) *SessionManager {
	return &SessionManager{
		baseURL:    cfg.BaseURL,
		appToken:   cfg.AppToken,
		userToken:  cfg.UserToken,
		ttl:        cfg.TTL,
		entityID:   cfg.EntityID,
		switchEnts: cfg.SwitchToEntity,
		httpClient: httpClient,
		log:        log,
		onReuse:    cfg.OnReuse,
	}
}

// Headers returns request headers carrying a valid session token, performing
// the init-session handshake (and optional entity switch) when no fresh
// session exists. The returned map is a copy.
func (s *SessionManager) Headers(ctx context.Context) (map[string]string, error) {
	s.mu.Lock()
	if s.headers != nil && time.Since(s.acquiredAt) < s.ttl {
		headers := copyHeaders(s.headers)
		s.mu.Unlock()
		if s.onReuse != nil {
			s.onReuse()
		}
		return headers, nil
	}
	s.mu.Unlock()

	// Handshake outside the lock so a slow upstream does not serialize all
	// callers. Concurrent misses may each init a session; last writer wins
	// and the extra sessions simply age out upstream.
	headers, err := s.initSession(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.headers = headers
	s.acquiredAt = time.Now()
	s.mu.Unlock()

	return copyHeaders(headers), nil
}

// Invalidate drops the cached session. Called after a 401/403 on a search so
// the next request performs a fresh handshake.
func (s *SessionManager) Invalidate() {
	s.mu.Lock()
	s.headers = nil
	s.mu.Unlock()
}

func (s *SessionManager) initSession(ctx context.Context) (map[string]string, error) {
	const op = "initSession"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/initSession", nil)
	if err != nil {
		return nil, fmt.Errorf("build init request: %w", err)
	}
	req.Header.Set("Authorization", "user_token "+s.userToken)
	req.Header.Set("App-Token", s.appToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError(op, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(op, resp.StatusCode, string(body))
	}

	var payload struct {
		SessionToken string `json:"session_token"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &SearchError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
	}
	if payload.SessionToken == "" {
		return nil, &AuthError{Op: op, StatusCode: resp.StatusCode}
	}

	headers := map[string]string{
		"Session-Token": payload.SessionToken,
		"App-Token":     s.appToken,
		"Content-Type":  "application/json",
	}

	if s.switchEnts {
		// The handshake is only complete once the session is scoped; a
		// rejected switch invalidates the whole handshake.
		if err := s.changeActiveEntities(ctx, headers); err != nil {
			return nil, err
		}
	}

	s.log.Debug("session initialized", logger.Any("headers", maskSensitive(headers)))
	return headers, nil
}

func (s *SessionManager) changeActiveEntities(ctx context.Context, headers map[string]string) error {
	const op = "changeActiveEntities"

	payload, err := json.Marshal(map[string]any{
		"entities_id":  s.entityID,
		"is_recursive": true,
	})
	if err != nil {
		return fmt.Errorf("encode entity switch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/changeActiveEntities", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build entity switch request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return classifyStatus(op, resp.StatusCode, string(body))
	}
	return nil
}

func copyHeaders(src map[string]string) map[string]string {
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
