package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mealsync/internal/config"
	"mealsync/internal/logging"
	"mealsync/internal/shared"
)

// TokenSource returns the current bearer token, or "" when signed out.
type TokenSource func() string

// Client performs JSON calls against the meal-planner backend.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	healthTimeout time.Duration
	logger        *zap.Logger

	mu     sync.RWMutex
	tokens TokenSource

	reachable atomic.Bool
}

// NewClient creates a Client for cfg.APIURL.
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	timeout := cfg.HealthTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	c := &Client{
		baseURL:       strings.TrimRight(cfg.APIURL, "/"),
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		healthTimeout: timeout,
		logger:        logging.OrNop(logger),
	}
	c.reachable.Store(true)
	return c
}

// SetTokenSource installs the function consulted for the bearer token on
// every request.
func (c *Client) SetTokenSource(ts TokenSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = ts
}

func (c *Client) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.tokens == nil {
		return ""
	}
	return c.tokens()
}

// Reachable reports the outcome of the most recent health check or request.
func (c *Client) Reachable() bool {
	return c.reachable.Load()
}

// CheckHealth calls GET /health within the configured timeout. It never
// fails; an error or a non-2xx answer just means the backend is down.
func (c *Client) CheckHealth(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		c.reachable.Store(false)
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("health check failed", zap.Error(err))
		c.reachable.Store(false)
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	c.reachable.Store(ok)
	return ok
}

// Do issues one request. body is sent as JSON when non-nil; a 2xx response
// body is decoded into out when out is non-nil.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	op := method + " " + path

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &shared.Error{Kind: shared.KindValidation, Op: op, Message: "failed to encode request", Err: err}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &shared.Error{Kind: shared.KindUnknown, Op: op, Message: "failed to create request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return &shared.Error{Kind: shared.KindUnknown, Op: op, Message: "request cancelled", Err: err}
		}
		c.reachable.Store(false)
		c.logger.Warn("backend unreachable", zap.String("op", op), zap.Error(err))
		return &shared.Error{Kind: shared.KindNetwork, Op: op, Message: "cannot connect to server", Err: err}
	}
	defer resp.Body.Close()
	c.reachable.Store(true)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &shared.Error{Kind: shared.KindNetwork, Op: op, Message: "failed to read response", Err: err}
	}
	c.logger.Debug("backend call",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &shared.Error{
			Kind:    shared.StatusKind(resp.StatusCode),
			Status:  resp.StatusCode,
			Op:      op,
			Message: errorMessage(data),
		}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &shared.Error{Kind: shared.KindUnknown, Status: resp.StatusCode, Op: op, Message: "malformed response", Err: err}
	}
	return nil
}

// errorMessage extracts {"error": "..."} from a failed response.
func errorMessage(data []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	if body.Error != "" {
		return body.Error
	}
	return body.Message
}
