// Package api implements the outbound HTTP adapter for the platform's
// admin REST API. All endpoints speak JSON and authenticate with a bearer
// token in the Authorization header.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/lurekit/lurekit/internal/domain/campaign"
	"github.com/lurekit/lurekit/internal/domain/session"
	"github.com/lurekit/lurekit/internal/port/outbound"
)

// DefaultTimeout bounds every request; the session manager relies on it
// so a hung refresh cannot keep a stale session alive indefinitely.
const DefaultTimeout = 15 * time.Second

// DefaultCacheTTL is how long campaign reads are served from cache.
const DefaultCacheTTL = 30 * time.Second

// DefaultCacheMaxSize caps how many campaign responses the cache holds.
const DefaultCacheMaxSize = 1000

// Client talks to the platform's admin REST API.
// It implements the outbound.AuthAPI and outbound.CampaignAPI ports.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger

	// Read cache for campaign endpoints.
	cache        sync.Map
	cacheTTL     time.Duration
	cacheMaxSize int
	cacheCount   int64
	cacheMu      sync.Mutex
}

// Interface guards.
var (
	_ outbound.AuthAPI     = (*Client)(nil)
	_ outbound.CampaignAPI = (*Client)(nil)
)

// cacheEntry is a cached decoded response with expiry.
type cacheEntry struct {
	value     any
	expiresAt time.Time
	createdAt time.Time
}

// NewClient creates a new API client.
// It reads defaults from LUREKIT_* environment variables; options override.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:      os.Getenv("LUREKIT_SERVER_ADDR"),
		timeout:      parseDurationEnv("LUREKIT_TIMEOUT", DefaultTimeout),
		cacheTTL:     DefaultCacheTTL,
		cacheMaxSize: parseIntEnv("LUREKIT_CACHE_MAX_SIZE", DefaultCacheMaxSize),
		logger:       slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Timeout: c.timeout,
		}
	}

	return c
}

// Login exchanges credentials for a session.
func (c *Client) Login(ctx context.Context, email, password, twoFactorCode string) (*outbound.AuthResult, error) {
	body := loginRequest{
		Email:         email,
		Password:      password,
		TwoFactorCode: twoFactorCode,
	}
	return c.doAuth(ctx, "/auth/login", "", body)
}

// Register creates an account and returns its first session.
func (c *Client) Register(ctx context.Context, email, password, name string) (*outbound.AuthResult, error) {
	body := registerRequest{
		Email:    email,
		Password: password,
		Name:     name,
	}
	return c.doAuth(ctx, "/auth/register", "", body)
}

// Refresh exchanges the current token for a new token and user.
func (c *Client) Refresh(ctx context.Context, token string) (*outbound.AuthResult, error) {
	return c.doAuth(ctx, "/auth/refresh", token, nil)
}

// Me returns the profile of the token's owner.
func (c *Client) Me(ctx context.Context, token string) (*session.User, error) {
	var user session.User
	if err := c.do(ctx, http.MethodGet, "/auth/me", token, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Logout notifies the server that the token should be revoked.
// Callers treat failures as best-effort; the error is informational.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", token, nil, nil)
}

// ListCampaigns returns all campaigns visible to the token's owner.
func (c *Client) ListCampaigns(ctx context.Context, token string) ([]campaign.Campaign, error) {
	var out []campaign.Campaign
	if err := c.getCached(ctx, "/campaigns", token, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Campaign returns a single campaign by ID.
func (c *Client) Campaign(ctx context.Context, token string, id int64) (*campaign.Campaign, error) {
	var out campaign.Campaign
	path := fmt.Sprintf("/campaigns/%d", id)
	if err := c.getCached(ctx, path, token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CampaignStats returns aggregate result counts for a campaign.
func (c *Client) CampaignStats(ctx context.Context, token string, id int64) (*campaign.Stats, error) {
	var out campaign.Stats
	path := fmt.Sprintf("/campaigns/%d/stats", id)
	if err := c.getCached(ctx, path, token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// doAuth posts to an authentication endpoint and validates that the
// response carries both halves of the session.
func (c *Client) doAuth(ctx context.Context, path, token string, body any) (*outbound.AuthResult, error) {
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, path, token, body, &resp); err != nil {
		return nil, err
	}
	if resp.Token == "" || resp.User == nil {
		return nil, fmt.Errorf("malformed auth response from %s: token or user missing", path)
	}
	return &outbound.AuthResult{Token: resp.Token, User: resp.User}, nil
}

// getCached serves a GET from the local cache when a fresh entry exists,
// otherwise performs the request and caches the decoded result.
// The cache key includes the token so sessions never share entries.
func (c *Client) getCached(ctx context.Context, path, token string, result any) error {
	if c.cacheTTL <= 0 {
		return c.do(ctx, http.MethodGet, path, token, nil, result)
	}

	key := xxhash.Sum64String(token + "\x00" + path)
	if val, ok := c.cache.Load(key); ok {
		entry := val.(*cacheEntry)
		if time.Now().Before(entry.expiresAt) {
			return decodeCached(entry.value, result)
		}
		c.deleteFromCache(key)
	}

	if err := c.do(ctx, http.MethodGet, path, token, nil, result); err != nil {
		return err
	}

	// Store the raw JSON of the decoded value so later reads get their
	// own copy instead of aliasing the caller's result.
	if raw, err := json.Marshal(result); err == nil {
		c.putInCache(key, json.RawMessage(raw))
	}
	return nil
}

func (c *Client) deleteFromCache(key uint64) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	if _, ok := c.cache.LoadAndDelete(key); ok {
		c.cacheCount--
	}
}

// putInCache stores a response in the cache.
func (c *Client) putInCache(key uint64, raw json.RawMessage) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()

	// Best-effort eviction: if over max size, delete some expired entries.
	if c.cacheCount >= int64(c.cacheMaxSize) {
		now := time.Now()
		evicted := 0
		c.cache.Range(func(k, v any) bool {
			if now.After(v.(*cacheEntry).expiresAt) {
				c.cache.Delete(k)
				evicted++
			}
			// Stop after evicting enough or checking a batch.
			return evicted < 100
		})
		c.cacheCount -= int64(evicted)

		// If still over limit, evict the oldest entry.
		if c.cacheCount >= int64(c.cacheMaxSize) {
			var oldest time.Time
			var oldestKey any
			c.cache.Range(func(k, v any) bool {
				entry := v.(*cacheEntry)
				if oldest.IsZero() || entry.createdAt.Before(oldest) {
					oldest = entry.createdAt
					oldestKey = k
				}
				return true
			})
			if oldestKey != nil {
				c.cache.Delete(oldestKey)
				c.cacheCount--
			}
		}
	}

	now := time.Now()
	c.cache.Store(key, &cacheEntry{
		value:     raw,
		expiresAt: now.Add(c.cacheTTL),
		createdAt: now,
	})
	c.cacheCount++
}

func decodeCached(value any, result any) error {
	raw, ok := value.(json.RawMessage)
	if !ok {
		return fmt.Errorf("unexpected cache entry type %T", value)
	}
	return json.Unmarshal(raw, result)
}

// do performs an HTTP request against the platform server.
// Transport-level failures come back as *ServerUnreachableError, non-2xx
// responses as *APIError with the server's code and message preserved.
func (c *Client) do(ctx context.Context, method, path, token string, body any, result any) error {
	url := strings.TrimRight(c.baseURL, "/") + path

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	httpReq.Header.Set("X-Request-ID", uuid.NewString())

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &ServerUnreachableError{Cause: err}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return parseAPIError(httpResp.StatusCode, respBody)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}

// parseAPIError builds an *APIError from an error response body.
// The body is expected to be {"code": ..., "message": ...}; anything else
// is carried verbatim in the message.
func parseAPIError(status int, body []byte) error {
	var serverErr struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &serverErr); err == nil && (serverErr.Code != "" || serverErr.Message != "") {
		return &APIError{Status: status, Code: serverErr.Code, Message: serverErr.Message}
	}
	return &APIError{Status: status, Message: strings.TrimSpace(string(body))}
}

// loginRequest is the /auth/login request body.
type loginRequest struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	TwoFactorCode string `json:"two_factor_code,omitempty"`
}

// registerRequest is the /auth/register request body.
type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// authResponse is the shared response shape of login/register/refresh.
type authResponse struct {
	Token string        `json:"token"`
	User  *session.User `json:"user"`
}

func parseDurationEnv(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return defaultVal
}

func parseIntEnv(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return n
	}
	return defaultVal
}
