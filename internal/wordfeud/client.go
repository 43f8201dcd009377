package wordfeud

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"wordfeud_cdf/extractor/internal/metrics"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

const (
	// passwordSalt is appended to the password before hashing, as the official apps do
	passwordSalt = "JarJarBinks9"

	sessionCookie = "sessionid"

	pathLoginEmail = "user/login/email/"
	pathGames      = "user/games/"
	pathRatedGames = "user/games/rated/"
)

// ErrLoginRequired is returned when the server rejects the session
var ErrLoginRequired = errors.New("wordfeud session rejected: login required")

// APIError is an application-level error returned inside a 200 envelope
type APIError struct {
	Endpoint string
	Type     string
	Message  string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("wordfeud %s returned error %q: %s", e.Endpoint, e.Type, e.Message)
	}
	return fmt.Sprintf("wordfeud %s returned error %q", e.Endpoint, e.Type)
}

// SessionCache stores session ids between runs
type SessionCache interface {
	GetSession(ctx context.Context, key string) (string, bool, error)
	SetSession(ctx context.Context, key, sessionID string, ttl time.Duration) error
	DeleteSession(ctx context.Context, key string) error
}

// Config holds the client settings
type Config struct {
	BaseURL   string
	Email     string
	Password  string
	Timeout   time.Duration
	RuleSet   RuleSet
	BoardType BoardType

	// RateLimit is the maximum number of requests per second
	RateLimit float64

	Sessions   SessionCache
	SessionTTL time.Duration

	BreakerFailureThreshold uint32
	BreakerOpenTimeout      time.Duration

	HTTPClient *http.Client
}

// Client is the Wordfeud API client
type Client struct {
	baseURL    string
	email      string
	password   string
	ruleSet    RuleSet
	boardType  BoardType
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[*exchange]
	sessions   SessionCache
	sessionTTL time.Duration
	sessionID  string
}

type envelope struct {
	Status  string          `json:"status"`
	Content json.RawMessage `json:"content"`
}

type errorContent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type exchange struct {
	content json.RawMessage
	cookies []*http.Cookie
}

// NewClient creates a new Wordfeud API client
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	threshold := cfg.BreakerFailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		email:      cfg.Email,
		password:   cfg.Password,
		ruleSet:    cfg.RuleSet,
		boardType:  cfg.BoardType,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, 1),
		breaker:    newBreaker("wordfeud", threshold, cfg.BreakerOpenTimeout),
		sessions:   cfg.Sessions,
		sessionTTL: cfg.SessionTTL,
	}
}

func newBreaker(name string, threshold uint32, openTimeout time.Duration) *gobreaker.CircuitBreaker[*exchange] {
	return gobreaker.NewCircuitBreaker[*exchange](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// Application-level errors mean the server is up
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			return err == nil || errors.As(err, &apiErr) || errors.Is(err, ErrLoginRequired)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.RecordBreakerState(name, int(to))
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	})
}

// HashPassword returns the salted SHA1 digest the login endpoint expects
func HashPassword(password string) string {
	sum := sha1.Sum([]byte(password + passwordSalt))
	return hex.EncodeToString(sum[:])
}

// post performs a single POST request to the Wordfeud API and unwraps the envelope
func (c *Client) post(ctx context.Context, path string, payload any, withSession bool) (*exchange, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := c.breaker.Execute(func() (*exchange, error) {
		return c.do(ctx, path, payload, withSession)
	})

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordAPICall("wordfeud", path, status, time.Since(start).Seconds())

	return result, err
}

func (c *Client) do(ctx context.Context, path string, payload any, withSession bool) (*exchange, error) {
	url := fmt.Sprintf("%s/%s", c.baseURL, path)

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "WebFeudClient/3.0.17 (Android 10)")
	if withSession && c.sessionID != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: c.sessionID})
	}

	log.Debug().
		Str("url", url).
		Str("method", req.Method).
		Msg("Making API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		log.Debug().
			Str("url", url).
			Int("status", resp.StatusCode).
			Int("size", len(respBody)).
			Msg("API request successful")

	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("API authentication failed (status %d): %w", resp.StatusCode, ErrLoginRequired)

	default:
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response envelope: %w", err)
	}

	if env.Status != "success" {
		var content errorContent
		_ = json.Unmarshal(env.Content, &content)
		if content.Type == "login_required" {
			return nil, ErrLoginRequired
		}
		return nil, &APIError{Endpoint: path, Type: content.Type, Message: content.Message}
	}

	return &exchange{content: env.Content, cookies: resp.Cookies()}, nil
}

// Login authenticates with email and password and stores the session id
func (c *Client) Login(ctx context.Context) error {
	result, err := c.post(ctx, pathLoginEmail, map[string]string{
		"email":    c.email,
		"password": HashPassword(c.password),
	}, false)
	if err != nil {
		return fmt.Errorf("failed to log in: %w", err)
	}

	sessionID := ""
	for _, cookie := range result.cookies {
		if cookie.Name == sessionCookie {
			sessionID = cookie.Value
		}
	}
	if sessionID == "" {
		return fmt.Errorf("failed to log in: no %s cookie in response", sessionCookie)
	}
	c.sessionID = sessionID

	var user struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
	}
	if err := json.Unmarshal(result.content, &user); err == nil {
		log.Info().
			Int64("user_id", user.ID).
			Str("username", user.Username).
			Msg("Wordfeud login successful")
	}

	if c.sessions != nil {
		if err := c.sessions.SetSession(ctx, c.sessionKey(), sessionID, c.sessionTTL); err != nil {
			log.Warn().Err(err).Msg("Failed to cache Wordfeud session")
		}
	}

	return nil
}

// ensureSession reuses a cached session when there is one, otherwise logs in
func (c *Client) ensureSession(ctx context.Context) (cached bool, err error) {
	if c.sessionID != "" {
		return true, nil
	}

	if c.sessions != nil {
		sessionID, ok, err := c.sessions.GetSession(ctx, c.sessionKey())
		if err != nil {
			log.Warn().Err(err).Msg("Failed to read cached Wordfeud session")
		}
		if ok {
			metrics.RecordCacheHit()
			c.sessionID = sessionID
			return true, nil
		}
		metrics.RecordCacheMiss()
	}

	return false, c.Login(ctx)
}

// call performs an authenticated request.
// A rejected session that was reused from an earlier login is replaced once.
func (c *Client) call(ctx context.Context, path string, payload any, out any) error {
	cached, err := c.ensureSession(ctx)
	if err != nil {
		return err
	}

	result, err := c.post(ctx, path, payload, true)
	if errors.Is(err, ErrLoginRequired) && cached {
		log.Info().Str("endpoint", path).Msg("Cached Wordfeud session expired, logging in again")
		c.invalidateSession(ctx)
		if err := c.Login(ctx); err != nil {
			return err
		}
		result, err = c.post(ctx, path, payload, true)
	}
	if err != nil {
		return err
	}

	if err := json.Unmarshal(result.content, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}
	return nil
}

func (c *Client) invalidateSession(ctx context.Context) {
	c.sessionID = ""
	if c.sessions == nil {
		return
	}
	if err := c.sessions.DeleteSession(ctx, c.sessionKey()); err != nil {
		log.Warn().Err(err).Msg("Failed to delete cached Wordfeud session")
	}
}

func (c *Client) sessionKey() string {
	return "wordfeud:session:" + strings.ToLower(c.email)
}
