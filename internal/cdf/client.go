// Package cdf is a minimal Cognite Data Fusion client covering the time series,
// datapoints and extraction pipeline endpoints the extractor needs.
package cdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"wordfeud_cdf/extractor/internal/metrics"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const backend = "cdf"

// Config holds the CDF connection settings
type Config struct {
	BaseURL      string
	Project      string
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
	Timeout      time.Duration

	BreakerFailureThreshold uint32
	BreakerOpenTimeout      time.Duration

	// HTTPClient overrides the OAuth client (tests)
	HTTPClient *http.Client
}

// Client is the CDF API client
type Client struct {
	baseURL    string
	project    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]byte]
}

// Error is an error payload returned by the CDF API
type Error struct {
	StatusCode int
	Code       int               `json:"code"`
	Message    string            `json:"message"`
	Duplicated []json.RawMessage `json:"duplicated,omitempty"`
	Missing    []json.RawMessage `json:"missing,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("CDF API returned status %d: %s", e.StatusCode, e.Message)
}

// IsConflict reports whether the error is a duplicate/conflict response
func IsConflict(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict
}

// NewClient creates a CDF client authenticated with OAuth client credentials
func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		credentials := &clientcredentials.Config{
			ClientID:       cfg.ClientID,
			ClientSecret:   cfg.ClientSecret,
			TokenURL:       cfg.TokenURL,
			Scopes:         cfg.Scopes,
			EndpointParams: url.Values{"audience": {baseURL}},
		}
		base := &http.Client{Timeout: cfg.Timeout}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		httpClient = credentials.Client(ctx)
		httpClient.Timeout = cfg.Timeout
	}

	threshold := cfg.BreakerFailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	return &Client{
		baseURL:    baseURL,
		project:    cfg.Project,
		httpClient: httpClient,
		breaker: gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:        backend,
			MaxRequests: 1,
			Timeout:     cfg.BreakerOpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			// 4xx responses are caller errors, not an unhealthy service
			IsSuccessful: func(err error) bool {
				var apiErr *Error
				if errors.As(err, &apiErr) {
					return apiErr.StatusCode < http.StatusInternalServerError
				}
				return err == nil
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				metrics.RecordBreakerState(name, int(to))
				log.Warn().
					Str("breaker", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("Circuit breaker state changed")
			},
		}),
	}
}

// post sends a JSON request to /api/v1/projects/{project}/{path} and decodes the response into out
func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	start := time.Now()
	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.do(ctx, path, payload)
	})

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordAPICall(backend, path, status, time.Since(start).Seconds())

	if err != nil {
		return err
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s response: %w", path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, path string, payload any) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/api/v1/projects/%s/%s", c.baseURL, url.PathEscape(c.project), path)

	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-CDP-App", "wordfeud-rating-reader")

	log.Debug().
		Str("url", endpoint).
		Int("size", len(reqBody)).
		Msg("Making CDF request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("CDF request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	apiErr := &Error{StatusCode: resp.StatusCode, Message: string(body)}
	var wrapped struct {
		Error *Error `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Error != nil {
		apiErr = wrapped.Error
		apiErr.StatusCode = resp.StatusCode
	}
	return nil, apiErr
}
