// Package provider is the client for the external game metadata service the
// search pipeline falls back to when the local catalog comes up short.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	gserrors "github.com/Aman-CERP/gamescout/internal/errors"
	"github.com/Aman-CERP/gamescout/internal/store"
)

// Defaults applied when Config leaves a field zero.
const (
	DefaultTimeout       = 5 * time.Second
	DefaultRatePerSecond = 4.0
	DefaultBurst         = 4
	DefaultPoolSize      = 4

	// maxErrorBody caps how much of an error response is kept for messages.
	maxErrorBody = 512
)

// Config configures an HTTPProvider.
type Config struct {
	Endpoint      string
	APIKey        string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
	MaxFailures   int
	ResetTimeout  time.Duration
}

// HTTPProvider searches an external metadata service over HTTP. Calls are
// rate limited, bounded by a deadline, and guarded by a circuit breaker so a
// failing service is skipped quickly.
type HTTPProvider struct {
	client    *http.Client
	transport *http.Transport
	endpoint  string
	apiKey    string
	timeout   time.Duration
	limiter   *rate.Limiter
	breaker   *gserrors.CircuitBreaker
}

// searchResponse is the provider's JSON envelope.
type searchResponse struct {
	Results []store.RawRecord `json:"results"`
}

// NewHTTPProvider creates a provider for cfg.Endpoint.
func NewHTTPProvider(cfg Config) (*HTTPProvider, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, gserrors.ConfigError(fmt.Sprintf("invalid provider endpoint %q", cfg.Endpoint), err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = DefaultRatePerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultBurst
	}

	transport := &http.Transport{
		MaxIdleConns:        DefaultPoolSize,
		MaxIdleConnsPerHost: DefaultPoolSize,
		IdleConnTimeout:     30 * time.Second,
	}

	// No http.Client.Timeout: each call carries its own context deadline.
	return &HTTPProvider{
		client:    &http.Client{Transport: transport},
		transport: transport,
		endpoint:  strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:    cfg.APIKey,
		timeout:   cfg.Timeout,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		breaker: gserrors.NewCircuitBreaker("provider",
			gserrors.WithMaxFailures(cfg.MaxFailures),
			gserrors.WithResetTimeout(cfg.ResetTimeout)),
	}, nil
}

// Search queries the provider for up to limit records matching query.
// Every returned record is tagged as external. The call never outlives its
// deadline: on expiry a timeout error is returned.
func (p *HTTPProvider) Search(ctx context.Context, query string, limit int) ([]store.RawRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	records, err := gserrors.CircuitExecute(p.breaker, func() ([]store.RawRecord, error) {
		return p.search(ctx, query, limit)
	}, isCallerCancel)
	if errors.Is(err, gserrors.ErrCircuitOpen) {
		return nil, gserrors.ProviderDegraded("provider circuit is open", err).
			WithDetail("breaker", p.breaker.Name())
	}
	if err != nil {
		return nil, err
	}

	for i := range records {
		records[i].Source = store.SourceExternal
		records[i].Category = store.ParseCategory(string(records[i].Category))
	}
	return records, nil
}

func (p *HTTPProvider) search(ctx context.Context, query string, limit int) ([]store.RawRecord, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		// Wait fails early when the deadline can't accommodate the next token.
		return nil, gserrors.New(gserrors.ErrCodeProviderRateLimited, "provider rate limit wait exceeded deadline", err)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))
	reqURL := p.endpoint + "/games/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, gserrors.TimeoutError(fmt.Sprintf("provider did not answer within %s", p.timeout), err)
		}
		return nil, gserrors.ProviderDegraded("provider request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	slog.Debug("provider_response",
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)))

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, statusError(resp.StatusCode, string(body))
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, gserrors.TimeoutError(fmt.Sprintf("provider did not answer within %s", p.timeout), err)
		}
		return nil, gserrors.ProviderDegraded("failed to decode provider response", err)
	}

	if len(decoded.Results) > limit {
		decoded.Results = decoded.Results[:limit]
	}
	return decoded.Results, nil
}

func statusError(status int, body string) error {
	msg := fmt.Sprintf("provider returned status %d", status)
	var err *gserrors.ScoutError
	switch {
	case status == http.StatusTooManyRequests:
		err = gserrors.New(gserrors.ErrCodeProviderRateLimited, msg, nil)
	case status >= 500:
		err = gserrors.New(gserrors.ErrCodeSourceTransient, msg, nil)
	default:
		err = gserrors.ProviderDegraded(msg, nil)
	}
	if body = strings.TrimSpace(body); body != "" {
		err = err.WithDetail("body", body)
	}
	return err.WithDetail("status", strconv.Itoa(status))
}

// isCallerCancel reports whether err came from the caller cancelling, which
// says nothing about the provider's health.
func isCallerCancel(err error) bool {
	return errors.Is(err, context.Canceled)
}

// BreakerState returns the circuit breaker's state.
func (p *HTTPProvider) BreakerState() gserrors.State {
	return p.breaker.State()
}

// Close releases idle connections.
func (p *HTTPProvider) Close() error {
	p.transport.CloseIdleConnections()
	return nil
}
