package providers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"context-engine/internal/circuitbreaker"
	"context-engine/internal/common/errors"
	"context-engine/internal/common/logging"
	"context-engine/internal/common/utils"
)

const maxResponseBytes = 1 << 20

// HTTPProviderConfig configures an HTTPProvider.
type HTTPProviderConfig struct {
	// Name identifies the provider in the registry and in results.
	Name string `json:"name"`
	// BaseURL is the snapshot endpoint. The customer and conversation
	// identifiers are passed as query parameters.
	BaseURL string `json:"base_url"`
	// APIKey, when set, is sent as a bearer token.
	APIKey string `json:"api_key"`
	// Timeout bounds a single request including retries' individual attempts.
	Timeout time.Duration `json:"timeout"`
	// RateLimit is the sustained request rate toward the backend, per second.
	// Zero disables client-side rate limiting.
	RateLimit float64 `json:"rate_limit"`
	// RateBurst is the token bucket size; defaults to 1 when rate limiting
	// is on.
	RateBurst int `json:"rate_burst"`
}

// HTTPProvider fetches a customer snapshot from an external JSON API. Calls
// are rate limited, retried with backoff on transient failures, and guarded
// by a circuit breaker so a dead backend fails fast instead of eating the
// enrichment budget.
type HTTPProvider struct {
	name    string
	baseURL *url.URL
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
	breaker *circuitbreaker.Breaker
	retry   utils.RetryConfig
	logger  logging.Logger
}

// NewHTTPProvider creates a provider from config. The base URL must be
// absolute.
func NewHTTPProvider(cfg HTTPProviderConfig, logger logging.Logger) (*HTTPProvider, error) {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if cfg.Name == "" {
		return nil, errors.ConfigError("http provider requires a name")
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil || !base.IsAbs() {
		return nil, errors.ConfigError("http provider requires an absolute base URL").
			WithContext("provider", cfg.Name).
			WithContext("base_url", cfg.BaseURL)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	retry := utils.DefaultRetryConfig()
	retry.Retryable = isTransient

	return &HTTPProvider{
		name:    cfg.Name,
		baseURL: base,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		breaker: circuitbreaker.New("provider-"+cfg.Name, circuitbreaker.ProviderConfig, logger),
		retry:   retry,
		logger:  logger,
	}, nil
}

func (p *HTTPProvider) Name() string {
	return p.name
}

// Fetch requests the customer snapshot and decodes the JSON object response.
func (p *HTTPProvider) Fetch(ctx context.Context, customerID, conversationID string) (map[string]interface{}, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var snapshot map[string]interface{}
	err := utils.RetryWithBackoff(ctx, p.retry, func() error {
		return p.breaker.Execute(func() error {
			data, reqErr := p.doRequest(ctx, customerID, conversationID)
			if reqErr != nil {
				return reqErr
			}
			snapshot = data
			return nil
		})
	})
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) {
			return nil, errors.TimeoutError("fetch from provider " + p.name)
		}
		return nil, errors.ProviderError(p.name, err)
	}
	return snapshot, nil
}

// HealthCheck probes the endpoint with a HEAD request.
func (p *HTTPProvider) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.baseURL.String(), nil)
	if err != nil {
		return err
	}
	p.authorize(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// BreakerStats exposes the circuit breaker state for health reporting.
func (p *HTTPProvider) BreakerStats() circuitbreaker.Stats {
	return p.breaker.Stats()
}

func (p *HTTPProvider) doRequest(ctx context.Context, customerID, conversationID string) (map[string]interface{}, error) {
	u := *p.baseURL
	q := u.Query()
	q.Set("customer_id", customerID)
	if conversationID != "" {
		q.Set("conversation_id", conversationID)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	p.authorize(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.NotFoundError("customer " + customerID)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("rate limited by backend (status %d)", resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}

	var snapshot map[string]interface{}
	if err := json.Unmarshal(body, &snapshot); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return snapshot, nil
}

func (p *HTTPProvider) authorize(req *http.Request) {
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
}

// isTransient marks which request failures are worth retrying. Validation
// and not-found outcomes are definitive; everything else (network errors,
// 5xx, breaker rejections) may clear up.
func isTransient(err error) bool {
	if appErr, ok := err.(*errors.AppError); ok {
		switch appErr.Type {
		case errors.ErrTypeValidation, errors.ErrTypeNotFound:
			return false
		}
	}
	return true
}
