// Package feedhttp fetches vendor risk signals from an HTTP feed service.
package feedhttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bissquit/oprisk/internal/domain"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout   = 5 * time.Second
	defaultRateLimit = 10
	maxBodySize      = 1 << 20
)

// Config holds feed provider configuration.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64 // requests per second
	Burst     int
}

// Provider implements vendors.FeedProvider over HTTP.
type Provider struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewProvider creates a new feed provider.
func NewProvider(config Config) (*Provider, error) {
	if config.BaseURL == "" {
		return nil, errors.New("feed provider: base url is required")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("feed provider: parse base url: %w", err)
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	if config.RateLimit <= 0 {
		config.RateLimit = defaultRateLimit
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}

	return &Provider{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(config.RateLimit), config.Burst),
	}, nil
}

type signalsResponse struct {
	CreditRating   *float64 `json:"credit_rating"`
	CyberRiskScore *float64 `json:"cyber_risk_score"`
	SentimentScore *float64 `json:"sentiment_score"`
}

// GetFeed fetches the signals of a vendor. A vendor unknown to the feed yields nil data.
func (p *Provider) GetFeed(ctx context.Context, vendorID string) (*domain.FeedData, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	endpoint := p.baseURL + "/vendors/" + url.PathEscape(vendorID) + "/signals"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload signalsResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &domain.FeedData{
		CreditRating:   payload.CreditRating,
		CyberRiskScore: payload.CyberRiskScore,
		SentimentScore: payload.SentimentScore,
	}, nil
}
