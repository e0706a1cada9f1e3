// Package oracle talks to the yield-source rate feed. The exchange rate is
// the ratio between the yield-bearing wrapped asset and the deposited asset,
// it only grows while yield accrues.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/neverpay/creditledger/internal/apperrors"
	"github.com/neverpay/creditledger/internal/logger"
	"github.com/neverpay/creditledger/internal/metrics"
)

const defaultTimeout = 5 * time.Second

// Rate is an observed exchange rate. Stale is set when the feed was
// unreachable and the value comes from the last successful read.
type Rate struct {
	Value     decimal.Decimal
	FetchedAt time.Time
	Stale     bool
}

type rateResponse struct {
	Asset string          `json:"asset"`
	Rate  decimal.Decimal `json:"rate"`
}

type Client struct {
	addr    string
	asset   string
	timeout time.Duration

	client *http.Client
	logger logger.Logger

	mu     sync.Mutex
	cached Rate
}

func NewClient(addr string, asset string, l logger.Logger) *Client {
	return &Client{
		addr:    addr,
		asset:   asset,
		timeout: defaultTimeout,
		client:  &http.Client{},
		logger:  l,
	}
}

// ExchangeRate returns the current rate for the configured asset.
//
// Failure handling, in order:
//   - feed unreachable, cache warm: cached rate with Stale set, nil error
//   - feed unreachable, cache cold: apperrors.ErrUpstreamUnavailable
//   - feed returned a rate lower than the cached one: cached rate plus
//     apperrors.ErrYieldSourceAnomaly, the decreased value is never used
func (c *Client) ExchangeRate(ctx context.Context) (Rate, error) {
	fresh, err := c.fetch(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		if c.cached.Value.IsZero() {
			return Rate{}, fmt.Errorf("%w: %v", apperrors.ErrUpstreamUnavailable, err)
		}

		metrics.OracleStaleReadsTotal.Inc()
		c.logger.Warn("Yield source unreachable, using cached rate", "error", err, "cached_rate", c.cached.Value)
		return Rate{Value: c.cached.Value, FetchedAt: c.cached.FetchedAt, Stale: true}, nil
	}

	if !c.cached.Value.IsZero() && fresh.LessThan(c.cached.Value) {
		metrics.OracleAnomaliesTotal.Inc()
		c.logger.Error("Yield source rate decreased",
			"asset", c.asset, "cached_rate", c.cached.Value, "reported_rate", fresh)
		return c.cached, apperrors.ErrYieldSourceAnomaly
	}

	c.cached = Rate{Value: fresh, FetchedAt: time.Now()}
	return c.cached, nil
}

func (c *Client) fetch(ctx context.Context) (decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/api/v1/rates/%s", c.addr, c.asset)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("unexpected status code %d for asset %s", resp.StatusCode, c.asset)
	}

	var body rateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode response: %w", err)
	}

	if !body.Rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("non-positive rate %s for asset %s", body.Rate, c.asset)
	}

	return body.Rate, nil
}
