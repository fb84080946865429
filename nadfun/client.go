package nadfun

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const maxAttempts = 3

// Client is a typed HTTP client for the nad-fun API. It shares one
// http.Transport across every request the way provider.ConnectionPool
// shares transports across LLM providers, rather than each method
// dialing its own connection, and rate-limits itself client-side
// instead of waiting to be throttled server-side.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// Config configures a Client.
type Config struct {
	BaseURL string
	// RPM is the client-side requests-per-minute budget. Zero uses the
	// default of 60.
	RPM     int
	Timeout time.Duration
}

func New(cfg Config, logger zerolog.Logger) *Client {
	rpm := cfg.RPM
	if rpm <= 0 {
		rpm = 60
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        64,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     90 * time.Second,
		TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
		ForceAttemptHTTP2:   true,
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Transport: transport, Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm),
		logger:  logger.With().Str("component", "nadfun").Logger(),
	}
}

// Token looks up a single token by address.
func (c *Client) Token(ctx context.Context, address string) (Token, error) {
	var out Token
	err := c.do(ctx, http.MethodGet, "/v1/tokens/"+url.PathEscape(address), nil, &out)
	return out, err
}

// Trending returns the current trending feed, limited to n entries.
func (c *Client) Trending(ctx context.Context, n int) ([]TrendingEntry, error) {
	var out []TrendingEntry
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/trending?limit=%d", n), nil, &out)
	return out, err
}

// NewTokens returns the most recently launched tokens, limited to n entries.
func (c *Client) NewTokens(ctx context.Context, n int) ([]NewTokenEntry, error) {
	var out []NewTokenEntry
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/new?limit=%d", n), nil, &out)
	return out, err
}

// Quote prices a trade of amountInWei of tokenIn for tokenOut.
func (c *Client) Quote(ctx context.Context, tokenIn, tokenOut string, amountInWei int64) (Quote, error) {
	var out Quote
	body := map[string]interface{}{"tokenIn": tokenIn, "tokenOut": tokenOut, "amountInWei": amountInWei}
	err := c.do(ctx, http.MethodPost, "/v1/quote", body, &out)
	return out, err
}

// Portfolio returns the current token holdings for an account.
func (c *Client) Portfolio(ctx context.Context, account string) ([]PortfolioPosition, error) {
	var out []PortfolioPosition
	err := c.do(ctx, http.MethodGet, "/v1/portfolio/"+url.PathEscape(account), nil, &out)
	return out, err
}

// History returns an account's recent trade history, limited to n entries.
func (c *Client) History(ctx context.Context, account string, n int) ([]HistoryEntry, error) {
	var out []HistoryEntry
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/history/%s?limit=%d", url.PathEscape(account), n), nil, &out)
	return out, err
}

// PrepareLaunch asks nad-fun to build an unsigned launch bundle.
func (c *Client) PrepareLaunch(ctx context.Context, req LaunchRequest) (LaunchPrep, error) {
	var out LaunchPrep
	err := c.do(ctx, http.MethodPost, "/v1/launch/prepare", req, &out)
	return out, err
}

// LaunchStatus polls the on-chain progress of a prepared launch.
func (c *Client) LaunchStatus(ctx context.Context, launchID string) (LaunchStatus, error) {
	var out LaunchStatus
	err := c.do(ctx, http.MethodGet, "/v1/launch/"+url.PathEscape(launchID)+"/status", nil, &out)
	return out, err
}

// PoolState returns the indexed bonding-curve/pool state for a token.
func (c *Client) PoolState(ctx context.Context, token string) (PoolState, error) {
	var out PoolState
	err := c.do(ctx, http.MethodGet, "/v1/tokens/"+url.PathEscape(token)+"/pool", nil, &out)
	return out, err
}

// Holders returns the indexed holder distribution for a token.
func (c *Client) Holders(ctx context.Context, token string) (HolderBreakdown, error) {
	var out HolderBreakdown
	err := c.do(ctx, http.MethodGet, "/v1/tokens/"+url.PathEscape(token)+"/holders", nil, &out)
	return out, err
}

// RecentTrades returns the n most recent trades against a token.
func (c *Client) RecentTrades(ctx context.Context, token string, n int) ([]TokenTrade, error) {
	var out []TokenTrade
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/tokens/%s/trades?limit=%d", url.PathEscape(token), n), nil, &out)
	return out, err
}

// do issues one request, retrying on 408/429/5xx with exponential
// backoff up to maxAttempts, and waits on the client-side rate
// limiter before every attempt including the first.
func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var bodyBytes []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("nadfun: encode request: %w", err)
		}
		bodyBytes = encoded
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * 100 * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		var reader io.Reader
		if bodyBytes != nil {
			reader = bytes.NewReader(bodyBytes)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return fmt.Errorf("nadfun: build request: %w", err)
		}
		if bodyBytes != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			c.logger.Warn().Err(err).Str("path", path).Int("attempt", attempt+1).Msg("request failed")
			continue
		}

		retryable := resp.StatusCode == http.StatusRequestTimeout ||
			resp.StatusCode == http.StatusTooManyRequests ||
			resp.StatusCode >= 500

		if retryable {
			resp.Body.Close()
			lastErr = fmt.Errorf("nadfun: status %d", resp.StatusCode)
			c.logger.Warn().Int("status", resp.StatusCode).Str("path", path).Int("attempt", attempt+1).Msg("retryable response")
			continue
		}

		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			raw, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("nadfun: status %d: %s", resp.StatusCode, string(raw))
		}
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("nadfun: decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("nadfun: exhausted %d attempts: %w", maxAttempts, lastErr)
}
