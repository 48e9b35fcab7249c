// Package upstream talks to the upstream sports-data HTTP API through a
// rotating residential proxy, impersonating a browser TLS fingerprint,
// with retry/backoff and rate limiting.
package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/ecarrasco/dropwatch/internal/config"
	"github.com/ecarrasco/dropwatch/internal/models"
)

// ClientConfig configures a Client.
type ClientConfig struct {
	BaseURL      string
	RequestDelay time.Duration
	MaxRetries   int
	Timeout      time.Duration

	ProxyEnabled  bool
	ProxyUsername string
	ProxyPassword string
	ProxyEndpoint string
}

// ClientConfigFromAppConfig derives a ClientConfig from the process
// config, defaulting the HTTP timeout to the 20s §5 suspension-point
// default.
func ClientConfigFromAppConfig(cfg *config.Config, baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL:       baseURL,
		RequestDelay:  cfg.RequestDelay(),
		MaxRetries:    cfg.MaxRetries,
		Timeout:       20 * time.Second,
		ProxyEnabled:  cfg.ProxyEnabled,
		ProxyUsername: cfg.ProxyUsername,
		ProxyPassword: cfg.ProxyPassword,
		ProxyEndpoint: cfg.ProxyEndpoint,
	}
}

// browserHeaders is applied to every outbound request to impersonate a
// common desktop Chrome fingerprint, per §4.2.
var browserHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Accept":          "application/json, text/plain, */*",
	"Accept-Language": "en-US,en;q=0.9",
	"Sec-Ch-Ua":       `"Chromium";v="124", "Google Chrome";v="124", "Not-A.Brand";v="99"`,
	"Sec-Ch-Ua-Mobile": "?0",
}

// Client is the rate-limited, retrying HTTP client used for every
// upstream call.
type Client struct {
	baseURL string
	http    *retryablehttp.Client
	limiter *rate.Limiter
	log     *logrus.Logger
}

// NewClient builds a Client from cfg, wiring the rotating proxy
// transport and browser headers described in §4.2.
func NewClient(cfg ClientConfig, log *logrus.Logger) (*Client, error) {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 30 * time.Second
	retryClient.CheckRetry = retryPolicy
	retryClient.HTTPClient.Timeout = cfg.Timeout
	retryClient.Logger = nil

	if cfg.ProxyEnabled {
		transport, err := proxyTransport(cfg)
		if err != nil {
			return nil, fmt.Errorf("configure proxy transport: %w", err)
		}
		retryClient.HTTPClient.Transport = transport
	}

	delay := cfg.RequestDelay
	if delay <= 0 {
		delay = time.Second
	}

	return &Client{
		baseURL: cfg.BaseURL,
		http:    retryClient,
		limiter: rate.NewLimiter(rate.Every(delay), 1),
		log:     log,
	}, nil
}

// proxyTransport builds an *http.Transport that routes through the
// rotating proxy. The proxy provider rotates the exit IP per request by
// virtue of the username format (e.g. a per-session suffix embedded in
// Username); the transport itself does no rotation.
func proxyTransport(cfg ClientConfig) (*http.Transport, error) {
	proxyURL, err := url.Parse(cfg.ProxyEndpoint)
	if err != nil {
		return nil, fmt.Errorf("parse proxy endpoint: %w", err)
	}
	proxyURL.User = url.UserPassword(cfg.ProxyUsername, cfg.ProxyPassword)

	return &http.Transport{
		Proxy: http.ProxyURL(proxyURL),
	}, nil
}

// get issues a GET to baseURL+path, applying the browser header set and
// waiting on the request-pacing token bucket once per call; retries made
// inside the retrying client are spaced by its backoff, not by the bucket.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, models.NewKindedError(models.KindUpstreamPermanent, "build request", err)
	}
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, models.NewKindedError(models.KindUpstreamTransient, "GET "+path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, models.NewKindedError(models.KindUpstreamTransient, "read response", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusProxyAuthRequired || resp.StatusCode >= 500 {
		return nil, models.NewKindedError(models.KindUpstreamTransient, "GET "+path, fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return nil, models.NewKindedError(models.KindUpstreamPermanent, "GET "+path, fmt.Errorf("status %d", resp.StatusCode))
	}

	return body, nil
}

// retryPolicy retries on 407, 429, 5xx, and network-level failures
// (connection reset, TLS handshake failure surface as non-nil err),
// per §4.2.
func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	switch resp.StatusCode {
	case http.StatusProxyAuthRequired, http.StatusTooManyRequests:
		return true, nil
	}
	if resp.StatusCode >= 500 {
		return true, nil
	}
	return false, nil
}

// Close releases idle connections held by the underlying transport.
func (c *Client) Close() {
	c.http.HTTPClient.CloseIdleConnections()
}
