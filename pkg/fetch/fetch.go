// Package fetch materializes types.Response values from live URLs. It is a
// collaborator of the engine, not part of it: the core never performs I/O,
// and callers with their own HTTP stack can skip this package entirely.
package fetch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	retryablehttp "github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"github.com/blackarrowsec/wap/pkg/types"
)

const defaultUserAgent = "Mozilla/5.0 (compatible; wap/1.0; +https://github.com/blackarrowsec/wap)"

// Client fetches pages with retries and sane defaults.
type Client struct {
	hc        *retryablehttp.Client
	userAgent string
	maxBody   int64
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout. Default 15s.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.hc.HTTPClient.Timeout = d
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithMaxBodySize caps how many body bytes are read per response.
func WithMaxBodySize(n int64) Option {
	return func(c *Client) {
		c.maxBody = n
	}
}

// WithRetries sets the maximum number of retries. Default 2.
func WithRetries(n int) Option {
	return func(c *Client) {
		c.hc.RetryMax = n
	}
}

// New creates a fetch client.
func New(opts ...Option) *Client {
	hc := retryablehttp.NewClient()
	hc.RetryMax = 2
	hc.HTTPClient.Timeout = 15 * time.Second
	hc.Logger = nil // retry chatter is noise; failures surface as errors

	c := &Client{
		hc:        hc,
		userAgent: defaultUserAgent,
		maxBody:   types.DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get fetches url and materializes the response for the engine. Redirects
// are followed; the Response carries the final URL.
func (c *Client) Get(ctx context.Context, url string) (*types.Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	out, err := types.ResponseFromHTTP(resp, c.maxBody)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"url":    out.URL,
		"status": out.StatusCode,
		"bytes":  len(out.Body),
	}).Debug("fetched page")

	return out, nil
}
