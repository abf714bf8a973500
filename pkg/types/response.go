package types

import (
	"fmt"
	"io"
	"net/http"
)

// DefaultMaxBodySize caps how much of a response body is read when
// materializing a Response from *http.Response.
const DefaultMaxBodySize = 5 * 1024 * 1024

// Response is the already-fetched HTTP response the engine consumes. How the
// response was obtained is the caller's concern; the engine never performs
// I/O of its own.
type Response struct {
	// URL is the final resolved URL after redirects.
	URL string

	// StatusCode is the HTTP status of the response.
	StatusCode int

	// Headers holds response headers. Matching against header names is
	// case-insensitive regardless of the casing used here.
	Headers http.Header

	// Cookies maps cookie name to value, collected from Set-Cookie headers.
	Cookies map[string]string

	// Body is the decoded response body.
	Body []byte
}

// ResponseFromHTTP materializes a Response from a live *http.Response,
// reading at most maxBody bytes of the body (DefaultMaxBodySize when <= 0).
// The body reader is consumed but not closed.
func ResponseFromHTTP(resp *http.Response, maxBody int64) (*Response, error) {
	if maxBody <= 0 {
		maxBody = DefaultMaxBodySize
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	cookies := make(map[string]string)
	for _, c := range resp.Cookies() {
		cookies[c.Name] = c.Value
	}

	finalURL := ""
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Response{
		URL:        finalURL,
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Cookies:    cookies,
		Body:       body,
	}, nil
}
