package calcom

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"
)

// do issues one API call with the query-string credential attached, retrying
// with exponential backoff while the service answers 429. The request body is
// rebuilt from the byte slice on every attempt so replays are safe.
//
// Delay before attempt k (k >= 2) is baseRetryDelay * 2^(k-2) plus up to one
// second of jitter. Non-429 error statuses and transport-level failures are
// returned immediately, unretried. When all attempts are rate limited the
// final failure is wrapped in a RateLimitError.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte) ([]byte, error) {
	apiKey, err := c.resolveAPIKey(ctx)
	if err != nil {
		return nil, err
	}

	if query == nil {
		query = url.Values{}
	}
	query.Set("apiKey", apiKey)
	fullURL := c.baseURL + path + "?" + query.Encode()

	delay := baseRetryDelay
	var lastStatusErr *HTTPStatusError

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			c.sleep(delay + time.Duration(c.jitter()*float64(time.Second)))
			delay *= 2
		}

		raw, err := c.doOnce(ctx, method, fullURL, body)
		if err == nil {
			return raw, nil
		}

		var statusErr *HTTPStatusError
		if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusTooManyRequests {
			return nil, err
		}
		lastStatusErr = statusErr
	}

	return nil, &RateLimitError{Attempts: maxAttempts, Last: lastStatusErr}
}

func (c *Client) doOnce(ctx context.Context, method, fullURL string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, fmt.Errorf("calcom: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, doErr := c.resolvedHTTPClient().Do(req)
	if doErr != nil {
		return nil, fmt.Errorf("calcom: %s %s: %w", method, req.URL.Path, doErr)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBodySize))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        redactedURL(req.URL),
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("calcom: read response body: %w", err)
	}
	return buf, nil
}

// redactedURL strips the query string so the credential never lands in error
// messages or logs.
func redactedURL(u *url.URL) string {
	clean := *u
	clean.RawQuery = ""
	return clean.String()
}

func uniformJitter() float64 {
	return rand.Float64()
}
