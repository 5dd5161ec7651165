package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "spotify")

var (
	ErrNotFound    = errors.New("spotify resource not found")
	ErrRateLimited = errors.New("spotify rate limit exceeded")
)

const DefaultBaseURL = "https://api.spotify.com/v1"

// ========================================================== //
// Client

// Client talks to the Web API. The http.Client it wraps is expected to
// attach credentials, e.g. one built from a client-credentials config.
type Client struct {
	http       *http.Client
	baseURL    string
	maxRetries int
	maxWait    time.Duration
}

func NewClient(httpClient *http.Client) *Client {
	// Work on a copy; the caller's client may be shared.
	hc := &http.Client{}
	if httpClient != nil {
		cp := *httpClient
		hc = &cp
	}
	if hc.Timeout == 0 {
		hc.Timeout = 15 * time.Second
	}
	return &Client{
		http:       hc,
		baseURL:    DefaultBaseURL,
		maxRetries: 5,
		maxWait:    30 * time.Second,
	}
}

// WithBaseURL points the client at another API root.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = strings.TrimRight(u, "/")
	return c
}

// ========================================================== //
// HTTP and retry logic

func (c *Client) get(ctx context.Context, endpoint string, query url.Values, v any) error {
	body, status, err := c.do(ctx, http.MethodGet, endpoint, query)
	if err != nil {
		return err
	}
	switch {
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, endpoint)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, endpoint)
	case status < 200 || status >= 300:
		return fmt.Errorf("spotify %s returned status %d", endpoint, status)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return nil
}

// do issues the request, retrying on 429 and 5xx. Absolute endpoints
// (pagination "next" links) are used as-is.
func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values) ([]byte, int, error) {
	target := endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		target = c.baseURL + endpoint
	}
	u, err := url.Parse(target)
	if err != nil {
		return nil, 0, fmt.Errorf("parse url %q: %w", target, err)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			q[k] = vs
		}
		u.RawQuery = q.Encode()
	}

	return c.fetchWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
}

func (c *Client) fetchWithRetry(ctx context.Context, newReq func() (*http.Request, error)) ([]byte, int, error) {
	var lastErr error
	var status int

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := newReq()
		if err != nil {
			return nil, 0, err
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, 0, ctx.Err()
			}
			lastErr = err
			if err := sleep(ctx, backoff(attempt)); err != nil {
				return nil, 0, err
			}
			continue
		}

		status = resp.StatusCode
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case status >= 200 && status < 300:
			return body, status, nil
		case status == http.StatusTooManyRequests:
			if attempt == c.maxRetries {
				return body, status, nil
			}
			wait := retryAfter(resp.Header.Get("Retry-After"), c.maxWait)
			log.WithFields(logrus.Fields{"url": req.URL.Path, "wait": wait}).Warn("rate limited")
			if err := sleep(ctx, wait); err != nil {
				return nil, 0, err
			}
		case status >= 500:
			lastErr = fmt.Errorf("spotify %s returned status %d", req.URL.Path, status)
			if err := sleep(ctx, backoff(attempt)); err != nil {
				return nil, 0, err
			}
		default:
			// client / 4xx error
			return body, status, nil
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("spotify request failed with status %d", status)
	}
	return nil, status, lastErr
}

func backoff(attempt int) time.Duration {
	base := 20 * time.Millisecond
	f := math.Pow(2, float64(attempt))
	jitter := time.Duration(rand.Intn(200)) * time.Millisecond
	return time.Duration(float64(base)*f) + jitter
}

func retryAfter(h string, max time.Duration) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil || secs < 0 {
		secs = 1
	}
	return min(time.Duration(secs)*time.Second, max)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
