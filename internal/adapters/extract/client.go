// Package extract downloads listing extracts published as CSV over HTTP.
package extract

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"airbnb_kpi/internal/adapters/observability"
	"airbnb_kpi/internal/domain"
	"airbnb_kpi/internal/storage/csvsource"
)

const maxBody = 256 << 20

type Client struct {
	base string
	hc   *http.Client
	key  string
	rl   *rate.Limiter
}

// New builds a client for base. key is optional and sent as X-API-Key.
func New(base, key string, rps int) (*Client, error) {
	if base == "" {
		return nil, errors.New("extract base URL is required")
	}
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		hc:   &http.Client{Timeout: 60 * time.Second},
		key:  key,
		rl:   rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

func (c *Client) extractURL(name string) string {
	return fmt.Sprintf("%s/extracts/%s.csv", c.base, url.PathEscape(name))
}

// LoadListings fetches the listing-month extract called name.
func (c *Client) LoadListings(ctx context.Context, name string) (domain.SourceTable, error) {
	body, err := c.get(ctx, c.extractURL(name))
	if err != nil {
		return domain.SourceTable{}, fmt.Errorf("extract %s: %w", name, err)
	}
	return csvsource.ParseListings(name, bytes.NewReader(body))
}

// LoadAmenities fetches the amenity flag extract called name.
func (c *Client) LoadAmenities(ctx context.Context, name string) (domain.AmenityTable, error) {
	body, err := c.get(ctx, c.extractURL(name))
	if err != nil {
		return domain.AmenityTable{}, fmt.Errorf("extract %s: %w", name, err)
	}
	return csvsource.ParseAmenities(name, bytes.NewReader(body))
}

var ErrUnauthorized = errors.New("extract: unauthorized")

// get performs a rate-limited GET and returns the body. 429 and transient 5xx
// are retried, honoring Retry-After when present.
func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	body, status, err := c.do(ctx, u)
	observability.ObserveExternal("extract", "extracts", status, time.Since(start))
	return body, err
}

func (c *Client) do(ctx context.Context, u string) ([]byte, int, error) {
	var lastErr error
	for i := 0; i < 4; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, 0, err
		}
		if c.key != "" {
			req.Header.Set("X-API-Key", c.key)
		}
		req.Header.Set("Accept", "text/csv")
		req.Header.Set("User-Agent", "airbnb-kpi/1.0")

		resp, err := c.hc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, 0, ctx.Err()
			}
			lastErr = err
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return nil, 0, ctx.Err()
			}
			return nil, 0, lastErr
		}
		status := resp.StatusCode

		switch resp.StatusCode {
		case http.StatusOK:
			b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
			resp.Body.Close()
			return b, status, err

		case http.StatusNotFound:
			resp.Body.Close()
			return nil, status, domain.ErrNotFound

		case http.StatusUnauthorized, http.StatusForbidden:
			resp.Body.Close()
			return nil, status, ErrUnauthorized

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("remote %d", resp.StatusCode)
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return nil, 0, ctx.Err()
			}
			return nil, status, lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return nil, status, fmt.Errorf("bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}
	return nil, 0, lastErr
}

// sleepCtx waits for d or returns false if ctx is done first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After (seconds or HTTP-date); 0 if absent.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff is 200ms doubling per attempt plus up to 50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	return base + time.Duration(0.5*float64(b[0])/255.0*float64(base))
}
