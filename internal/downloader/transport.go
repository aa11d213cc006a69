package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// TransportConfig controls retry/backoff behavior for media requests.
type TransportConfig struct {
	MaxRetries       int
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
	RetryStatusCodes []int
}

// HTTPStatusError is returned for unexpected media response statuses.
type HTTPStatusError struct {
	URL        string
	StatusCode int
	RetryAfter time.Duration
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("download failed: status=%d", e.StatusCode)
}

var defaultRetryStatusCodes = []int{
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// withDefaults fills zero fields: no retries, 500ms initial and 3s maximum
// back-off, and the usual throttling and gateway statuses.
func (c TransportConfig) withDefaults() TransportConfig {
	c.MaxRetries = max(c.MaxRetries, 0)
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 500 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 3 * time.Second
	}
	if len(c.RetryStatusCodes) == 0 {
		c.RetryStatusCodes = defaultRetryStatusCodes
	}
	return c
}

func (c TransportConfig) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.InitialBackoff
	b.MaxInterval = c.MaxBackoff
	b.RandomizationFactor = 0
	return b
}

// retryable reports whether err is worth another attempt. Status errors are
// retried only for the configured codes and cancellation never is.
func (c TransportConfig) retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return slices.Contains(c.RetryStatusCodes, statusErr.StatusCode)
	}
	return true
}

// retryOp adapts a request failure to the backoff package: non-retryable
// errors stop immediately and Retry-After overrides the computed wait.
func retryOp(err error, cfg TransportConfig) error {
	if !cfg.retryable(err) {
		return backoff.Permanent(err)
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) && statusErr.RetryAfter > 0 {
		return &backoff.RetryAfterError{Duration: statusErr.RetryAfter}
	}
	return err
}

// do sends method to rawURL until it answers with one of the ok statuses or
// the retry budget is spent. The caller owns the returned body.
func do(
	ctx context.Context,
	client *http.Client,
	method string,
	rawURL string,
	headers http.Header,
	cfg TransportConfig,
	ok ...int,
) (*http.Response, error) {
	cfg = cfg.withDefaults()
	var lastErr error
	op := func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		applyRequestHeaders(req, headers)
		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			return nil, retryOp(err, cfg)
		}
		if slices.Contains(ok, resp.StatusCode) {
			return resp, nil
		}
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		lastErr = &HTTPStatusError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
		return nil, retryOp(lastErr, cfg)
	}
	resp, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(cfg.backOff()),
		backoff.WithMaxTries(uint(cfg.MaxRetries+1)),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, err
	}
	return resp, nil
}

func getBytes(ctx context.Context, client *http.Client, rawURL string, headers http.Header, cfg TransportConfig) ([]byte, error) {
	resp, err := do(ctx, client, http.MethodGet, rawURL, headers, cfg, http.StatusOK)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func parseRetryAfter(raw string) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(raw); err == nil {
		d := time.Until(when)
		if d < 0 {
			return 0
		}
		return d
	}
	return 0
}
