package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxAPIBody bounds bodies read by send, including storyboard images. A
// larger body is an error, never a truncated result.
var maxAPIBody int64 = 32 << 20

func withDefaultTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func applyRequestHeaders(req *http.Request, headers http.Header) {
	for k, vals := range headers {
		req.Header.Del(k)
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
}

// apiHeaders returns the static table for method overlaid with Config.RequestHeaders.
func (c *Client) apiHeaders(method string) http.Header {
	out := make(http.Header)
	for k, v := range headerTable(method) {
		out.Set(k, v)
	}
	for k, vals := range c.config.RequestHeaders {
		out.Del(k)
		for _, v := range vals {
			out.Add(k, v)
		}
	}
	return out
}

// apiResponse is a fully read API response.
type apiResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	FinalURL   *url.URL
}

// send performs one API request with the default headers, then extra.
func (c *Client) send(ctx context.Context, method, rawURL string, body io.Reader, extra http.Header) (*apiResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	applyRequestHeaders(req, c.apiHeaders(method))
	applyRequestHeaders(req, extra)

	c.debugf("%s %s", method, rawURL)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIBody+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxAPIBody {
		return nil, &APIError{Op: method + " " + req.URL.Path, StatusCode: resp.StatusCode, Reason: fmt.Sprintf("response body exceeds %d bytes", maxAPIBody)}
	}
	c.debugf("%s %s -> %d (%d bytes)", method, rawURL, resp.StatusCode, len(data))
	return &apiResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
		FinalURL:   resp.Request.URL,
	}, nil
}

func (c *Client) get(ctx context.Context, rawURL string, extra http.Header) (*apiResponse, error) {
	return c.send(ctx, http.MethodGet, rawURL, nil, extra)
}

func (c *Client) postJSON(ctx context.Context, rawURL string, payload any, extra http.Header) (*apiResponse, error) {
	var body io.Reader
	headers := extra.Clone()
	if headers == nil {
		headers = make(http.Header)
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
		headers.Set("Content-Type", "application/json")
	}
	return c.send(ctx, http.MethodPost, rawURL, body, headers)
}

func (c *Client) postForm(ctx context.Context, rawURL string, form url.Values) (*apiResponse, error) {
	headers := http.Header{}
	headers.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.send(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()), headers)
}
