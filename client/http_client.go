package client

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/proxy"
)

// defaultHTTPClient builds a fresh client so the cookie jar never lands on
// http.DefaultClient. Invalid proxy URLs fall back to a direct client.
func defaultHTTPClient(proxyURL string) (*http.Client, error) {
	baseTransport, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return &http.Client{}, nil
	}
	transport := baseTransport.Clone()
	if strings.TrimSpace(proxyURL) == "" {
		return &http.Client{Transport: transport}, nil
	}
	parsed, err := url.Parse(proxyURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return &http.Client{Transport: transport}, fmt.Errorf("%w: proxy url %q", ErrInvalidInput, proxyURL)
	}
	switch parsed.Scheme {
	case "http", "https":
		transport.Proxy = http.ProxyURL(parsed)
	case "socks5", "socks5h":
		dialer, err := proxy.FromURL(parsed, proxy.Direct)
		if err != nil {
			return &http.Client{Transport: baseTransport.Clone()}, err
		}
		transport.Proxy = nil
		if ctxDialer, ok := dialer.(proxy.ContextDialer); ok {
			transport.DialContext = ctxDialer.DialContext
		} else {
			transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			}
		}
	default:
		return &http.Client{Transport: transport}, fmt.Errorf("%w: unsupported proxy scheme %q", ErrInvalidInput, parsed.Scheme)
	}
	return &http.Client{Transport: transport}, nil
}
