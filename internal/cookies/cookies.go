// Package cookies loads Netscape cookies.txt exports into a cookie jar.
package cookies

import (
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"

	"github.com/mengzhuo/cookiestxt"
	"golang.org/x/net/publicsuffix"
)

// NewJar returns an empty jar that scopes domain cookies by public suffix.
func NewJar() (*cookiejar.Jar, error) {
	return cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
}

// Load parses a cookies.txt stream into a new jar.
func Load(r io.Reader) (*cookiejar.Jar, error) {
	list, err := cookiestxt.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse cookies: %w", err)
	}
	jar, err := NewJar()
	if err != nil {
		return nil, err
	}
	Add(jar, list)
	return jar, nil
}

// LoadFile parses the cookies.txt file at path.
func LoadFile(path string) (*cookiejar.Jar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cookies file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Add stores cookies in jar under the host each cookie names.
func Add(jar http.CookieJar, list []*http.Cookie) {
	byHost := make(map[string][]*http.Cookie)
	secure := make(map[string]bool)
	for _, c := range list {
		host := strings.TrimPrefix(c.Domain, ".")
		if host == "" {
			continue
		}
		byHost[host] = append(byHost[host], c)
		if c.Secure {
			secure[host] = true
		}
	}
	for host, cs := range byHost {
		scheme := "http"
		if secure[host] {
			scheme = "https"
		}
		jar.SetCookies(&url.URL{Scheme: scheme, Host: host, Path: "/"}, cs)
	}
}
