package client

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/famomatic/nicov1/internal/cookies"
	"github.com/famomatic/nicov1/internal/downloader"
	"github.com/famomatic/nicov1/internal/muxer"
	"github.com/famomatic/nicov1/internal/nvapi"
)

// Client is the high-level niconico client. It is safe for concurrent use;
// the auth state is guarded and the session cache is synchronized.
type Client struct {
	config     Config
	httpClient *http.Client
	jar        http.CookieJar
	logger     Logger
	endpoints  Endpoints
	muxer      muxer.Muxer
	now        func() time.Time

	sessions *expirable.LRU[string, *WatchSession]
	keys     singleflight.Group

	authMu sync.RWMutex
	auth   authState
}

type authState struct {
	loggedIn bool
	premium  bool
}

func nvapiBases() nvapi.Bases {
	return nvapi.DefaultBases
}

// New creates a new niconico client.
func New(config Config) *Client {
	return NewClient(config)
}

// NewClient creates a new niconico client.
func NewClient(config Config) *Client {
	logger := config.Logger
	if logger == nil {
		logger = nopLogger{}
	}

	jar := config.CookieJar
	if jar == nil && config.HTTPClient != nil {
		jar = config.HTTPClient.Jar
	}
	if jar == nil {
		created, err := cookies.NewJar()
		if err != nil {
			logger.Warnf("cookie jar: %v", err)
		} else {
			jar = created
		}
	}

	// copy so the caller's client is never mutated
	var httpClient *http.Client
	if config.HTTPClient != nil {
		cp := *config.HTTPClient
		httpClient = &cp
	} else {
		created, err := defaultHTTPClient(config.ProxyURL)
		if err != nil {
			logger.Warnf("proxy %q ignored: %v", config.ProxyURL, err)
		}
		httpClient = created
	}
	httpClient.Jar = jar

	mux := config.Muxer
	if mux == nil {
		ff := muxer.NewFFmpegMuxer(config.FFmpegPath)
		ff.Logf = logger.Debugf
		mux = ff
	}

	c := &Client{
		config:     config,
		httpClient: httpClient,
		jar:        jar,
		logger:     logger,
		endpoints:  config.Endpoints.withDefaults(),
		muxer:      mux,
		now:        time.Now,
	}
	if ttl := config.SessionCacheTTL; ttl >= 0 {
		if ttl == 0 {
			ttl = defaultSessionCacheTTL
		}
		size := config.SessionCacheSize
		if size <= 0 {
			size = defaultSessionCacheSize
		}
		c.sessions = expirable.NewLRU[string, *WatchSession](size, nil, ttl)
	}
	return c
}

func (c *Client) bases() nvapi.Bases {
	return nvapi.Bases{NvAPI: c.endpoints.NvAPI, Channel: c.endpoints.Channel}
}

// topPage is the URL a successful login lands on.
func (c *Client) topPage() string {
	return strings.TrimRight(c.endpoints.WWW, "/") + "/"
}

func (c *Client) cachedSession(videoID string) (*WatchSession, bool) {
	if c.sessions == nil {
		return nil, false
	}
	return c.sessions.Get(videoID)
}

func (c *Client) storeSession(videoID string, s *WatchSession) {
	if c.sessions != nil {
		c.sessions.Add(videoID, s)
	}
}

// InvalidateSessions drops every cached watch session.
func (c *Client) InvalidateSessions() {
	if c.sessions != nil {
		c.sessions.Purge()
	}
}

func (c *Client) transportConfig() downloader.TransportConfig {
	t := c.config.DownloadTransport
	return downloader.TransportConfig{
		MaxRetries:       t.MaxRetries,
		InitialBackoff:   t.InitialBackoff,
		MaxBackoff:       t.MaxBackoff,
		RetryStatusCodes: t.RetryStatusCodes,
	}
}

// cookieValue returns the named cookie the jar would send to rawURL.
func (c *Client) cookieValue(rawURL, name string) string {
	if c.jar == nil {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	for _, ck := range c.jar.Cookies(u) {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}
