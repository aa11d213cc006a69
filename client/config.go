package client

import (
	"net/http"
	"time"

	"github.com/famomatic/nicov1/internal/muxer"
)

// Config holds configuration for the niconico client.
type Config struct {
	// HTTPClient is the client used for making requests.
	// If nil, a client honoring ProxyURL is created.
	HTTPClient *http.Client

	// ProxyURL is the optional proxy URL (http, https or socks5).
	// If HTTPClient is provided, this field is ignored.
	ProxyURL string

	// CookieJar stores the login session and the media cookies set by
	// access-rights responses. If nil, an empty jar is created.
	CookieJar http.CookieJar

	// Logger receives debug and warning messages. Defaults to a no-op logger.
	Logger Logger

	// RequestTimeout bounds each API request when ctx has no deadline.
	// Media downloads are not bounded by it.
	RequestTimeout time.Duration

	// RequestHeaders are added to every API request after the default headers.
	RequestHeaders http.Header

	// SessionCacheTTL is how long watch sessions are reused per video id.
	// Zero selects 5 minutes; negative disables the cache.
	SessionCacheTTL time.Duration

	// SessionCacheSize bounds the number of cached watch sessions. Default 64.
	SessionCacheSize int

	// Muxer remuxes HLS streams. If nil, ffmpeg at FFmpegPath is used.
	Muxer muxer.Muxer

	// FFmpegPath is the ffmpeg executable. Default "ffmpeg" from PATH.
	FFmpegPath string

	// DownloadTransport controls retry/backoff for media requests.
	DownloadTransport DownloadTransportConfig

	// OnDownloadEvent receives download lifecycle events.
	OnDownloadEvent func(DownloadEvent)

	// Comment tunes comment backfill pacing and retries.
	Comment CommentConfig

	// Endpoints overrides service roots. Zero fields use production hosts.
	Endpoints Endpoints
}

// DownloadTransportConfig controls retry/backoff behavior for media requests.
type DownloadTransportConfig struct {
	MaxRetries       int
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
	RetryStatusCodes []int
}

// CommentConfig holds comment backfill defaults. Zero values select the
// engine defaults (1s interval, 5 retries, 60s retry wait, 5 key refreshes).
type CommentConfig struct {
	Interval        time.Duration
	MaxRetries      int
	RetryWait       time.Duration
	MaxKeyRefreshes int
}

// Endpoints are the service roots the client talks to.
type Endpoints struct {
	// WWW serves watch pages and the top page used to verify logins.
	WWW string
	// Account serves the login redirector.
	Account string
	// NvAPI serves metadata, access rights and thread keys.
	NvAPI string
	// Channel serves the public channel API.
	Channel string
}

const (
	defaultWWW     = "https://www.nicovideo.jp"
	defaultAccount = "https://account.nicovideo.jp"

	defaultSessionCacheTTL  = 5 * time.Minute
	defaultSessionCacheSize = 64
)

func (e Endpoints) withDefaults() Endpoints {
	if e.WWW == "" {
		e.WWW = defaultWWW
	}
	if e.Account == "" {
		e.Account = defaultAccount
	}
	if e.NvAPI == "" {
		e.NvAPI = nvapiBases().NvAPI
	}
	if e.Channel == "" {
		e.Channel = nvapiBases().Channel
	}
	return e
}
