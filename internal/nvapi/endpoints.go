package nvapi

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Base selects the API host an endpoint lives on.
type Base int

const (
	BaseNvAPI Base = iota
	BaseChannel
)

// Bases holds the host roots; tests swap them for httptest servers.
type Bases struct {
	NvAPI   string
	Channel string
}

// DefaultBases are the production hosts.
var DefaultBases = Bases{
	NvAPI:   "https://nvapi.nicovideo.jp",
	Channel: "https://public-api.ch.nicovideo.jp",
}

// Endpoint is one read-only metadata endpoint.
type Endpoint struct {
	Name          string
	Base          Base
	Path          string // may contain %s placeholders for path arguments
	LoginRequired bool
	WantStatus    int
}

var (
	Videos      = Endpoint{Name: "videos", Path: "/v1/videos", WantStatus: http.StatusOK}
	VideoTags   = Endpoint{Name: "video_tags", Path: "/v1/videos/%s/tags", WantStatus: http.StatusOK}
	MylistByID  = Endpoint{Name: "mylist", Path: "/v2/mylists/%s", WantStatus: http.StatusOK}
	SeriesByID  = Endpoint{Name: "series", Path: "/v1/series/%s", WantStatus: http.StatusOK}
	History     = Endpoint{Name: "history", Path: "/v1/users/me/watch/history", LoginRequired: true, WantStatus: http.StatusOK}
	Genres      = Endpoint{Name: "genres", Path: "/v2/genres", WantStatus: http.StatusOK}
	PopularTags = Endpoint{Name: "popular_tags", Path: "/v1/genres/%s/popular-tags", WantStatus: http.StatusOK}
	Ranking     = Endpoint{Name: "ranking", Path: "/v1/ranking/genre/%s", WantStatus: http.StatusOK}
	SearchVideo = Endpoint{Name: "search_video", Path: "/v2/search/video", WantStatus: http.StatusOK}
	UserByID    = Endpoint{Name: "user", Path: "/v1/users/%s", WantStatus: http.StatusOK}
	UserVideos  = Endpoint{Name: "user_videos", Path: "/v3/users/%s/videos", WantStatus: http.StatusOK}
	ThreadKeys  = Endpoint{Name: "thread_key", Path: "/v1/comment/keys/thread", WantStatus: http.StatusOK}
	ChannelByID = Endpoint{Name: "channel", Base: BaseChannel, Path: "/v2/open/channels/%s", WantStatus: http.StatusOK}
)

// URL renders the endpoint against bases with escaped path arguments and query.
func (e Endpoint) URL(bases Bases, query url.Values, args ...string) string {
	root := bases.NvAPI
	if e.Base == BaseChannel {
		root = bases.Channel
	}
	escaped := make([]any, len(args))
	for i, a := range args {
		escaped[i] = url.PathEscape(a)
	}
	path := e.Path
	if len(escaped) > 0 {
		path = fmt.Sprintf(e.Path, escaped...)
	}
	u := strings.TrimRight(root, "/") + path
	if encoded := query.Encode(); encoded != "" {
		u += "?" + encoded
	}
	return u
}
