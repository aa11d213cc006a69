package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/famomatic/nicov1/internal/nvapi"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// newTestClient points every endpoint at srv.
func newTestClient(t *testing.T, srv *httptest.Server, mutate func(*Config)) *Client {
	t.Helper()
	cfg := Config{
		HTTPClient: srv.Client(),
		Endpoints: Endpoints{
			WWW:     srv.URL,
			Account: srv.URL,
			NvAPI:   srv.URL,
			Channel: srv.URL,
		},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return New(cfg)
}

func setPremium(c *Client, premium bool) {
	c.authMu.Lock()
	c.auth = authState{loggedIn: true, premium: premium}
	c.authMu.Unlock()
}

func testSession(server string) *WatchSession {
	s := &WatchSession{}
	s.Client.WatchID = "sm9"
	s.Video.ID = "sm9"
	s.Video.Title = "Test/Video"
	s.Media.Domand = &nvapi.Domand{
		Videos: []nvapi.DomandVideo{
			{ID: "video-h264-1080p", IsAvailable: true, Label: "1080p"},
			{ID: "video-h264-720p", IsAvailable: true, Label: "720p"},
			{ID: "video-h264-360p", IsAvailable: false, Label: "360p"},
		},
		Audios: []nvapi.DomandAudio{
			{ID: "audio-aac-64kbps", IsAvailable: true, QualityLevel: 0},
			{ID: "audio-aac-192kbps", IsAvailable: true, QualityLevel: 1},
		},
		IsStoryboardAvailable: true,
		AccessRightKey:        "ark-token",
	}
	s.Comment.NvComment = nvapi.NvComment{
		ThreadKey: "thread-key-1",
		Server:    server,
		Params: nvapi.NvCommentParams{
			Targets:  []nvapi.NvCommentTarget{{ID: "1173108780", Fork: "main"}, {ID: "1173108780", Fork: "easy"}},
			Language: "ja-jp",
		},
	}
	return s
}

// fakeMuxer records calls and writes placeholder outputs.
type fakeMuxer struct {
	mu        sync.Mutex
	available bool
	remuxErr  error
	inputURL  string
	headers   http.Header
	merged    []string
}

func (f *fakeMuxer) Available() bool { return f.available }

func (f *fakeMuxer) Remux(_ context.Context, inputURL string, headers http.Header, outputPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputURL = inputURL
	f.headers = headers.Clone()
	if f.remuxErr != nil {
		return f.remuxErr
	}
	return os.WriteFile(outputPath, []byte("remuxed"), 0o644)
}

func (f *fakeMuxer) Merge(_ context.Context, videoPath, audioPath, outputPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.merged = []string{videoPath, audioPath}
	v, err := os.ReadFile(videoPath)
	if err != nil {
		return err
	}
	a, err := os.ReadFile(audioPath)
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, append(v, a...), 0o644)
}
