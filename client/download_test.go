package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/famomatic/nicov1/internal/dmc"
	"github.com/famomatic/nicov1/internal/nvapi"
)

// hlsGrantHandler answers the HLS access-rights request with a content URL on
// the same server and sets the media cookie.
func hlsGrantHandler(t *testing.T, contentPath string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/access-rights/hls") {
			t.Errorf("unexpected access-rights path %s", r.URL.Path)
		}
		http.SetCookie(w, &http.Cookie{Name: "domand_bid", Value: "bid123", Path: "/"})
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"meta":{"status":201},"data":{"contentUrl":"http://%s%s","createTime":"2024-01-01T00:00:00Z","expireTime":"2099-01-01T00:00:00Z"}}`, r.Host, contentPath)
	}
}

func TestDownload_LabelNotAvailable(t *testing.T) {
	var calls int32
	c := New(Config{HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("unexpected request")
	})}})
	_, err := c.Download(context.Background(), testSession("http://comments.invalid"), "4k", t.TempDir(), DownloadOptions{})
	var derr *DownloadError
	if !errors.As(err, &derr) || derr.Reason != "label not available" {
		t.Fatalf("Download() error = %v, want label not available", err)
	}
	if got := atomic.LoadInt32(&calls); got != 0 {
		t.Fatalf("requests = %d, want 0", got)
	}
}

func TestDownload_RefusesExistingTarget(t *testing.T) {
	var calls int32
	c := New(Config{HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("unexpected request")
	})}})
	session := testSession("http://comments.invalid")
	dir := t.TempDir()
	target := filepath.Join(dir, "sm9_Test_Video.mp4")
	if err := os.WriteFile(target, []byte("keep me"), 0o644); err != nil {
		t.Fatalf("seed target: %v", err)
	}

	_, err := c.Download(context.Background(), session, "1080p", dir, DownloadOptions{})
	var derr *DownloadError
	if !errors.As(err, &derr) || derr.Reason != "already exists" {
		t.Fatalf("Download() error = %v, want already exists", err)
	}
	if got, _ := os.ReadFile(target); string(got) != "keep me" {
		t.Fatalf("target overwritten: %q", got)
	}
	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Fatalf("requests = %d, want 0", n)
	}
}

func TestDownload_HLSRemux(t *testing.T) {
	srv := httptest.NewServer(hlsGrantHandler(t, "/hls/master.m3u8"))
	defer srv.Close()

	mux := &fakeMuxer{available: true}
	var (
		mu     sync.Mutex
		events []DownloadEvent
	)
	c := newTestClient(t, srv, func(cfg *Config) {
		cfg.Muxer = mux
		cfg.OnDownloadEvent = func(e DownloadEvent) {
			mu.Lock()
			events = append(events, e)
			mu.Unlock()
		}
	})
	var last Progress
	dir := filepath.Join(t.TempDir(), "nested")
	res, err := c.Download(context.Background(), testSession(srv.URL), "1080p", dir, DownloadOptions{
		OnProgress: func(p Progress) { last = p },
	})
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if res.OutputPath != filepath.Join(dir, "sm9_Test_Video.mp4") || res.Bytes != int64(len("remuxed")) {
		t.Fatalf("Download() result = %+v", res)
	}
	if got, _ := os.ReadFile(res.OutputPath); string(got) != "remuxed" {
		t.Fatalf("output = %q", got)
	}
	if mux.inputURL != srv.URL+"/hls/master.m3u8" {
		t.Fatalf("remux input = %q", mux.inputURL)
	}
	if got := mux.headers.Get("Cookie"); got != "domand_bid=bid123" {
		t.Fatalf("remux cookie header = %q", got)
	}
	if last.Bytes != res.Bytes {
		t.Fatalf("last progress = %+v", last)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(events) == 0 || events[len(events)-1].Stage != "download" || events[len(events)-1].Phase != "complete" {
		t.Fatalf("events = %+v", events)
	}
	leftovers, _ := filepath.Glob(filepath.Join(dir, ".*"))
	if len(leftovers) != 0 {
		t.Fatalf("partial files left: %v", leftovers)
	}
}

func TestDownload_HLSRemuxFailure(t *testing.T) {
	srv := httptest.NewServer(hlsGrantHandler(t, "/hls/master.m3u8"))
	defer srv.Close()

	c := newTestClient(t, srv, func(cfg *Config) {
		cfg.Muxer = &fakeMuxer{available: true, remuxErr: errors.New("exit status 1")}
	})
	dir := t.TempDir()
	_, err := c.Download(context.Background(), testSession(srv.URL), "720p", dir, DownloadOptions{})
	if !errors.Is(err, ErrDownloadFailed) {
		t.Fatalf("Download() error = %v, want ErrDownloadFailed", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "sm9_Test_Video.mp4")); !os.IsNotExist(statErr) {
		t.Fatalf("target exists after failed remux: %v", statErr)
	}
}

func TestDownload_HLSInProcess(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/watch/sm9/access-rights/hls", hlsGrantHandler(t, "/hls/master.m3u8"))
	mux.HandleFunc("/hls/", func(w http.ResponseWriter, r *http.Request) {
		if ck, err := r.Cookie("domand_bid"); err != nil || ck.Value != "bid123" {
			t.Errorf("%s: media cookie missing", r.URL.Path)
		}
		switch r.URL.Path {
		case "/hls/master.m3u8":
			fmt.Fprint(w, "#EXTM3U\n"+
				"#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID=\"audio\",NAME=\"main\",DEFAULT=YES,URI=\"audio.m3u8\"\n"+
				"#EXT-X-STREAM-INF:BANDWIDTH=3000000,AUDIO=\"audio\"\n"+
				"video.m3u8\n")
		case "/hls/video.m3u8":
			fmt.Fprint(w, "#EXTM3U\n#EXT-X-TARGETDURATION:6\n#EXTINF:6.0,\nv1.ts\n#EXTINF:6.0,\nv2.ts\n#EXT-X-ENDLIST\n")
		case "/hls/audio.m3u8":
			fmt.Fprint(w, "#EXTM3U\n#EXT-X-TARGETDURATION:6\n#EXTINF:6.0,\na1.aac\n#EXT-X-ENDLIST\n")
		case "/hls/v1.ts":
			fmt.Fprint(w, "V1")
		case "/hls/v2.ts":
			fmt.Fprint(w, "V2")
		case "/hls/a1.aac":
			fmt.Fprint(w, "A1")
		default:
			http.NotFound(w, r)
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	muxer := &fakeMuxer{available: true}
	c := newTestClient(t, srv, func(cfg *Config) { cfg.Muxer = muxer })
	var progress []int64
	res, err := c.Download(context.Background(), testSession(srv.URL), "1080p", t.TempDir(), DownloadOptions{
		HLSMode:    HLSInProcess,
		OnProgress: func(p Progress) { progress = append(progress, p.Bytes) },
	})
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if got, _ := os.ReadFile(res.OutputPath); string(got) != "V1V2A1" {
		t.Fatalf("output = %q, want V1V2A1", got)
	}
	if len(muxer.merged) != 2 {
		t.Fatalf("merge not called")
	}
	for _, p := range muxer.merged {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Fatalf("intermediate %s not removed", p)
		}
	}
	if want := []int64{2, 4, 6}; fmt.Sprint(progress) != fmt.Sprint(want) {
		t.Fatalf("progress = %v, want %v", progress, want)
	}
}

func TestDownload_Progressive(t *testing.T) {
	const payload = "progressive-media-bytes"
	var srvURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/sessions", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodOptions:
			w.WriteHeader(http.StatusOK)
		case http.MethodPost:
			w.WriteHeader(http.StatusCreated)
			fmt.Fprintf(w, `{"meta":{"status":201},"data":{"session":{"id":"s1","content_uri":"%s/media/v.mp4","keep_method":{"heartbeat":{"lifetime":120000}}}}}`, srvURL)
		}
	})
	mux.HandleFunc("/media/v.mp4", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", fmt.Sprint(len(payload)))
		if r.Method == http.MethodHead {
			return
		}
		fmt.Fprint(w, payload)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	srvURL = srv.URL

	session := testSession(srv.URL)
	session.Media.Delivery = &nvapi.Delivery{}
	session.Media.Delivery.Movie.Session = nvapi.DeliverySession{
		Videos:            []string{"archive_h264_1080p", "archive_h264_720p"},
		Audios:            []string{"archive_aac_192kbps"},
		Protocols:         []string{"http"},
		AuthTypes:         map[string]string{"http": "ht2"},
		HeartbeatLifetime: 120000,
		URLs:              []nvapi.DeliveryURL{{URL: srv.URL + "/api/sessions"}},
	}

	c := newTestClient(t, srv, nil)
	var last Progress
	res, err := c.Download(context.Background(), session, "720p", t.TempDir(), DownloadOptions{
		Mode:       ModeProgressive,
		OnProgress: func(p Progress) { last = p },
	})
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if got, _ := os.ReadFile(res.OutputPath); string(got) != payload {
		t.Fatalf("output = %q", got)
	}
	if last.Bytes != int64(len(payload)) || last.Total != int64(len(payload)) {
		t.Fatalf("last progress = %+v", last)
	}
}

func TestDownload_ProgressiveHeartbeatFailure(t *testing.T) {
	var srvURL string
	var beats int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/sessions", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodOptions:
			w.WriteHeader(http.StatusOK)
		case http.MethodPost:
			w.WriteHeader(http.StatusCreated)
			fmt.Fprintf(w, `{"meta":{"status":201},"data":{"session":{"id":"s1","content_uri":"%s/media/v.mp4","keep_method":{"heartbeat":{"lifetime":1000}}}}}`, srvURL)
		}
	})
	mux.HandleFunc("/api/sessions/s1", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&beats, 1)
		w.WriteHeader(http.StatusForbidden)
	})
	mux.HandleFunc("/media/v.mp4", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		if r.Method == http.MethodHead {
			return
		}
		fmt.Fprint(w, "first-chunk")
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		select {
		case <-r.Context().Done():
		case <-time.After(10 * time.Second):
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	srvURL = srv.URL

	session := testSession(srv.URL)
	session.Media.Delivery = &nvapi.Delivery{}
	session.Media.Delivery.Movie.Session = nvapi.DeliverySession{
		Videos:            []string{"archive_h264_1080p"},
		Audios:            []string{"archive_aac_192kbps"},
		Protocols:         []string{"http"},
		AuthTypes:         map[string]string{"http": "ht2"},
		HeartbeatLifetime: 1000,
		URLs:              []nvapi.DeliveryURL{{URL: srv.URL + "/api/sessions"}},
	}

	c := newTestClient(t, srv, nil)
	dir := t.TempDir()
	_, err := c.Download(context.Background(), session, "1080p", dir, DownloadOptions{Mode: ModeProgressive})
	if !errors.Is(err, ErrDownloadFailed) {
		t.Fatalf("Download() error = %v, want ErrDownloadFailed", err)
	}
	var statusErr *dmc.HTTPStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusForbidden {
		t.Fatalf("Download() error = %v, want heartbeat status 403 in chain", err)
	}
	if atomic.LoadInt32(&beats) == 0 {
		t.Fatalf("heartbeat never sent")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("files left after failed download: %v", entries)
	}
}

func TestDownload_ProgressiveReleasesSessionOnPanic(t *testing.T) {
	var srvURL string
	var beats int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/sessions", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodOptions:
			w.WriteHeader(http.StatusOK)
		case http.MethodPost:
			w.WriteHeader(http.StatusCreated)
			fmt.Fprintf(w, `{"meta":{"status":201},"data":{"session":{"id":"s1","content_uri":"%s/media/v.mp4","keep_method":{"heartbeat":{"lifetime":1000}}}}}`, srvURL)
		}
	})
	mux.HandleFunc("/api/sessions/s1", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&beats, 1)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"meta":{"status":201},"data":{"session":{"id":"s1","keep_method":{"heartbeat":{"lifetime":1000}}}}}`)
	})
	mux.HandleFunc("/media/v.mp4", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "5")
		if r.Method == http.MethodHead {
			return
		}
		fmt.Fprint(w, "bytes")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	srvURL = srv.URL

	session := testSession(srv.URL)
	session.Media.Delivery = &nvapi.Delivery{}
	session.Media.Delivery.Movie.Session = nvapi.DeliverySession{
		Videos:            []string{"archive_h264_1080p"},
		Audios:            []string{"archive_aac_192kbps"},
		Protocols:         []string{"http"},
		AuthTypes:         map[string]string{"http": "ht2"},
		HeartbeatLifetime: 1000,
		URLs:              []nvapi.DeliveryURL{{URL: srv.URL + "/api/sessions"}},
	}

	c := newTestClient(t, srv, nil)
	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("progress callback panic did not propagate")
			}
		}()
		_, _ = c.Download(context.Background(), session, "1080p", t.TempDir(), DownloadOptions{
			Mode:       ModeProgressive,
			OnProgress: func(Progress) { panic("progress sink broke") },
		})
	}()

	// The first beat would be due one second after the session opened.
	time.Sleep(1500 * time.Millisecond)
	if got := atomic.LoadInt32(&beats); got != 0 {
		t.Fatalf("heartbeats after panic = %d, want 0", got)
	}
}

func TestOutputFileName_ReplacesSeparators(t *testing.T) {
	s := &WatchSession{}
	s.Video.ID = "sm9"
	s.Video.Title = `a/b\c`
	if got := OutputFileName(s); got != "sm9_a_b_c.mp4" {
		t.Fatalf("OutputFileName() = %q", got)
	}
}
