package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/famomatic/nicov1/internal/nvapi"
)

func TestGetComments_TimedRequiresPremium(t *testing.T) {
	var calls int32
	c := New(Config{HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("unexpected request")
	})}})
	setPremium(c, false)

	_, err := c.GetComments(context.Background(), testSession("http://comments.invalid"), CommentQuery{When: time.Unix(1700000000, 0)})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || !errors.Is(err, ErrPremiumRequired) {
		t.Fatalf("GetComments() error = %v, want APIError wrapping ErrPremiumRequired", err)
	}
	if got := atomic.LoadInt32(&calls); got != 0 {
		t.Fatalf("requests = %d, want 0", got)
	}
}

func TestGetComments_RequestShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/threads" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL)
		}
		if got := r.Header.Get("X-Frontend-Id"); got != "6" {
			t.Errorf("X-Frontend-Id = %q", got)
		}
		var body nvapi.CommentRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if body.ThreadKey != "thread-key-1" || body.Additionals.When != 1700000000 {
			t.Errorf("body = %+v", body)
		}
		var params nvapi.NvCommentParams
		if err := json.Unmarshal([]byte(body.Params), &params); err != nil || len(params.Targets) != 2 {
			t.Errorf("params = %q (%v)", body.Params, err)
		}
		fmt.Fprint(w, `{"meta":{"status":200},"data":{"globalComments":[{"id":"1","count":2}],"threads":[{"id":"1","fork":"main","commentCount":2,"comments":[{"id":"c2","no":2,"body":"b","postedAt":"2023-11-14T22:13:20+09:00"},{"id":"c1","no":1,"body":"a","postedAt":"2023-11-14T22:13:10+09:00"}]}]}}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)
	setPremium(c, true)
	data, err := c.GetComments(context.Background(), testSession(srv.URL), CommentQuery{When: time.Unix(1700000000, 0)})
	if err != nil {
		t.Fatalf("GetComments() error = %v", err)
	}
	if len(data.Threads) != 1 || len(data.Threads[0].Comments) != 2 || data.Threads[0].Comments[0].No != 2 {
		t.Fatalf("GetComments() = %+v", data)
	}
}

func TestGetComments_ExpiredToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"meta":{"status":400,"errorCode":"EXPIRED_TOKEN"}}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)
	_, err := c.GetComments(context.Background(), testSession(srv.URL), CommentQuery{})
	if !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("GetComments() error = %v, want ErrExpiredToken", err)
	}
	var cerr *CommentAPIError
	if !errors.As(err, &cerr) || cerr.StatusCode != 400 {
		t.Fatalf("error = %#v", err)
	}
}

func TestGetThreadKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/comment/keys/thread" || r.URL.Query().Get("videoId") != "sm9" {
			t.Errorf("unexpected request %s", r.URL)
		}
		fmt.Fprint(w, `{"meta":{"status":200},"data":{"threadKey":"fresh-key"}}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)
	key, err := c.GetThreadKey(context.Background(), "sm9")
	if err != nil {
		t.Fatalf("GetThreadKey() error = %v", err)
	}
	if key != "fresh-key" {
		t.Fatalf("GetThreadKey() = %q", key)
	}
}

func TestBackfillComments_NonPremiumSinglePage(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		var body nvapi.CommentRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Additionals.When != 0 {
			t.Errorf("non-premium request carried when=%d", body.Additionals.When)
		}
		fmt.Fprint(w, `{"meta":{"status":200},"data":{"threads":[{"id":"1","fork":"main","comments":[{"id":"c2","no":2,"postedAt":"2023-11-14T22:13:20+09:00"},{"id":"c1","no":1,"postedAt":"2023-11-14T22:13:10+09:00"}]}]}}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, func(cfg *Config) { cfg.Comment.Interval = -1 })
	res, err := c.BackfillComments(context.Background(), testSession(srv.URL), BackfillOptions{Start: time.Now()})
	if err != nil {
		t.Fatalf("BackfillComments() error = %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("requests = %d, want 1", got)
	}
	if res.Total() != 2 || res.Err != nil {
		t.Fatalf("result total=%d err=%v", res.Total(), res.Err)
	}
}

func TestBackfillComments_RefreshesExpiredKey(t *testing.T) {
	var (
		mu    sync.Mutex
		keys  []string
		pages int
	)
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/comment/keys/thread", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"meta":{"status":200},"data":{"threadKey":"fresh-key"}}`)
	})
	mux.HandleFunc("/v1/threads", func(w http.ResponseWriter, r *http.Request) {
		var body nvapi.CommentRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		keys = append(keys, body.ThreadKey)
		mu.Unlock()
		if body.ThreadKey != "fresh-key" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"meta":{"status":400,"errorCode":"EXPIRED_TOKEN"}}`)
			return
		}
		mu.Lock()
		pages++
		page := pages
		mu.Unlock()
		if page == 1 {
			fmt.Fprint(w, `{"meta":{"status":200},"data":{"threads":[{"id":"1","fork":"main","comments":[{"id":"c2","no":2,"postedAt":"2023-11-14T22:13:20+09:00"},{"id":"c1","no":1,"postedAt":"2023-11-14T22:13:10+09:00"}]}]}}`)
			return
		}
		fmt.Fprint(w, `{"meta":{"status":200},"data":{"threads":[{"id":"1","fork":"main","comments":[]}]}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv, func(cfg *Config) { cfg.Comment.Interval = -1 })
	setPremium(c, true)
	var reported []BackfillPage
	res, err := c.BackfillComments(context.Background(), testSession(srv.URL), BackfillOptions{
		Start:  time.Unix(1700000000, 0),
		OnPage: func(p BackfillPage) { reported = append(reported, p) },
	})
	if err != nil {
		t.Fatalf("BackfillComments() error = %v", err)
	}
	if res.Err != nil {
		t.Fatalf("BackfillComments() result err = %v", res.Err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(keys) < 2 || keys[0] != "thread-key-1" || keys[1] != "fresh-key" {
		t.Fatalf("thread keys sent = %v", keys)
	}
	main := res.Fork(nvapi.ForkMain)
	if len(main) != 2 || main[0].No != 2 || main[1].No != 1 {
		t.Fatalf("main fork = %+v", main)
	}
	if len(reported) == 0 {
		t.Fatalf("OnPage never called")
	}
}
