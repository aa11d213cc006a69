package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/famomatic/nicov1/internal/comments"
	"github.com/famomatic/nicov1/internal/nvapi"
)

// CommentQuery selects one page of comments.
type CommentQuery struct {
	// When pages back from the given instant. Premium only; zero requests
	// the latest comments.
	When time.Time
	// ThreadKey overrides the key carried by the session.
	ThreadKey string
}

// GetComments fetches one page covering every fork of the session's threads.
func (c *Client) GetComments(ctx context.Context, session *WatchSession, query CommentQuery) (*CommentData, error) {
	if session == nil {
		return nil, fmt.Errorf("%w: nil session", ErrInvalidInput)
	}
	if !query.When.IsZero() {
		if err := c.requirePremium(session); err != nil {
			return nil, &APIError{Op: "comments", Reason: "time-scoped comments", Err: err}
		}
	}
	key := query.ThreadKey
	if key == "" {
		key = session.Comment.NvComment.ThreadKey
	}
	return c.fetchComments(ctx, session, key, query.When)
}

func (c *Client) fetchComments(ctx context.Context, session *WatchSession, threadKey string, when time.Time) (*CommentData, error) {
	nv := session.Comment.NvComment
	if nv.Server == "" {
		return nil, &APIError{Op: "comments", Reason: "comment server missing"}
	}
	body, err := nvapi.NewCommentRequest(threadKey, nv.Params, when)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withDefaultTimeout(ctx, c.config.RequestTimeout)
	defer cancel()
	resp, err := c.postJSON(ctx, strings.TrimRight(nv.Server, "/")+"/v1/threads", body, nil)
	if err != nil {
		return nil, err
	}

	var out nvapi.CommentResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, &CommentAPIError{StatusCode: resp.StatusCode, Err: fmt.Errorf("%w: %v", nvapi.ErrSchema, err)}
	}
	if resp.StatusCode != http.StatusOK || out.Meta.Status != http.StatusOK {
		return nil, &CommentAPIError{StatusCode: resp.StatusCode, ErrorCode: out.Meta.ErrorCode}
	}
	if out.Data == nil {
		return nil, &CommentAPIError{StatusCode: resp.StatusCode, Err: fmt.Errorf("%w: data missing", nvapi.ErrSchema)}
	}
	return out.Data, nil
}

// GetThreadKey requests a fresh comment thread key. Concurrent calls for the
// same video share one request.
func (c *Client) GetThreadKey(ctx context.Context, videoID string) (string, error) {
	id, err := ExtractVideoID(videoID)
	if err != nil {
		return "", err
	}
	v, err, shared := c.keys.Do(id, func() (any, error) {
		q := url.Values{}
		q.Set("videoId", id)
		data, err := getAPI[nvapi.ThreadKey](ctx, c, nvapi.ThreadKeys, q)
		if err != nil {
			return "", err
		}
		if data.ThreadKey == "" {
			return "", &APIError{Op: nvapi.ThreadKeys.Name, Reason: "threadKey missing"}
		}
		return data.ThreadKey, nil
	})
	if err != nil {
		return "", err
	}
	if shared {
		c.debugf("thread key for %s shared with a concurrent refresh", id)
	}
	return v.(string), nil
}

// BackfillOptions tunes BackfillComments. Zero fields fall back to
// Config.Comment, then to the engine defaults.
type BackfillOptions struct {
	// Start is the first time cursor; zero means now.
	Start           time.Time
	Interval        time.Duration
	MaxRetries      int
	RetryWait       time.Duration
	MaxKeyRefreshes int
	OnPage          func(BackfillPage)
}

// BackfillComments pages back through every thread of the session until each
// fork is exhausted. Non-premium sessions get only the latest page. Fork
// failures are reported on the result; the returned error is reserved for
// invalid input and cancellation.
func (c *Client) BackfillComments(ctx context.Context, session *WatchSession, opts BackfillOptions) (*BackfillResult, error) {
	if session == nil {
		return nil, fmt.Errorf("%w: nil session", ErrInvalidInput)
	}
	timed := c.requirePremium(session) == nil
	if !timed && !opts.Start.IsZero() {
		c.warnf("comment backfill for %s: not premium, start time ignored", session.Video.ID)
	}
	cfg := c.config.Comment
	engine := comments.New(&commentFetcher{client: c, session: session}, comments.Options{
		ThreadKey:       session.Comment.NvComment.ThreadKey,
		Start:           opts.Start,
		Timed:           timed,
		Interval:        firstDuration(opts.Interval, cfg.Interval),
		MaxRetries:      firstInt(opts.MaxRetries, cfg.MaxRetries),
		RetryWait:       firstDuration(opts.RetryWait, cfg.RetryWait),
		MaxKeyRefreshes: firstInt(opts.MaxKeyRefreshes, cfg.MaxKeyRefreshes),
		Now:             c.now,
		OnPage:          opts.OnPage,
		Logf:            c.debugf,
	})
	res, err := engine.Run(ctx)
	if res != nil && res.Err != nil {
		c.warnf("comment backfill for %s ended early: %v", session.Video.ID, res.Err)
	}
	return res, err
}

// commentFetcher adapts the client to the backfill engine.
type commentFetcher struct {
	client  *Client
	session *WatchSession
}

func (f *commentFetcher) Fetch(ctx context.Context, threadKey string, when time.Time) (*nvapi.CommentData, error) {
	data, err := f.client.fetchComments(ctx, f.session, threadKey, when)
	if errors.Is(err, ErrExpiredToken) {
		return nil, fmt.Errorf("%w: %w", comments.ErrExpiredToken, err)
	}
	return data, err
}

func (f *commentFetcher) RefreshKey(ctx context.Context) (string, error) {
	return f.client.GetThreadKey(ctx, f.session.Video.ID)
}

func firstDuration(vals ...time.Duration) time.Duration {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}

func firstInt(vals ...int) int {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}
