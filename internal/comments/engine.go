// Package comments backfills a video's comment threads page by page.
package comments

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/famomatic/nicov1/internal/nvapi"
)

var (
	// ErrExpiredToken marks a fetch rejected because the thread key expired.
	ErrExpiredToken = errors.New("thread key expired")
	// ErrEmptyResponse marks a fetch that returned no usable data.
	ErrEmptyResponse = errors.New("empty comment response")
	// ErrKeyRefreshLimit is set on forks abandoned after too many key refreshes.
	ErrKeyRefreshLimit = errors.New("thread key refresh limit reached")
	// ErrStalled is set on forks abandoned after pages stopped adding comments.
	ErrStalled = errors.New("comment backfill stalled")
)

// Fetcher performs single comment requests for the engine.
type Fetcher interface {
	// Fetch requests one page. A zero when requests the latest comments.
	Fetch(ctx context.Context, threadKey string, when time.Time) (*nvapi.CommentData, error)
	// RefreshKey obtains a new thread key.
	RefreshKey(ctx context.Context) (string, error)
}

// State of one thread fork.
type State int

const (
	Active State = iota
	Done
)

func (s State) String() string {
	if s == Done {
		return "done"
	}
	return "active"
}

// Watermark is the resume cursor of a main thread. Comments with
// No >= MinNo have been seen; When is the instant to page back from.
type Watermark struct {
	MinNo int64
	When  time.Time
}

// Thread is the backfill state and output of one thread.
// Comments are stored newest-first.
type Thread struct {
	ID        string
	Fork      string
	State     State
	Watermark Watermark
	Comments  []nvapi.Comment
	Err       error

	started bool
	seen    map[int64]struct{}
}

// Page is reported after every applied response.
type Page struct {
	Request int
	When    time.Time
	Added   map[string]int // fork -> comments added by this page
	Total   int

	// Watermarks of main threads after the page, keyed by thread id.
	Watermarks map[string]Watermark
}

// Options tunes the engine. Zero values select the defaults.
type Options struct {
	ThreadKey string
	// Start is the first time-scoped cursor; zero means now.
	Start time.Time
	// Timed enables time-scoped paging. Without it a single latest page is fetched.
	Timed bool
	// Interval between consecutive requests. Default 1s; negative disables pacing.
	Interval time.Duration
	// MaxRetries bounds consecutive transient failures per page. Default 5.
	MaxRetries int
	// RetryWait is the back-off between transient failures. Default 60s.
	RetryWait time.Duration
	// MaxKeyRefreshes bounds consecutive thread key refreshes. Default 5.
	MaxKeyRefreshes int

	Now    func() time.Time
	OnPage func(Page)
	Logf   func(format string, args ...any)
}

// Result holds every thread seen during a backfill.
type Result struct {
	Threads  []*Thread
	Requests int
	// Err is the failure that ended the run early, if any.
	Err error
}

// Fork returns the comments of every thread with the given fork, newest-first per thread.
func (r *Result) Fork(fork string) []nvapi.Comment {
	var out []nvapi.Comment
	for _, t := range r.Threads {
		if t.Fork == fork {
			out = append(out, t.Comments...)
		}
	}
	return out
}

// Total counts all stored comments.
func (r *Result) Total() int {
	n := 0
	for _, t := range r.Threads {
		n += len(t.Comments)
	}
	return n
}

// Engine drives one backfill run. It is not safe for concurrent use.
type Engine struct {
	fetcher Fetcher
	opts    Options
	limiter *rate.Limiter

	threadKey string
	threads   map[string]*Thread
	order     []string
	requests  int
}

// New returns an engine with defaults applied.
func New(fetcher Fetcher, opts Options) *Engine {
	switch {
	case opts.Interval == 0:
		opts.Interval = time.Second
	case opts.Interval < 0:
		opts.Interval = 0
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 5
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = time.Minute
	}
	if opts.MaxKeyRefreshes <= 0 {
		opts.MaxKeyRefreshes = 5
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logf == nil {
		opts.Logf = func(string, ...any) {}
	}
	limit := rate.Inf
	if opts.Interval > 0 {
		limit = rate.Every(opts.Interval)
	}
	return &Engine{
		fetcher:   fetcher,
		opts:      opts,
		limiter:   rate.NewLimiter(limit, 1),
		threadKey: opts.ThreadKey,
		threads:   make(map[string]*Thread),
	}
}
