package dmc

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/famomatic/nicov1/internal/nvapi"
)

// ErrStopped is the cancellation cause after a clean Close.
var ErrStopped = errors.New("delivery session closed")

const (
	defaultMargin       = 3 * time.Second
	defaultMinInterval  = time.Second
	defaultPollInterval = 50 * time.Millisecond
)

// Beat describes one heartbeat as observed by the keep-alive task.
type Beat struct {
	Seq      int
	SentAt   time.Time
	Deadline time.Time // deadline the beat was due at
	Next     time.Time // deadline computed from the response
	Lifetime time.Duration
}

// Config configures Open.
type Config struct {
	HTTPClient *http.Client
	Headers    http.Header

	Source   nvapi.DeliverySession
	VideoSrc string
	AudioSrc string

	// Margin is subtracted from the server lifetime. Default 3s.
	Margin time.Duration
	// MinInterval floors the refresh interval. Default 1s.
	MinInterval time.Duration
	// PollInterval is how often the task checks the deadline. Default 50ms.
	PollInterval time.Duration

	Now    func() time.Time
	OnBeat func(Beat)
}

// Keeper owns a delivery session and its background heartbeat task.
// Only the task goroutine touches session and deadline after Open returns.
type Keeper struct {
	client     *http.Client
	headers    http.Header
	endpoint   string
	margin     time.Duration
	minIntvl   time.Duration
	poll       time.Duration
	now        func() time.Time
	onBeat     func(Beat)
	contentURI string
	sessionID  string

	session  *Session
	deadline time.Time

	ctx       context.Context
	cancel    context.CancelCauseFunc
	done      chan struct{}
	closeOnce sync.Once
	err       error
}

// Open creates the session (one OPTIONS preflight, then POST) and starts the
// heartbeat. It returns once the session id is known. The returned Keeper's
// Context is canceled when the heartbeat fails or Close is called.
func Open(ctx context.Context, cfg Config) (*Keeper, error) {
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	endpoint, err := Endpoint(cfg.Source)
	if err != nil {
		return nil, err
	}
	body, err := BuildRequest(cfg.Source, endpoint, cfg.VideoSrc, cfg.AudioSrc)
	if err != nil {
		return nil, err
	}
	base := strings.TrimRight(endpoint.URL, "/")

	if _, err := doJSON(ctx, client, http.MethodOptions, base+"?_format=json", cfg.Headers, nil, "preflight"); err != nil {
		return nil, err
	}
	respBody, err := doJSON(ctx, client, http.MethodPost, base+"?_format=json", cfg.Headers, body, "create")
	if err != nil {
		return nil, err
	}
	session, err := parseSession(respBody)
	if err != nil {
		return nil, err
	}

	k := &Keeper{
		client:     client,
		headers:    cfg.Headers,
		endpoint:   base,
		margin:     cfg.Margin,
		minIntvl:   cfg.MinInterval,
		poll:       cfg.PollInterval,
		now:        cfg.Now,
		onBeat:     cfg.OnBeat,
		contentURI: session.ContentURI,
		sessionID:  session.ID,
		session:    session,
		done:       make(chan struct{}),
	}
	if k.margin <= 0 {
		k.margin = defaultMargin
	}
	if k.minIntvl <= 0 {
		k.minIntvl = defaultMinInterval
	}
	if k.poll <= 0 {
		k.poll = defaultPollInterval
	}
	if k.now == nil {
		k.now = time.Now
	}
	k.deadline = k.nextDeadline(k.now(), session.Lifetime)
	k.ctx, k.cancel = context.WithCancelCause(ctx)
	go k.run()
	return k, nil
}

// NextDeadline computes the refresh deadline for a session lifetime:
// now + lifetime - margin, never sooner than now + minInterval.
func NextDeadline(now time.Time, lifetime, margin, minInterval time.Duration) time.Time {
	interval := lifetime - margin
	if interval < minInterval {
		interval = minInterval
	}
	return now.Add(interval)
}

func (k *Keeper) nextDeadline(now time.Time, lifetime time.Duration) time.Time {
	return NextDeadline(now, lifetime, k.margin, k.minIntvl)
}

// ContentURI is the media URL bound to this session.
func (k *Keeper) ContentURI() string { return k.contentURI }

// SessionID is the server-assigned session id.
func (k *Keeper) SessionID() string { return k.sessionID }

// Context is canceled with the heartbeat failure as cause, or with ErrStopped.
func (k *Keeper) Context() context.Context { return k.ctx }

// Close stops the heartbeat and waits for the task to exit. It returns the
// heartbeat failure, if any. Safe to call more than once.
func (k *Keeper) Close() error {
	k.closeOnce.Do(func() {
		k.cancel(ErrStopped)
	})
	<-k.done
	return k.err
}

func (k *Keeper) run() {
	defer close(k.done)
	ticker := time.NewTicker(k.poll)
	defer ticker.Stop()
	seq := 0
	for {
		select {
		case <-k.ctx.Done():
			return
		case <-ticker.C:
		}
		now := k.now()
		if now.Before(k.deadline) {
			continue
		}
		seq++
		next, err := k.beat(now)
		if err != nil {
			if errors.Is(context.Cause(k.ctx), ErrStopped) {
				return
			}
			k.err = err
			k.cancel(err)
			return
		}
		beat := Beat{
			Seq:      seq,
			SentAt:   now,
			Deadline: k.deadline,
			Next:     next,
			Lifetime: k.session.Lifetime,
		}
		k.deadline = next
		if k.onBeat != nil {
			k.onBeat(beat)
		}
	}
}

func (k *Keeper) beat(now time.Time) (time.Time, error) {
	q := url.Values{}
	q.Set("_format", "json")
	q.Set("_method", "PUT")
	target := k.endpoint + "/" + url.PathEscape(k.session.ID) + "?" + q.Encode()
	body, err := doJSON(k.ctx, k.client, http.MethodPost, target, k.headers, k.session.raw, "heartbeat")
	if err != nil {
		return time.Time{}, err
	}
	session, err := parseSession(body)
	if err != nil {
		return time.Time{}, err
	}
	k.session = session
	return k.nextDeadline(now, session.Lifetime), nil
}
