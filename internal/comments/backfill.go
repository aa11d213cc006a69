package comments

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/famomatic/nicov1/internal/nvapi"
)

// Run pages through the threads until every main thread is done, failures
// exhaust the retry budget, or ctx ends. Exhausted retries are reported on
// the result (Result.Err and Thread.Err), not as the returned error; the
// returned error is non-nil only when ctx ends the run.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	var when time.Time
	if e.opts.Timed {
		when = e.opts.Start
		if when.IsZero() {
			when = e.opts.Now()
		}
	}
	refreshes, stalls := 0, 0
	for {
		data, err := e.fetchWithRetry(ctx, when)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return e.result(nil), ctxErr
			}
			if !errors.Is(err, ErrExpiredToken) {
				e.abandon(err)
				return e.result(err), nil
			}
			refreshes++
			if refreshes > e.opts.MaxKeyRefreshes {
				err = fmt.Errorf("%w: %w", ErrKeyRefreshLimit, err)
				e.abandon(err)
				return e.result(err), nil
			}
			key, keyErr := e.fetcher.RefreshKey(ctx)
			if keyErr != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return e.result(nil), ctxErr
				}
				e.abandon(keyErr)
				return e.result(keyErr), nil
			}
			e.opts.Logf("thread key refreshed")
			e.threadKey = key
			continue
		}
		refreshes = 0

		added := e.apply(data, when)
		if progressed(added) || e.finished() {
			stalls = 0
		} else if stalls++; stalls > e.opts.MaxRetries {
			e.abandon(ErrStalled)
			return e.result(ErrStalled), nil
		}
		if e.opts.OnPage != nil {
			page := Page{Request: e.requests, When: when, Added: added}
			page.Total = e.result(nil).Total()
			page.Watermarks = e.watermarks()
			e.opts.OnPage(page)
		}
		if !e.opts.Timed {
			e.finishAll()
			return e.result(nil), nil
		}
		if e.finished() {
			return e.result(nil), nil
		}
		when = e.nextWhen(when)
	}
}

func progressed(added map[string]int) bool {
	for _, n := range added {
		if n > 0 {
			return true
		}
	}
	return false
}

func (e *Engine) fetchWithRetry(ctx context.Context, when time.Time) (*nvapi.CommentData, error) {
	op := func() (*nvapi.CommentData, error) {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}
		e.requests++
		data, err := e.fetcher.Fetch(ctx, e.threadKey, when)
		if err != nil {
			if errors.Is(err, ErrExpiredToken) || ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		if data == nil {
			return nil, ErrEmptyResponse
		}
		return data, nil
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(e.opts.RetryWait)),
		backoff.WithMaxTries(uint(e.opts.MaxRetries+1)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			e.opts.Logf("comment fetch failed, retrying in %s: %v", wait, err)
		}),
	)
}

// thread returns the state for a thread fork. Main and easy forks share a
// thread id, so state is keyed by both.
func (e *Engine) thread(id, fork string) *Thread {
	key := fork + "/" + id
	if t, ok := e.threads[key]; ok {
		return t
	}
	t := &Thread{ID: id, Fork: fork, seen: make(map[int64]struct{})}
	e.threads[key] = t
	e.order = append(e.order, key)
	return t
}

// apply merges one response into the thread states and returns the number
// of comments added per fork.
func (e *Engine) apply(data *nvapi.CommentData, when time.Time) map[string]int {
	added := make(map[string]int)
	for _, th := range data.Threads {
		t := e.thread(th.ID, th.Fork)
		if t.State == Done {
			continue
		}
		batch := newestFirst(th.Comments)
		switch th.Fork {
		case nvapi.ForkOwner:
			if len(batch) == 0 {
				continue
			}
			added[th.Fork] += t.addUnseen(batch)
			t.State = Done
		case nvapi.ForkEasy:
			if len(batch) == 0 {
				t.State = Done
				continue
			}
			added[th.Fork] += t.addUnseen(batch)
		default:
			added[th.Fork] += t.applyMain(batch, when)
		}
	}
	return added
}

// applyMain keeps only comments older than the watermark and moves the
// watermark to the oldest kept comment. The first batch is kept whole.
func (t *Thread) applyMain(batch []nvapi.Comment, when time.Time) int {
	if !t.started {
		t.started = true
		if len(batch) > 0 {
			t.Watermark.MinNo = batch[0].No + 1
		}
	}
	i := sort.Search(len(batch), func(i int) bool { return batch[i].No < t.Watermark.MinNo })
	kept := batch[i:]
	if len(kept) == 0 {
		// A page requested at a newer cursor than ours proves nothing.
		if t.Watermark.When.IsZero() || !when.After(t.Watermark.When) {
			t.State = Done
		}
		return 0
	}
	oldest := kept[len(kept)-1]
	posted, err := oldest.PostedTime()
	if err != nil {
		t.Err = err
		t.State = Done
	}
	n := t.addUnseen(kept)
	t.Watermark.MinNo = oldest.No
	if err == nil {
		t.Watermark.When = posted
	}
	return n
}

func (t *Thread) addUnseen(batch []nvapi.Comment) int {
	n := 0
	for _, c := range batch {
		if _, dup := t.seen[c.No]; dup {
			continue
		}
		t.seen[c.No] = struct{}{}
		c.Thread = t.ID
		c.Fork = t.Fork
		t.Comments = append(t.Comments, c)
		n++
	}
	return n
}

func newestFirst(in []nvapi.Comment) []nvapi.Comment {
	out := make([]nvapi.Comment, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool { return out[i].No > out[j].No })
	return out
}

func (e *Engine) isMain(t *Thread) bool {
	return t.Fork != nvapi.ForkOwner && t.Fork != nvapi.ForkEasy
}

func (e *Engine) finished() bool {
	for _, id := range e.order {
		t := e.threads[id]
		if e.isMain(t) && t.State == Active {
			return false
		}
	}
	return true
}

// nextWhen is the newest cursor among active main threads, so no thread
// skips a window.
func (e *Engine) nextWhen(prev time.Time) time.Time {
	var next time.Time
	for _, id := range e.order {
		t := e.threads[id]
		if !e.isMain(t) || t.State == Done || t.Watermark.When.IsZero() {
			continue
		}
		if next.IsZero() || t.Watermark.When.After(next) {
			next = t.Watermark.When
		}
	}
	if next.IsZero() {
		return prev
	}
	return next
}

func (e *Engine) watermarks() map[string]Watermark {
	out := make(map[string]Watermark)
	for _, t := range e.threads {
		if e.isMain(t) {
			out[t.ID] = t.Watermark
		}
	}
	return out
}

func (e *Engine) finishAll() {
	for _, t := range e.threads {
		t.State = Done
	}
}

func (e *Engine) abandon(err error) {
	for _, t := range e.threads {
		if t.State == Active {
			t.State = Done
			t.Err = err
		}
	}
}

func (e *Engine) result(err error) *Result {
	r := &Result{Requests: e.requests, Err: err}
	for _, id := range e.order {
		r.Threads = append(r.Threads, e.threads[id])
	}
	return r
}
