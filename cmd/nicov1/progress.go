package main

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/famomatic/nicov1/client"
)

const progressRefresh = 200 * time.Millisecond

// progressLine redraws a single status line on a terminal. On anything else
// it stays silent.
type progressLine struct {
	mu      sync.Mutex
	w       io.Writer
	enabled bool
	started time.Time
	last    time.Time
	drawn   bool
	now     func() time.Time
}

func newProgressLine(w io.Writer) *progressLine {
	enabled := false
	if f, ok := w.(*os.File); ok {
		enabled = term.IsTerminal(int(f.Fd()))
	}
	return &progressLine{w: w, enabled: enabled, now: time.Now}
}

func (p *progressLine) update(pr client.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.enabled {
		return
	}
	now := p.now()
	if p.started.IsZero() {
		p.started = now
	}
	done := pr.Total > 0 && pr.Bytes >= pr.Total
	if !done && now.Sub(p.last) < progressRefresh {
		return
	}
	p.last = now
	fmt.Fprintf(p.w, "\r\033[K%s", formatProgress(pr, now.Sub(p.started)))
	p.drawn = true
}

func (p *progressLine) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.drawn {
		fmt.Fprintln(p.w)
		p.drawn = false
	}
}

func formatProgress(pr client.Progress, elapsed time.Duration) string {
	line := humanize.Bytes(uint64(pr.Bytes))
	if pr.Total > 0 {
		line = fmt.Sprintf("%s / %s (%.1f%%)", line, humanize.Bytes(uint64(pr.Total)), float64(pr.Bytes)*100/float64(pr.Total))
	}
	if secs := elapsed.Seconds(); secs >= 1 {
		line += fmt.Sprintf(" at %s/s", humanize.Bytes(uint64(float64(pr.Bytes)/secs)))
	}
	return line
}
