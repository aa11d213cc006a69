package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/famomatic/nicov1/internal/dmc"
	"github.com/famomatic/nicov1/internal/downloader"
)

// HLSMode selects how HLS content is written to disk.
type HLSMode int

const (
	// HLSRemux hands the authorized playlist to the muxer (ffmpeg).
	HLSRemux HLSMode = iota
	// HLSInProcess fetches and decrypts segments itself, then merges the
	// video and audio tracks with the muxer.
	HLSInProcess
)

const domandCookie = "domand_bid"

// DownloadOptions controls Download.
type DownloadOptions struct {
	// Mode is ModeHLS (default) or ModeProgressive.
	Mode    Mode
	HLSMode HLSMode
	// OnProgress receives byte counts while media is written. Remuxed HLS
	// reports only the final size.
	OnProgress func(Progress)
}

// DownloadResult describes a completed file download.
type DownloadResult struct {
	VideoID    string
	Label      string
	Mode       Mode
	OutputPath string
	Bytes      int64
}

// DownloadEvent is a lifecycle notification delivered to Config.OnDownloadEvent.
type DownloadEvent struct {
	Stage   string
	Phase   string
	VideoID string
	Path    string
	Detail  string
}

// OutputFileName is "{video id}_{title}.mp4" with path separators replaced.
func OutputFileName(session *WatchSession) string {
	name := session.Video.ID + "_" + session.Video.Title + ".mp4"
	return strings.NewReplacer("/", "_", "\\", "_", "\x00", "").Replace(name)
}

// Download writes the output labeled label into dir. The target must not
// exist; it is never overwritten.
func (c *Client) Download(ctx context.Context, session *WatchSession, label, dir string, options DownloadOptions) (*DownloadResult, error) {
	if session == nil {
		return nil, fmt.Errorf("%w: nil session", ErrInvalidInput)
	}
	videoID := session.Video.ID
	out, ok := ListOutputs(session).Get(label)
	if !ok {
		return nil, &DownloadError{VideoID: videoID, Reason: "label not available", Err: fmt.Errorf("%w: label %q", ErrInvalidInput, label)}
	}
	mode := options.Mode
	if mode == "" {
		mode = ModeHLS
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &DownloadError{VideoID: videoID, Path: dir, Reason: "create directory", Err: err}
	}
	outputPath := filepath.Join(dir, OutputFileName(session))
	if err := downloader.CheckAbsent(outputPath); err != nil {
		return nil, c.downloadFailure(videoID, outputPath, err)
	}
	c.emitDownloadEvent("download", "destination", videoID, outputPath, "label="+label)

	var (
		written int64
		err     error
	)
	switch mode {
	case ModeHLS:
		written, err = c.downloadHLS(ctx, session, out, outputPath, options)
	case ModeProgressive:
		written, err = c.downloadProgressive(ctx, session, out, outputPath, options)
	default:
		return nil, fmt.Errorf("%w: download mode %q", ErrInvalidInput, mode)
	}
	if err != nil {
		return nil, c.downloadFailure(videoID, outputPath, err)
	}
	c.emitDownloadEvent("download", "complete", videoID, outputPath, fmt.Sprintf("bytes=%d", written))
	return &DownloadResult{
		VideoID:    videoID,
		Label:      label,
		Mode:       mode,
		OutputPath: outputPath,
		Bytes:      written,
	}, nil
}

// downloadFailure emits the failure event and wraps err. Errors that already
// carry a category (access denied, api) are joined rather than hidden.
func (c *Client) downloadFailure(videoID, path string, err error) error {
	c.emitDownloadEvent("download", "failure", videoID, path, err.Error())
	var derr *DownloadError
	if errors.As(err, &derr) {
		return err
	}
	reason := "transfer failed"
	switch {
	case errors.Is(err, downloader.ErrExists):
		reason = "already exists"
	case errors.Is(err, ErrAccessDenied), errors.Is(err, ErrAPI):
		reason = "negotiation failed"
	}
	return &DownloadError{VideoID: videoID, Path: path, Reason: reason, Err: err}
}

func (c *Client) downloadHLS(ctx context.Context, session *WatchSession, out Output, outputPath string, options DownloadOptions) (int64, error) {
	videoID := session.Video.ID
	c.emitDownloadEvent("access_rights", "start", videoID, outputPath, "mode=hls")
	grant, err := c.RequestContentURL(ctx, session, []Output{out}, ModeHLS)
	if err != nil {
		c.emitDownloadEvent("access_rights", "failure", videoID, outputPath, err.Error())
		return 0, err
	}
	c.emitDownloadEvent("access_rights", "complete", videoID, outputPath, "expires="+grant.ExpireTime.String())

	if options.HLSMode == HLSInProcess {
		return c.fetchHLS(ctx, videoID, grant.ContentURL, outputPath, options)
	}
	return c.remuxHLS(ctx, videoID, grant.ContentURL, outputPath, options)
}

func (c *Client) remuxHLS(ctx context.Context, videoID, contentURL, outputPath string, options DownloadOptions) (int64, error) {
	if !c.muxer.Available() {
		return 0, &DownloadError{VideoID: videoID, Path: outputPath, Reason: "muxer not available"}
	}
	headers := http.Header{}
	if bid := c.cookieValue(contentURL, domandCookie); bid != "" {
		headers.Set("Cookie", domandCookie+"="+bid)
	} else {
		c.warnf("no %s cookie for %s", domandCookie, videoID)
	}

	part := downloader.PartPath(outputPath)
	defer os.Remove(part)
	c.emitDownloadEvent("remux", "start", videoID, part, "")
	if err := c.muxer.Remux(ctx, contentURL, headers, part); err != nil {
		c.emitDownloadEvent("remux", "failure", videoID, part, err.Error())
		return 0, &DownloadError{VideoID: videoID, Path: outputPath, Reason: "remux failed", Err: err}
	}
	size := getFileSize(part)
	if err := downloader.Place(part, outputPath); err != nil {
		return 0, err
	}
	c.emitDownloadEvent("remux", "complete", videoID, outputPath, fmt.Sprintf("bytes=%d", size))
	if options.OnProgress != nil {
		options.OnProgress(Progress{Bytes: size, Total: size})
	}
	return size, nil
}

func (c *Client) fetchHLS(ctx context.Context, videoID, contentURL, outputPath string, options DownloadOptions) (int64, error) {
	hls := &downloader.HLS{
		Client:    c.httpClient,
		Headers:   c.apiHeaders(http.MethodGet),
		Transport: c.transportConfig(),
	}
	tracks, err := hls.Resolve(ctx, contentURL)
	if err != nil {
		return 0, err
	}

	var (
		parts   []string
		written int64
	)
	defer func() {
		for _, p := range parts {
			c.cleanupIntermediateFile(videoID, p)
		}
	}()
	for _, track := range tracks {
		part := downloader.PartPath(outputPath)
		parts = append(parts, part)
		c.emitDownloadEvent("segments", "start", videoID, part, "track="+track.Kind)
		n, err := c.fetchTrack(ctx, hls, track, part, written, options)
		written += n
		if err != nil {
			c.emitDownloadEvent("segments", "failure", videoID, part, err.Error())
			return written, err
		}
		c.emitDownloadEvent("segments", "complete", videoID, part, fmt.Sprintf("bytes=%d", n))
	}

	if len(parts) == 1 {
		return written, downloader.Place(parts[0], outputPath)
	}
	if !c.muxer.Available() {
		return written, &DownloadError{VideoID: videoID, Path: outputPath, Reason: "muxer not available"}
	}
	merged := downloader.PartPath(outputPath)
	parts = append(parts, merged)
	c.emitDownloadEvent("merge", "start", videoID, merged, "")
	if err := c.muxer.Merge(ctx, parts[0], parts[1], merged); err != nil {
		c.emitDownloadEvent("merge", "failure", videoID, merged, err.Error())
		return written, &DownloadError{VideoID: videoID, Path: outputPath, Reason: "merge failed", Err: err}
	}
	c.emitDownloadEvent("merge", "complete", videoID, outputPath, "")
	size := getFileSize(merged)
	return size, downloader.Place(merged, outputPath)
}

func (c *Client) fetchTrack(ctx context.Context, hls *downloader.HLS, track downloader.Track, part string, base int64, options DownloadOptions) (int64, error) {
	f, err := os.OpenFile(part, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}
	n, err := hls.FetchTrack(ctx, track.URL, f, base, options.OnProgress)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return n, err
}

func (c *Client) downloadProgressive(ctx context.Context, session *WatchSession, out Output, outputPath string, options DownloadOptions) (written int64, err error) {
	videoID := session.Video.ID
	c.emitDownloadEvent("delivery_session", "start", videoID, outputPath, "")
	ps, err := c.OpenProgressiveSession(ctx, session, out)
	if err != nil {
		c.emitDownloadEvent("delivery_session", "failure", videoID, outputPath, err.Error())
		return 0, err
	}
	c.emitDownloadEvent("delivery_session", "complete", videoID, outputPath, "session="+ps.SessionID())
	defer func() {
		if heartbeatErr := ps.Close(); heartbeatErr != nil && err == nil {
			err = fmt.Errorf("heartbeat: %w", heartbeatErr)
		}
	}()

	fetcher := &downloader.Progressive{
		Client:    c.httpClient,
		Headers:   c.apiHeaders(http.MethodGet),
		Transport: c.transportConfig(),
	}
	written, err = fetcher.Fetch(ps.Context(), ps.ContentURL(), outputPath, options.OnProgress)
	if err != nil {
		// a failed heartbeat cancels the fetch; report the cause
		if cause := context.Cause(ps.Context()); cause != nil && !errors.Is(cause, dmc.ErrStopped) && !errors.Is(err, cause) {
			err = errors.Join(err, cause)
		}
	}
	return written, err
}

func getFileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func (c *Client) cleanupIntermediateFile(videoID, path string) {
	if strings.TrimSpace(path) == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		c.emitDownloadEvent("cleanup", "failure", videoID, path, err.Error())
	}
}

func (c *Client) emitDownloadEvent(stage, phase, videoID, path, detail string) {
	if c == nil || c.config.OnDownloadEvent == nil {
		return
	}
	c.config.OnDownloadEvent(DownloadEvent{
		Stage:   stage,
		Phase:   phase,
		VideoID: videoID,
		Path:    path,
		Detail:  detail,
	})
}
