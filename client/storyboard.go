package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/famomatic/nicov1/internal/downloader"
	"github.com/famomatic/nicov1/internal/nvapi"
)

const storyboardManifest = "storyboard.json"

// StoryboardResult lists the files written by DownloadStoryboard.
type StoryboardResult struct {
	Manifest string
	Images   []string
}

// storyboardImageURL replaces the last path element of contentURL (before
// the query) with name.
func storyboardImageURL(contentURL, name string) string {
	base, query, hasQuery := strings.Cut(contentURL, "?")
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[:i+1]
	}
	u := base + name
	if hasQuery {
		u += "?" + query
	}
	return u
}

// DownloadStoryboard writes storyboard.json and one {image}.jpg per image into
// dir. Premium only. No existing file is replaced.
func (c *Client) DownloadStoryboard(ctx context.Context, session *WatchSession, dir string) (*StoryboardResult, error) {
	if session == nil {
		return nil, fmt.Errorf("%w: nil session", ErrInvalidInput)
	}
	if err := c.requirePremium(session); err != nil {
		return nil, err
	}
	videoID := session.Video.ID
	grant, err := c.GetStoryboardURL(ctx, session)
	if err != nil {
		return nil, err
	}

	manifest, err := c.fetchMedia(ctx, grant.ContentURL)
	if err != nil {
		return nil, err
	}
	var board nvapi.Storyboard
	if err := json.Unmarshal(manifest, &board); err != nil {
		return nil, &APIError{Op: "storyboard", Err: fmt.Errorf("%w: %v", nvapi.ErrSchema, err)}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &DownloadError{VideoID: videoID, Path: dir, Reason: "create directory", Err: err}
	}
	result := &StoryboardResult{Manifest: filepath.Join(dir, storyboardManifest)}
	for _, img := range board.Images {
		result.Images = append(result.Images, filepath.Join(dir, filepath.Base(img.URL)+".jpg"))
	}
	for _, target := range append([]string{result.Manifest}, result.Images...) {
		if err := downloader.CheckAbsent(target); err != nil {
			return nil, &DownloadError{VideoID: videoID, Path: target, Reason: "already exists", Err: err}
		}
	}

	if err := c.writeNew(result.Manifest, manifest); err != nil {
		return nil, &DownloadError{VideoID: videoID, Path: result.Manifest, Reason: "write storyboard", Err: err}
	}
	c.emitDownloadEvent("storyboard", "manifest", videoID, result.Manifest, fmt.Sprintf("images=%d", len(board.Images)))
	for i, img := range board.Images {
		data, err := c.fetchMedia(ctx, storyboardImageURL(grant.ContentURL, img.URL))
		if err != nil {
			return nil, &DownloadError{VideoID: videoID, Path: result.Images[i], Reason: "fetch image", Err: err}
		}
		if err := c.writeNew(result.Images[i], data); err != nil {
			return nil, &DownloadError{VideoID: videoID, Path: result.Images[i], Reason: "write image", Err: err}
		}
	}
	c.emitDownloadEvent("storyboard", "complete", videoID, dir, "")
	return result, nil
}

// fetchMedia GETs a small media resource; the jar supplies the media cookie.
func (c *Client) fetchMedia(ctx context.Context, rawURL string) ([]byte, error) {
	ctx, cancel := withDefaultTimeout(ctx, c.config.RequestTimeout)
	defer cancel()
	resp, err := c.get(ctx, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Op: "media", StatusCode: resp.StatusCode}
	}
	return resp.Body, nil
}

// writeNew writes data to a partial file and links it into place.
func (c *Client) writeNew(path string, data []byte) error {
	part := downloader.PartPath(path)
	if err := os.WriteFile(part, data, 0o644); err != nil {
		_ = os.Remove(part)
		return err
	}
	return downloader.Place(part, path)
}
