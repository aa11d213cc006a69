package downloader

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
)

const chunkSize = 64 << 10

// Progressive downloads a single-file media URL.
type Progressive struct {
	Client    *http.Client
	Headers   http.Header
	Transport TransportConfig
}

// Fetch learns the length with HEAD, streams a GET into a partial file next
// to dest and links it into place. It returns the number of bytes written.
func (p *Progressive) Fetch(ctx context.Context, rawURL, dest string, onProgress ProgressFunc) (int64, error) {
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	if err := CheckAbsent(dest); err != nil {
		return 0, err
	}

	total, err := p.contentLength(ctx, client, rawURL)
	if err != nil {
		return 0, err
	}

	resp, err := do(ctx, client, http.MethodGet, rawURL, p.Headers, p.Transport, http.StatusOK)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if total <= 0 && resp.ContentLength > 0 {
		total = resp.ContentLength
	}

	part := PartPath(dest)
	f, err := os.OpenFile(part, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}
	written, err := copyWithProgress(f, resp.Body, total, onProgress)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(part)
		return written, err
	}
	if total > 0 && written != total {
		_ = os.Remove(part)
		return written, io.ErrUnexpectedEOF
	}
	if err := Place(part, dest); err != nil {
		return written, err
	}
	return written, nil
}

func (p *Progressive) contentLength(ctx context.Context, client *http.Client, rawURL string) (int64, error) {
	resp, err := do(ctx, client, http.MethodHead, rawURL, p.Headers, p.Transport, http.StatusOK)
	if err != nil {
		var statusErr *HTTPStatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusMethodNotAllowed {
			return 0, nil
		}
		return 0, err
	}
	resp.Body.Close()
	if resp.ContentLength < 0 {
		return 0, nil
	}
	return resp.ContentLength, nil
}

func copyWithProgress(w io.Writer, r io.Reader, total int64, onProgress ProgressFunc) (int64, error) {
	buf := make([]byte, chunkSize)
	var written int64
	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return written, err
			}
			written += int64(n)
			onProgress.report(written, total)
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}
