package muxer

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"sort"
	"strings"

	"github.com/alessio/shellescape"
)

// Muxer defines the media operations the downloader delegates to ffmpeg.
type Muxer interface {
	Available() bool
	// Remux copies the streams of an authorized HLS URL into one container.
	Remux(ctx context.Context, inputURL string, headers http.Header, outputPath string) error
	// Merge combines separately fetched video and audio files.
	Merge(ctx context.Context, videoPath, audioPath, outputPath string) error
}

// ExitError reports a failed ffmpeg run.
type ExitError struct {
	Command string
	Stderr  string
	Err     error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("ffmpeg failed: %v", e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ExitError) Unwrap() error { return e.Err }

// FFmpegMuxer implements Muxer using the ffmpeg command line tool.
type FFmpegMuxer struct {
	Path string
	// Logf receives the quoted command line before each run.
	Logf func(format string, args ...any)
}

// NewFFmpegMuxer returns a new FFmpegMuxer.
// If path is empty, it looks for "ffmpeg" in PATH.
func NewFFmpegMuxer(path string) *FFmpegMuxer {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpegMuxer{Path: path}
}

// Available checks if ffmpeg is executable.
func (f *FFmpegMuxer) Available() bool {
	_, err := exec.LookPath(f.Path)
	return err == nil
}

// RemuxArgs builds the ffmpeg arguments for an HLS stream copy.
func RemuxArgs(inputURL string, headers http.Header, outputPath string) []string {
	var args []string
	if h := headerBlock(headers); h != "" {
		args = append(args, "-headers", h)
	}
	return append(args,
		"-protocol_whitelist", "file,http,https,tcp,tls,crypto",
		"-i", inputURL,
		"-c", "copy",
		outputPath,
	)
}

// Remux runs ffmpeg over the authorized playlist. ffmpeg refuses to replace
// an existing output; callers pick a fresh path.
func (f *FFmpegMuxer) Remux(ctx context.Context, inputURL string, headers http.Header, outputPath string) error {
	return f.run(ctx, append([]string{"-n"}, RemuxArgs(inputURL, headers, outputPath)...))
}

// Merge muxes a video and an audio file without re-encoding.
func (f *FFmpegMuxer) Merge(ctx context.Context, videoPath, audioPath, outputPath string) error {
	return f.run(ctx, []string{
		"-n",
		"-i", videoPath,
		"-i", audioPath,
		"-c:v", "copy",
		"-c:a", "copy",
		outputPath,
	})
}

func (f *FFmpegMuxer) run(ctx context.Context, args []string) error {
	command := shellescape.QuoteCommand(append([]string{f.Path}, args...))
	if f.Logf != nil {
		f.Logf("running %s", command)
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.Path, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &ExitError{Command: command, Stderr: lastLine(stderr.String()), Err: err}
	}
	return nil
}

// headerBlock renders headers in the CRLF-separated form ffmpeg expects.
func headerBlock(headers http.Header) string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		for _, v := range headers[k] {
			b.WriteString(strings.ToLower(k))
			b.WriteString(": ")
			b.WriteString(v)
			b.WriteString("\r\n")
		}
	}
	return b.String()
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
