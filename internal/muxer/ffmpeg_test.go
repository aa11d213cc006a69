package muxer

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestRemuxArgs(t *testing.T) {
	args := RemuxArgs("https://hls.test/master.m3u8", http.Header{"Cookie": {"domand_bid=abc"}}, "/out/sm9.mp4")
	want := []string{
		"-headers", "cookie: domand_bid=abc\r\n",
		"-protocol_whitelist", "file,http,https,tcp,tls,crypto",
		"-i", "https://hls.test/master.m3u8",
		"-c", "copy",
		"/out/sm9.mp4",
	}
	if strings.Join(args, "|") != strings.Join(want, "|") {
		t.Fatalf("RemuxArgs() = %q, want %q", args, want)
	}
	if args := RemuxArgs("u", nil, "o"); args[0] != "-protocol_whitelist" {
		t.Fatalf("RemuxArgs() without headers = %q", args)
	}
}

func fakeFFmpeg(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestFFmpegMuxer_Remux(t *testing.T) {
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args")
	bin := fakeFFmpeg(t, `printf '%s\n' "$@" > "`+argsFile+`"`+"\n")

	var logged string
	m := &FFmpegMuxer{Path: bin, Logf: func(format string, args ...any) { logged = args[0].(string) }}
	if !m.Available() {
		t.Fatalf("Available() = false for %s", bin)
	}
	if err := m.Remux(context.Background(), "https://hls.test/x.m3u8", http.Header{"Cookie": {"domand_bid=1"}}, filepath.Join(dir, "o.mp4")); err != nil {
		t.Fatalf("Remux() error = %v", err)
	}
	got, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	for _, want := range []string{"-n", "-protocol_whitelist", "https://hls.test/x.m3u8", "copy"} {
		if !strings.Contains(string(got), want+"\n") {
			t.Fatalf("ffmpeg args %q missing %q", got, want)
		}
	}
	if !strings.Contains(logged, "'cookie: domand_bid=1") {
		t.Fatalf("logged command = %q", logged)
	}
}

func TestFFmpegMuxer_NonZeroExit(t *testing.T) {
	bin := fakeFFmpeg(t, "echo 'Server returned 403 Forbidden' >&2\nexit 1\n")
	m := NewFFmpegMuxer(bin)
	err := m.Merge(context.Background(), "v.mp4", "a.m4a", "out.mp4")
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("Merge() error = %v, want ExitError", err)
	}
	if exitErr.Stderr != "Server returned 403 Forbidden" {
		t.Fatalf("ExitError.Stderr = %q", exitErr.Stderr)
	}
}
