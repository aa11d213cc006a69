package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/famomatic/nicov1/client"
	"github.com/famomatic/nicov1/internal/comments"
	"github.com/famomatic/nicov1/internal/nvapi"
)

func TestFormatDownloadEvent(t *testing.T) {
	got := formatDownloadEvent(client.DownloadEvent{
		Stage:   "merge",
		Phase:   "complete",
		VideoID: "sm9",
		Path:    "sm9_title.mp4",
		Detail:  "ok",
	})
	want := "[download] merge:complete video_id=sm9 path=sm9_title.mp4 detail=ok"
	if got != want {
		t.Fatalf("formatDownloadEvent()=%q want=%q", got, want)
	}
}

func TestFormatProgress(t *testing.T) {
	got := formatProgress(client.Progress{Bytes: 500000, Total: 1000000}, 2*time.Second)
	want := "500 kB / 1.0 MB (50.0%) at 250 kB/s"
	if got != want {
		t.Fatalf("formatProgress()=%q want=%q", got, want)
	}
	if got := formatProgress(client.Progress{Bytes: 1500}, 0); got != "1.5 kB" {
		t.Fatalf("formatProgress(unknown total)=%q", got)
	}
}

func TestProgressLine_SilentWhenNotTerminal(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressLine(&buf)
	p.update(client.Progress{Bytes: 1, Total: 1})
	p.finish()
	if buf.Len() != 0 {
		t.Fatalf("progress written to non-terminal: %q", buf.String())
	}
}

func TestCommentDump_GroupsThreads(t *testing.T) {
	res := &client.BackfillResult{
		Requests: 3,
		Threads: []*comments.Thread{
			{ID: "1", Fork: nvapi.ForkMain, Comments: []nvapi.Comment{{No: 2}, {No: 1}}},
			{ID: "1", Fork: nvapi.ForkEasy, Comments: []nvapi.Comment{{No: 7}}},
			{ID: "2", Fork: nvapi.ForkMain, Comments: []nvapi.Comment{{No: 9}}},
		},
	}
	dump := commentDump("sm9", res)
	if len(dump.Threads) != 3 || dump.Threads[0].Count != 2 || dump.Threads[2].ThreadID != "2" {
		t.Fatalf("commentDump() = %+v", dump)
	}
	data, err := json.Marshal(dump)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !strings.Contains(string(data), `"videoId":"sm9"`) {
		t.Fatalf("json = %s", data)
	}
}

func TestCommentDump_SameNumberInTwoMainThreads(t *testing.T) {
	res := &client.BackfillResult{
		Requests: 1,
		Threads: []*comments.Thread{
			{ID: "1001", Fork: nvapi.ForkMain, Comments: []nvapi.Comment{{ID: "a", No: 1, Thread: "1001", Fork: nvapi.ForkMain}}},
			{ID: "2002", Fork: nvapi.ForkMain, Comments: []nvapi.Comment{{ID: "b", No: 1, Thread: "2002", Fork: nvapi.ForkMain}}},
		},
	}
	dump := commentDump("sm9", res)
	if len(dump.Threads) != 2 {
		t.Fatalf("len(Threads) = %d, want 2", len(dump.Threads))
	}
	for i, want := range []string{"1001", "2002"} {
		if dump.Threads[i].ThreadID != want || dump.Threads[i].Count != 1 {
			t.Fatalf("Threads[%d] = %+v, want thread %s with one comment", i, dump.Threads[i], want)
		}
	}

	data, err := json.Marshal(dump)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var decoded struct {
		Threads []struct {
			ThreadID string `json:"threadId"`
			Comments []struct {
				No       int64  `json:"no"`
				ThreadID string `json:"threadId"`
			} `json:"comments"`
		} `json:"threads"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	for i, th := range decoded.Threads {
		if len(th.Comments) != 1 || th.Comments[0].No != 1 || th.Comments[0].ThreadID != th.ThreadID {
			t.Fatalf("decoded thread %d = %+v", i, th)
		}
	}
}

func TestRun_UsageAndVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"--version"}, &stdout, &stderr); code != 0 || !strings.HasPrefix(stdout.String(), "nicov1 ") {
		t.Fatalf("run(--version) = %d, stdout %q", code, stdout.String())
	}
	stdout.Reset()
	if code := run([]string{"upload", "sm9"}, &stdout, &stderr); code != 2 {
		t.Fatalf("run(upload) = %d, want 2", code)
	}
	if code := run([]string{"download", "-h"}, &stdout, &stderr); code != 0 || !strings.Contains(stdout.String(), "-quality") {
		t.Fatalf("run(download -h) = %d, stdout %q", code, stdout.String())
	}
}

func TestPrintOutputs(t *testing.T) {
	var buf bytes.Buffer
	printOutputs(&buf, client.OutputSelection{})
	if buf.String() != "Label\tVideo, Audio\n" {
		t.Fatalf("printOutputs(empty)=%q", buf.String())
	}
}
