package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/famomatic/nicov1/client"
	"github.com/famomatic/nicov1/internal/cli"
)

const version = "0.4.0"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := cli.ParseArgs(args)
	if err != nil {
		fmt.Fprintln(stderr, err)
		cli.Usage(stderr)
		return 2
	}
	switch {
	case opts.Version:
		fmt.Fprintf(stdout, "nicov1 %s\n", version)
		return 0
	case opts.Help && opts.Command != "":
		cli.PrintCommandDefaults(stdout, opts.Command)
		return 0
	case opts.Help:
		cli.Usage(stdout)
		return 0
	}

	level := zerolog.InfoLevel
	if opts.Debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()

	cfg, err := cli.ToClientConfig(opts)
	if err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return 2
	}
	cfg.Logger = zerologAdapter{l: logger}
	cfg.OnDownloadEvent = func(e client.DownloadEvent) {
		logger.Debug().Msg(formatDownloadEvent(e))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c := client.New(cfg)
	if err := login(ctx, c, opts, stderr); err != nil {
		logger.Error().Err(err).Str("category", string(client.ClassifyError(err))).Msg("login failed")
		return 1
	}

	if err := dispatch(ctx, c, opts, stdout, stderr, logger); err != nil {
		logger.Error().Err(err).Str("category", string(client.ClassifyError(err))).Msg(opts.Command + " failed")
		return 1
	}
	return 0
}

func dispatch(ctx context.Context, c *client.Client, opts cli.Options, stdout, stderr io.Writer, logger zerolog.Logger) error {
	switch opts.Command {
	case cli.CommandDetails:
		video, err := c.GetVideo(ctx, opts.Input)
		if err != nil {
			return err
		}
		return writeJSON(opts.Output, stdout, video, logger)

	case cli.CommandQuality:
		session, err := c.GetWatchData(ctx, opts.Input)
		if err != nil {
			return err
		}
		printOutputs(stdout, client.ListOutputs(session))
		return nil

	case cli.CommandDownload:
		session, err := c.GetWatchData(ctx, opts.Input)
		if err != nil {
			return err
		}
		outputs := client.ListOutputs(session)
		if outputs.Len() == 0 {
			return fmt.Errorf("%w: no downloadable outputs", client.ErrWatchUnavailable)
		}
		out, ok := outputs.Select(opts.Quality)
		if !ok {
			return fmt.Errorf("%w: quality %q is not offered (have %s)", client.ErrInvalidInput, opts.Quality, strings.Join(outputs.Labels(), ", "))
		}
		logger.Debug().Str("label", out.Label).Str("video", out.VideoID).Str("audio", out.AudioID).Msg("selected output")
		dl := cli.ToDownloadOptions(opts)
		bar := newProgressLine(stderr)
		dl.OnProgress = bar.update
		res, err := c.Download(ctx, session, out.Label, opts.Output, dl)
		bar.finish()
		if err != nil {
			return err
		}
		logger.Info().Str("path", res.OutputPath).Str("size", humanize.Bytes(uint64(res.Bytes))).Msg("downloaded")
		return nil

	case cli.CommandComments:
		since, err := cli.SinceTime(opts)
		if err != nil {
			return err
		}
		session, err := c.GetWatchData(ctx, opts.Input)
		if err != nil {
			return err
		}
		res, err := c.BackfillComments(ctx, session, client.BackfillOptions{
			Start: since,
			OnPage: func(p client.BackfillPage) {
				logger.Info().Int("request", p.Request).Time("when", p.When).Int("total", p.Total).Msg("comments page")
			},
		})
		if err != nil {
			return err
		}
		if res.Err != nil {
			logger.Warn().Err(res.Err).Msg("backfill ended early; writing what was collected")
		}
		return writeJSON(opts.Output, stdout, commentDump(session.Video.ID, res), logger)

	case cli.CommandStoryboard:
		session, err := c.GetWatchData(ctx, opts.Input)
		if err != nil {
			return err
		}
		res, err := c.DownloadStoryboard(ctx, session, opts.Output)
		if err != nil {
			return err
		}
		logger.Info().Str("manifest", res.Manifest).Int("images", len(res.Images)).Msg("storyboard saved")
		return nil
	}
	return fmt.Errorf("%w: unknown command %q", cli.ErrUsage, opts.Command)
}

func login(ctx context.Context, c *client.Client, opts cli.Options, stderr io.Writer) error {
	switch {
	case opts.Session != "":
		return c.LoginWithSession(ctx, opts.Session)
	case opts.Mail != "":
		password, err := readSecret(stderr, "Password: ")
		if err != nil {
			return err
		}
		return c.Login(ctx, opts.Mail, password, client.LoginOptions{
			MFA: func(context.Context) (string, error) {
				return readLine(stderr, "One-time code: ")
			},
		})
	}
	return nil
}

var stdinReader = bufio.NewReader(os.Stdin)

func readSecret(prompt io.Writer, label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return readLine(prompt, label)
	}
	fmt.Fprint(prompt, label)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(prompt)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}

func readLine(prompt io.Writer, label string) (string, error) {
	fmt.Fprint(prompt, label)
	line, err := stdinReader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(strings.ToLower(label), ": "), err)
	}
	return strings.TrimSpace(line), nil
}

func writeJSON(path string, stdout io.Writer, v any, logger zerolog.Logger) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if path == "" {
		_, err = stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	logger.Info().Str("path", path).Msg("saved")
	return nil
}

func printOutputs(w io.Writer, outputs client.OutputSelection) {
	fmt.Fprintln(w, "Label\tVideo, Audio")
	for _, o := range outputs.All() {
		fmt.Fprintf(w, "%s:\t%s, %s\n", o.Label, o.VideoID, o.AudioID)
	}
}

type threadDump struct {
	ThreadID string           `json:"threadId"`
	Fork     string           `json:"fork"`
	Count    int              `json:"count"`
	Comments []client.Comment `json:"comments"`
	Error    string           `json:"error,omitempty"`
}

type commentsDump struct {
	VideoID  string       `json:"videoId"`
	Requests int          `json:"requests"`
	Threads  []threadDump `json:"threads"`
}

// commentDump keeps one group per (thread, fork); comment numbers are only
// unique within a thread.
func commentDump(videoID string, res *client.BackfillResult) commentsDump {
	out := commentsDump{VideoID: videoID, Requests: res.Requests}
	for _, t := range res.Threads {
		d := threadDump{ThreadID: t.ID, Fork: t.Fork, Count: len(t.Comments), Comments: t.Comments}
		if d.Comments == nil {
			d.Comments = []client.Comment{}
		}
		if t.Err != nil {
			d.Error = t.Err.Error()
		}
		out.Threads = append(out.Threads, d)
	}
	return out
}

func formatDownloadEvent(evt client.DownloadEvent) string {
	return fmt.Sprintf("[download] %s:%s video_id=%s path=%s detail=%s", evt.Stage, evt.Phase, evt.VideoID, evt.Path, evt.Detail)
}

// zerologAdapter routes client logs through zerolog.
type zerologAdapter struct {
	l zerolog.Logger
}

func (a zerologAdapter) Debugf(format string, args ...any) { a.l.Debug().Msgf(format, args...) }
func (a zerologAdapter) Warnf(format string, args ...any)  { a.l.Warn().Msgf(format, args...) }
