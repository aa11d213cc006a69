package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/famomatic/nicov1/client"
	"github.com/famomatic/nicov1/internal/cookies"
)

// Commands understood by the CLI.
const (
	CommandDetails    = "details"
	CommandQuality    = "quality"
	CommandDownload   = "download"
	CommandComments   = "comments"
	CommandStoryboard = "storyboard"
)

var commandHelp = map[string]string{
	CommandDetails:    "show video details as JSON",
	CommandQuality:    "list output labels with their video and audio ids",
	CommandDownload:   "download a video",
	CommandComments:   "backfill all comments as JSON",
	CommandStoryboard: "download storyboard images (premium)",
}

var commandOrder = []string{CommandDetails, CommandQuality, CommandDownload, CommandComments, CommandStoryboard}

// ErrUsage reports a command line that cannot be run.
var ErrUsage = errors.New("usage error")

// Options holds all command-line options.
type Options struct {
	Command string
	// Input is the video id or watch URL.
	Input string

	// General
	Help    bool
	Version bool
	Debug   bool // --debug

	// Network / Auth
	ProxyURL    string // --proxy
	CookiesFile string // --cookies
	Session     string // -s, --session
	Mail        string // --mail

	// Output
	Output  string // -o, --output
	Quality string // -q, --quality

	// Download
	Progressive     bool   // --progressive
	InProcessHLS    bool   // --no-ffmpeg-hls
	FFmpegLocation  string // --ffmpeg-location
	DownloadRetries int    // --retries
	RetrySleepMS    int    // --retry-sleep-ms

	// Comments
	Since      string // --since, RFC3339
	IntervalMS int    // --interval-ms
}

// Usage writes the top-level help text.
func Usage(w io.Writer) {
	fmt.Fprintf(w, "Usage: nicov1 [--version] COMMAND [OPTIONS] VIDEO\n\nCommands:\n")
	for _, name := range commandOrder {
		fmt.Fprintf(w, "  %-11s %s\n", name, commandHelp[name])
	}
	fmt.Fprintf(w, "\nRun 'nicov1 COMMAND -h' for command options.\n")
}

// ParseArgs parses command-line arguments (without the program name) into
// Options. Flags may appear before or after the video argument.
func ParseArgs(args []string) (Options, error) {
	opts := Options{}
	if len(args) == 0 {
		opts.Help = true
		return opts, nil
	}
	switch args[0] {
	case "-h", "-help", "--help", "help":
		opts.Help = true
		return opts, nil
	case "-version", "--version":
		opts.Version = true
		return opts, nil
	}
	opts.Command = args[0]
	if _, ok := commandHelp[opts.Command]; !ok {
		return opts, fmt.Errorf("%w: unknown command %q", ErrUsage, opts.Command)
	}

	fs := newFlagSet(&opts)
	var positional []string
	rest := args[1:]
	for {
		if err := fs.Parse(rest); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				opts.Help = true
				return opts, nil
			}
			return opts, fmt.Errorf("%w: %v", ErrUsage, err)
		}
		if fs.NArg() == 0 {
			break
		}
		positional = append(positional, fs.Arg(0))
		rest = fs.Args()[1:]
	}
	if len(positional) != 1 {
		return opts, fmt.Errorf("%w: %s takes exactly one video id or URL", ErrUsage, opts.Command)
	}
	opts.Input = positional[0]
	return opts, nil
}

// PrintCommandDefaults writes the flags accepted by command.
func PrintCommandDefaults(w io.Writer, command string) {
	var opts Options
	opts.Command = command
	fs := newFlagSet(&opts)
	fs.SetOutput(w)
	fmt.Fprintf(w, "Usage: nicov1 %s [OPTIONS] VIDEO\n\n", command)
	fs.PrintDefaults()
}

func newFlagSet(opts *Options) *flag.FlagSet {
	fs := flag.NewFlagSet(opts.Command, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.BoolVar(&opts.Debug, "debug", false, "Enable debug logging")
	fs.StringVar(&opts.ProxyURL, "proxy", "", "Use the specified HTTP/HTTPS/SOCKS5 proxy")
	fs.StringVar(&opts.CookiesFile, "cookies", "", "Netscape formatted cookies file")

	switch opts.Command {
	case CommandDetails:
		bindString(fs, &opts.Output, "o", "output", "", "Output file (default: stdout)")
	case CommandQuality:
		bindLogin(fs, opts)
	case CommandDownload:
		bindLogin(fs, opts)
		bindString(fs, &opts.Output, "o", "output", ".", "Output directory")
		bindString(fs, &opts.Quality, "q", "quality", "best", "Output label or fallback chain, e.g. 1080p/720p/best")
		fs.BoolVar(&opts.Progressive, "progressive", false, "Use the legacy progressive delivery with heartbeat")
		fs.BoolVar(&opts.InProcessHLS, "no-ffmpeg-hls", false, "Fetch HLS segments in process; ffmpeg only merges tracks")
		fs.StringVar(&opts.FFmpegLocation, "ffmpeg-location", "", "Path to ffmpeg binary")
		fs.IntVar(&opts.DownloadRetries, "retries", -1, "Media retry count override (-1 keeps defaults)")
		fs.IntVar(&opts.RetrySleepMS, "retry-sleep-ms", -1, "Media retry initial backoff in milliseconds (-1 keeps defaults)")
	case CommandComments:
		bindLogin(fs, opts)
		bindString(fs, &opts.Output, "o", "output", "", "Output file (default: stdout)")
		fs.StringVar(&opts.Since, "since", "", "Start paging back from this RFC3339 time (default: now)")
		fs.IntVar(&opts.IntervalMS, "interval-ms", 0, "Delay between comment requests in milliseconds (0 keeps default)")
	case CommandStoryboard:
		bindLogin(fs, opts)
		bindString(fs, &opts.Output, "o", "output", ".", "Output directory")
	}
	return fs
}

func bindLogin(fs *flag.FlagSet, opts *Options) {
	bindString(fs, &opts.Session, "s", "session", "", "user_session cookie value")
	fs.StringVar(&opts.Mail, "mail", "", "Log in with this mail address; the password is prompted")
}

// bindString registers a short and a long flag writing the same variable.
func bindString(fs *flag.FlagSet, p *string, short, long, def, usage string) {
	fs.StringVar(p, short, def, usage)
	fs.StringVar(p, long, def, usage)
}

// ToClientConfig converts Options to client.Config.
func ToClientConfig(opts Options) (client.Config, error) {
	cfg := client.Config{
		ProxyURL:   opts.ProxyURL,
		FFmpegPath: opts.FFmpegLocation,
	}
	if opts.DownloadRetries >= 0 {
		cfg.DownloadTransport.MaxRetries = opts.DownloadRetries
	}
	if opts.RetrySleepMS >= 0 {
		cfg.DownloadTransport.InitialBackoff = time.Duration(opts.RetrySleepMS) * time.Millisecond
	}
	if opts.IntervalMS > 0 {
		cfg.Comment.Interval = time.Duration(opts.IntervalMS) * time.Millisecond
	}

	if opts.CookiesFile != "" {
		jar, err := cookies.LoadFile(opts.CookiesFile)
		if err != nil {
			return cfg, fmt.Errorf("failed to load cookies: %w", err)
		}
		cfg.CookieJar = jar
	}
	return cfg, nil
}

// ToDownloadOptions selects the delivery mode for the download command.
func ToDownloadOptions(opts Options) client.DownloadOptions {
	out := client.DownloadOptions{Mode: client.ModeHLS, HLSMode: client.HLSRemux}
	if opts.Progressive {
		out.Mode = client.ModeProgressive
	}
	if opts.InProcessHLS {
		out.HLSMode = client.HLSInProcess
	}
	return out
}

// SinceTime parses --since. An empty value yields the zero time.
func SinceTime(opts Options) (time.Time, error) {
	raw := strings.TrimSpace(opts.Since)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: --since: %v", ErrUsage, err)
	}
	return t, nil
}
