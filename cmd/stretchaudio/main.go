// ABOUTME: Entry point for the stretchaudio command
// ABOUTME: Parses arguments, loads configuration and stretches one audio file
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/Resonate-Protocol/stretchaudio/internal/config"
	"github.com/Resonate-Protocol/stretchaudio/internal/logger"
	"github.com/Resonate-Protocol/stretchaudio/internal/version"
	"github.com/Resonate-Protocol/stretchaudio/pkg/stretch"
)

const usageHeader = `Usage: %s [flags] <input> <output> <extraMilliseconds>

Lengthens <input> by <extraMilliseconds> by repeating short stretches of
audio spread evenly over the file, and writes the result to <output>
(.wav or .flac) with the input's sample rate, channels and bit depth.

Flags:
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command and returns the process exit code. Invalid
// arguments print the usage and exit successfully.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	// The config file has to be known before flags can override its values
	pre := pflag.NewFlagSet(version.Product, pflag.ContinueOnError)
	pre.ParseErrorsWhitelist.UnknownFlags = true
	pre.SetOutput(io.Discard)
	pre.Usage = func() {}
	configPath := pre.String("config", "", "")
	_ = pre.Parse(args)

	conf, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading configuration: %v\n", err)
		return 1
	}

	fs := pflag.NewFlagSet(version.Product, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.String("config", *configPath, "Configuration file (default: stretchaudio.yaml in ., configs or ~/.stretchaudio)")
	conf.AddFlags(fs)
	showVersion := fs.Bool("version", false, "Print version and exit")
	help := fs.BoolP("help", "h", false, "Show this help")

	usage := func() {
		fmt.Fprintf(stdout, usageHeader, version.Product)
		fs.SetOutput(stdout)
		fs.PrintDefaults()
	}
	fs.Usage = func() {}

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(stderr, "%v\n\n", err)
		usage()
		return 0
	}
	if *showVersion {
		fmt.Fprintf(stdout, "%s %s (%s)\n", version.Product, version.Version, version.Manufacturer)
		return 0
	}
	if *help || fs.NArg() != 3 {
		usage()
		return 0
	}

	input, output := fs.Arg(0), fs.Arg(1)
	extraMs, err := strconv.Atoi(fs.Arg(2))
	if err != nil {
		fmt.Fprintf(stderr, "invalid extraMilliseconds %q: must be an integer\n\n", fs.Arg(2))
		usage()
		return 0
	}

	var log *logger.Logger
	if conf.Log.JSON {
		log = logger.New(stderr, conf.Log.Debug)
	} else {
		log = logger.NewConsole(stderr, conf.Log.Debug, version.Product, conf.Log.NoColor)
	}
	log = log.Extend(log.With().Str("version", version.Version))
	log.Debug().
		Int("chunk_frames", conf.Render.ChunkFrames).
		Int("retry_limit", conf.Render.RetryLimit).
		Dur("retry_interval", conf.Render.RetryInterval).
		Msg("configuration loaded")

	extra := time.Duration(extraMs) * time.Millisecond
	if _, err := stretch.File(ctx, input, output, extra, conf.StretchOptions(log.Zerolog())); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn().Str("output", output).Msg("interrupted, no output written")
		}
		fmt.Fprintf(stderr, "Error stretching audio: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "Stretched audio written to %s\n", output)
	return 0
}
