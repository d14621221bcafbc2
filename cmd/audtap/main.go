// SPDX-License-Identifier: EPL-2.0

// Command audtap runs local files through the tap chain and manages the
// track cache.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"
)

var version = "0.1.0"

// Globals are shared by every command.
type Globals struct {
	Debug    bool   `help:"Enable debug logging." env:"AUDTAP_DEBUG"`
	CacheDir string `type:"path" help:"Cache root (defaults to the user cache dir)." env:"AUDTAP_CACHE_DIR"`

	log zerolog.Logger
	out io.Writer
}

// CLI defines the command-line interface.
type CLI struct {
	Globals

	Version kong.VersionFlag `short:"v" help:"Show version information."`

	Render RenderCmd `cmd:"" help:"Decode a file through the pipeline into a WAV file."`
	Fetch  FetchCmd  `cmd:"" help:"Download tracks into the disk cache."`
	Cache  CacheCmd  `cmd:"" help:"Inspect or clear the track cache."`
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "audtap:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("audtap"),
		kong.Description("Loudness-normalizing audio pipeline and track cache"),
		kong.UsageOnError(),
		kong.Vars{"version": version},
		kong.Writers(stdout, stderr),
	)
	if err != nil {
		return err
	}

	ctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	level := zerolog.InfoLevel
	if cli.Debug {
		level = zerolog.DebugLevel
	}
	cli.log = zerolog.New(zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()
	cli.out = stdout

	return ctx.Run(&cli.Globals)
}
