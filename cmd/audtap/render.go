// SPDX-License-Identifier: EPL-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/ik5/audtap"
	"github.com/ik5/audtap/audio"
	"github.com/ik5/audtap/loudness"
	"github.com/ik5/audtap/sink"
)

// RenderCmd decodes a local file, runs it through the gain, analyzer and
// visualizer taps and writes the result as WAV.
type RenderCmd struct {
	File string `arg:"" type:"existingfile" help:"Input audio file."`
	Out  string `short:"o" required:"" type:"path" help:"Output WAV file."`

	Bits        int     `default:"16" enum:"8,16,24,32" help:"Output bit depth."`
	Rate        int     `help:"Resample the output to this rate (0 keeps the input rate)."`
	Target      float64 `default:"-14" help:"Target loudness in LUFS."`
	ReplayGain  string  `name:"replaygain" help:"REPLAYGAIN_TRACK_GAIN tag, e.g. \"-6.5 dB\"."`
	Peak        string  `help:"REPLAYGAIN_TRACK_PEAK tag."`
	NoNormalize bool    `help:"Leave the samples untouched."`
	LoudnessDB  string  `type:"path" help:"SQLite file remembering measured corrections."`
}

func (c *RenderCmd) Run(g *Globals) error {
	opts := audtap.DefaultOptions()
	opts.DiskCacheBytes = -1
	opts.Normalize = !c.NoNormalize
	opts.TargetLUFS = c.Target
	opts.LoudnessDB = c.LoudnessDB
	opts.Visualize = true
	// a render outruns real time; queue every batch instead of dropping
	opts.AnalyzerQueue = 1 << 16
	opts.Logger = g.log

	e, err := audtap.New(opts)
	if err != nil {
		return err
	}
	defer e.Close()

	track := audtap.Track{ID: trackID(c.File), Format: filepath.Ext(c.File)}
	if c.ReplayGain != "" {
		rg, err := loudness.ParseReplayGain(c.ReplayGain, c.Peak)
		if err != nil {
			return err
		}
		track.ReplayGain = &rg
	}

	in, err := os.Open(c.File)
	if err != nil {
		return err
	}
	defer in.Close()

	src, err := e.Registry().Decode(track.Format, in)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workerDone := make(chan error, 1)
	if w := e.Loudness(); w != nil {
		go func() { workerDone <- w.Run(ctx) }()
	} else {
		close(workerDone)
	}

	p, err := e.PlaySource(track, src)
	if err != nil {
		return err
	}
	defer p.Close()

	var out audio.Source = p
	if c.Rate > 0 {
		out = sink.Resample(p, c.Rate, 4)
	}

	f, err := os.Create(c.Out)
	if err != nil {
		return err
	}
	frames, err := sink.WriteWAV(f, out, c.Bits)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("render %s: %w", c.Out, err)
	}

	frame, haveFrame := e.Visualizer().Analyze()

	if w := e.Loudness(); w != nil {
		drain(e.AnalyzerFeed())
		w.Shutdown()
		if err := <-workerDone; err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}

	fmt.Fprintf(g.out, "wrote %d frames at %d Hz to %s\n", frames, out.SampleRate(), c.Out)
	if w := e.Loudness(); w != nil {
		if m, ok := w.LastMeasurement(); ok {
			fmt.Fprintf(g.out, "loudness %.1f LUFS, gain %.3f\n", m.LUFS, m.Gain)
		} else {
			fmt.Fprintln(g.out, "loudness not measured (track shorter than the first window)")
		}
	}
	if haveFrame {
		fmt.Fprintln(g.out, bars(frame.Bars))
	}

	return nil
}

// drain waits until the worker has taken every queued batch.
func drain(feed *audio.AnalyzerFeed) {
	deadline := time.Now().Add(30 * time.Second)
	for len(feed.C()) > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
}

// trackID derives a stable id from the file's absolute path.
func trackID(path string) uint64 {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	return xxhash.Sum64String(abs)
}

var levels = []rune(" ▁▂▃▄▅▆▇█")

func bars(b []float32) string {
	var sb strings.Builder
	for _, v := range b {
		i := int(v * float32(len(levels)-1))
		sb.WriteRune(levels[min(max(i, 0), len(levels)-1)])
	}
	return "[" + sb.String() + "]"
}

