// SPDX-License-Identifier: EPL-2.0

package audtap

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ik5/audtap/audio"
	"github.com/ik5/audtap/cache"
	"github.com/ik5/audtap/fetch"
	"github.com/ik5/audtap/loudness"
	"github.com/ik5/audtap/visualizer"
)

// DefaultTargetLUFS matches the common streaming reference level.
const DefaultTargetLUFS = -14.0

// Options configures an Engine. Start from DefaultOptions.
type Options struct {
	// CacheRoot holds the disk tier. Empty selects the user cache dir.
	CacheRoot string
	// MemoryCacheBytes and DiskCacheBytes size the two cache tiers. A
	// negative DiskCacheBytes keeps the cache in memory only.
	MemoryCacheBytes int64
	DiskCacheBytes   int64
	// StreamingOnly plays from the network without writing to the cache.
	// Cached tracks are still served from it.
	StreamingOnly bool

	// Normalize enables the gain stage and the loudness worker. When off
	// the samples pass through untouched.
	Normalize  bool
	TargetLUFS float64
	MinGain    float64
	MaxGain    float64
	Ramp       time.Duration
	// LoudnessDB is a SQLite file remembering per-track corrections.
	// Empty keeps them in memory for the life of the engine.
	LoudnessDB string

	AnalyzerBatch  int
	AnalyzerQueue  int
	VisualizerRing int
	// Visualize enables the visualizer tap from the start.
	Visualize bool
	FFTSize   int
	NumBars   int
	FPS       int

	// Fetcher downloads tracks missing from the cache. Play fails with
	// ErrNoFetcher on a miss when nil.
	Fetcher     fetch.Fetcher
	FetchBuffer int

	Logger zerolog.Logger
}

func DefaultOptions() Options {
	return Options{
		MemoryCacheBytes: cache.DefaultMemoryBytes,
		DiskCacheBytes:   cache.DefaultDiskBytes,
		Normalize:        true,
		TargetLUFS:       DefaultTargetLUFS,
		MinGain:          loudness.DefaultMinGain,
		MaxGain:          loudness.DefaultMaxGain,
		Ramp:             audio.DefaultRampDuration,
		AnalyzerBatch:    audio.DefaultBatchSize,
		AnalyzerQueue:    audio.DefaultAnalyzerQueue,
		VisualizerRing:   audio.DefaultRingSize,
		FFTSize:          visualizer.DefaultFFTSize,
		NumBars:          visualizer.DefaultNumBars,
		FPS:              visualizer.DefaultFPS,
		FetchBuffer:      fetch.DefaultBufferSize,
		Logger:           zerolog.Nop(),
	}
}

// Validate reports the first setting New cannot work with.
func (o Options) Validate() error {
	switch {
	case o.MemoryCacheBytes < 0:
		return fmt.Errorf("%w: memory cache size %d", ErrInvalidOptions, o.MemoryCacheBytes)
	case o.MinGain <= 0 || o.MaxGain < o.MinGain:
		return fmt.Errorf("%w: gain clamp [%g, %g]", ErrInvalidOptions, o.MinGain, o.MaxGain)
	case o.TargetLUFS >= 0:
		return fmt.Errorf("%w: target loudness %g LUFS", ErrInvalidOptions, o.TargetLUFS)
	case o.Ramp < 0:
		return fmt.Errorf("%w: ramp %s", ErrInvalidOptions, o.Ramp)
	case o.AnalyzerBatch < 0 || o.AnalyzerQueue < 0 || o.FetchBuffer < 0:
		return fmt.Errorf("%w: negative queue or buffer size", ErrInvalidOptions)
	case o.FFTSize < 0 || o.FFTSize&(o.FFTSize-1) != 0:
		return fmt.Errorf("%w: fft size %d is not a power of two", ErrInvalidOptions, o.FFTSize)
	case o.VisualizerRing < 0 || (o.VisualizerRing > 0 && o.VisualizerRing < o.FFTSize):
		return fmt.Errorf("%w: ring of %d samples is smaller than the fft", ErrInvalidOptions, o.VisualizerRing)
	case o.NumBars < 0 || o.FPS < 0:
		return fmt.Errorf("%w: negative bar count or frame rate", ErrInvalidOptions)
	}

	return nil
}
