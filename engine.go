// SPDX-License-Identifier: EPL-2.0

package audtap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ik5/audtap/audio"
	"github.com/ik5/audtap/cache"
	"github.com/ik5/audtap/fetch"
	"github.com/ik5/audtap/formats/aiff"
	"github.com/ik5/audtap/formats/flac"
	"github.com/ik5/audtap/formats/mp3"
	"github.com/ik5/audtap/formats/vorbis"
	"github.com/ik5/audtap/formats/wav"
	"github.com/ik5/audtap/loudness"
	"github.com/ik5/audtap/visualizer"
)

// Track describes one item to play.
type Track struct {
	ID uint64
	// Format selects the decoder: "flac", "mp3", "ogg", "wav", "aiff" or
	// a file extension.
	Format string
	// TargetLUFS overrides Options.TargetLUFS when non-zero.
	TargetLUFS float64
	// ReplayGain, when known, is applied until the first measurement.
	ReplayGain *loudness.ReplayGain
}

// Playback is a decoded track running through the tap chain. Read it from
// the audio output goroutine.
type Playback struct {
	audio.Source

	Track  Track
	Origin fetch.Origin
	// Gain is the handle the loudness worker writes; nil when
	// normalization is off.
	Gain *audio.Gain

	stream *fetch.Stream
}

// Close closes the decoder and stops reading the download.
func (p *Playback) Close() error {
	err := p.Source.Close()
	if p.stream != nil {
		err = errors.Join(err, p.stream.Close())
	}
	return err
}

// Downloaded is closed once the track is fully fetched and cached.
// Cached and local tracks are done immediately.
func (p *Playback) Downloaded() <-chan struct{} {
	if p.stream == nil {
		done := make(chan struct{})
		close(done)
		return done
	}
	return p.stream.Done()
}

// Engine owns the cache, the decoders, the shared feeds and both
// background workers.
type Engine struct {
	opts Options
	log  zerolog.Logger

	cache    *cache.Coordinator
	loader   *fetch.Loader
	registry *audio.Registry

	analyzer *audio.AnalyzerFeed
	viz      *audio.VisualizerFeed
	worker   *loudness.Worker
	store    loudness.Store
	proc     *visualizer.Processor

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// New validates opts and opens the cache and the loudness store.
func New(opts Options) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		opts:     opts,
		log:      opts.Logger.With().Str("component", "engine").Logger(),
		registry: NewRegistry(),
		analyzer: audio.NewAnalyzerFeed(opts.AnalyzerQueue, opts.AnalyzerBatch),
		viz:      audio.NewVisualizerFeed(opts.VisualizerRing),
	}

	c, err := cache.Open(cache.Options{
		Root:        opts.CacheRoot,
		MemoryBytes: opts.MemoryCacheBytes,
		DiskBytes:   opts.DiskCacheBytes,
		Logger:      opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	e.cache = c

	var lc fetch.Cache = c
	if opts.StreamingOnly {
		lc = readOnlyCache{c}
	}
	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = fetch.FetcherFunc(func(context.Context, uint64) (io.ReadCloser, error) {
			return nil, ErrNoFetcher
		})
	}
	e.loader = fetch.NewLoader(lc, fetcher, fetch.Options{
		BufferSize: opts.FetchBuffer,
		Logger:     opts.Logger,
	})

	if opts.Normalize {
		if opts.LoudnessDB != "" {
			st, err := loudness.OpenSQLStore(opts.LoudnessDB)
			if err != nil {
				return nil, errors.Join(err, c.Close())
			}
			e.store = st
		} else {
			e.store = loudness.NewMemoryStore()
		}

		e.worker = loudness.NewWorker(e.analyzer, loudness.WorkerOptions{
			MinGain: opts.MinGain,
			MaxGain: opts.MaxGain,
			Store:   e.store,
			Logger:  opts.Logger,
		})
	}

	e.viz.SetEnabled(opts.Visualize)
	e.proc = visualizer.New(e.viz, visualizer.Options{
		FFTSize: opts.FFTSize,
		NumBars: opts.NumBars,
		FPS:     opts.FPS,
		Logger:  opts.Logger,
	})

	e.log.Info().
		Bool("normalize", opts.Normalize).
		Bool("streaming_only", opts.StreamingOnly).
		Strs("formats", e.registry.Formats()).
		Msg("engine ready")

	return e, nil
}

// NewRegistry returns a registry with every bundled decoder.
func NewRegistry() *audio.Registry {
	r := audio.NewRegistry()
	r.Register("wav", wav.Decoder{})
	r.Register("wave", wav.Decoder{})
	r.Register("mp3", mp3.Decoder{})
	r.Register("ogg", vorbis.Decoder{})
	r.Register("oga", vorbis.Decoder{})
	r.Register("aiff", aiff.Decoder{})
	r.Register("aif", aiff.Decoder{})
	r.Register("flac", flac.Decoder{})

	return r
}

func (e *Engine) Cache() *cache.Coordinator         { return e.cache }
func (e *Engine) Registry() *audio.Registry         { return e.registry }
func (e *Engine) Visualizer() *visualizer.Processor { return e.proc }
func (e *Engine) AnalyzerFeed() *audio.AnalyzerFeed { return e.analyzer }
func (e *Engine) SetVisualizerEnabled(on bool)      { e.viz.SetEnabled(on) }

// Loudness returns the loudness worker, or nil when normalization is off.
func (e *Engine) Loudness() *loudness.Worker { return e.worker }

// Run drives the loudness worker and the visualizer until ctx is done and
// returns the first worker error.
func (e *Engine) Run(ctx context.Context) error {
	var g errgroup.Group

	if e.worker != nil {
		g.Go(func() error { return e.worker.Run(ctx) })
	}
	g.Go(func() error { return e.proc.Run(ctx) })

	return g.Wait()
}

// Play opens track t from the cache or the network, decodes it and wraps
// it in the tap chain. ctx bounds the download.
func (e *Engine) Play(ctx context.Context, t Track) (*Playback, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}

	stream, err := e.loader.Open(ctx, t.ID)
	if err != nil {
		return nil, err
	}

	src, err := e.registry.Decode(t.Format, stream)
	if err != nil {
		stream.Close()
		return nil, fmt.Errorf("track %d: %w", t.ID, err)
	}

	p := e.attach(t, src)
	p.Origin = stream.Origin
	p.stream = stream

	e.log.Info().
		Uint64("track_id", t.ID).
		Str("format", t.Format).
		Stringer("origin", stream.Origin).
		Msg("playing")

	return p, nil
}

// PlaySource runs an already decoded source, such as a local file,
// through the tap chain.
func (e *Engine) PlaySource(t Track, src audio.Source) (*Playback, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}

	return e.attach(t, src), nil
}

// attach never waits on the loudness worker. If the announcement cannot be
// queued the track plays at its initial gain.
func (e *Engine) attach(t Track, src audio.Source) *Playback {
	p := &Playback{Track: t, Origin: fetch.OriginCache}
	out := src

	if e.worker != nil {
		target := t.TargetLUFS
		if target == 0 {
			target = e.opts.TargetLUFS
		}

		initial := float32(1)
		if t.ReplayGain != nil {
			initial = loudness.ClampGain(t.ReplayGain.Factor(target), e.opts.MinGain, e.opts.MaxGain)
		}

		p.Gain = audio.NewGain(0)
		err := e.worker.NewTrack(audio.NewTrack{
			TrackID:    t.ID,
			SampleRate: src.SampleRate(),
			Channels:   src.Channels(),
			TargetLUFS: target,
			Gain:       p.Gain,
		})
		if err != nil {
			e.log.Warn().Err(err).
				Uint64("track_id", t.ID).
				Uint64("dropped", e.analyzer.Dropped()).
				Float32("gain", initial).
				Msg("loudness worker not keeping up, track not announced")
		}

		out = audio.NewGainStage(out, p.Gain, initial, e.opts.Ramp)
		out = audio.NewAnalyzerTap(out, e.analyzer)
	}

	p.Source = audio.NewVisualizerTap(out, e.viz)

	return p
}

// Seek tells the workers the stream jumped. The loudness estimate
// restarts; the current gain is kept. Call it from the goroutine reading
// the Playback, between reads.
func (e *Engine) Seek() {
	e.viz.Ring().Reset()

	if e.worker == nil {
		return
	}
	if err := e.worker.Reset(); err != nil {
		e.log.Warn().Err(err).Msg("loudness reset dropped")
	}
}

// Close stops the loudness worker and flushes and closes the cache and
// the loudness store. Cancel the context given to Run to stop the
// visualizer.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.closed.Store(true)

		if e.worker != nil {
			e.worker.Shutdown()
		}

		errs := []error{e.cache.Close()}
		if c, ok := e.store.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
		e.closeErr = errors.Join(errs...)

		e.log.Info().Err(e.closeErr).Msg("engine closed")
	})

	return e.closeErr
}

// readOnlyCache serves hits but never stores downloads.
type readOnlyCache struct {
	*cache.Coordinator
}

func (readOnlyCache) Insert(uint64, []byte) error { return nil }
