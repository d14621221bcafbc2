// SPDX-License-Identifier: EPL-2.0

package loudness

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ik5/audtap/audio"
)

const (
	// DefaultInitialWindow is how much audio is integrated before the first
	// gain is published.
	DefaultInitialWindow = 10 * time.Second
	// DefaultRefineInterval is how often the estimate is refreshed after.
	DefaultRefineInterval = 5 * time.Second
)

// WorkerOptions configures a Worker. Zero values select the defaults.
type WorkerOptions struct {
	MinGain        float64
	MaxGain        float64
	InitialWindow  time.Duration
	RefineInterval time.Duration
	// Store remembers corrections across plays of a track. Optional.
	Store  Store
	Logger zerolog.Logger
}

// Measurement is the latest published estimate.
type Measurement struct {
	TrackID uint64
	LUFS    float64
	Gain    float32
	Refined bool
}

// Worker consumes an AnalyzerFeed and publishes corrective gains into the
// Gain handle of the current track.
type Worker struct {
	feed *audio.AnalyzerFeed
	opts WorkerOptions
	log  zerolog.Logger

	quit     chan struct{}
	quitOnce sync.Once

	mu   sync.Mutex
	last Measurement
	ok   bool

	cur *trackState
}

type trackState struct {
	id     uint64
	target float64
	gain   *audio.Gain
	meter  *Meter

	fed         uint64 // interleaved samples since the last reset
	lastMeasure uint64
	initialDone bool
	initialLen  uint64
	refineLen   uint64
}

// NewWorker creates a worker reading from feed.
func NewWorker(feed *audio.AnalyzerFeed, opts WorkerOptions) *Worker {
	if opts.MinGain <= 0 {
		opts.MinGain = DefaultMinGain
	}
	if opts.MaxGain <= 0 {
		opts.MaxGain = DefaultMaxGain
	}
	if opts.InitialWindow <= 0 {
		opts.InitialWindow = DefaultInitialWindow
	}
	if opts.RefineInterval <= 0 {
		opts.RefineInterval = DefaultRefineInterval
	}

	return &Worker{
		feed: feed,
		opts: opts,
		log:  opts.Logger.With().Str("component", "loudness").Logger(),
		quit: make(chan struct{}),
	}
}

// NewTrack announces a track. It never blocks: when the feed is full,
// because the worker stalled or stopped, the announcement is dropped and
// ErrQueueFull returned. The track's Gain then keeps its sentinel.
func (w *Worker) NewTrack(m audio.NewTrack) error {
	if !w.feed.Send(m) {
		return ErrQueueFull
	}
	return nil
}

// Reset asks the worker to forget accumulated state (after a seek). Like
// NewTrack it returns ErrQueueFull instead of waiting.
func (w *Worker) Reset() error {
	if !w.feed.Send(audio.Reset{}) {
		return ErrQueueFull
	}
	return nil
}

// Shutdown stops Run even when the feed is full.
func (w *Worker) Shutdown() {
	w.feed.Send(audio.Shutdown{})
	w.quitOnce.Do(func() { close(w.quit) })
}

// LastMeasurement returns the most recent published estimate.
func (w *Worker) LastMeasurement() (Measurement, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.last, w.ok
}

// Run processes messages until Shutdown, a Shutdown message or ctx is
// done. A panic while processing ends the worker with ErrWorkerPanic.
func (w *Worker) Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error().Interface("panic", r).Msg("loudness worker aborted")
			err = fmt.Errorf("%w: %v", ErrWorkerPanic, r)
		}
	}()

	w.log.Info().Msg("loudness worker started")
	defer w.log.Info().Msg("loudness worker stopped")

	for {
		// quit wins over pending batches
		select {
		case <-w.quit:
			return nil
		case <-ctx.Done():
			return nil
		default:
		}

		select {
		case <-w.quit:
			return nil
		case <-ctx.Done():
			return nil
		case m := <-w.feed.C():
			if !w.handle(ctx, m) {
				return nil
			}
		}
	}
}

func (w *Worker) handle(ctx context.Context, m audio.Message) bool {
	switch m := m.(type) {
	case audio.NewTrack:
		w.newTrack(ctx, m)
	case audio.Samples:
		w.feedSamples(ctx, m)
	case audio.Reset:
		if w.cur != nil {
			w.log.Debug().Uint64("track_id", w.cur.id).Msg("reset, keeping current gain")
			w.cur.reset()
		}
	case audio.Shutdown:
		w.log.Debug().Msg("shutdown requested")
		return false
	}

	return true
}

func (w *Worker) newTrack(ctx context.Context, m audio.NewTrack) {
	if m.Gain != nil {
		m.Gain.Clear()
	}

	meter, err := NewMeter(m.SampleRate, m.Channels)
	if err != nil {
		w.log.Warn().Err(err).
			Uint64("track_id", m.TrackID).
			Int("sample_rate", m.SampleRate).
			Int("channels", m.Channels).
			Msg("cannot analyze track")
		w.cur = nil
		return
	}

	perSecond := uint64(m.SampleRate) * uint64(m.Channels)
	st := &trackState{
		id:         m.TrackID,
		target:     m.TargetLUFS,
		gain:       m.Gain,
		meter:      meter,
		initialLen: uint64(w.opts.InitialWindow.Seconds() * float64(perSecond)),
		refineLen:  uint64(w.opts.RefineInterval.Seconds() * float64(perSecond)),
	}
	w.cur = st

	w.log.Info().
		Uint64("track_id", m.TrackID).
		Int("sample_rate", m.SampleRate).
		Int("channels", m.Channels).
		Float64("target_lufs", m.TargetLUFS).
		Msg("new track")

	if w.opts.Store == nil {
		return
	}

	e, ok, err := w.opts.Store.Get(ctx, m.TrackID)
	if err != nil {
		w.log.Warn().Err(err).Uint64("track_id", m.TrackID).Msg("loudness store lookup failed")
		return
	}
	if !ok {
		return
	}

	adjustment := st.target - e.LUFS
	g := ClampGain(DBToLinear(adjustment), w.opts.MinGain, w.opts.MaxGain)
	if st.gain != nil {
		st.gain.Store(g)
	}
	// keep refining, but on the slower cadence
	st.initialDone = true

	w.log.Info().
		Uint64("track_id", m.TrackID).
		Float64("lufs", e.LUFS).
		Float64("adjustment_db", adjustment).
		Str("source", e.Source).
		Float32("gain", g).
		Msg("remembered loudness")
}

func (w *Worker) feedSamples(ctx context.Context, batch audio.Samples) {
	st := w.cur
	if st == nil {
		w.log.Debug().Int("samples", len(batch)).Msg("batch without an active track dropped")
		return
	}

	st.meter.Add(batch)
	st.fed += uint64(len(batch))

	due := st.fed >= st.initialLen
	if st.initialDone {
		due = st.fed-st.lastMeasure >= st.refineLen
	}
	if due {
		w.measure(ctx, st)
	}
}

func (w *Worker) measure(ctx context.Context, st *trackState) {
	lufs := st.meter.Integrated()
	if math.IsInf(lufs, 0) || math.IsNaN(lufs) {
		w.log.Debug().Uint64("track_id", st.id).Msg("silence, gain unchanged")
		return
	}

	adjustment := st.target - lufs
	g := ClampGain(DBToLinear(adjustment), w.opts.MinGain, w.opts.MaxGain)
	if st.gain != nil {
		st.gain.Store(g)
	}

	refined := st.initialDone
	st.lastMeasure = st.fed
	st.initialDone = true

	w.mu.Lock()
	w.last = Measurement{TrackID: st.id, LUFS: lufs, Gain: g, Refined: refined}
	w.ok = true
	w.mu.Unlock()

	w.log.Info().
		Uint64("track_id", st.id).
		Bool("refined", refined).
		Float64("lufs", lufs).
		Float64("adjustment_db", adjustment).
		Float32("gain", g).
		Msg("loudness measured")

	if w.opts.Store == nil {
		return
	}

	err := w.opts.Store.Set(ctx, st.id, Entry{LUFS: lufs, Source: SourceEBUR128})
	if err != nil {
		w.log.Warn().Err(err).Uint64("track_id", st.id).Msg("could not remember loudness")
	}
}

func (st *trackState) reset() {
	st.meter.Reset()
	st.fed = 0
	st.lastMeasure = 0
	st.initialDone = false
}
