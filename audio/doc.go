// SPDX-License-Identifier: EPL-2.0

// Package audio provides the real-time sample path of the player.
//
// This package contains the building blocks that sit between a decoder
// and the output device:
//   - Source interface for audio input
//   - GainStage for click-free loudness correction
//   - AnalyzerTap feeding the loudness worker
//   - VisualizerTap feeding the FFT worker through a RingBuffer
//   - Format registry for decoder registration
//
// # Source Interface
//
// The Source interface is the foundation of audio processing:
//
//	type Source interface {
//	    SampleRate() int
//	    Channels() int
//	    ReadSamples(dst []float32) (int, error)
//	    SpanLen() (int, bool)
//	    TotalDuration() (time.Duration, bool)
//	    BufSize() int
//	    Close() error
//	}
//
// Samples are interleaved float32 in [-1.0, 1.0]. Every stage forwards the
// metadata of the source it wraps unchanged.
//
// # Tap Chain
//
// Wrap builds the chain in its fixed order:
//
//	src → GainStage → AnalyzerTap → VisualizerTap
//
// The gain stage reads a shared Gain written by the loudness worker. A
// stored 0.0 means "no measurement yet" and keeps the current gain. New
// targets are approached over a 50 ms linear ramp; the target is only
// polled between ramps.
//
// The analyzer tap batches samples and offers each batch to an
// AnalyzerFeed without blocking. When the feed is full the batch is
// dropped and counted; the audio path never waits on analysis.
//
// The visualizer tap writes every sample into a lock-free single-producer
// single-consumer RingBuffer. The consumer takes snapshots of the newest
// samples oldest-first.
//
//	gain := audio.NewGain(0)
//	analyzer := audio.NewAnalyzerFeed(0, 0)
//	viz := audio.NewVisualizerFeed(audio.DefaultRingSize)
//	src := audio.Wrap(decoded, gain, analyzer, viz)
//
// # Format Registry
//
// The registry maps format names to decoders:
//
//	registry := audio.NewRegistry()
//	registry.Register("wav", wav.Decoder{})
//	src, err := registry.Decode(".WAV", f)
//
// # Threading
//
// ReadSamples on any stage runs on the playback goroutine and must not
// block beyond the wrapped source. The shared Gain, AnalyzerFeed and
// VisualizerFeed are the only values touched from other goroutines.
//
// # Error Handling
//
// Sources return io.EOF when no more data is available:
//
//	for {
//	    n, err := source.ReadSamples(buf)
//	    if err == io.EOF {
//	        break // Normal end of stream
//	    }
//	    if err != nil {
//	        return err // Processing error
//	    }
//	    // Process n samples from buf
//	}
package audio
