// SPDX-License-Identifier: EPL-2.0

package audio_test

import (
	"fmt"
	"io"

	"github.com/ik5/audtap/audio"
	"github.com/ik5/audtap/internal/audiotest"
)

// Example_gainRamp shows a new loudness target being approached over the
// 50 ms ramp.
func Example_gainRamp() {
	// 48 kHz stereo: the ramp spans 4800 interleaved samples
	source := audiotest.NewConstantSource(48000, 2, 48000, 1.0)

	gain := audio.NewGain(0) // nothing measured yet
	stage := audio.NewGainStage(source, gain, 1.0, audio.DefaultRampDuration)

	fmt.Printf("Ramp length: %d samples\n", stage.RampLen())

	// The loudness worker publishes a measurement
	gain.Store(0.5)

	buf := make([]float32, stage.RampLen())
	if _, err := stage.ReadSamples(buf); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Printf("First sample: %.4f\n", buf[0])
	fmt.Printf("Midpoint: %.2f\n", buf[len(buf)/2-1])
	fmt.Printf("Last sample: %.4f\n", buf[len(buf)-1])
	fmt.Printf("Gain after ramp: %v\n", stage.Current())
	// Output:
	// Ramp length: 4800 samples
	// First sample: 0.9999
	// Midpoint: 0.75
	// Last sample: 0.5000
	// Gain after ramp: 0.5
}

// Example_sentinel shows that a cleared gain keeps the current multiplier.
func Example_sentinel() {
	source := audiotest.NewConstantSource(44100, 2, 44100, 1.0)

	gain := audio.NewGain(0)
	stage := audio.NewGainStage(source, gain, 1.0, audio.DefaultRampDuration)

	buf := make([]float32, 1000)
	n, _ := stage.ReadSamples(buf)

	changed := 0
	for _, s := range buf[:n] {
		if s != 1.0 {
			changed++
		}
	}

	fmt.Printf("Samples read: %d\n", n)
	fmt.Printf("Samples changed: %d\n", changed)
	// Output:
	// Samples read: 1000
	// Samples changed: 0
}

// Example_ringBuffer demonstrates snapshots after the ring has wrapped.
func Example_ringBuffer() {
	ring := audio.NewRingBuffer(4)

	for i := range 10 {
		ring.Push(float32(i))
	}

	snap := make([]float32, 4)
	n := ring.Snapshot(snap)

	fmt.Printf("Pushed: %d\n", ring.Written())
	fmt.Printf("Snapshot: %v\n", snap[:n])
	// Output:
	// Pushed: 10
	// Snapshot: [6 7 8 9]
}

// Example_analyzerFeed shows batches being dropped instead of blocking
// playback when nobody is draining the feed.
func Example_analyzerFeed() {
	source := audiotest.NewConstantSource(48000, 2, 4096, 0.25)

	feed := audio.NewAnalyzerFeed(1, audio.DefaultBatchSize)
	tap := audio.NewAnalyzerTap(source, feed)

	buf := make([]float32, 1024)
	total := 0
	for {
		n, err := tap.ReadSamples(buf)
		total += n
		if err == io.EOF {
			break
		}
	}

	fmt.Printf("Played: %d samples\n", total)
	fmt.Printf("Batches sent: %d\n", feed.Sent())
	fmt.Printf("Batches dropped: %d\n", feed.Dropped())
	// Output:
	// Played: 8192 samples
	// Batches sent: 1
	// Batches dropped: 1
}

// Example_wrap builds the full tap chain around a source.
func Example_wrap() {
	source := audiotest.NewSineSource(44100, 2, 44100, 440.0)

	gain := audio.NewGain(0)
	analyzer := audio.NewAnalyzerFeed(64, 0)
	viz := audio.NewVisualizerFeed(audio.DefaultRingSize)
	viz.SetEnabled(true)

	src := audio.Wrap(source, gain, analyzer, viz)
	defer src.Close()

	fmt.Printf("Sample rate: %d Hz\n", src.SampleRate())
	fmt.Printf("Channels: %d\n", src.Channels())

	buf := make([]float32, 4096)
	total := 0
	for {
		n, err := src.ReadSamples(buf)
		total += n
		if err == io.EOF {
			break
		}
	}

	fmt.Printf("Total samples: %d\n", total)
	fmt.Printf("Analyzer batches: %d\n", analyzer.Sent())
	fmt.Printf("Visualizer sees: %d Hz, %d channels\n", viz.SampleRate(), viz.Channels())
	// Output:
	// Sample rate: 44100 Hz
	// Channels: 2
	// Total samples: 88200
	// Analyzer batches: 21
	// Visualizer sees: 44100 Hz, 2 channels
}

// mockDecoder is a simple decoder for testing the registry.
type mockDecoder struct{}

func (m mockDecoder) Decode(r io.Reader) (audio.Source, error) {
	return audiotest.NewSineSource(16000, 1, 1000, 440.0), nil
}

// Example_registry demonstrates the format registry.
func Example_registry() {
	registry := audio.NewRegistry()
	registry.Register("mock", mockDecoder{})

	decoder, ok := registry.Get(".MOCK")
	if !ok {
		fmt.Println("Decoder not found")
		return
	}

	fmt.Printf("Retrieved decoder: %T\n", decoder)

	_, err := registry.Decode("unknown", nil)
	fmt.Println(err)
	// Output:
	// Retrieved decoder: audio_test.mockDecoder
	// no decoder registered for format: "unknown"
}

// Example_errorHandling shows proper error handling in audio processing.
func Example_errorHandling() {
	source := audiotest.NewSineSource(16000, 1, 1000, 440.0) // Short audio

	buf := make([]float32, 4096)
	totalSamples := 0

	for {
		n, err := source.ReadSamples(buf)

		// Always process available samples first
		if n > 0 {
			totalSamples += n
		}

		if err == io.EOF {
			fmt.Println("Reached end of audio stream")
			break
		}
		if err != nil {
			fmt.Printf("Error reading samples: %v\n", err)
			break
		}
	}

	fmt.Printf("Successfully processed %d samples\n", totalSamples)
	// Output:
	// Reached end of audio stream
	// Successfully processed 1000 samples
}
