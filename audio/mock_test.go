// SPDX-License-Identifier: EPL-2.0

package audio

import "github.com/ik5/audtap/internal/audiotest"

// Shorthands over the shared test sources.

func newSilentSource(sampleRate, channels, totalSamples int) *audiotest.MockSource {
	return audiotest.NewSilentSource(sampleRate, channels, totalSamples)
}

func newConstantSource(sampleRate, channels, totalSamples int, value float32) *audiotest.MockSource {
	return audiotest.NewConstantSource(sampleRate, channels, totalSamples, value)
}

func newSliceSource(sampleRate, channels int, data []float32) *audiotest.SliceSource {
	return audiotest.NewSliceSource(sampleRate, channels, data)
}

func readAll(t interface{ Fatalf(string, ...any) }, src Source, bufSize int) []float32 {
	out, err := audiotest.ReadAll(src, bufSize)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}

	return out
}
