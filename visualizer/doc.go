// SPDX-License-Identifier: EPL-2.0

// Package visualizer turns the samples captured by an audio.VisualizerTap
// into spectrum frames.
//
// A Processor wakes at a fixed rate (30 fps by default), snapshots the
// newest samples from the feed's ring, downmixes them to mono, applies a
// Hann window and runs a 1024 point FFT. Magnitudes are averaged into 16
// bars whose edges form a geometric series from 40 Hz to half the sample
// rate. Bars rise quickly and fall with exponential decay.
//
// Each Frame also carries five coarse energy bands, a transient intensity
// when an onset is detected and a decimated stereo waveform.
//
//	p := visualizer.New(feed, visualizer.Options{})
//	cancel := p.Subscribe(func(f visualizer.Frame) { draw(f.Bars) })
//	defer cancel()
//	go p.Run(ctx)
//
// Frames are skipped, not queued, when the feed is disabled or a frame
// takes longer than the tick.
package visualizer
