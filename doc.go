// SPDX-License-Identifier: EPL-2.0

// Package audtap is the audio core of a streaming music client.
//
// An Engine ties together a two-tier track cache (memory spilling to
// disk), a cache-first network loader, the format decoders and a tap
// chain around every decoded track:
//
//	decoder → GainStage → AnalyzerTap → VisualizerTap → output
//
// The gain stage applies loudness correction with a 50 ms ramp. The
// analyzer tap hands sample batches to the loudness worker, which
// measures EBU R128 integrated loudness and publishes a corrective gain.
// The visualizer tap copies samples into a lock-free ring that the FFT
// worker samples at 30 Hz. Neither tap ever blocks the audio goroutine.
//
//	e, err := audtap.New(opts)
//	go e.Run(ctx)
//	p, err := e.Play(ctx, audtap.Track{ID: 42, Format: "flac"})
//	speaker.Play(sink.NewStreamer(p))
//
// The subpackages can be used on their own: audio holds the tap chain,
// cache the tiers, fetch the loader, loudness and visualizer the workers.
package audtap
