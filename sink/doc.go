// SPDX-License-Identifier: EPL-2.0

// Package sink moves PCM out of the tap chain: into beep for playback or
// resampling, or into a WAV file.
//
//	src = sink.Resample(src, 48000, 4)
//	speaker.Play(sink.NewStreamer(src))
//
//	f, _ := os.Create("out.wav")
//	frames, err := sink.WriteWAV(f, src, 16)
package sink
