// SPDX-License-Identifier: EPL-2.0

// Package loudness measures programme loudness and turns it into a gain
// correction for the playback pipeline.
//
// Meter implements the EBU R128 integrated measurement: K-weighting, 400 ms
// blocks on a 100 ms hop, an absolute gate at -70 LUFS and a relative gate
// 10 LU below the ungated mean.
//
// Worker drains an audio.AnalyzerFeed on its own goroutine. NewTrack
// writes the sentinel into the track's audio.Gain; once ten seconds of
// audio have been integrated the worker publishes
//
//	gain = 10^((target - measured) / 20)
//
// clamped to [MinGain, MaxGain], and refines it every five seconds. Silence
// never changes the gain.
//
// A Store remembers the correction per track so a replayed track starts
// at the right level. MemoryStore keeps it for the process; SQLStore keeps
// it in a SQLite file.
package loudness
