// SPDX-License-Identifier: EPL-2.0

// Package wav decodes WAV files using github.com/go-audio/wav.
//
// Integer PCM at 8, 16, 24 and 32 bits and 32-bit IEEE float are
// supported, including WAVE_FORMAT_EXTENSIBLE headers. Chunks other than
// fmt and data are skipped.
//
//	src, err := wav.Decoder{}.Decode(f)
//	if errors.Is(err, wav.ErrNotWavFile) {
//		// not RIFF/WAVE
//	}
//
// go-audio needs to seek, so a reader that is not an io.ReadSeeker is
// read into memory first.
//
// Writing WAV files lives in the sink package.
package wav
