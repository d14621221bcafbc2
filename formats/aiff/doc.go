// SPDX-License-Identifier: EPL-2.0

// Package aiff decodes AIFF files using github.com/go-audio/aiff.
//
// Integer PCM at 8, 16, 24 and 32 bits is supported. AIFF stores samples
// big-endian and the sample rate as an 80-bit extended float; both are
// handled by go-audio.
//
//	src, err := aiff.Decoder{}.Decode(f)
//	if errors.Is(err, aiff.ErrNotAiffFile) {
//		// not FORM/AIFF
//	}
//
// A reader that is not an io.ReadSeeker is read into memory first.
package aiff
