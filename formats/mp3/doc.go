// SPDX-License-Identifier: EPL-2.0

// Package mp3 decodes MPEG-1/2 Layer III streams using
// github.com/hajimehoshi/go-mp3.
//
// go-mp3 always outputs 16-bit stereo, mono streams included, so the
// source reports two channels. Length and duration are known when the
// input is an io.Seeker.
//
//	src, err := mp3.Decoder{}.Decode(f)
//	if errors.Is(err, mp3.ErrNotMP3File) {
//		// no MPEG frame header found
//	}
package mp3
