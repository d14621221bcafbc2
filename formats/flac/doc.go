// SPDX-License-Identifier: EPL-2.0

// Package flac decodes FLAC streams using github.com/tphakala/flac.
//
// Frames are decoded lazily and carried across ReadSamples calls, so any
// buffer size works. STREAMINFO's total sample count gives the duration;
// a count of zero means unknown.
package flac
