// SPDX-License-Identifier: EPL-2.0

// Package vorbis decodes Ogg Vorbis streams using
// github.com/jfreymuth/oggvorbis.
//
// oggvorbis produces float samples directly, so the source hands its
// buffer straight to the decoder. Reads are trimmed to whole frames.
// Length and duration are known when the input is an io.Seeker.
package vorbis
