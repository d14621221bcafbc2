// SPDX-License-Identifier: EPL-2.0

// Package fetch loads encoded tracks, cache first.
//
// Loader.Open serves a track from the cache when it is there. Otherwise it
// asks a Fetcher for the network stream and returns a Stream the decoder
// can read while the download is still running. The bytes pass through a
// bounded blocking ring buffer, so a slow reader throttles the download.
// Once the download completes the whole track is inserted into the cache.
//
// Closing a Stream early does not abort the download; the track is still
// cached. Cancelling the context given to Open does.
package fetch
