// SPDX-License-Identifier: EPL-2.0

package loudness

import "errors"

var (
	ErrInvalidFormat = errors.New("invalid sample rate or channel count")
	ErrBadReplayGain = errors.New("malformed replaygain tag")
	ErrWorkerPanic   = errors.New("loudness worker panicked")
	ErrQueueFull     = errors.New("analyzer queue full")
)
