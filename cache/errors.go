// SPDX-License-Identifier: EPL-2.0

package cache

import "errors"

var (
	// ErrTooLarge is returned when an entry exceeds a tier's capacity.
	ErrTooLarge = errors.New("entry larger than cache capacity")
	// ErrDiskFull is returned when the disk refused a write even after
	// evicting every other entry. The cache is still usable.
	ErrDiskFull  = errors.New("disk full")
	ErrClosed    = errors.New("cache closed")
	ErrCreateDir = errors.New("cannot create cache directory")
)
