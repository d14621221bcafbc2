// SPDX-License-Identifier: EPL-2.0

package flac

import "errors"

var (
	ErrNotFlacFile         = errors.New("not a FLAC stream")
	ErrUnsupportedBitDepth = errors.New("unsupported FLAC bit depth")
)
