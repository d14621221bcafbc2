// SPDX-License-Identifier: EPL-2.0

package sink

import "errors"

var (
	ErrUnsupportedBitDepth = errors.New("unsupported output bit depth")
	ErrNoChannels          = errors.New("source has no channels")
)
