// SPDX-License-Identifier: EPL-2.0

package wav

import "errors"

var (
	ErrNotWavFile          = errors.New("not a WAV file")
	ErrUnsupportedBitDepth = errors.New("unsupported WAV bit depth")
	ErrUnsupportedEncoding = errors.New("unsupported WAV encoding")
	ErrNoPCMData           = errors.New("WAV file has no data chunk")
)
