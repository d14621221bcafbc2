// SPDX-License-Identifier: EPL-2.0

package aiff_test

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ik5/audtap/formats/aiff"
)

func ExampleDecoder_Decode_notAIFF() {
	_, err := aiff.Decoder{}.Decode(bytes.NewReader([]byte("OggS not an aiff stream")))
	fmt.Println(errors.Is(err, aiff.ErrNotAiffFile))
	// Output: true
}
