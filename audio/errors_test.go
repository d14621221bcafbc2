// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"errors"
	"strings"
	"testing"
)

func TestRegistry_DecodeUnknownFormat(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register("wav", &mockDecoder{name: "wav"})

	_, err := r.Decode("opus", strings.NewReader(""))
	if !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("Decode(opus) error = %v, want ErrUnknownFormat", err)
	}
	if !strings.Contains(err.Error(), "opus") {
		t.Errorf("error %q does not name the format", err)
	}

	if errors.Is(errors.New("some other error"), ErrUnknownFormat) {
		t.Error("errors.Is() matched an unrelated error")
	}
}
