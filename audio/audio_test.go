// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"errors"
	"io"
	"slices"
	"sync"
	"testing"
)

type mockDecoder struct {
	name string
}

func (d *mockDecoder) Decode(r io.Reader) (Source, error) {
	return newSilentSource(44100, 2, 100), nil
}

type failingDecoder struct{}

func (d *failingDecoder) Decode(r io.Reader) (Source, error) {
	return nil, errors.New("decode failed")
}

func TestRegistry_Lookup(t *testing.T) {
	t.Parallel()

	wav := &mockDecoder{name: "wav"}
	mp3 := &mockDecoder{name: "mp3"}
	flac := &mockDecoder{name: "flac"}

	registry := NewRegistry()
	registry.Register("wav", wav)
	registry.Register("MP3", mp3)
	registry.Register(".flac", flac)

	tests := []struct {
		key    string
		want   Decoder
		wantOK bool
	}{
		{"wav", wav, true},
		{".WAV", wav, true},
		{"mp3", mp3, true},
		{"Mp3", mp3, true},
		{"flac", flac, true},
		{".FLAC", flac, true},
		{"ogg", nil, false},
		{"", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, ok := registry.Get(tt.key)
			if ok != tt.wantOK {
				t.Fatalf("Get(%q) ok = %v, want %v", tt.key, ok, tt.wantOK)
			}
			if tt.wantOK && got != tt.want {
				t.Errorf("Get(%q) returned the %v decoder", tt.key, got)
			}
		})
	}
}

func TestRegistry_ReplaceDecoder(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	first := &mockDecoder{name: "first"}
	second := &mockDecoder{name: "second"}

	registry.Register("ogg", first)
	registry.Register("OGG", second)

	got, ok := registry.Get("ogg")
	if !ok || got != second {
		t.Errorf("Get(ogg) = %v, %v; want the later registration", got, ok)
	}
	if n := len(registry.Formats()); n != 1 {
		t.Errorf("len(Formats()) = %d, want 1", n)
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	decoder := &mockDecoder{name: "aiff"}

	var wg sync.WaitGroup
	for range 10 {
		wg.Go(func() { registry.Register("aiff", decoder) })
		wg.Go(func() { _, _ = registry.Get("aiff") })
		wg.Go(func() { _ = registry.Formats() })
	}
	wg.Wait()

	if got, ok := registry.Get("aiff"); !ok || got != decoder {
		t.Error("decoder missing after concurrent registration")
	}
}

func TestRegistry_Decode(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	registry.Register("wav", &mockDecoder{name: "wav"})
	registry.Register("bad", &failingDecoder{})

	src, err := registry.Decode("wav", nil)
	if err != nil {
		t.Fatalf("Decode(wav) error = %v", err)
	}
	if src.SampleRate() != 44100 || src.Channels() != 2 {
		t.Errorf("format = %d Hz/%d ch, want 44100/2", src.SampleRate(), src.Channels())
	}

	if _, err := registry.Decode("bad", nil); err == nil || errors.Is(err, ErrUnknownFormat) {
		t.Errorf("Decode(bad) error = %v, want the decoder's failure", err)
	}
}

func TestRegistry_Formats(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	if got := registry.Formats(); len(got) != 0 {
		t.Errorf("empty registry Formats() = %v", got)
	}

	registry.Register("wav", &mockDecoder{})
	registry.Register("Mp3", &mockDecoder{})
	registry.Register("flac", &mockDecoder{})

	if got, want := registry.Formats(), []string{"flac", "mp3", "wav"}; !slices.Equal(got, want) {
		t.Errorf("Formats() = %v, want %v", got, want)
	}
}

func BenchmarkRegistry_Get(b *testing.B) {
	registry := NewRegistry()
	registry.Register("wav", &mockDecoder{})
	b.ReportAllocs()

	for b.Loop() {
		_, _ = registry.Get(".WAV")
	}
}

func BenchmarkRegistry_ConcurrentRegisterGet(b *testing.B) {
	registry := NewRegistry()
	decoder := &mockDecoder{}
	b.ReportAllocs()

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			if i%8 == 0 {
				registry.Register("wav", decoder)
			} else {
				_, _ = registry.Get("wav")
			}
			i++
		}
	})
}
