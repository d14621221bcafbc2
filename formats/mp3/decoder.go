// SPDX-License-Identifier: EPL-2.0

package mp3

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	gomp3 "github.com/hajimehoshi/go-mp3"

	"github.com/ik5/audtap/audio"
)

// go-mp3 always produces 16-bit little-endian stereo.
const (
	channels       = 2
	bytesPerSample = 2
)

// mp3Reader is the part of gomp3.Decoder the source reads from.
type mp3Reader interface {
	Read([]byte) (int, error)
	SampleRate() int
	Length() int64
}

type source struct {
	dec        mp3Reader
	sampleRate int
	length     int64 // bytes, <= 0 if unknown
	read       int64 // bytes handed out
	buf        []byte
	odd        byte
	hasOdd     bool
}

func (s *source) SampleRate() int { return s.sampleRate }
func (s *source) Channels() int   { return channels }
func (s *source) Close() error    { return nil }
func (s *source) BufSize() int    { return cap(s.buf) / bytesPerSample }

func (s *source) SpanLen() (int, bool) {
	if s.length <= 0 {
		return 0, false
	}
	return int(max(s.length-s.read, 0) / bytesPerSample), true
}

func (s *source) TotalDuration() (time.Duration, bool) {
	if s.length <= 0 || s.sampleRate <= 0 {
		return 0, false
	}
	frames := s.length / (channels * bytesPerSample)
	return time.Duration(frames) * time.Second / time.Duration(s.sampleRate), true
}

func (s *source) ReadSamples(dst []float32) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}

	need := len(dst) * bytesPerSample
	if cap(s.buf) < need {
		s.buf = make([]byte, need)
	}
	s.buf = s.buf[:need]

	// a byte left over from an odd-length read goes first
	off := 0
	if s.hasOdd {
		s.buf[0] = s.odd
		s.hasOdd = false
		off = 1
	}

	n, err := s.dec.Read(s.buf[off:])
	n += off

	samples := n / bytesPerSample
	if n%bytesPerSample != 0 {
		s.odd = s.buf[n-1]
		s.hasOdd = true
	}

	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(s.buf[2*i:]))
		dst[i] = float32(v) / 32768
	}
	s.read += int64(samples * bytesPerSample)

	return samples, err
}

type Decoder struct{}

// Decode returns a 16-bit stereo source at the stream's sample rate.
func (Decoder) Decode(r io.Reader) (audio.Source, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotMP3File, err)
	}

	return &source{
		dec:        dec,
		sampleRate: dec.SampleRate(),
		length:     dec.Length(),
		buf:        make([]byte, 8192),
	}, nil
}
