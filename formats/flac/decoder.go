// SPDX-License-Identifier: EPL-2.0

package flac

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tphakala/flac"

	"github.com/ik5/audtap/audio"
	"github.com/ik5/audtap/utils"
)

// frameReader is the part of flac.Decoder the source reads from. Next
// returns one decoded frame as interleaved little-endian PCM.
type frameReader interface {
	Next() ([]byte, error)
}

type source struct {
	dec        frameReader
	sampleRate int
	channels   int
	bitDepth   int
	frames     int64 // 0 if unknown
	read       int64 // samples
	pending    []byte
}

func (s *source) SampleRate() int { return s.sampleRate }
func (s *source) Channels() int   { return s.channels }
func (s *source) Close() error    { return nil }
func (s *source) BufSize() int    { return 4096 }

func (s *source) SpanLen() (int, bool) {
	if s.frames <= 0 {
		return 0, false
	}
	return int(max(s.frames*int64(s.channels)-s.read, 0)), true
}

func (s *source) TotalDuration() (time.Duration, bool) {
	if s.frames <= 0 || s.sampleRate <= 0 {
		return 0, false
	}
	return time.Duration(s.frames) * time.Second / time.Duration(s.sampleRate), true
}

func (s *source) ReadSamples(dst []float32) (int, error) {
	width := s.bitDepth / 8
	n := 0

	for n < len(dst) {
		if len(s.pending) < width {
			frame, err := s.dec.Next()
			if err != nil {
				s.read += int64(n)
				if n > 0 && errors.Is(err, io.EOF) {
					return n, nil
				}
				return n, err
			}
			s.pending = frame
			continue
		}

		take := min(len(dst)-n, len(s.pending)/width)
		for i := range take {
			dst[n+i] = s.sample(s.pending[i*width:])
		}
		s.pending = s.pending[take*width:]
		n += take
	}

	s.read += int64(n)
	return n, nil
}

func (s *source) sample(b []byte) float32 {
	var v int
	switch s.bitDepth {
	case 8:
		v = int(int8(b[0]))
	case 16:
		v = int(int16(binary.LittleEndian.Uint16(b)))
	case 24:
		v = int(b[0]) | int(b[1])<<8 | int(int8(b[2]))<<16
	case 32:
		v = int(int32(binary.LittleEndian.Uint32(b)))
	}
	return utils.IntToFloat32(v, s.bitDepth)
}

type Decoder struct{}

// Decode reads the STREAMINFO block and returns a source that decodes one
// frame at a time.
func (Decoder) Decode(r io.Reader) (audio.Source, error) {
	dec, err := flac.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFlacFile, err)
	}

	switch dec.BitsPerSample {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBitDepth, dec.BitsPerSample)
	}

	return &source{
		dec:        dec,
		sampleRate: dec.SampleRate,
		channels:   dec.NChannels,
		bitDepth:   dec.BitsPerSample,
		frames:     int64(dec.TotalSamples),
	}, nil
}
