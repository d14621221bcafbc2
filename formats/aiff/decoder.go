// SPDX-License-Identifier: EPL-2.0

package aiff

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"

	"github.com/ik5/audtap/audio"
	"github.com/ik5/audtap/utils"
)

// aiffReader is the part of aiff.Decoder the source reads from.
type aiffReader interface {
	PCMBuffer(buf *goaudio.IntBuffer) (int, error)
}

type source struct {
	dec        aiffReader
	sampleRate int
	channels   int
	bitDepth   int
	frames     int64 // 0 if unknown
	read       int64 // samples
	intBuf     *goaudio.IntBuffer
}

func (s *source) SampleRate() int { return s.sampleRate }
func (s *source) Channels() int   { return s.channels }
func (s *source) Close() error    { return nil }

func (s *source) BufSize() int {
	if s.intBuf != nil {
		return cap(s.intBuf.Data)
	}
	return 4096
}

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
	if len(dst) == 0 {
		return 0, nil
	}

	if s.intBuf == nil || cap(s.intBuf.Data) < len(dst) {
		s.intBuf = &goaudio.IntBuffer{
			Data:   make([]int, len(dst)),
			Format: &goaudio.Format{NumChannels: s.channels, SampleRate: s.sampleRate},
		}
	}
	s.intBuf.Data = s.intBuf.Data[:len(dst)]

	n, err := s.dec.PCMBuffer(s.intBuf)
	for i, v := range s.intBuf.Data[:n] {
		dst[i] = utils.IntToFloat32(v, s.bitDepth)
	}
	s.read += int64(n)

	if n == 0 {
		if err != nil {
			return 0, err
		}
		return 0, io.EOF
	}

	return n, err
}

type Decoder struct{}

// Decode reads big-endian PCM at 8, 16, 24 or 32 bits.
func (Decoder) Decode(r io.Reader) (audio.Source, error) {
	rs, ok := r.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("reading aiff data: %w", err)
		}
		rs = bytes.NewReader(data)
	}

	dec := aiff.NewDecoder(rs)
	if !dec.IsValidFile() {
		return nil, ErrNotAiffFile
	}
	dec.ReadInfo()

	bitDepth := int(dec.BitDepth)
	switch bitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBitDepth, bitDepth)
	}

	return &source{
		dec:        dec,
		sampleRate: dec.SampleRate,
		channels:   int(dec.NumChans),
		bitDepth:   bitDepth,
		frames:     int64(dec.NumSampleFrames),
	}, nil
}
