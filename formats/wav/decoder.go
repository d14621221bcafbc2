// SPDX-License-Identifier: EPL-2.0

package wav

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/ik5/audtap/audio"
	"github.com/ik5/audtap/utils"
)

const (
	formatPCM        = 1
	formatFloat      = 3
	formatExtensible = 0xFFFE
)

// pcmReader is the part of wav.Decoder the source needs.
type pcmReader interface {
	PCMBuffer(buf *goaudio.IntBuffer) (int, error)
}

type source struct {
	dec        pcmReader
	sampleRate int
	channels   int
	bitDepth   int
	float      bool
	total      int64 // samples, 0 if unknown
	read       int64
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
	if s.total <= 0 {
		return 0, false
	}
	return int(max(s.total-s.read, 0)), true
}

func (s *source) TotalDuration() (time.Duration, bool) {
	if s.total <= 0 || s.sampleRate <= 0 || s.channels <= 0 {
		return 0, false
	}
	frames := s.total / int64(s.channels)
	return time.Duration(frames) * time.Second / time.Duration(s.sampleRate), true
}

func (s *source) ReadSamples(dst []float32) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}

	if s.intBuf == nil || cap(s.intBuf.Data) < len(dst) {
		s.intBuf = &goaudio.IntBuffer{Data: make([]int, len(dst))}
	}
	s.intBuf.Data = s.intBuf.Data[:len(dst)]

	n, err := s.dec.PCMBuffer(s.intBuf)
	for i, v := range s.intBuf.Data[:n] {
		dst[i] = s.convert(v)
	}
	s.read += int64(n)

	if n == 0 && err == nil {
		return 0, io.EOF
	}

	return n, err
}

func (s *source) convert(v int) float32 {
	switch {
	case s.float:
		f := math.Float32frombits(uint32(v))
		return min(max(f, -1), 1)
	case s.bitDepth == 8:
		// 8-bit WAV is unsigned
		return float32(v-128) / 128
	default:
		return utils.IntToFloat32(v, s.bitDepth)
	}
}

type Decoder struct{}

// Decode reads integer PCM at 8, 16, 24 or 32 bits, or 32-bit float.
func (Decoder) Decode(r io.Reader) (audio.Source, error) {
	rs, ok := r.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("reading wav data: %w", err)
		}
		rs = bytes.NewReader(data)
	}

	dec := wav.NewDecoder(rs)
	if !dec.IsValidFile() {
		return nil, ErrNotWavFile
	}

	bitDepth := int(dec.BitDepth)
	isFloat := false

	switch dec.WavAudioFormat {
	case formatPCM, formatExtensible:
		switch bitDepth {
		case 8, 16, 24, 32:
		default:
			return nil, fmt.Errorf("%w: %d", ErrUnsupportedBitDepth, bitDepth)
		}
	case formatFloat:
		if bitDepth != 32 {
			return nil, fmt.Errorf("%w: %d-bit float", ErrUnsupportedBitDepth, bitDepth)
		}
		isFloat = true
	default:
		return nil, fmt.Errorf("%w: format tag %#x", ErrUnsupportedEncoding, dec.WavAudioFormat)
	}

	if err := dec.FwdToPCM(); err != nil || dec.PCMChunk == nil {
		return nil, ErrNoPCMData
	}

	return &source{
		dec:        dec,
		sampleRate: int(dec.SampleRate),
		channels:   int(dec.NumChans),
		bitDepth:   bitDepth,
		float:      isFloat,
		total:      dec.PCMLen() / int64(bitDepth/8),
	}, nil
}
