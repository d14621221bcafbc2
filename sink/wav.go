// SPDX-License-Identifier: EPL-2.0

package sink

import (
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/ik5/audtap/audio"
	"github.com/ik5/audtap/utils"
)

const wavFormatPCM = 1

// WriteWAV drains src into w as integer PCM at bitDepth (8, 16, 24 or 32)
// and returns the number of frames written. The header is patched on
// return, so w must be seekable.
func WriteWAV(w io.WriteSeeker, src audio.Source, bitDepth int) (int64, error) {
	switch bitDepth {
	case 8, 16, 24, 32:
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedBitDepth, bitDepth)
	}

	ch := src.Channels()
	if ch <= 0 {
		return 0, ErrNoChannels
	}

	enc := wav.NewEncoder(w, src.SampleRate(), bitDepth, ch, wavFormatPCM)

	size := max(src.BufSize(), 4096)
	size -= size % ch
	fbuf := make([]float32, size)
	ibuf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: ch, SampleRate: src.SampleRate()},
		Data:           make([]int, size),
		SourceBitDepth: bitDepth,
	}

	var frames int64
	for {
		n, err := src.ReadSamples(fbuf)
		n -= n % ch
		if n > 0 {
			ibuf.Data = ibuf.Data[:n]
			for i, v := range fbuf[:n] {
				ibuf.Data[i] = toPCM(v, bitDepth)
			}
			if werr := enc.Write(ibuf); werr != nil {
				return frames, errors.Join(fmt.Errorf("writing wav frames: %w", werr), enc.Close())
			}
			frames += int64(n / ch)
		}

		if errors.Is(err, io.EOF) || (n == 0 && err == nil) {
			break
		}
		if err != nil {
			return frames, errors.Join(err, enc.Close())
		}
	}

	if err := enc.Close(); err != nil {
		return frames, fmt.Errorf("finishing wav header: %w", err)
	}

	return frames, nil
}

func toPCM(v float32, bitDepth int) int {
	s := utils.Float32ToInt(v, bitDepth)
	if bitDepth == 8 {
		// 8-bit WAV is unsigned
		return s + 128
	}
	return s
}
