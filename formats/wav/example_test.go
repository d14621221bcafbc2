// SPDX-License-Identifier: EPL-2.0

package wav_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ik5/audtap/formats/wav"
)

func tinyWAV() []byte {
	pcm := []int16{0, 8192, 16384, -16384}

	buf := new(bytes.Buffer)
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)*2))
	buf.WriteString("WAVEfmt ")
	for _, v := range []any{uint32(16), uint16(1), uint16(1), uint32(8000), uint32(16000), uint16(2), uint16(16)} {
		binary.Write(buf, binary.LittleEndian, v)
	}
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)*2))
	binary.Write(buf, binary.LittleEndian, pcm)

	return buf.Bytes()
}

func ExampleDecoder_Decode() {
	src, err := wav.Decoder{}.Decode(bytes.NewReader(tinyWAV()))
	if err != nil {
		fmt.Println(err)
		return
	}

	buf := make([]float32, 8)
	n, _ := src.ReadSamples(buf)

	fmt.Println(src.SampleRate(), src.Channels())
	fmt.Println(buf[:n])
	// Output:
	// 8000 1
	// [0 0.25 0.5 -0.5]
}

func ExampleDecoder_Decode_notWAV() {
	_, err := wav.Decoder{}.Decode(bytes.NewReader([]byte("ID3 this is an mp3")))
	fmt.Println(errors.Is(err, wav.ErrNotWavFile))
	// Output: true
}
