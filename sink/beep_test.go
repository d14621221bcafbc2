// SPDX-License-Identifier: EPL-2.0

package sink

import (
	"errors"
	"io"
	"testing"

	"github.com/gopxl/beep/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ik5/audtap/internal/audiotest"
)

type failingSource struct {
	*audiotest.SliceSource
	err error
}

func (f *failingSource) ReadSamples([]float32) (int, error) { return 0, f.err }

func TestStreamer_MonoDuplicated(t *testing.T) {
	t.Parallel()

	st := NewStreamer(audiotest.NewSliceSource(8000, 1, []float32{0.1, 0.2, 0.3}))
	assert.Equal(t, beep.SampleRate(8000), st.Format().SampleRate)

	buf := make([][2]float64, 5)
	n, ok := st.Stream(buf)
	require.True(t, ok)
	require.Equal(t, 3, n)
	for i, want := range []float32{0.1, 0.2, 0.3} {
		assert.Equal(t, [2]float64{float64(want), float64(want)}, buf[i])
	}

	n, ok = st.Stream(buf)
	assert.Zero(t, n)
	assert.False(t, ok)
	assert.NoError(t, st.Err())
}

func TestStreamer_StereoAndWider(t *testing.T) {
	t.Parallel()

	stereo := NewStreamer(audiotest.NewSliceSource(8000, 2, []float32{0.1, -0.1, 0.2, -0.2}))
	buf := make([][2]float64, 2)
	n, ok := stereo.Stream(buf)
	require.True(t, ok)
	require.Equal(t, 2, n)
	assert.Equal(t, [2]float64{float64(float32(0.2)), float64(float32(-0.2))}, buf[1])

	surround := NewStreamer(audiotest.NewSliceSource(8000, 3, []float32{0.5, 0.25, 1, -0.5, -0.25, 1}))
	n, ok = surround.Stream(buf)
	require.True(t, ok)
	require.Equal(t, 2, n)
	assert.Equal(t, [2]float64{-0.5, -0.25}, buf[1])
}

func TestStreamer_SourceError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	st := NewStreamer(&failingSource{SliceSource: audiotest.NewSliceSource(8000, 1, nil), err: boom})

	n, ok := st.Stream(make([][2]float64, 4))
	assert.Zero(t, n)
	assert.False(t, ok)
	assert.ErrorIs(t, st.Err(), boom)

	_, ok = st.Stream(make([][2]float64, 4))
	assert.False(t, ok)
}

func TestFromStreamer_RoundTrip(t *testing.T) {
	t.Parallel()

	in := audiotest.NewSliceSource(8000, 2, []float32{0.5, -0.5, 0.25, -0.25, 0, 1})
	st := NewStreamer(in)
	src := FromStreamer(st, st.Format())

	assert.Equal(t, 8000, src.SampleRate())
	assert.Equal(t, 2, src.Channels())
	_, ok := src.TotalDuration()
	assert.False(t, ok)

	got, err := audiotest.ReadAll(src, 4)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -0.5, 0.25, -0.25, 0, 1}, got)

	n, err := src.ReadSamples(make([]float32, 4))
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.EOF)
	assert.NoError(t, src.Close())
}

func TestResample(t *testing.T) {
	t.Parallel()

	in := audiotest.NewConstantSource(8000, 1, 8000, 0.5)
	assert.Same(t, in, Resample(in, 8000, 4), "same rate is a no-op")

	out := Resample(audiotest.NewConstantSource(8000, 1, 8000, 0.5), 16000, 4)
	assert.Equal(t, 16000, out.SampleRate())
	assert.Equal(t, 2, out.Channels())

	got, err := audiotest.ReadAll(out, 1024)
	require.NoError(t, err)
	assert.InDelta(t, 2*16000, len(got), 2*64)

	mid := got[len(got)/2-200 : len(got)/2+200]
	for i, v := range mid {
		if !assert.InDelta(t, 0.5, v, 1e-3, "sample %d", i) {
			break
		}
	}
}

func TestResample_ClosesOriginal(t *testing.T) {
	t.Parallel()

	in := audiotest.NewSilentSource(8000, 1, 100)
	out := Resample(in, 44100, 0)

	require.NoError(t, out.Close())
	assert.True(t, in.Closed())
}
