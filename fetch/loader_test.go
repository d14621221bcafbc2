// SPDX-License-Identifier: EPL-2.0

package fetch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ik5/audtap/cache"
)

func payload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i * 7)
	}
	return b
}

func memCache(t *testing.T) *cache.Coordinator {
	t.Helper()

	c, err := cache.Open(cache.Options{MemoryBytes: 1 << 20, DiskBytes: -1, Logger: zerolog.Nop()})
	require.NoError(t, err)

	return c
}

type countingFetcher struct {
	calls atomic.Int64
	body  func() io.Reader
}

func (f *countingFetcher) Fetch(ctx context.Context, id uint64) (io.ReadCloser, error) {
	f.calls.Add(1)
	return io.NopCloser(f.body()), nil
}

func waitDone(t *testing.T, s *Stream) {
	t.Helper()

	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("download did not finish")
	}
}

func TestLoader_MissThenHit(t *testing.T) {
	t.Parallel()

	data := payload(100_000)
	f := &countingFetcher{body: func() io.Reader { return bytes.NewReader(data) }}
	c := memCache(t)
	l := NewLoader(c, f, Options{BufferSize: 1024})

	s, err := l.Open(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, OriginNetwork, s.Origin)

	got, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	waitDone(t, s)
	require.NoError(t, s.Err())
	assert.Equal(t, cache.TierMemory, c.Where(5))

	s, err = l.Open(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, OriginCache, s.Origin)

	got, err = io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, int64(1), f.calls.Load(), "second open served from cache")
}

func TestLoader_EarlyCloseStillCaches(t *testing.T) {
	t.Parallel()

	data := payload(50_000)
	f := &countingFetcher{body: func() io.Reader { return bytes.NewReader(data) }}
	c := memCache(t)
	l := NewLoader(c, f, Options{BufferSize: 512})

	s, err := l.Open(context.Background(), 9)
	require.NoError(t, err)

	head := make([]byte, 10)
	_, err = io.ReadFull(s, head)
	require.NoError(t, err)
	assert.Equal(t, data[:10], head)
	require.NoError(t, s.Close())

	waitDone(t, s)
	require.NoError(t, s.Err())

	cached, ok := c.Get(9)
	require.True(t, ok)
	assert.Equal(t, data, cached)
}

func TestLoader_FetchError(t *testing.T) {
	t.Parallel()

	boom := errors.New("no route to host")
	l := NewLoader(memCache(t), FetcherFunc(func(context.Context, uint64) (io.ReadCloser, error) {
		return nil, boom
	}), Options{})

	_, err := l.Open(context.Background(), 1)
	assert.ErrorIs(t, err, boom)
}

type failingReader struct {
	data []byte
	err  error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestLoader_BodyErrorNotCached(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")
	f := &countingFetcher{body: func() io.Reader { return &failingReader{data: payload(1000), err: boom} }}
	c := memCache(t)
	l := NewLoader(c, f, Options{BufferSize: 4096})

	s, err := l.Open(context.Background(), 3)
	require.NoError(t, err)

	_, err = io.ReadAll(s)
	assert.Error(t, err)

	waitDone(t, s)
	assert.ErrorIs(t, s.Err(), boom)
	assert.Equal(t, cache.TierNone, c.Where(3))
}

func TestLoader_TooLargeStreamsButSkipsCache(t *testing.T) {
	t.Parallel()

	data := payload(4096)
	f := &countingFetcher{body: func() io.Reader { return bytes.NewReader(data) }}
	c := memCache(t)
	l := NewLoader(c, f, Options{BufferSize: 256, MaxTrackBytes: 1000})

	s, err := l.Open(context.Background(), 4)
	require.NoError(t, err)

	got, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	waitDone(t, s)
	assert.Equal(t, cache.TierNone, c.Where(4))
}

type endless struct{}

func (endless) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0xAA
	}
	return len(p), nil
}

func TestLoader_CancelAbortsDownload(t *testing.T) {
	t.Parallel()

	f := &countingFetcher{body: func() io.Reader { return endless{} }}
	c := memCache(t)
	l := NewLoader(c, f, Options{BufferSize: 128, MaxTrackBytes: 1 << 16})

	ctx, cancel := context.WithCancel(context.Background())
	s, err := l.Open(ctx, 6)
	require.NoError(t, err)

	buf := make([]byte, 64)
	_, err = io.ReadFull(s, buf)
	require.NoError(t, err)

	cancel()
	waitDone(t, s)
	assert.ErrorIs(t, s.Err(), context.Canceled)
	assert.Equal(t, cache.TierNone, c.Where(6))
}

func TestHTTPFetcher(t *testing.T) {
	t.Parallel()

	data := payload(2048)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tracks/7" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	}))
	t.Cleanup(srv.Close)

	f := HTTPFetcher{
		Client: srv.Client(),
		URL:    func(id uint64) string { return srv.URL + "/tracks/" + strconv.FormatUint(id, 10) },
	}

	l := NewLoader(memCache(t), f, Options{})
	s, err := l.Open(context.Background(), 7)
	require.NoError(t, err)

	got, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	_, err = l.Open(context.Background(), 8)
	assert.ErrorIs(t, err, ErrBadStatus)
}

func TestOriginString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "cache", OriginCache.String())
	assert.Equal(t, "network", OriginNetwork.String())
}
