// SPDX-License-Identifier: EPL-2.0

package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/smallnest/ringbuffer"
)

const (
	DefaultBufferSize    = 256 << 10
	DefaultMaxTrackBytes = 256 << 20

	readChunk = 32 << 10
)

// Cache is the part of cache.Coordinator the loader uses.
type Cache interface {
	Get(id uint64) ([]byte, bool)
	Insert(id uint64, data []byte) error
}

// Origin tells where a stream's bytes come from.
type Origin int

const (
	OriginCache Origin = iota
	OriginNetwork
)

func (o Origin) String() string {
	if o == OriginNetwork {
		return "network"
	}
	return "cache"
}

// Options configures a Loader.
type Options struct {
	// BufferSize is the capacity of the ring between the download and the
	// reader.
	BufferSize int
	// MaxTrackBytes caps how much of a download is kept for the cache.
	// Longer downloads still stream but are not cached.
	MaxTrackBytes int64
	Logger        zerolog.Logger
}

// Loader opens tracks from the cache, falling back to the network.
type Loader struct {
	cache   Cache
	fetcher Fetcher
	opts    Options
	log     zerolog.Logger
}

func NewLoader(c Cache, f Fetcher, opts Options) *Loader {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.MaxTrackBytes <= 0 {
		opts.MaxTrackBytes = DefaultMaxTrackBytes
	}

	return &Loader{
		cache:   c,
		fetcher: f,
		opts:    opts,
		log:     opts.Logger.With().Str("component", "fetch").Logger(),
	}
}

// Stream is the encoded bytes of one track.
type Stream struct {
	ID     uint64
	Origin Origin

	r    io.Reader
	rb   *ringbuffer.RingBuffer
	done chan struct{}
	err  error // download result, valid once done is closed
}

func (s *Stream) Read(p []byte) (int, error) { return s.r.Read(p) }

// Close stops reading. A network download keeps running so the track can
// still be cached; cancel the context passed to Open to abort it.
func (s *Stream) Close() error {
	if s.rb != nil {
		s.rb.CloseWithError(ErrStreamClosed)
	}
	return nil
}

// Done is closed when the download, including the cache insert, has
// finished. Cached streams are done immediately.
func (s *Stream) Done() <-chan struct{} { return s.done }

// Err returns the download error once Done is closed.
func (s *Stream) Err() error {
	<-s.done
	return s.err
}

// Open returns the bytes of track id. Cached tracks are served from
// memory; otherwise the track is fetched and streamed through a bounded
// buffer while it downloads, then inserted into the cache.
func (l *Loader) Open(ctx context.Context, id uint64) (*Stream, error) {
	if data, ok := l.cache.Get(id); ok {
		done := make(chan struct{})
		close(done)

		l.log.Debug().Uint64("track_id", id).Int("bytes", len(data)).Msg("cache hit")

		return &Stream{
			ID:     id,
			Origin: OriginCache,
			r:      bytes.NewReader(data),
			done:   done,
		}, nil
	}

	body, err := l.fetcher.Fetch(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch track %d: %w", id, err)
	}

	rb := ringbuffer.New(l.opts.BufferSize).SetBlocking(true)
	s := &Stream{
		ID:     id,
		Origin: OriginNetwork,
		r:      rb,
		rb:     rb,
		done:   make(chan struct{}),
	}

	l.log.Debug().Uint64("track_id", id).Msg("cache miss, downloading")

	go l.download(ctx, s, body)

	return s, nil
}

func (l *Loader) download(ctx context.Context, s *Stream, body io.ReadCloser) {
	defer close(s.done)
	defer body.Close()

	stop := context.AfterFunc(ctx, func() { s.rb.CloseWithError(ctx.Err()) })
	defer stop()

	var (
		acc       bytes.Buffer
		buf       = make([]byte, readChunk)
		streaming = true
		keep      = true
	)

	for {
		n, err := body.Read(buf)
		if n > 0 {
			if keep && int64(acc.Len()+n) > l.opts.MaxTrackBytes {
				keep = false
				acc = bytes.Buffer{}
				l.log.Debug().Uint64("track_id", s.ID).Int64("limit", l.opts.MaxTrackBytes).Msg("track too large to cache")
			}
			if keep {
				acc.Write(buf[:n])
			}

			if streaming {
				if _, werr := s.rb.Write(buf[:n]); werr != nil {
					streaming = false
				}
			}
		}

		if cerr := ctx.Err(); cerr != nil {
			s.err = cerr
			return
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.err = err
			s.rb.CloseWithError(err)
			l.log.Warn().Err(err).Uint64("track_id", s.ID).Msg("download failed")
			return
		}
		if !streaming && !keep {
			// nobody reading and nothing to cache
			return
		}
	}

	s.rb.CloseWriter()

	if !keep {
		return
	}

	if err := l.cache.Insert(s.ID, acc.Bytes()); err != nil {
		l.log.Warn().Err(err).Uint64("track_id", s.ID).Msg("could not cache track")
		return
	}

	l.log.Debug().Uint64("track_id", s.ID).Int("bytes", acc.Len()).Msg("track cached")
}
