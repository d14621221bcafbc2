// SPDX-License-Identifier: EPL-2.0

package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// Fetcher opens the network stream for a track.
type Fetcher interface {
	Fetch(ctx context.Context, id uint64) (io.ReadCloser, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, id uint64) (io.ReadCloser, error)

func (f FetcherFunc) Fetch(ctx context.Context, id uint64) (io.ReadCloser, error) {
	return f(ctx, id)
}

// HTTPFetcher downloads tracks with GET requests.
type HTTPFetcher struct {
	// Client defaults to http.DefaultClient.
	Client *http.Client
	// URL maps a track id to its download location.
	URL func(id uint64) string
}

func (h HTTPFetcher) Fetch(ctx context.Context, id uint64) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL(id), nil)
	if err != nil {
		return nil, err
	}

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrBadStatus, resp.Status)
	}

	return resp.Body, nil
}
