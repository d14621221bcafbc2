// SPDX-License-Identifier: EPL-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ik5/audtap/cache"
	"github.com/ik5/audtap/fetch"
)

type CacheCmd struct {
	Stats CacheStatsCmd `cmd:"" default:"1" help:"Print per-tier usage."`
	Clear CacheClearCmd `cmd:"" help:"Remove every cached track."`
}

type CacheStatsCmd struct{}

func (CacheStatsCmd) Run(g *Globals) error {
	c, err := openCache(g, 0)
	if err != nil {
		return err
	}
	defer c.Close()

	s := c.Stats()
	fmt.Fprintf(g.out, "memory  %d entries  %s / %s\n", s.Memory.Entries, size(s.Memory.Bytes), size(s.Memory.Capacity))
	fmt.Fprintf(g.out, "disk    %d entries  %s / %s\n", s.Disk.Entries, size(s.Disk.Bytes), size(s.Disk.Capacity))
	if d := c.Disk(); d != nil {
		fmt.Fprintf(g.out, "dir     %s\n", d.Dir())
	}

	return nil
}

type CacheClearCmd struct{}

func (CacheClearCmd) Run(g *Globals) error {
	c, err := openCache(g, 0)
	if err != nil {
		return err
	}

	before := c.Stats().Bytes()
	if err := c.Clear(); err != nil {
		c.Close()
		return err
	}
	if err := c.Close(); err != nil {
		return err
	}

	fmt.Fprintf(g.out, "freed %s\n", size(before))
	return nil
}

// FetchCmd downloads tracks through the loader so they land in the disk
// tier, the same way playback would cache them.
type FetchCmd struct {
	URL     string        `required:"" help:"Download URL with %d standing for the track id."`
	Timeout time.Duration `default:"5m" help:"Per-track timeout."`
	IDs     []uint64      `arg:"" name:"id" help:"Track ids."`
}

func (c *FetchCmd) Run(g *Globals) error {
	if !strings.Contains(c.URL, "%d") {
		return fmt.Errorf("url %q has no %%d placeholder", c.URL)
	}

	// a one-byte memory tier sends every track straight to disk
	cc, err := openCache(g, 1)
	if err != nil {
		return err
	}
	defer cc.Close()

	loader := fetch.NewLoader(cc, fetch.HTTPFetcher{
		Client: &http.Client{Timeout: c.Timeout},
		URL:    func(id uint64) string { return fmt.Sprintf(c.URL, id) },
	}, fetch.Options{Logger: g.log})

	for _, id := range c.IDs {
		if err := fetchOne(loader, id, c.Timeout); err != nil {
			return err
		}
		fmt.Fprintf(g.out, "%d  %s\n", id, cc.Where(id))
	}

	return nil
}

func fetchOne(l *fetch.Loader, id uint64, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s, err := l.Open(ctx, id)
	if err != nil {
		return err
	}
	defer s.Close()

	if _, err := io.Copy(io.Discard, s); err != nil {
		return fmt.Errorf("track %d: %w", id, err)
	}

	return s.Err()
}

func openCache(g *Globals, memBytes int64) (*cache.Coordinator, error) {
	return cache.Open(cache.Options{
		Root:        g.CacheDir,
		MemoryBytes: memBytes,
		Logger:      g.log,
	})
}

func size(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
