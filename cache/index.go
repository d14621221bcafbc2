// SPDX-License-Identifier: EPL-2.0

package cache

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

const (
	// SubDir is the directory below the cache root holding the L2 files.
	SubDir    = "audio_l2"
	IndexFile = "index.json"
	fileExt   = ".bin"
)

// indexEntry is one record of index.json. Times are unix nanoseconds.
type indexEntry struct {
	Bytes    int64  `json:"bytes"`
	Atime    int64  `json:"atime"`
	Inserted int64  `json:"inserted"`
	Sum      uint64 `json:"sum,omitempty"`
}

// FileName returns the name of the file holding id's bytes.
func FileName(id uint64) string {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], id)

	return fmt.Sprintf("%016x%s", xxhash.Sum64(b[:]), fileExt)
}

func checksum(data []byte) uint64 { return xxhash.Sum64(data) }

// loadIndex reads index.json from dir. A missing file yields an empty
// index.
func loadIndex(dir string) (map[uint64]*indexEntry, error) {
	raw, err := os.ReadFile(filepath.Join(dir, IndexFile))
	if errors.Is(err, fs.ErrNotExist) {
		return map[uint64]*indexEntry{}, nil
	}
	if err != nil {
		return nil, err
	}

	var onDisk map[string]*indexEntry
	if err := json.Unmarshal(raw, &onDisk); err != nil {
		return nil, fmt.Errorf("parse %s: %w", IndexFile, err)
	}

	index := make(map[uint64]*indexEntry, len(onDisk))
	for key, e := range onDisk {
		id, err := strconv.ParseUint(key, 10, 64)
		if err != nil || e == nil {
			continue
		}
		index[id] = e
	}

	return index, nil
}

func encodeIndex(index map[uint64]*indexEntry) ([]byte, error) {
	onDisk := make(map[string]*indexEntry, len(index))
	for id, e := range index {
		onDisk[strconv.FormatUint(id, 10)] = e
	}

	return json.MarshalIndent(onDisk, "", "  ")
}
