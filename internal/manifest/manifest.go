/*
 * hashedbackup: content-addressed file backup engine
 * Copyright © 2026 the hashedbackup authors
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

// Package manifest writes and describes the compressed, newline-delimited
// JSON manifest that records one snapshot's tree structure and per-entry
// metadata.
package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dsnet/compress/bzip2"

	"github.com/wojas/hashedbackup/internal/backend"
	"github.com/wojas/hashedbackup/internal/layout"
)

// Stat is the per-entry filesystem metadata recorded for both directory and
// file entries.
type Stat struct {
	Mode    uint32  `json:"mode"`
	Uid     uint32  `json:"uid"`
	Gid     uint32  `json:"gid"`
	User    *string `json:"user"`
	Group   *string `json:"group"`
	Mtime   int64   `json:"mtime"`
	MtimeNs int64   `json:"mtime_ns"`
}

// Header is always the first record of a manifest.
type Header struct {
	Version      int     `json:"version"` // always 0, even in v1 repositories
	Created      float64 `json:"created"`
	CreatedHuman string  `json:"created_human"`
	Hostname     string  `json:"hostname"`
	Root         string  `json:"root"`
}

// DirEntry is recorded for each directory encountered during the walk,
// before descent.
type DirEntry struct {
	Path string `json:"path"`
	Type string `json:"type"` // "d"
	Stat Stat   `json:"stat"`
}

// FileEntry is recorded for each regular file encountered during the walk.
type FileEntry struct {
	Path string `json:"path"`
	Type string `json:"type"` // "f"
	Size int64  `json:"size"`
	Hash string `json:"hash"`
	Stat Stat   `json:"stat"`
}

// Trailer is always the final record of a committed manifest.
type Trailer struct {
	EOF bool `json:"eof"`
}

// bzip2Level is the compression level the writer uses: bzip2's maximum,
// 9. The manifest is produced once per snapshot and read rarely, so the
// extra CPU cost is worth the smaller result.
const bzip2Level = 9

// Writer appends JSON-lines records to a bzip2-compressed temp file on a
// backend, publishing it atomically on Commit.
type Writer struct {
	be       backend.Backend
	repoRoot string

	finalPath string
	tmpPath   string

	file interface {
		Write([]byte) (int, error)
		Close() error
	}
	bz *bzip2.Writer
}

// NewWriter ensures the namespace directory exists, opens a fresh temp file
// on be, and initializes a maximum-level bzip2 compressor feeding it.
func NewWriter(ctx context.Context, be backend.Backend, repoRoot, namespace string, createdUTC time.Time) (*Writer, error) {
	nsDir := layout.ManifestDir(repoRoot, namespace)
	be.TryMkdir(ctx, nsDir)

	finalPath := nsDir + "/" + layout.ManifestFileName(createdUTC.Format("20060102-150405"))
	tmpPath := be.TempPath(repoRoot)

	f, err := be.Open(ctx, tmpPath, "w")
	if err != nil {
		return nil, fmt.Errorf("manifest: open temp: %w", err)
	}

	bz, err := bzip2.NewWriter(f, &bzip2.WriterConfig{Level: bzip2Level})
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("manifest: init bzip2 writer: %w", err)
	}

	return &Writer{
		be:        be,
		repoRoot:  repoRoot,
		finalPath: finalPath,
		tmpPath:   tmpPath,
		file:      f,
		bz:        bz,
	}, nil
}

// Add JSON-encodes record followed by a newline and feeds it through the
// compressor.
func (w *Writer) Add(record any) error {
	b, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("manifest: encode record: %w", err)
	}
	b = append(b, '\n')
	if _, err := w.bz.Write(b); err != nil {
		return fmt.Errorf("manifest: write record: %w", err)
	}
	return nil
}

// Commit flushes the compressor, closes the temp file, and atomically
// renames it to its final path. The final record added before Commit should
// be a Trailer so invariant I2 (every committed manifest ends with
// {"eof":true}) holds.
func (w *Writer) Commit(ctx context.Context) error {
	if err := w.bz.Close(); err != nil {
		return fmt.Errorf("manifest: flush compressor: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("manifest: close temp: %w", err)
	}
	if err := w.be.Rename(ctx, w.tmpPath, w.finalPath); err != nil {
		return fmt.Errorf("manifest: publish: %w", err)
	}
	return nil
}

// Cancel closes and deletes the temp file without publishing it. The
// snapshot engine never calls this on user interruption: interruption
// leaves an orphan temp file under tmp/, which is an accepted tradeoff
// (hashes are deterministic, so a retried snapshot costs nothing but a
// second walk) rather than surfacing a partial manifest.
func (w *Writer) Cancel(ctx context.Context) error {
	_ = w.bz.Close()
	_ = w.file.Close()
	return w.be.Delete(ctx, w.tmpPath)
}

// FinalPath returns the path the manifest will be published to on Commit.
func (w *Writer) FinalPath() string { return w.finalPath }
