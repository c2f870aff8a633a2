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

// Package local implements backend.Backend directly against the local
// filesystem.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/wojas/hashedbackup/internal/backend"
	"github.com/wojas/hashedbackup/internal/hashio"
	"github.com/wojas/hashedbackup/internal/layout"
)

// Backend stores objects and manifests directly on the local filesystem.
type Backend struct {
	Root string
}

// New returns a local backend rooted at root.
func New(root string) *Backend {
	return &Backend{Root: root}
}

func (b *Backend) Close() error { return nil }

func (b *Backend) TryMkdir(ctx context.Context, dir string) bool {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false
	}
	return true
}

func (b *Backend) Exists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (b *Backend) IsDir(ctx context.Context, path string) (bool, error) {
	st, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return st.IsDir(), nil
}

func (b *Backend) ListDir(ctx context.Context, dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

type rwc struct{ *os.File }

func (b *Backend) Open(ctx context.Context, path string, mode string) (io.ReadWriteCloser, error) {
	switch mode {
	case "r":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		return rwc{f}, nil
	case "w":
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return nil, err
		}
		return rwc{f}, nil
	default:
		return nil, fmt.Errorf("local: unsupported open mode %q", mode)
	}
}

func (b *Backend) Rename(ctx context.Context, src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.Rename(src, dst)
}

func (b *Backend) Delete(ctx context.Context, path string) error {
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (b *Backend) TempPath(repoRoot string) string {
	return layout.TempPath(repoRoot)
}

// EnumerateObjectHashes always returns nil: a recursive directory listing
// on the local filesystem is not cheaper than per-object Exists checks, so
// callers fall back to those instead.
func (b *Backend) EnumerateObjectHashes(ctx context.Context, repoRoot string) (map[string]struct{}, error) {
	return nil, nil
}

func (b *Backend) CheckValid(ctx context.Context, repoRoot string) error {
	cfgExists, err := b.Exists(ctx, layout.ConfigPath(repoRoot))
	if err != nil {
		return err
	}
	if cfgExists {
		raw, err := os.ReadFile(layout.ConfigPath(repoRoot))
		if err != nil {
			return err
		}
		var cfg struct {
			Version int `json:"version"`
		}
		if err := json.Unmarshal(raw, &cfg); err != nil || cfg.Version != 1 {
			return backend.ErrNotInitialized
		}
		return nil
	}

	manifestsExist, err := b.IsDir(ctx, layout.ManifestsDir(repoRoot))
	if err != nil {
		return err
	}
	if manifestsExist {
		return backend.ErrUnsupportedLegacyRepository
	}

	return backend.ErrNotInitialized
}

// AddObject implements the publish-by-rename dedup contract: if the object
// already exists, this is a no-op beyond the existence check; otherwise the
// source is streamed into a fresh temp file while its MD5 is computed, and
// only renamed into place once the digest is confirmed to equal h. The temp
// file is removed on any failure so a wrong-named object never appears
// under objects/.
func (b *Backend) AddObject(ctx context.Context, repoRoot, h, srcPath string, mode backend.Mode) (backend.AddObjectResult, error) {
	finalPath, err := layout.ObjectPath(repoRoot, h)
	if err != nil {
		return backend.AddObjectResult{}, err
	}

	if exists, err := b.Exists(ctx, finalPath); err != nil {
		return backend.AddObjectResult{}, err
	} else if exists {
		return backend.AddObjectResult{Added: false}, nil
	}

	bucketDir := layout.ObjectBucketDir(repoRoot, h)
	b.TryMkdir(ctx, bucketDir)

	switch mode {
	case backend.ModeSymlink:
		if err := os.Symlink(srcPath, finalPath); err != nil {
			return backend.AddObjectResult{}, fmt.Errorf("local: symlink object: %w", err)
		}
		return backend.AddObjectResult{Added: true}, nil
	case backend.ModeHardlink:
		if err := os.Link(srcPath, finalPath); err != nil {
			return backend.AddObjectResult{}, fmt.Errorf("local: hardlink object: %w", err)
		}
		return backend.AddObjectResult{Added: true}, nil
	}

	tmpPath := b.TempPath(repoRoot)
	if err := os.MkdirAll(filepath.Dir(tmpPath), 0o755); err != nil {
		return backend.AddObjectResult{}, err
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return backend.AddObjectResult{}, fmt.Errorf("local: open source: %w", err)
	}
	defer src.Close()

	tmp, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return backend.AddObjectResult{}, fmt.Errorf("local: create temp: %w", err)
	}
	removeTemp := true
	defer func() {
		_ = tmp.Close()
		if removeTemp {
			_ = os.Remove(tmpPath)
		}
	}()

	digest, _, err := hashio.CopyAndHash(ctx, tmp, src)
	if err != nil {
		return backend.AddObjectResult{}, fmt.Errorf("local: write object: %w", err)
	}

	if digest != h {
		return backend.AddObjectResult{}, fmt.Errorf("%w: expected %s, got %s", backend.ErrHashMismatch, h, digest)
	}

	if err := tmp.Close(); err != nil {
		return backend.AddObjectResult{}, fmt.Errorf("local: close temp: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return backend.AddObjectResult{}, fmt.Errorf("local: rename object into place: %w", err)
	}
	removeTemp = false

	_ = fsyncDir(bucketDir)

	return backend.AddObjectResult{Added: true}, nil
}

// fsyncDir flushes directory metadata (the new entry from a rename) to
// stable storage. Best-effort: some filesystems ignore directory fsync.
func fsyncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
