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

// Package snapshot implements the core engine: walking a source tree,
// hashing and deduplicating its files against a repository, and writing
// the resulting manifest.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wojas/hashedbackup/internal/backend"
	"github.com/wojas/hashedbackup/internal/fileinfo"
	"github.com/wojas/hashedbackup/internal/manifest"
	"github.com/wojas/hashedbackup/internal/pathutil"
	"github.com/wojas/hashedbackup/internal/uilog"
)

// ErrInvalidConfig means the snapshot configuration is contradictory:
// symlink and hardlink modes were both requested.
var ErrInvalidConfig = errors.New("snapshot: invalid config")

// ErrInvalidSource means source_root is missing, not a directory, or
// empty.
var ErrInvalidSource = errors.New("snapshot: invalid source")

// ignoreNames is the fixed set of basenames excluded from every snapshot,
// matching the platform sidecar files macOS leaves behind on removable
// and network volumes.
var ignoreNames = map[string]struct{}{
	".DS_Store":       {},
	".Trashes":        {},
	".fseventsd":      {},
	".Spotlight-V100": {},
}

// Config describes one snapshot run.
type Config struct {
	SourceRoot  string
	Namespace   string
	Symlink     bool
	Hardlink    bool
	IfOlderThan time.Duration // zero means unset: never skip
	LogUploaded bool
	Progress    *uilog.Progress // optional; nil disables progress reporting
}

// Result summarizes a completed (or skipped) run.
type Result struct {
	Skipped       bool
	ManifestPath  string
	TotalBytes    int64
	NCached       int
	NUpdated      int
	NObjectsAdded int
	NObjectsExist int
	UploadedBytes int64
	Duration      time.Duration
}

// Run executes one snapshot of cfg.SourceRoot into repoRoot on be under
// cfg.Namespace.
func Run(ctx context.Context, be backend.Backend, repoRoot string, cfg Config) (Result, error) {
	if cfg.Symlink && cfg.Hardlink {
		return Result{}, fmt.Errorf("%w: symlink and hardlink are mutually exclusive", ErrInvalidConfig)
	}

	if cfg.Progress != nil {
		defer cfg.Progress.Done()
	}

	if err := be.CheckValid(ctx, repoRoot); err != nil {
		return Result{}, err
	}

	absRoot, err := filepath.Abs(cfg.SourceRoot)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}
	if err := validateSource(absRoot); err != nil {
		return Result{}, err
	}

	if cfg.IfOlderThan > 0 {
		newest, ok, err := manifest.Newest(ctx, be, repoRoot, cfg.Namespace)
		if err == nil && ok && time.Since(newest.Created) < cfg.IfOlderThan {
			return Result{Skipped: true}, nil
		}
	}

	known, err := be.EnumerateObjectHashes(ctx, repoRoot)
	if err != nil {
		return Result{}, fmt.Errorf("snapshot: enumerate existing objects: %w", err)
	}
	seen := make(map[string]struct{}, len(known))
	for h := range known {
		seen[h] = struct{}{}
	}

	mode := backend.ModeCopy
	switch {
	case cfg.Symlink:
		mode = backend.ModeSymlink
	case cfg.Hardlink:
		mode = backend.ModeHardlink
	}

	start := time.Now().UTC()
	w, err := manifest.NewWriter(ctx, be, repoRoot, cfg.Namespace, start)
	if err != nil {
		return Result{}, fmt.Errorf("snapshot: open manifest: %w", err)
	}

	hostname, _ := os.Hostname()
	if err := w.Add(manifest.Header{
		Version:      0,
		Created:      float64(start.Unix()),
		CreatedHuman: start.Format("2006-01-02 15:04:05 MST"),
		Hostname:     hostname,
		Root:         absRoot,
	}); err != nil {
		return Result{}, fmt.Errorf("snapshot: write header: %w", err)
	}

	var result Result
	e := walk(ctx, be, repoRoot, absRoot, cfg, mode, w, seen, &result)

	if errors.Is(e, context.Canceled) {
		return Result{}, fmt.Errorf("interrupted; no manifest was written")
	}
	if e != nil {
		_ = w.Cancel(ctx)
		return Result{}, e
	}

	if err := w.Add(manifest.Trailer{EOF: true}); err != nil {
		_ = w.Cancel(ctx)
		return Result{}, fmt.Errorf("snapshot: write trailer: %w", err)
	}
	if err := w.Commit(ctx); err != nil {
		return Result{}, fmt.Errorf("snapshot: commit manifest: %w", err)
	}

	result.ManifestPath = w.FinalPath()
	result.Duration = time.Since(start)
	return result, nil
}

func validateSource(absRoot string) error {
	st, err := os.Stat(absRoot)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}
	if !st.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInvalidSource, absRoot)
	}
	entries, err := os.ReadDir(absRoot)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("%w: %s is empty", ErrInvalidSource, absRoot)
	}
	return nil
}

// walk drives the filepath.WalkDir traversal, appending manifest records
// and dispatching objects to the backend. Any non-nil, non-context.Canceled
// error it returns is a repository-level failure: the caller aborts the
// run and does not publish the manifest.
func walk(ctx context.Context, be backend.Backend, repoRoot, absRoot string, cfg Config, mode backend.Mode, w *manifest.Writer, seen map[string]struct{}, result *Result) error {
	return filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if walkErr != nil {
			uilog.Warn("cannot read %s: %v", rel, walkErr)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if rel == "." {
			return nil
		}

		base := d.Name()
		excluded := isIgnoredBasename(base) || fileinfo.IsExcluded(path)

		if d.IsDir() {
			if excluded {
				return filepath.SkipDir
			}

			info, err := fileinfo.Inspect(path)
			if err != nil {
				uilog.Warn("skipping dir (cannot stat): %s", rel)
				return filepath.SkipDir
			}

			if err := w.Add(manifest.DirEntry{
				Path: rel,
				Type: "d",
				Stat: statFromInfo(info),
			}); err != nil {
				return err
			}
			return nil
		}

		if excluded {
			return nil
		}

		info, err := fileinfo.Inspect(path)
		if err != nil {
			if os.IsNotExist(err) {
				uilog.Warn("skipping broken symlink: %s", rel)
			} else {
				uilog.Warn("skipping %s (cannot stat): %v", rel, err)
			}
			return nil
		}
		if !info.IsRegular {
			uilog.Warn("skipping non-regular file: %s", rel)
			return nil
		}

		if canon, cerr := pathutil.CanonicalizeBestEffort(path); cerr == nil {
			if under, uerr := pathutil.IsUnderDir(canon, absRoot); uerr == nil && !under {
				uilog.Warn("skipping %s: symlink escapes source root (resolves to %s)", rel, canon)
				return nil
			}
		}

		hash, fromCache, err := fileinfo.Hash(ctx, info)
		if err != nil {
			uilog.Warn("skipping %s (cannot hash): %v", rel, err)
			return nil
		}
		if fromCache {
			result.NCached++
		} else {
			result.NUpdated++
		}
		result.TotalBytes += info.Size

		added := false
		if _, ok := seen[hash]; ok {
			added = false
		} else {
			res, err := be.AddObject(ctx, repoRoot, hash, path, mode)
			if err != nil {
				return fmt.Errorf("snapshot: add object for %s: %w", rel, err)
			}
			added = res.Added
			if added {
				seen[hash] = struct{}{}
			}
		}

		if added {
			result.NObjectsAdded++
			result.UploadedBytes += info.Size
			if cfg.LogUploaded {
				uilog.OK("uploaded %s (%s)", rel, uilog.FormatSize(info.Size))
			}
		} else {
			result.NObjectsExist++
		}

		if err := w.Add(manifest.FileEntry{
			Path: rel,
			Type: "f",
			Size: info.Size,
			Hash: hash,
			Stat: statFromInfo(info),
		}); err != nil {
			return err
		}

		if cfg.Progress != nil {
			cfg.Progress.Report(result.NCached+result.NUpdated, result.TotalBytes, rel)
		}

		return nil
	})
}

func isIgnoredBasename(name string) bool {
	if _, ok := ignoreNames[name]; ok {
		return true
	}
	return strings.HasPrefix(name, "._")
}

func statFromInfo(info fileinfo.Info) manifest.Stat {
	return manifest.Stat{
		Mode:    info.Mode,
		Uid:     info.Uid,
		Gid:     info.Gid,
		User:    info.User(),
		Group:   info.Group(),
		Mtime:   info.MtimeNs / 1_000_000_000,
		MtimeNs: info.MtimeNs % 1_000_000_000,
	}
}
