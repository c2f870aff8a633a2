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

package snapshot

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wojas/hashedbackup/internal/backend"
	"github.com/wojas/hashedbackup/internal/backend/local"
	"github.com/wojas/hashedbackup/internal/layout"
	"github.com/wojas/hashedbackup/internal/manifest"
	"github.com/wojas/hashedbackup/internal/repo"
)

func newRepo(t *testing.T) (backend.Backend, string) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "repo")
	be := local.New(root)
	require.NoError(t, repo.Init(context.Background(), be, root))
	return be, root
}

func countManifestRecords(t *testing.T, be backend.Backend, path string) []map[string]any {
	t.Helper()
	var records []map[string]any
	require.NoError(t, manifest.Each(context.Background(), be, path, func(raw json.RawMessage) error {
		var rec map[string]any
		if err := json.Unmarshal(raw, &rec); err != nil {
			return err
		}
		records = append(records, rec)
		return nil
	}))
	return records
}

func TestRunWritesManifestAndDedupsObjects(t *testing.T) {
	t.Parallel()

	be, root := newRepo(t)

	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("abcd"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(src, "dir"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "dir", "b.txt"), []byte("abcd"), 0o644))

	ctx := context.Background()
	result, err := Run(ctx, be, root, Config{SourceRoot: src, Namespace: "n"})
	require.NoError(t, err)
	require.False(t, result.Skipped)
	require.Equal(t, 1, result.NObjectsAdded)
	require.Equal(t, 1, result.NObjectsExist)

	sum := md5.Sum([]byte("abcd"))
	h := hex.EncodeToString(sum[:])
	objPath, err := layout.ObjectPath(root, h)
	require.NoError(t, err)
	_, err = os.Stat(objPath)
	require.NoError(t, err)

	records := countManifestRecords(t, be, result.ManifestPath)
	require.GreaterOrEqual(t, len(records), 4)
	require.Equal(t, float64(0), records[0]["version"])
	last := records[len(records)-1]
	require.Equal(t, true, last["eof"])

	var fileCount, dirCount int
	for _, r := range records {
		switch r["type"] {
		case "f":
			fileCount++
			require.Equal(t, h, r["hash"])
		case "d":
			dirCount++
		}
	}
	require.Equal(t, 2, fileCount)
	require.Equal(t, 1, dirCount)
}

func TestRunSecondSnapshotAddsNoNewObjects(t *testing.T) {
	t.Parallel()

	be, root := newRepo(t)
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("abcd"), 0o644))

	ctx := context.Background()
	_, err := Run(ctx, be, root, Config{SourceRoot: src, Namespace: "n"})
	require.NoError(t, err)

	result, err := Run(ctx, be, root, Config{SourceRoot: src, Namespace: "n"})
	require.NoError(t, err)
	require.Equal(t, 0, result.NObjectsAdded)
	require.Equal(t, 1, result.NCached)
	require.Equal(t, 0, result.NUpdated)
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	be, root := newRepo(t)
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("x"), 0o644))

	_, err := Run(context.Background(), be, root, Config{
		SourceRoot: src,
		Namespace:  "n",
		Symlink:    true,
		Hardlink:   true,
	})
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRunRejectsEmptySource(t *testing.T) {
	t.Parallel()

	be, root := newRepo(t)
	src := t.TempDir()

	_, err := Run(context.Background(), be, root, Config{SourceRoot: src, Namespace: "n"})
	require.ErrorIs(t, err, ErrInvalidSource)
}

func TestRunSkipsExcludedEntries(t *testing.T) {
	t.Parallel()

	be, root := newRepo(t)
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, ".DS_Store"), []byte("junk"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "keep.txt"), []byte("keep"), 0o644))

	result, err := Run(context.Background(), be, root, Config{SourceRoot: src, Namespace: "n"})
	require.NoError(t, err)

	records := countManifestRecords(t, be, result.ManifestPath)
	for _, r := range records {
		if path, ok := r["path"]; ok {
			require.NotEqual(t, ".DS_Store", path)
		}
	}
}

func TestRunSkipsSymlinkEscapingSourceRoot(t *testing.T) {
	t.Parallel()

	be, root := newRepo(t)
	src := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("nope"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "keep.txt"), []byte("keep"), 0o644))
	require.NoError(t, os.Symlink(filepath.Join(outside, "secret.txt"), filepath.Join(src, "escape.txt")))

	result, err := Run(context.Background(), be, root, Config{SourceRoot: src, Namespace: "n"})
	require.NoError(t, err)

	records := countManifestRecords(t, be, result.ManifestPath)
	for _, r := range records {
		if path, ok := r["path"]; ok {
			require.NotEqual(t, "escape.txt", path)
		}
	}
}

func TestRunIfOlderThanSkipsRecentManifest(t *testing.T) {
	t.Parallel()

	be, root := newRepo(t)
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("x"), 0o644))

	ctx := context.Background()
	_, err := Run(ctx, be, root, Config{SourceRoot: src, Namespace: "n"})
	require.NoError(t, err)

	result, err := Run(ctx, be, root, Config{SourceRoot: src, Namespace: "n", IfOlderThan: time.Hour})
	require.NoError(t, err)
	require.True(t, result.Skipped)
}
