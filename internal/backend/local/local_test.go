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

package local

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wojas/hashedbackup/internal/backend"
)

func TestAddObjectIsIdempotent(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	for _, dir := range []string{"objects/e2", "tmp"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0o755))
	}
	be := New(root)

	src := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(src, []byte("abcd"), 0o644))
	sum := md5.Sum([]byte("abcd"))
	h := hex.EncodeToString(sum[:])

	ctx := context.Background()
	res1, err := be.AddObject(ctx, root, h, src, backend.ModeCopy)
	require.NoError(t, err)
	require.True(t, res1.Added)

	res2, err := be.AddObject(ctx, root, h, src, backend.ModeCopy)
	require.NoError(t, err)
	require.False(t, res2.Added)

	data, err := os.ReadFile(filepath.Join(root, "objects", "e2", h))
	require.NoError(t, err)
	require.Equal(t, []byte("abcd"), data)
}

func TestAddObjectRejectsHashMismatch(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	for _, dir := range []string{"objects/aa", "tmp"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0o755))
	}
	be := New(root)

	src := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(src, []byte("abcd"), 0o644))

	wrongHash := "aa000000000000000000000000000000"[:32]
	ctx := context.Background()
	_, err := be.AddObject(ctx, root, wrongHash, src, backend.ModeCopy)
	require.ErrorIs(t, err, backend.ErrHashMismatch)

	entries, err := os.ReadDir(filepath.Join(root, "tmp"))
	require.NoError(t, err)
	require.Empty(t, entries)

	_, err = os.Stat(filepath.Join(root, "objects", "aa", wrongHash))
	require.True(t, os.IsNotExist(err))
}

func TestCheckValid(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	be := New(root)
	ctx := context.Background()

	require.ErrorIs(t, be.CheckValid(ctx, root), backend.ErrNotInitialized)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "manifests"), 0o755))
	require.ErrorIs(t, be.CheckValid(ctx, root), backend.ErrUnsupportedLegacyRepository)

	require.NoError(t, os.WriteFile(filepath.Join(root, "hashedbackup.json"), []byte(`{"version":1}`), 0o644))
	require.NoError(t, be.CheckValid(ctx, root))
}
