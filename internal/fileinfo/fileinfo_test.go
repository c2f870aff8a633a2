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

package fileinfo

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecimalOctal(t *testing.T) {
	t.Parallel()
	assert.Equal(t, uint32(755), decimalOctal(0o755))
	assert.Equal(t, uint32(644), decimalOctal(0o644))
	assert.Equal(t, uint32(0), decimalOctal(0))
}

func TestInspectRegularFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("abcd"), 0o644))

	info, err := Inspect(path)
	require.NoError(t, err)
	assert.True(t, info.IsRegular)
	assert.Equal(t, int64(4), info.Size)
	assert.Equal(t, uint32(644), info.Mode)
}

func TestInspectMissingFile(t *testing.T) {
	t.Parallel()
	_, err := Inspect(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}

func TestHashReusesXattrCacheUntilMtimeChanges(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("abcd"), 0o644))

	ctx := context.Background()
	info, err := Inspect(path)
	require.NoError(t, err)

	hash1, fromCache1, err := Hash(ctx, info)
	require.NoError(t, err)
	assert.False(t, fromCache1)

	info2, err := Inspect(path)
	require.NoError(t, err)
	hash2, fromCache2, err := Hash(ctx, info2)
	require.NoError(t, err)
	assert.Equal(t, hash1, hash2)
	assert.True(t, fromCache2)

	// Touch mtime forward without changing content: cache must invalidate
	// and recompute, landing on the same hash.
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))
	info3, err := Inspect(path)
	require.NoError(t, err)
	hash3, fromCache3, err := Hash(ctx, info3)
	require.NoError(t, err)
	assert.Equal(t, hash1, hash3)
	assert.False(t, fromCache3)
}

func TestIsExcludedFalseWithoutXattr(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	assert.False(t, IsExcluded(path))
}
