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

package repo

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wojas/hashedbackup/internal/backend/local"
	"github.com/wojas/hashedbackup/internal/layout"
)

func TestInitCreatesExpectedLayout(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "repo")
	be := local.New(root)

	require.NoError(t, Init(context.Background(), be, root))

	for _, bucket := range layout.Buckets {
		_, err := os.Stat(filepath.Join(root, "objects", bucket))
		require.NoError(t, err)
	}

	_, err := os.Stat(filepath.Join(root, "manifests"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "tmp"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "README.txt"))
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(root, "hashedbackup.json"))
	require.NoError(t, err)
	var cfg configRecord
	require.NoError(t, json.Unmarshal(raw, &cfg))
	require.Equal(t, 1, cfg.Version)
}

func TestInitRejectsNonEmptyDestination(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "existing"), []byte("x"), 0o644))

	be := local.New(root)
	err := Init(context.Background(), be, root)
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(root, "objects"))
	require.True(t, os.IsNotExist(statErr))
}

func TestInitRequiresExistingParent(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "missing-parent", "repo")
	be := local.New(root)
	err := Init(context.Background(), be, root)
	require.Error(t, err)
}
