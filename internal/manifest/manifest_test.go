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

package manifest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wojas/hashedbackup/internal/backend/local"
)

func TestWriterCommitProducesReadableManifest(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	be := local.New(root)
	ctx := context.Background()

	w, err := NewWriter(ctx, be, root, "ns", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	require.NoError(t, err)

	require.NoError(t, w.Add(Header{Version: 0, Hostname: "h", Root: "/src"}))
	require.NoError(t, w.Add(DirEntry{Path: "dir", Type: "d"}))
	require.NoError(t, w.Add(FileEntry{Path: "dir/a.txt", Type: "f", Size: 4, Hash: "deadbeef"}))
	require.NoError(t, w.Add(Trailer{EOF: true}))
	require.NoError(t, w.Commit(ctx))

	require.Equal(t, "20240102-030405.manifest.bz2", w.FinalPath()[len(w.FinalPath())-len("20240102-030405.manifest.bz2"):])

	var records []json.RawMessage
	require.NoError(t, Each(ctx, be, w.FinalPath(), func(raw json.RawMessage) error {
		records = append(records, append(json.RawMessage(nil), raw...))
		return nil
	}))
	require.Len(t, records, 4)

	var trailer Trailer
	require.NoError(t, json.Unmarshal(records[3], &trailer))
	require.True(t, trailer.EOF)
}

func TestWriterCancelRemovesTempFile(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	be := local.New(root)
	ctx := context.Background()

	w, err := NewWriter(ctx, be, root, "ns", time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, w.Add(Header{Version: 0}))
	require.NoError(t, w.Cancel(ctx))

	tmpExists, err := be.Exists(ctx, w.tmpPath)
	require.NoError(t, err)
	require.False(t, tmpExists)

	exists, err := be.Exists(ctx, w.FinalPath())
	require.NoError(t, err)
	require.False(t, exists)
}

func TestListSortsManifestsOldestFirst(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	be := local.New(root)
	ctx := context.Background()

	times := []time.Time{
		time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	for _, ts := range times {
		w, err := NewWriter(ctx, be, root, "ns", ts)
		require.NoError(t, err)
		require.NoError(t, w.Add(Trailer{EOF: true}))
		require.NoError(t, w.Commit(ctx))
	}

	summaries, err := List(ctx, be, root, "ns")
	require.NoError(t, err)
	require.Len(t, summaries, 3)
	require.True(t, summaries[0].Created.Before(summaries[1].Created))
	require.True(t, summaries[1].Created.Before(summaries[2].Created))

	newest, ok, err := Newest(ctx, be, root, "ns")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, summaries[2], newest)
}
