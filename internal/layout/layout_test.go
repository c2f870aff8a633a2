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

package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketsAreAllTwoHexCharCombinations(t *testing.T) {
	t.Parallel()
	require.Len(t, Buckets, 256)
	require.Equal(t, "00", Buckets[0])
	require.Equal(t, "ff", Buckets[255])
}

func TestObjectPathRejectsWrongLengthHash(t *testing.T) {
	t.Parallel()
	_, err := ObjectPath("/repo", "abc")
	require.Error(t, err)
}

func TestObjectPathUsesFirstTwoCharsAsBucket(t *testing.T) {
	t.Parallel()
	h := "e2fc714c4727ee9395f324cd2e7f331f"
	p, err := ObjectPath("/repo", h)
	require.NoError(t, err)
	assert.Equal(t, "/repo/objects/e2/e2fc714c4727ee9395f324cd2e7f331f", p)
}

func TestNamespaceEncodingRoundTrips(t *testing.T) {
	t.Parallel()
	cases := []string{
		"laptop",
		"my pictures",
		"a/b/c",
		"100%done",
		"héllo wörld",
		"weird=chars",
	}
	for _, ns := range cases {
		ns := ns
		t.Run(ns, func(t *testing.T) {
			t.Parallel()
			encoded := EncodeNamespace(ns)
			assert.NotContains(t, encoded, "/")
			decoded, err := DecodeNamespace(encoded)
			require.NoError(t, err)
			assert.Equal(t, ns, decoded)
		})
	}
}

func TestManifestFileName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "20200102-030405.manifest.bz2", ManifestFileName("20200102-030405"))
}
