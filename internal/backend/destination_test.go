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

package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDestination(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    Destination
		wantErr bool
	}{
		{
			name:  "local absolute path",
			input: "/srv/backups/photos",
			want:  Destination{Path: "/srv/backups/photos"},
		},
		{
			name:  "local relative path",
			input: "backups/photos",
			want:  Destination{Path: "backups/photos"},
		},
		{
			name:  "remote host and path",
			input: "backuphost:/srv/backups",
			want:  Destination{Remote: true, Host: "backuphost", Path: "/srv/backups"},
		},
		{
			name:  "remote user host and path",
			input: "alice@backuphost:/srv/backups",
			want:  Destination{Remote: true, User: "alice", Host: "backuphost", Path: "/srv/backups"},
		},
		{
			name:  "remote relative path",
			input: "backuphost:backups",
			want:  Destination{Remote: true, Host: "backuphost", Path: "backups"},
		},
		{
			name:  "slash before colon is local, e.g. windows-style path lookalike",
			input: "/a/b:c",
			want:  Destination{Path: "/a/b:c"},
		},
		{
			name:    "empty destination",
			input:   "",
			wantErr: true,
		},
		{
			name:    "missing path after colon",
			input:   "backuphost:",
			wantErr: true,
		},
		{
			name:    "missing host",
			input:   ":path",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseDestination(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDestinationString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/srv/backups", Destination{Path: "/srv/backups"}.String())
	assert.Equal(t, "backuphost:/srv/backups",
		Destination{Remote: true, Host: "backuphost", Path: "/srv/backups"}.String())
	assert.Equal(t, "alice@backuphost:/srv/backups",
		Destination{Remote: true, User: "alice", Host: "backuphost", Path: "/srv/backups"}.String())
}
