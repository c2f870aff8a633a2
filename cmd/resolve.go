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

package cmd

import (
	"context"

	"github.com/wojas/hashedbackup/internal/backend"
	"github.com/wojas/hashedbackup/internal/backend/local"
	"github.com/wojas/hashedbackup/internal/backend/sftpremote"
)

// backendCache is shared by every subcommand invocation within a single
// process so that backup-profile's repeated backup and manifest-listing
// calls against the same destination reuse one connection.
var backendCache = backend.NewCache(openBackend, false)

func openBackend(dest backend.Destination) (backend.Backend, error) {
	if !dest.Remote {
		return local.New(dest.Path), nil
	}
	return sftpremote.Dial(context.Background(), dest)
}

// resolveDestination parses raw and returns its live backend together with
// the repository root path on that backend.
func resolveDestination(raw string) (backend.Backend, string, error) {
	dest, err := backend.ParseDestination(raw)
	if err != nil {
		return nil, "", err
	}
	be, err := backendCache.Get(dest)
	if err != nil {
		return nil, "", err
	}
	return be, dest.Path, nil
}
