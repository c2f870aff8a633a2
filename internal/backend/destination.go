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
	"fmt"
	"strings"
)

// Destination is a parsed backup destination string.
type Destination struct {
	Remote bool
	User   string // only set when Remote and "user@" was given
	Host   string // only set when Remote; may be an SSH config alias
	Path   string
}

// ParseDestination parses a destination string.
//
// If the string contains ':' before any '/', it is remote and parsed as
// "[user@]host:path"; host may be an alias resolved from the user's SSH
// client configuration. Otherwise it is a local filesystem path.
func ParseDestination(s string) (Destination, error) {
	if s == "" {
		return Destination{}, fmt.Errorf("invalid destination: empty")
	}

	if slash := strings.IndexByte(s, '/'); slash == 0 {
		// Leading '/' can never be the start of a remote spec.
		return Destination{Path: s}, nil
	}

	colon := strings.IndexByte(s, ':')
	slash := strings.IndexByte(s, '/')
	if colon < 0 || (slash >= 0 && slash < colon) {
		return Destination{Path: s}, nil
	}

	hostPart := s[:colon]
	path := s[colon+1:]
	if path == "" {
		return Destination{}, fmt.Errorf("invalid destination %q: missing path after ':'", s)
	}

	user := ""
	host := hostPart
	if at := strings.IndexByte(hostPart, '@'); at >= 0 {
		user = hostPart[:at]
		host = hostPart[at+1:]
	}

	if host == "" {
		return Destination{}, fmt.Errorf("invalid destination %q: missing host", s)
	}

	return Destination{
		Remote: true,
		User:   user,
		Host:   host,
		Path:   path,
	}, nil
}

// String renders the destination back to its canonical form.
func (d Destination) String() string {
	if !d.Remote {
		return d.Path
	}
	if d.User != "" {
		return fmt.Sprintf("%s@%s:%s", d.User, d.Host, d.Path)
	}
	return fmt.Sprintf("%s:%s", d.Host, d.Path)
}
