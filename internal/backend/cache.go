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

import "sync"

// Opener constructs a Backend for a parsed destination. It is supplied by
// the caller (cmd package) so this package does not import the local/
// sftpremote implementations directly, avoiding an import cycle.
type Opener func(Destination) (Backend, error)

// Cache maps a destination string to a live Backend instance, so that
// list-manifests and backup within a single backup-profile run reuse the
// same connection (and, for the remote backend, the same SSH session).
// Lifetime is the process.
type Cache struct {
	mu       sync.Mutex
	open     Opener
	backends map[string]Backend
	noCache  bool
}

// NewCache builds a cache that uses open to construct new backends on a
// miss. Set noCache to disable reuse entirely, so that every Get opens a
// fresh backend.
func NewCache(open Opener, noCache bool) *Cache {
	return &Cache{
		open:     open,
		backends: make(map[string]Backend),
		noCache:  noCache,
	}
}

// Get returns the cached backend for dest, opening and storing a new one
// on a miss.
func (c *Cache) Get(dest Destination) (Backend, error) {
	key := dest.String()

	if !c.noCache {
		c.mu.Lock()
		b, ok := c.backends[key]
		c.mu.Unlock()
		if ok {
			return b, nil
		}
	}

	b, err := c.open(dest)
	if err != nil {
		return nil, err
	}

	if !c.noCache {
		c.mu.Lock()
		c.backends[key] = b
		c.mu.Unlock()
	}

	return b, nil
}

// CloseAll closes every backend currently held by the cache.
func (c *Cache) CloseAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range c.backends {
		_ = b.Close()
	}
	c.backends = make(map[string]Backend)
}
