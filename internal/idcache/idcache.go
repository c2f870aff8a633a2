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

// Package idcache resolves numeric uid/gid values to names, caching misses
// as well as hits for the lifetime of the process. Every hash operation in
// a run shares the same cache.
package idcache

import (
	"os/user"
	"strconv"
	"sync"
)

var (
	mu        sync.Mutex
	userNames = map[uint32]*string{}
	groupNames = map[uint32]*string{}
)

// UserName returns the name for uid, or nil if it cannot be resolved.
func UserName(uid uint32) *string {
	mu.Lock()
	if name, ok := userNames[uid]; ok {
		mu.Unlock()
		return name
	}
	mu.Unlock()

	var resolved *string
	if u, err := user.LookupId(strconv.FormatUint(uint64(uid), 10)); err == nil {
		name := u.Username
		resolved = &name
	}

	mu.Lock()
	userNames[uid] = resolved
	mu.Unlock()
	return resolved
}

// GroupName returns the name for gid, or nil if it cannot be resolved.
func GroupName(gid uint32) *string {
	mu.Lock()
	if name, ok := groupNames[gid]; ok {
		mu.Unlock()
		return name
	}
	mu.Unlock()

	var resolved *string
	if g, err := user.LookupGroupId(strconv.FormatUint(uint64(gid), 10)); err == nil {
		name := g.Name
		resolved = &name
	}

	mu.Lock()
	groupNames[gid] = resolved
	mu.Unlock()
	return resolved
}
