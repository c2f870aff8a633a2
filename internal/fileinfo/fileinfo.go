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

// Package fileinfo stats source files and maintains the extended-attribute
// hash cache described in the repository data model: a per-file xattr
// record keyed by (mtime_ns, size) that lets repeat snapshots skip
// re-reading unchanged files.
package fileinfo

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"syscall"

	"github.com/pkg/xattr"

	"github.com/wojas/hashedbackup/internal/hashio"
	"github.com/wojas/hashedbackup/internal/idcache"
)

// XattrName is the extended attribute holding the JSON-encoded hash cache
// record. The field names are preserved for cross-compatibility with
// existing repositories and tooling that inspect this attribute directly.
const XattrName = "nl.wojas.hashedbackup"

// ExcludeXattrs are the extended attributes that, if present on a path,
// cause it to be excluded from a snapshot.
var ExcludeXattrs = []string{
	"com.apple.metadata:com_apple_backup_excludeItem",
	"nl.wojas.hashedbackup.exclude",
}

// Info is the result of inspecting a source path.
type Info struct {
	Path      string
	Size      int64
	MtimeNs   int64
	Mode      uint32 // POSIX permission bits as decimal-octal, e.g. 0o755 -> 755
	Uid       uint32
	Gid       uint32
	IsRegular bool
}

// Inspect stats path and returns its metadata, following symlinks: a
// symlink to a regular file is inspected as that file, and a dangling
// symlink fails with an error satisfying os.IsNotExist so the walk can
// report it as a broken symlink rather than aborting.
func Inspect(path string) (Info, error) {
	st, err := os.Stat(path)
	if err != nil {
		return Info{}, err
	}

	sys, ok := st.Sys().(*syscall.Stat_t)
	if !ok {
		return Info{}, fmt.Errorf("fileinfo: unsupported platform stat for %s", path)
	}

	return Info{
		Path:      path,
		Size:      st.Size(),
		MtimeNs:   sys.Mtim.Sec*1_000_000_000 + sys.Mtim.Nsec,
		Mode:      decimalOctal(uint32(st.Mode().Perm())),
		Uid:       sys.Uid,
		Gid:       sys.Gid,
		IsRegular: st.Mode().IsRegular(),
	}, nil
}

// decimalOctal turns POSIX permission bits into their decimal representation
// of the octal digits, e.g. 0o755 (493 decimal) becomes 755.
func decimalOctal(perm uint32) uint32 {
	var out uint32
	var mult uint32 = 1
	for perm > 0 {
		out += (perm % 8) * mult
		perm /= 8
		mult *= 10
	}
	return out
}

// User resolves the owning user name for info, or nil if unresolvable.
func (i Info) User() *string { return idcache.UserName(i.Uid) }

// Group resolves the owning group name for info, or nil if unresolvable.
func (i Info) Group() *string { return idcache.GroupName(i.Gid) }

// cacheRecord is the xattr-encoded hash cache record. Field names are part
// of the on-disk contract and must not change.
type cacheRecord struct {
	Mt   int64  `json:"mt"`
	Mtns int64  `json:"mtns"`
	Size int64  `json:"size"`
	MD5  string `json:"md5"`
}

// Hash returns the MD5 content hash of the file described by info, reusing
// the xattr cache when it is valid for the file's current size and
// mtime_ns. The bool return reports whether the cache was used.
func Hash(ctx context.Context, info Info) (digestHex string, fromCache bool, err error) {
	if rec, ok := readCache(info.Path); ok {
		if rec.Size == info.Size && rec.Mt*1_000_000_000+rec.Mtns == info.MtimeNs {
			return rec.MD5, true, nil
		}
	}

	digestHex, _, err = hashio.HashFile(ctx, info.Path)
	if err != nil {
		return "", false, err
	}

	writeCache(info.Path, cacheRecord{
		Mt:   info.MtimeNs / 1_000_000_000,
		Mtns: info.MtimeNs % 1_000_000_000,
		Size: info.Size,
		MD5:  digestHex,
	})

	return digestHex, false, nil
}

func readCache(path string) (cacheRecord, bool) {
	raw, err := xattr.Get(path, XattrName)
	if err != nil {
		return cacheRecord{}, false
	}
	var rec cacheRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return cacheRecord{}, false
	}
	return rec, true
}

// writeCache best-effort persists the hash cache record. Failures (e.g. a
// filesystem without xattr support, or a read-only source) are not fatal:
// the next snapshot will simply recompute the hash.
func writeCache(path string, rec cacheRecord) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := xattr.Set(path, XattrName, raw); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to write hash cache xattr on %s: %v\n", path, err)
	}
}

// IsExcluded reports whether path carries any of the extended attributes
// that mark it (or its directory) as excluded from snapshots.
func IsExcluded(path string) bool {
	for _, name := range ExcludeXattrs {
		if _, err := xattr.Get(path, name); err == nil {
			return true
		}
	}
	return false
}
