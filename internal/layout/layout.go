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

// Package layout computes the on-disk paths of a repository: object
// buckets, manifest directories, and temp files. These are pure functions;
// they never touch the filesystem themselves.
package layout

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Buckets is the fixed list of two-character hex object bucket names,
// "00".."ff". v1 repositories use only this single-level form; an earlier
// variant conflated two- and four-character prefixes, which this layout
// does not reproduce.
var Buckets = func() []string {
	out := make([]string, 0, 256)
	const hex = "0123456789abcdef"
	for _, a := range hex {
		for _, b := range hex {
			out = append(out, string(a)+string(b))
		}
	}
	return out
}()

// ObjectsDir is the objects/ directory under a repository root.
func ObjectsDir(repoRoot string) string { return path.Join(repoRoot, "objects") }

// ObjectBucketDir is the two-character bucket directory for hash h.
func ObjectBucketDir(repoRoot, h string) string {
	return path.Join(ObjectsDir(repoRoot), h[:2])
}

// ObjectPath is the full path of the content object named by its hex MD5.
func ObjectPath(repoRoot, h string) (string, error) {
	if len(h) != 32 {
		return "", fmt.Errorf("layout: invalid md5 hex length %d for %q", len(h), h)
	}
	return path.Join(ObjectBucketDir(repoRoot, h), h), nil
}

// ManifestsDir is the manifests/ directory under a repository root.
func ManifestsDir(repoRoot string) string { return path.Join(repoRoot, "manifests") }

// ManifestDir is the per-namespace manifest directory.
func ManifestDir(repoRoot, namespace string) string {
	return path.Join(ManifestsDir(repoRoot), EncodeNamespace(namespace))
}

// TmpDir is the tmp/ directory under a repository root, used for
// in-progress manifest and object writes.
func TmpDir(repoRoot string) string { return path.Join(repoRoot, "tmp") }

// TempPath returns a fresh path under tmp/, named with a random UUID so
// that concurrent writers never collide.
func TempPath(repoRoot string) string {
	return path.Join(TmpDir(repoRoot), uuid.NewString())
}

// ConfigPath is the repository-config record, whose presence with
// version == 1 defines a valid repository.
func ConfigPath(repoRoot string) string { return path.Join(repoRoot, "hashedbackup.json") }

// ReadmePath is the repository README written at init time.
func ReadmePath(repoRoot string) string { return path.Join(repoRoot, "README.txt") }

// EncodeNamespace turns a user-chosen namespace string into a
// filesystem-safe, round-trip-decodable directory name: percent-encode,
// then substitute "%" with "=" (chosen because "=" never appears in
// percent-encoded output).
func EncodeNamespace(ns string) string {
	return strings.ReplaceAll(url.QueryEscape(ns), "%", "=")
}

// DecodeNamespace reverses EncodeNamespace.
func DecodeNamespace(encoded string) (string, error) {
	pct := strings.ReplaceAll(encoded, "=", "%")
	return url.QueryUnescape(pct)
}

// ManifestFileName formats the manifest filename for a UTC snapshot
// timestamp: YYYYMMDD-HHMMSS.manifest.bz2, sortable lexicographically by
// time.
func ManifestFileName(createdUTC string) string {
	return createdUTC + ".manifest.bz2"
}
