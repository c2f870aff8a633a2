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

// Package pathutil collects small, pure path helpers shared by the CLI and
// the snapshot engine: containment checks, home-directory expansion, and
// best-effort canonicalization.
package pathutil

import (
	"os"
	"path/filepath"
	"strings"
)

// IsUnderDir reports whether path resides within dir.
//
// Both are first made absolute, then the relative path from dir to path is
// computed. A leading ".." in that relative path means path escapes dir.
// This avoids unsafe prefix checks like strings.HasPrefix(path, dir), which
// can produce false positives (e.g. "/src/backup-old" vs "/src/backup") and
// mishandles ".." traversal.
//
// Symlinks are not resolved; callers that need symlink-aware containment
// should run both paths through filepath.EvalSymlinks first.
func IsUnderDir(path, dir string) (bool, error) {
	ap, err := filepath.Abs(path)
	if err != nil {
		return false, err
	}

	ad, err := filepath.Abs(dir)
	if err != nil {
		return false, err
	}

	rel, err := filepath.Rel(ad, ap)
	if err != nil {
		return false, err
	}

	if rel == "." {
		return true, nil
	}

	if strings.HasPrefix(rel, ".."+string(filepath.Separator)) || rel == ".." {
		return false, nil
	}

	if filepath.IsAbs(rel) {
		return false, nil
	}

	return true, nil
}

// ExpandHome replaces a leading "~" in p with the current user's home
// directory. Paths not starting with "~" are returned unchanged.
func ExpandHome(p string) string {
	if p == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
		return p
	}

	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}

	return p
}

// CanonicalizeBestEffort resolves symlinks in p, falling back to the
// absolute path unchanged if resolution fails (e.g. a dangling symlink
// component, or a filesystem that doesn't support it).
func CanonicalizeBestEffort(p string) (string, error) {
	ap, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}

	resolved, err := filepath.EvalSymlinks(ap)
	if err != nil {
		return ap, nil
	}

	return resolved, nil
}
