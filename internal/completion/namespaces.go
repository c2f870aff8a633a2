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

// Package completion provides shell completion candidates for values that
// live inside a repository rather than in a static flag set.
package completion

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wojas/hashedbackup/internal/backend"
	"github.com/wojas/hashedbackup/internal/manifest"
)

// Namespaces completes the namespace flag of backup/list-manifests by
// listing the namespaces already present under repoRoot's manifests/ on be,
// keeping those that start with toComplete (case-insensitively). File
// completion is always disabled; when the namespaces cannot be listed, no
// candidates are returned, since a lookup failure shouldn't fall back to
// completing local filenames.
func Namespaces(be backend.Backend, repoRoot string, toComplete string) ([]string, cobra.ShellCompDirective) {
	namespaces, err := manifest.Namespaces(context.Background(), be, repoRoot)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	needle := strings.ToLower(toComplete)
	out := make([]string, 0, len(namespaces))
	for _, ns := range namespaces {
		if strings.HasPrefix(strings.ToLower(ns), needle) {
			out = append(out, ns)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}
