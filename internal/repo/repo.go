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

// Package repo initializes a fresh repository layout.
package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/wojas/hashedbackup/internal/backend"
	"github.com/wojas/hashedbackup/internal/layout"
)

const readmeText = `This is a hashedbackup repository.

Do not edit, move, or delete files under objects/ or manifests/ by hand.
See https://github.com/wojas/hashedbackup for details on the repository
layout and how to restore from a manifest.
`

// configRecord is the repository-config record. Its presence with
// version == 1 is what makes a repository valid; it is written last during
// Init so an interrupted initialization never leaves a directory that looks
// valid but isn't.
type configRecord struct {
	Version int `json:"version"`
}

// Init creates a fresh repository layout at repoRoot on be.
//
// If repoRoot does not exist, it is created, but its parent must already
// exist. If repoRoot exists, it must be an empty directory. The 256 object
// buckets, manifests/, and tmp/ are created, README.txt is written, and
// finally hashedbackup.json is written with {"version":1} — last, because
// its presence defines a valid repository.
func Init(ctx context.Context, be backend.Backend, repoRoot string) error {
	exists, err := be.Exists(ctx, repoRoot)
	if err != nil {
		return fmt.Errorf("repo: check destination: %w", err)
	}

	if !exists {
		parent := filepath.Dir(repoRoot)
		parentExists, err := be.Exists(ctx, parent)
		if err != nil {
			return fmt.Errorf("repo: check parent %s: %w", parent, err)
		}
		if !parentExists {
			return fmt.Errorf("repo: parent directory %s does not exist", parent)
		}
		if !be.TryMkdir(ctx, repoRoot) {
			return fmt.Errorf("repo: failed to create %s", repoRoot)
		}
	} else {
		isDir, err := be.IsDir(ctx, repoRoot)
		if err != nil {
			return fmt.Errorf("repo: stat destination: %w", err)
		}
		if !isDir {
			return fmt.Errorf("repo: destination %s exists and is not a directory", repoRoot)
		}

		entries, err := be.ListDir(ctx, repoRoot)
		if err != nil {
			return fmt.Errorf("repo: list destination: %w", err)
		}
		if len(entries) > 0 {
			return fmt.Errorf("repo: destination %s exists and is not empty", repoRoot)
		}
	}

	if !be.TryMkdir(ctx, layout.ObjectsDir(repoRoot)) {
		return fmt.Errorf("repo: failed to create objects directory")
	}
	for _, bucket := range layout.Buckets {
		if !be.TryMkdir(ctx, layout.ObjectsDir(repoRoot)+"/"+bucket) {
			return fmt.Errorf("repo: failed to create object bucket %s", bucket)
		}
	}

	if !be.TryMkdir(ctx, layout.ManifestsDir(repoRoot)) {
		return fmt.Errorf("repo: failed to create manifests directory")
	}

	if !be.TryMkdir(ctx, layout.TmpDir(repoRoot)) {
		return fmt.Errorf("repo: failed to create tmp directory")
	}

	if err := writeFile(ctx, be, repoRoot, layout.ReadmePath(repoRoot), []byte(readmeText)); err != nil {
		return fmt.Errorf("repo: write README.txt: %w", err)
	}

	cfg, err := json.Marshal(configRecord{Version: 1})
	if err != nil {
		return err
	}
	if err := writeFile(ctx, be, repoRoot, layout.ConfigPath(repoRoot), cfg); err != nil {
		return fmt.Errorf("repo: write hashedbackup.json: %w", err)
	}

	return nil
}

// writeFile publishes data at finalPath by way of a fresh temp file and an
// atomic rename, the same publish-by-rename discipline the manifest writer
// and object store use.
func writeFile(ctx context.Context, be backend.Backend, repoRoot, finalPath string, data []byte) error {
	tmpPath := be.TempPath(repoRoot)

	f, err := be.Open(ctx, tmpPath, "w")
	if err != nil {
		return err
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	return be.Rename(ctx, tmpPath, finalPath)
}

