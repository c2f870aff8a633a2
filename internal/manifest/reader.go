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

package manifest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dsnet/compress/bzip2"

	"github.com/wojas/hashedbackup/internal/backend"
	"github.com/wojas/hashedbackup/internal/layout"
)

// ManifestFilenameLayout is the Go reference-time layout matching the
// "YYYYMMDD-HHMMSS" timestamp component of a manifest filename.
const ManifestFilenameLayout = "20060102-150405"

// Summary describes one manifest file without fully decoding it: enough to
// list and sort manifests for a namespace.
type Summary struct {
	Namespace string
	FileName  string
	Path      string
	Created   time.Time
}

// List returns the manifests for namespace under repoRoot, sorted oldest
// first (manifest filenames sort chronologically by construction).
func List(ctx context.Context, be backend.Backend, repoRoot, namespace string) ([]Summary, error) {
	dir := layout.ManifestDir(repoRoot, namespace)

	isDir, err := be.IsDir(ctx, dir)
	if err != nil {
		return nil, err
	}
	if !isDir {
		return nil, nil
	}

	names, err := be.ListDir(ctx, dir)
	if err != nil {
		return nil, err
	}

	out := make([]Summary, 0, len(names))
	for _, name := range names {
		ts, ok := strings.CutSuffix(name, ".manifest.bz2")
		if !ok {
			continue
		}
		created, err := time.Parse(ManifestFilenameLayout, ts)
		if err != nil {
			continue
		}
		out = append(out, Summary{
			Namespace: namespace,
			FileName:  name,
			Path:      dir + "/" + name,
			Created:   created.UTC(),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Created.Before(out[j].Created) })
	return out, nil
}

// Newest returns the most recent manifest for namespace, or ok=false if
// none exist.
func Newest(ctx context.Context, be backend.Backend, repoRoot, namespace string) (Summary, bool, error) {
	all, err := List(ctx, be, repoRoot, namespace)
	if err != nil {
		return Summary{}, false, err
	}
	if len(all) == 0 {
		return Summary{}, false, nil
	}
	return all[len(all)-1], true, nil
}

// Namespaces lists every namespace directory under repoRoot's manifests/,
// decoded back to their original strings.
func Namespaces(ctx context.Context, be backend.Backend, repoRoot string) ([]string, error) {
	names, err := be.ListDir(ctx, layout.ManifestsDir(repoRoot))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(names))
	for _, encoded := range names {
		ns, err := layout.DecodeNamespace(encoded)
		if err != nil {
			continue
		}
		out = append(out, ns)
	}
	sort.Strings(out)
	return out, nil
}

// Each opens the manifest at path and invokes fn for every decoded record
// in order (header, directory/file entries, trailer). It stops and returns
// fn's error if fn returns non-nil.
func Each(ctx context.Context, be backend.Backend, path string, fn func(raw json.RawMessage) error) error {
	f, err := be.Open(ctx, path, "r")
	if err != nil {
		return fmt.Errorf("manifest: open %s: %w", path, err)
	}
	defer f.Close()

	bz, err := bzip2.NewReader(f, nil)
	if err != nil {
		return fmt.Errorf("manifest: init bzip2 reader: %w", err)
	}
	defer bz.Close()

	scanner := bufio.NewScanner(bz)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(json.RawMessage(append([]byte(nil), line...))); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		if err == io.ErrUnexpectedEOF {
			return fmt.Errorf("manifest: truncated manifest %s", path)
		}
		return fmt.Errorf("manifest: read %s: %w", path, err)
	}

	return nil
}
