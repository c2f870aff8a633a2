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
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/wojas/hashedbackup/internal/backend"
	"github.com/wojas/hashedbackup/internal/layout"
	"github.com/wojas/hashedbackup/internal/manifest"
	"github.com/wojas/hashedbackup/internal/uilog"
)

var doctorRehash bool

var doctorCmd = &cobra.Command{
	Use:   "doctor <dst>",
	Short: "Run read-only health checks against a repository",
	Long: `Run a read-only health check to confirm a repository is usable.

Doctor verifies:
  - the repository-config record exists with version 1
  - objects/, manifests/, and tmp/ are present and readable
  - every manifest ends with the eof trailer
  - (with --recheck) every stored object's bytes still hash back to its
    filename`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		be, repoRoot, err := resolveDestination(args[0])
		if err != nil {
			return err
		}

		if err := checkRepositoryValid(ctx, be, repoRoot); err != nil {
			return err
		}
		if err := checkManifests(ctx, be, repoRoot); err != nil {
			return err
		}
		if doctorRehash {
			if err := checkObjects(ctx, be, repoRoot); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)

	doctorCmd.Flags().BoolVar(&doctorRehash, "recheck", false,
		"rehash every stored object to check for bit rot")
}

func checkRepositoryValid(ctx context.Context, be backend.Backend, repoRoot string) error {
	uilog.Header("Repository Checks")
	uilog.Subtle("root: %s", repoRoot)
	uilog.Blank()

	if err := be.CheckValid(ctx, repoRoot); err != nil {
		uilog.Err("repository is not valid")
		uilog.Subtle("%v", err)
		uilog.Blank()
		return fmt.Errorf("repository check failed: %w", err)
	}
	uilog.OK("repository-config record present (version 1)")

	for _, dir := range []string{layout.ObjectsDir(repoRoot), layout.ManifestsDir(repoRoot), layout.TmpDir(repoRoot)} {
		if _, err := be.ListDir(ctx, dir); err != nil {
			uilog.Err("%s is missing or unreadable", dir)
			uilog.Subtle("%v", err)
			uilog.Blank()
			return fmt.Errorf("repository check failed: %w", err)
		}
	}
	uilog.OK("objects/, manifests/, and tmp/ present and readable")
	uilog.Blank()
	return nil
}

func checkManifests(ctx context.Context, be backend.Backend, repoRoot string) error {
	uilog.Header("Manifest Checks")

	namespaces, err := manifest.Namespaces(ctx, be, repoRoot)
	if err != nil {
		uilog.Err("could not list namespaces")
		uilog.Subtle("%v", err)
		uilog.Blank()
		return fmt.Errorf("list namespaces: %w", err)
	}

	var broken int
	var total int
	for _, ns := range namespaces {
		summaries, err := manifest.List(ctx, be, repoRoot, ns)
		if err != nil {
			uilog.Err("namespace %q: could not list manifests", ns)
			continue
		}
		for _, s := range summaries {
			total++
			if err := checkManifestEOF(ctx, be, s.Path); err != nil {
				broken++
				uilog.Err("%s: %v", s.Path, err)
			}
		}
	}

	if broken == 0 {
		uilog.OK("%d manifest(s) across %d namespace(s), all end with eof", total, len(namespaces))
	} else {
		uilog.Err("%d of %d manifests missing the eof trailer", broken, total)
	}
	uilog.Blank()

	if broken > 0 {
		return fmt.Errorf("%d manifests are truncated", broken)
	}
	return nil
}

func checkManifestEOF(ctx context.Context, be backend.Backend, path string) error {
	lastIsEOF := false
	err := manifest.Each(ctx, be, path, func(raw json.RawMessage) error {
		lastIsEOF = string(raw) == `{"eof":true}`
		return nil
	})
	if err != nil {
		return err
	}
	if !lastIsEOF {
		return fmt.Errorf("does not end with eof trailer")
	}
	return nil
}

func checkObjects(ctx context.Context, be backend.Backend, repoRoot string) error {
	uilog.Header("Object Integrity Checks (rehash)")

	var checked, mismatched int
	for _, bucket := range layout.Buckets {
		bucketDir := layout.ObjectsDir(repoRoot) + "/" + bucket
		isDir, err := be.IsDir(ctx, bucketDir)
		if err != nil || !isDir {
			continue
		}
		names, err := be.ListDir(ctx, bucketDir)
		if err != nil {
			uilog.Err("bucket %s: could not list", bucket)
			continue
		}
		for _, name := range names {
			checked++
			path := bucketDir + "/" + name
			sum, err := rehashObject(ctx, be, path)
			if err != nil {
				mismatched++
				uilog.Err("%s: %v", path, err)
				continue
			}
			if sum != name {
				mismatched++
				uilog.Err("%s: rehashes to %s", path, sum)
			}
		}
	}

	if mismatched == 0 {
		uilog.OK("%d object(s) rehashed, all match their filename", checked)
	} else {
		uilog.Err("%d of %d objects failed rehash verification", mismatched, checked)
	}
	uilog.Blank()

	if mismatched > 0 {
		return fmt.Errorf("%d corrupt objects found", mismatched)
	}
	return nil
}

func rehashObject(ctx context.Context, be backend.Backend, path string) (string, error) {
	f, err := be.Open(ctx, path, "r")
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
