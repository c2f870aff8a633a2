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

// Package profile reads the INI-style ~/.hashedbackup/profiles file that
// lets backup-profile run a named src/dst/namespace combination without
// repeating it on the command line every time.
package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/wojas/hashedbackup/internal/pathutil"
)

// Profile is one [name] section of the profiles file, fully resolved:
// src and a leading ~ in dst are expanded, namespace is taken verbatim.
type Profile struct {
	Name      string
	Src       string
	Dst       string
	Namespace string
	Symlink   bool
	Hardlink  bool
}

// requiredKeys are the profile keys that must be present and non-empty.
var requiredKeys = []string{"src", "dst", "namespace"}

// ExamplePath is the default location of the profiles file, before "~" is
// expanded by DefaultPath. Load itself always reads the path it is given.
const ExamplePath = "~/.hashedbackup/profiles"

// DefaultPath returns the expanded path to the user's profiles file.
func DefaultPath() string {
	return pathutil.ExpandHome(ExamplePath)
}

// Load reads and parses the profiles file at path. A missing file is not
// an error: it is treated the same as a file with zero sections, so a
// fresh install's `backup-profile` can print the "no profiles found" help
// text instead of failing outright.
func Load(path string) (map[string]Profile, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return map[string]Profile{}, nil
		}
		return nil, fmt.Errorf("profile: stat %s: %w", path, err)
	}

	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("profile: parse %s: %w", path, err)
	}

	out := make(map[string]Profile)
	for _, section := range cfg.Sections() {
		if section.Name() == ini.DefaultSection {
			continue
		}
		out[section.Name()] = sectionToProfile(section)
	}
	return out, nil
}

func sectionToProfile(section *ini.Section) Profile {
	dst := section.Key("dst").String()
	if strings.HasPrefix(dst, "~") {
		dst = pathutil.ExpandHome(dst)
	}
	return Profile{
		Name:      section.Name(),
		Src:       pathutil.ExpandHome(section.Key("src").String()),
		Dst:       dst,
		Namespace: section.Key("namespace").String(),
		Symlink:   section.Key("symlink").MustBool(false),
		Hardlink:  section.Key("hardlink").MustBool(false),
	}
}

// Validate reports the first missing required key, if any, naming it the
// way backup-profile surfaces it to the user (InvalidConfig).
func (p Profile) Validate() error {
	values := map[string]string{"src": p.Src, "dst": p.Dst, "namespace": p.Namespace}
	for _, key := range requiredKeys {
		if values[key] == "" {
			return fmt.Errorf("profile %q missing required key %q", p.Name, key)
		}
	}
	if p.Symlink && p.Hardlink {
		return fmt.Errorf("profile %q sets both symlink and hardlink", p.Name)
	}
	return nil
}

// Names returns the names of profiles, sorted for stable listing.
func Names(profiles map[string]Profile) []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve looks up name. When the profile does not exist, the error names
// the profile and the profiles file; it does not include an example section.
func Resolve(profiles map[string]Profile, name string) (Profile, error) {
	p, ok := profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("profile %q not found in %s", name, filepath.Base(DefaultPath()))
	}
	return p, nil
}
