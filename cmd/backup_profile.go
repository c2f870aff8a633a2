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
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/wojas/hashedbackup/internal/manifest"
	"github.com/wojas/hashedbackup/internal/profile"
	"github.com/wojas/hashedbackup/internal/snapshot"
	"github.com/wojas/hashedbackup/internal/uilog"
)

var (
	backupProfileShowAge bool
	backupProfileList    bool
)

var exampleProfileSection = `[pictures]
src=~/Pictures
dst=myserver:backups/pictures
namespace=laptop-pictures`

var backupProfileCmd = &cobra.Command{
	Use:   "backup-profile [name]",
	Short: "Run backups described in ~/.hashedbackup/profiles",
	Long: `Run the backup described by the named section of ~/.hashedbackup/profiles.

With no name, every profile section is run in turn: a failure in one profile
is logged and does not stop the others, and a pass/fail summary is printed
at the end. Pass --list to print the configured profiles instead of running
them.`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		profiles, err := profile.Load(profile.DefaultPath())
		if err != nil {
			return fmt.Errorf("backup-profile: %w", err)
		}

		if backupProfileList {
			showProfiles(profiles)
			return nil
		}

		if len(args) == 1 {
			p, err := profile.Resolve(profiles, args[0])
			if err != nil {
				uilog.Err("%v", err)
				showProfiles(profiles)
				return fmt.Errorf("profile %q not found", args[0])
			}
			return runProfile(p)
		}

		return runAllProfiles(profiles)
	},
}

func init() {
	rootCmd.AddCommand(backupProfileCmd)

	backupProfileCmd.Flags().BoolVar(&backupProfileShowAge, "age", false,
		"show the age of each profile's last backup")
	backupProfileCmd.Flags().BoolVar(&backupProfileList, "list", false,
		"list configured profiles instead of running them")
}

func showProfiles(profiles map[string]profile.Profile) {
	names := profile.Names(profiles)
	if len(names) == 0 {
		fmt.Printf("No profiles found in %s\n\n", profile.DefaultPath())
		fmt.Println("You can create this file and add sections like this for all your")
		fmt.Println("different backups:")
		fmt.Println()
		fmt.Println(exampleProfileSection)
		fmt.Println()
		fmt.Println("Now you only need to run this to perform another backup:")
		fmt.Println()
		fmt.Println("hashedbackup backup-profile pictures")
		return
	}

	headers := []string{" Profile ", " Src ", " Dst ", " Namespace "}
	if backupProfileShowAge {
		headers = append(headers, " Age of last backup ")
	}

	rows := [][]string{}
	for _, name := range names {
		p := profiles[name]
		row := []string{
			fmt.Sprintf(" %s ", p.Name),
			fmt.Sprintf(" %s ", p.Src),
			fmt.Sprintf(" %s ", p.Dst),
			fmt.Sprintf(" %s ", p.Namespace),
		}
		if backupProfileShowAge {
			row = append(row, fmt.Sprintf(" %s ", ageOfLastBackup(p)))
		}
		rows = append(rows, row)
	}

	t := table.New().Headers(headers...).Rows(rows...)
	fmt.Println(t)
}

func ageOfLastBackup(p profile.Profile) string {
	be, repoRoot, err := resolveDestination(p.Dst)
	if err != nil {
		return "?"
	}
	newest, ok, err := manifest.Newest(context.Background(), be, repoRoot, p.Namespace)
	if err != nil || !ok {
		return "never"
	}
	return time.Since(newest.Created).Round(time.Second).String()
}

// runAllProfiles runs every configured profile in turn. A single profile's
// failure is reported and does not stop the rest; the final summary table
// reports pass/fail for each.
func runAllProfiles(profiles map[string]profile.Profile) error {
	names := profile.Names(profiles)
	if len(names) == 0 {
		showProfiles(profiles)
		return nil
	}

	type outcome struct {
		name    string
		ok      bool
		message string
	}
	var outcomes []outcome
	failed := 0

	for _, name := range names {
		p := profiles[name]
		uilog.Header(fmt.Sprintf("Profile: %s", name))
		if err := runProfile(p); err != nil {
			uilog.Err("%v", err)
			outcomes = append(outcomes, outcome{name: name, ok: false, message: err.Error()})
			failed++
		} else {
			outcomes = append(outcomes, outcome{name: name, ok: true, message: "ok"})
		}
		uilog.Blank()
	}

	rows := [][]string{}
	for _, o := range outcomes {
		status := "✓"
		if !o.ok {
			status = "✗"
		}
		rows = append(rows, []string{
			fmt.Sprintf(" %s ", o.name),
			fmt.Sprintf(" %s ", status),
			fmt.Sprintf(" %s ", o.message),
		})
	}
	t := table.New().Headers(" Profile ", " Status ", " Detail ").Rows(rows...)
	fmt.Println(t)

	if failed > 0 {
		return fmt.Errorf("%d of %d profiles failed", failed, len(names))
	}
	return nil
}

func runProfile(p profile.Profile) error {
	if err := p.Validate(); err != nil {
		fmt.Println("Example section:")
		fmt.Println(exampleProfileSection)
		return err
	}

	be, repoRoot, err := resolveDestination(p.Dst)
	if err != nil {
		return err
	}

	var prog *uilog.Progress
	if progress {
		prog = uilog.NewProgress("backup:", false)
	}

	result, err := snapshot.Run(context.Background(), be, repoRoot, snapshot.Config{
		SourceRoot:  p.Src,
		Namespace:   p.Namespace,
		Symlink:     p.Symlink,
		Hardlink:    p.Hardlink,
		LogUploaded: logUploads,
		Progress:    prog,
	})
	if err != nil {
		return fmt.Errorf("profile %q: %w", p.Name, err)
	}

	if result.Skipped {
		uilog.OK("profile %q: skipped (recent manifest exists)", p.Name)
		return nil
	}

	uilog.OK("profile %q: %d added, %d already present, %s uploaded",
		p.Name, result.NObjectsAdded, result.NObjectsExist, uilog.FormatSize(result.UploadedBytes))
	return nil
}
