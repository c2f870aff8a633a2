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

	"github.com/spf13/cobra"

	"github.com/wojas/hashedbackup/internal/repo"
	"github.com/wojas/hashedbackup/internal/uilog"
)

var initCmd = &cobra.Command{
	Use:   "init <dst>",
	Short: "Create a fresh repository",
	Long: `Create a fresh repository at dst.

If dst does not exist, it is created (its parent must already exist). If dst
exists, it must be an empty directory. This command creates the 256 object
buckets, manifests/, tmp/, README.txt, and finally hashedbackup.json, whose
presence with version 1 is what makes the repository valid.`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		be, repoRoot, err := resolveDestination(args[0])
		if err != nil {
			return err
		}

		if err := repo.Init(context.Background(), be, repoRoot); err != nil {
			return fmt.Errorf("init: %w", err)
		}

		uilog.OK("initialized repository at %s", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
