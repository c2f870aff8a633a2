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
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/wojas/hashedbackup/internal/completion"
	"github.com/wojas/hashedbackup/internal/snapshot"
	"github.com/wojas/hashedbackup/internal/uilog"
)

var (
	backupNamespace   string
	backupSymlink     bool
	backupHardlink    bool
	backupIfOlderThan string
)

var backupCmd = &cobra.Command{
	Use:   "backup <src> <dst>",
	Short: "Snapshot src into the repository at dst",
	Long: `Walk src, hash and deduplicate its files against the repository at dst, and
publish a new manifest under the given namespace.`,
	Args:         cobra.ExactArgs(2),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		be, repoRoot, err := resolveDestination(args[1])
		if err != nil {
			return err
		}

		var ifOlderThan time.Duration
		if backupIfOlderThan != "" {
			ifOlderThan, err = time.ParseDuration(backupIfOlderThan)
			if err != nil {
				return fmt.Errorf("invalid --if-older-than duration: %w", err)
			}
		}

		var prog *uilog.Progress
		if progress {
			p := uilog.NewProgress("backup:", false)
			prog = p
		}

		result, err := snapshot.Run(ctx, be, repoRoot, snapshot.Config{
			SourceRoot:  args[0],
			Namespace:   backupNamespace,
			Symlink:     backupSymlink,
			Hardlink:    backupHardlink,
			IfOlderThan: ifOlderThan,
			LogUploaded: logUploads,
			Progress:    prog,
		})
		if err != nil {
			return err
		}

		if result.Skipped {
			uilog.OK("skipped: last manifest for %q is still recent enough", backupNamespace)
			return nil
		}

		uilog.Header("Backup summary")
		uilog.Subtle("manifest: %s", result.ManifestPath)
		uilog.Subtle("total size: %s", uilog.FormatSize(result.TotalBytes))
		uilog.Subtle("hashes from cache: %d, recomputed: %d", result.NCached, result.NUpdated)
		uilog.Subtle("objects added: %d, already present: %d", result.NObjectsAdded, result.NObjectsExist)
		uilog.Subtle("uploaded: %s", uilog.FormatSize(result.UploadedBytes))
		uilog.Subtle("elapsed: %s", result.Duration.Round(time.Millisecond))

		return nil
	},
}

func init() {
	rootCmd.AddCommand(backupCmd)

	backupCmd.Flags().StringVarP(&backupNamespace, "namespace", "n", "",
		"backup namespace (required)")
	backupCmd.Flags().BoolVar(&backupSymlink, "symlink", false,
		"symlink objects instead of copying (test/experiment only, unsafe for real backups)")
	backupCmd.Flags().BoolVar(&backupHardlink, "hardlink", false,
		"hardlink objects instead of copying (same filesystem only, unsafe)")
	backupCmd.Flags().StringVar(&backupIfOlderThan, "if-older-than", "",
		"skip the backup if the last manifest in this namespace is younger than this duration (e.g. 24h)")

	backupCmd.MarkFlagsMutuallyExclusive("symlink", "hardlink")
	cobra.CheckErr(backupCmd.MarkFlagRequired("namespace"))

	backupCmd.RegisterFlagCompletionFunc("namespace",
		func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			if len(args) < 2 {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			be, repoRoot, err := resolveDestination(args[1])
			if err != nil {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			return completion.Namespaces(be, repoRoot, toComplete)
		})
}
