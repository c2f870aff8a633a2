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

	"github.com/wojas/hashedbackup/internal/completion"
	"github.com/wojas/hashedbackup/internal/manifest"
)

var listManifestsNamespace string

var listManifestsCmd = &cobra.Command{
	Use:   "list-manifests <dst>",
	Short: "List the manifests stored in a repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		be, repoRoot, err := resolveDestination(args[0])
		if err != nil {
			return err
		}

		namespaces := []string{listManifestsNamespace}
		if listManifestsNamespace == "" {
			namespaces, err = manifest.Namespaces(ctx, be, repoRoot)
			if err != nil {
				return fmt.Errorf("list-manifests: %w", err)
			}
		}

		rows := [][]string{}
		for _, ns := range namespaces {
			summaries, err := manifest.List(ctx, be, repoRoot, ns)
			if err != nil {
				return fmt.Errorf("list-manifests: %w", err)
			}
			for _, s := range summaries {
				age := time.Since(s.Created).Round(time.Second)
				rows = append(rows, []string{
					fmt.Sprintf(" %s ", s.Namespace),
					fmt.Sprintf(" %s ", s.FileName),
					fmt.Sprintf(" %s ", s.Created.Format(time.RFC3339)),
					fmt.Sprintf(" %s ", age),
				})
			}
		}

		t := table.New().
			Headers(" Namespace ", " Manifest ", " Created ", " Age ").
			Rows(rows...)
		fmt.Println(t)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(listManifestsCmd)

	listManifestsCmd.Flags().StringVarP(&listManifestsNamespace, "namespace", "n", "",
		"restrict to a single namespace")

	listManifestsCmd.RegisterFlagCompletionFunc("namespace",
		func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			if len(args) < 1 {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			be, repoRoot, err := resolveDestination(args[0])
			if err != nil {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			return completion.Namespaces(be, repoRoot, toComplete)
		})
}
