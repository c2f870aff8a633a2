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
	"errors"
	"fmt"
	"os"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile    string
	verbose    bool
	debug      bool
	progress   bool
	noColor    bool
	logUploads bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "hashedbackup",
	Short: "Content-addressed file backup engine",
	Long: `hashedbackup snapshots a source directory tree to a repository where
every distinct file is stored once, keyed by its content hash. Repositories
live either on the local filesystem or on a remote host reached over SFTP.`,
	Version: "1.0.0",
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen
// once to rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initColorProfile)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $XDG_CONFIG_HOME/hashedbackup/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"enable debug output")
	rootCmd.PersistentFlags().BoolVar(&progress, "progress", false,
		"show a live progress line while walking the source tree")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false,
		"disable styled/colored output")
	rootCmd.PersistentFlags().BoolVarP(&logUploads, "uploaded", "u", false,
		"log each newly uploaded file")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		viper.SetConfigType("toml")

		if err := viper.ReadInConfig(); err != nil {
			cobra.CheckErr(err)
		}

		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
		return
	}

	defaultPath, err := xdg.ConfigFile("hashedbackup/config.toml")
	cobra.CheckErr(err)

	if _, err := os.Stat(defaultPath); errors.Is(err, os.ErrNotExist) {
		return // default config file doesn't exist -- use built-in defaults
	}

	viper.SetConfigFile(defaultPath)
	viper.SetConfigType("toml")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return
		}
		cobra.CheckErr(err)
		return
	}

	if verbose {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// initColorProfile disables styled output when --no-color is set, the same
// way the teacher's CLI deferred to lipgloss's own renderer rather than
// hand-rolling ANSI stripping.
func initColorProfile() {
	if noColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}
