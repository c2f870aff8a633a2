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

// Package uilog provides the styled, human-readable console output shared
// by every subcommand: section headers, status lines, and progress
// reporting for long-running walks.
package uilog

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

// Header prints a bold section title on its own line.
func Header(title string) {
	fmt.Println(headerStyle.Render(title))
}

// Subtle prints a dimmed detail line, indented two spaces.
func Subtle(format string, args ...any) {
	fmt.Println(subtleStyle.Render("  " + fmt.Sprintf(format, args...)))
}

// OK prints a green checkmark status line.
func OK(format string, args ...any) {
	fmt.Println(okStyle.Render("  ✓ " + fmt.Sprintf(format, args...)))
}

// Warn prints a yellow warning status line.
func Warn(format string, args ...any) {
	fmt.Println(warnStyle.Render("  ! " + fmt.Sprintf(format, args...)))
}

// Err prints a red error status line to stderr.
func Err(format string, args ...any) {
	fmt.Fprintln(os.Stderr, errStyle.Render("  ✗ "+fmt.Sprintf(format, args...)))
}

// Blank prints an empty line, used to separate sections.
func Blank() {
	fmt.Println()
}

// Progress reports incremental walk progress to stderr without disturbing
// stdout, overwriting its own line. Call Done when the walk finishes.
type Progress struct {
	label    string
	lastLen  int
	suppress bool
}

// NewProgress returns a Progress reporter. When quiet is true, Report and
// Done are no-ops.
func NewProgress(label string, quiet bool) *Progress {
	return &Progress{label: label, suppress: quiet}
}

// Report overwrites the current progress line with an updated count and
// the current path being processed.
func (p *Progress) Report(count int, size int64, current string) {
	if p.suppress {
		return
	}
	line := fmt.Sprintf("\r%s %s (%d files, %s)%s", p.label, subtleStyle.Render(current), count, FormatSize(size), clearPad(p.lastLen, current))
	fmt.Fprint(os.Stderr, line)
	p.lastLen = len(current)
}

// Done clears the progress line.
func (p *Progress) Done() {
	if p.suppress {
		return
	}
	fmt.Fprint(os.Stderr, "\r"+spaces(p.lastLen+40)+"\r")
}

func clearPad(prevLen int, current string) string {
	pad := prevLen - len(current)
	if pad <= 0 {
		return ""
	}
	return spaces(pad)
}

func spaces(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, n)
	for i := range b {
		b[i] = ' '
	}
	return string(b)
}

// byteUnits mirrors the decimal (1000-based) suffixes hashedbackup's
// original implementation used for human-readable sizes.
var byteUnits = []string{"B", "KB", "MB", "GB", "TB", "PB"}

// FormatSize renders n bytes the way the original CLI's human-readable
// byte formatter did: decimal (1000-based) units, one decimal place above
// the smallest unit.
func FormatSize(n int64) string {
	if n < 1000 {
		return fmt.Sprintf("%d B", n)
	}
	f := float64(n)
	unit := 0
	for f >= 1000 && unit < len(byteUnits)-1 {
		f /= 1000
		unit++
	}
	return fmt.Sprintf("%.1f %s", f, byteUnits[unit])
}
