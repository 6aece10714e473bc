// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package uilog provides the CLI's terminal output: colored summaries
// (fatih/color, gated on TTY detection via mattn/go-isatty) and a
// structured logging constructor (log/slog).
package uilog

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

var (
	Green  = color.New(color.FgGreen)
	Yellow = color.New(color.FgYellow)
	Red    = color.New(color.FgRed)
	Dim    = color.New(color.Faint)
	Bold   = color.New(color.Bold)
)

// InitColors enables or disables ANSI color output. Disabled when noColor
// is set, the NO_COLOR env var is present, or stdout is not a terminal.
func InitColors(noColor bool) {
	if noColor || os.Getenv("NO_COLOR") != "" || !isatty.IsTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}
}

// Header prints a bold section title.
func Header(title string) {
	_, _ = Bold.Println(title)
}

// SubHeader prints a dimmer sub-section title.
func SubHeader(title string) {
	_, _ = Dim.Println(title)
}

// Label formats a field label for a "Label: value" line.
func Label(s string) string {
	return Bold.Sprint(s)
}

// DimText renders s de-emphasized.
func DimText(s string) string {
	return Dim.Sprint(s)
}

// CountText renders an integer count, bold.
func CountText(n int) string {
	return Bold.Sprintf("%d", n)
}

// Info prints an informational line.
func Info(s string) {
	fmt.Println(s)
}

// Successf prints a green success line.
func Successf(format string, args ...any) {
	_, _ = Green.Printf(format+"\n", args...)
}

// Warningf prints a yellow warning line to stderr.
func Warningf(format string, args ...any) {
	_, _ = Yellow.Fprintf(os.Stderr, format+"\n", args...)
}

// Errorf prints a red error line to stderr.
func Errorf(format string, args ...any) {
	_, _ = Red.Fprintf(os.Stderr, format+"\n", args...)
}
