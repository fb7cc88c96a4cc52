package ui

import (
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// InitUI applies the color setting. Color is also off when stdout is not a terminal.
func InitUI(noColor bool) {
	if noColor || !IsTerminal() {
		color.NoColor = true
	}
}

// IsTerminal reports whether stdout is a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// IsInputTerminal reports whether stdin is a terminal.
func IsInputTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}
