package utils

import (
	"os"

	"golang.org/x/term"
)

// IsTerminal reports whether stdout is a TTY
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// StdinIsTerminal reports whether stdin is a TTY
func StdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}
