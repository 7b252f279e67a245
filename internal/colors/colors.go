// Package colors provides centralized color output with TTY-aware defaults.
//
// Colors are automatically disabled when stdout is not a terminal (piped or
// redirected to a file). Use Init() to override based on CLI flags.
package colors

import "github.com/fatih/color"

// Init allows overriding the auto-detected color setting:
//   - forceColor == nil: keep auto-detected value
//   - forceColor == true: force colors on (--color)
//   - forceColor == false: force colors off (--no-color)
func Init(forceColor *bool) {
	if forceColor != nil {
		color.NoColor = !*forceColor
	}
}

// Enabled returns true if colors are currently enabled.
func Enabled() bool {
	return !color.NoColor
}

func Faint() *color.Color       { return color.New(color.Faint) }
func BoldGreen() *color.Color   { return color.New(color.Bold, color.FgGreen) }
func BoldRed() *color.Color     { return color.New(color.Bold, color.FgRed) }
func BoldYellow() *color.Color  { return color.New(color.Bold, color.FgYellow) }
func BoldHiBlue() *color.Color  { return color.New(color.Bold, color.FgHiBlue) }
func FaintHiCyan() *color.Color { return color.New(color.Faint, color.FgHiCyan) }

// Status renders a PASS/FAIL word
func Status(ok bool) string {
	if ok {
		return BoldGreen().Sprint("PASS")
	}
	return BoldRed().Sprint("FAIL")
}

// Warn renders a WARN word
func Warn() string {
	return BoldYellow().Sprint("WARN")
}
