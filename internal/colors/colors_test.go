package colors

import (
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestInit_ForceOn(t *testing.T) {
	orig := color.NoColor
	defer func() { color.NoColor = orig }()

	color.NoColor = true
	forceOn := true
	Init(&forceOn)

	if color.NoColor {
		t.Error("expected colors enabled when Init(true)")
	}
	if !Enabled() {
		t.Error("Enabled() should return true")
	}
}

func TestInit_ForceOff(t *testing.T) {
	orig := color.NoColor
	defer func() { color.NoColor = orig }()

	color.NoColor = false
	forceOff := false
	Init(&forceOff)

	if !color.NoColor {
		t.Error("expected colors disabled when Init(false)")
	}
	if Enabled() {
		t.Error("Enabled() should return false")
	}
}

func TestInit_Nil_KeepsExisting(t *testing.T) {
	orig := color.NoColor
	defer func() { color.NoColor = orig }()

	color.NoColor = true
	Init(nil)
	if !color.NoColor {
		t.Error("Init(nil) should not change NoColor")
	}
}

func TestStatus(t *testing.T) {
	orig := color.NoColor
	defer func() { color.NoColor = orig }()

	color.NoColor = true
	if got := Status(true); got != "PASS" {
		t.Errorf("Status(true) = %q, want PASS", got)
	}
	if got := Status(false); got != "FAIL" {
		t.Errorf("Status(false) = %q, want FAIL", got)
	}
	if got := Warn(); got != "WARN" {
		t.Errorf("Warn() = %q, want WARN", got)
	}

	color.NoColor = false
	if got := Status(true); !strings.Contains(got, "\x1b[") {
		t.Errorf("Status(true) = %q, want ANSI escape", got)
	}
}
