// Package sudoers manages the passwordless mount entry in /etc/sudoers.d
package sudoers

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/blacktop/kextforge/internal/errs"
	"github.com/blacktop/kextforge/internal/runner"
	"github.com/blacktop/kextforge/internal/utils"
)

// Commands granted NOPASSWD by the entry
var Commands = []string{"/sbin/mount", "/sbin/umount", "/usr/sbin/diskutil", "/usr/bin/hdiutil"}

const (
	fileMode    fs.FileMode = 0o440
	testTimeout             = 5 * time.Second
)

// Fixer configures, removes and tests the sudoers entry
type Fixer struct {
	Runner runner.Runner
	Path   string
	User   string
	IsRoot func() bool
}

// New returns a Fixer for user writing to path
func New(r runner.Runner, path, user string) *Fixer {
	return &Fixer{Runner: r, Path: path, User: user, IsRoot: utils.IsRoot}
}

// Entry is the sudoers line written by Configure
func (f *Fixer) Entry() string {
	return fmt.Sprintf("%s ALL=(ALL) NOPASSWD: %s", f.User, strings.Join(Commands, ", "))
}

func (f *Fixer) requireRoot(op string) error {
	if f.IsRoot == nil || !f.IsRoot() {
		return errs.New(errs.Permission, op, "requires root privileges (run with sudo)")
	}
	return nil
}

// Configure writes the entry (mode 0440). When visudo is available the file is
// syntax checked and removed again if the check fails.
func (f *Fixer) Configure(ctx context.Context) error {
	if err := f.requireRoot("sudoers --configure"); err != nil {
		return err
	}
	if f.User == "" || strings.ContainsAny(f.User, " \t\n") {
		return errs.New(errs.Validation, "sudoers", "invalid user name %q", f.User)
	}

	if err := os.WriteFile(f.Path, []byte(f.Entry()+"\n"), fileMode); err != nil {
		return fmt.Errorf("failed to write %s: %w", f.Path, err)
	}
	if err := os.Chmod(f.Path, fileMode); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", f.Path, err)
	}

	if _, err := f.Runner.LookPath("visudo"); err != nil {
		log.Debug("visudo not found; skipping syntax check")
		return nil
	}
	if _, err := runner.MustRun(ctx, f.Runner, runner.Command{Name: "visudo", Args: []string{"-cf", f.Path}}); err != nil {
		os.Remove(f.Path)
		return fmt.Errorf("sudoers syntax check failed: %w", err)
	}
	return nil
}

// Remove deletes the entry; removed is false when there was nothing to remove
func (f *Fixer) Remove() (removed bool, err error) {
	if err := f.requireRoot("sudoers --remove"); err != nil {
		return false, err
	}
	if err := os.Remove(f.Path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to remove %s: %w", f.Path, err)
	}
	return true, nil
}

// Test reports whether mount runs through sudo without a password. Running
// mount with no arguments fails with usage text when sudo lets it through.
func (f *Fixer) Test(ctx context.Context) (bool, error) {
	res, err := f.Runner.Run(ctx, runner.Command{Name: "sudo", Args: []string{"-n", Commands[0]}, Timeout: testTimeout})
	if err != nil {
		return false, err
	}
	if res.OK() {
		return true, nil
	}
	stderr := strings.ToLower(res.ErrText())
	if strings.Contains(stderr, "password") || strings.Contains(stderr, "terminal is required") {
		return false, nil
	}
	return true, nil
}

// Status is the current configuration state
type Status struct {
	User         string `json:"user"`
	Root         bool   `json:"root"`
	SudoAccess   bool   `json:"sudo_access"`
	ConfigExists bool   `json:"config_exists"`
	Content      string `json:"content,omitempty"`
	Path         string `json:"path"`
}

// Status gathers the current state; it does not fail on unreadable files
func (f *Fixer) Status(ctx context.Context) Status {
	st := Status{User: f.User, Path: f.Path}
	st.Root = f.IsRoot != nil && f.IsRoot()

	if res, err := f.Runner.Run(ctx, runner.Command{Name: "sudo", Args: []string{"-n", "true"}, Timeout: testTimeout}); err == nil {
		st.SudoAccess = res.OK()
	}

	if _, err := os.Stat(f.Path); err == nil {
		st.ConfigExists = true
		if data, err := os.ReadFile(f.Path); err == nil {
			st.Content = strings.TrimSpace(string(data))
		} else {
			st.Content = "<permission denied>"
		}
	}
	return st
}
