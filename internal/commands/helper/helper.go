// Package helper diagnoses a missing privileged helper tool
package helper

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/blacktop/kextforge/internal/errs"
	"github.com/blacktop/kextforge/internal/runner"
	"github.com/blacktop/kextforge/internal/utils"
	"github.com/dustin/go-humanize"
)

// Config locates the helper and bounds the search
type Config struct {
	Dir         string
	Name        string
	FindRoots   []string
	FindTimeout time.Duration
	// UsersDir home directories are searched as well; empty skips them
	UsersDir string
}

// Existing is a tool already installed next to the helper
type Existing struct {
	Name string      `json:"name"`
	Mode fs.FileMode `json:"mode"`
	Size int64       `json:"size"`
}

func (e Existing) String() string {
	return fmt.Sprintf("%s %8s %s", e.Mode, humanize.Bytes(uint64(e.Size)), e.Name)
}

// Diagnosis is the outcome of Run
type Diagnosis struct {
	Dir          string     `json:"dir"`
	DirExists    bool       `json:"dir_exists"`
	HelperPath   string     `json:"helper_path"`
	HelperExists bool       `json:"helper_exists"`
	Mode         string     `json:"mode,omitempty"`
	FileType     string     `json:"file_type,omitempty"`
	Existing     []Existing `json:"existing,omitempty"`
	Found        []string   `json:"found,omitempty"`
	Suggestions  []string   `json:"suggestions,omitempty"`
}

// Diagnostic runs the checks
type Diagnostic struct {
	Runner runner.Runner
	Config Config
	IsRoot func() bool
}

// New returns a Diagnostic wired to the real process state
func New(r runner.Runner, conf Config) *Diagnostic {
	if conf.UsersDir == "" {
		conf.UsersDir = "/Users"
	}
	return &Diagnostic{Runner: r, Config: conf, IsRoot: utils.IsRoot}
}

// Run checks the helper directory and file, lists installed helpers, searches
// for copies of the helper and suggests fixes when it is missing
func (d *Diagnostic) Run(ctx context.Context) (*Diagnosis, error) {
	if d.IsRoot == nil || !d.IsRoot() {
		return nil, errs.New(errs.Permission, "diagnose-helper", "must be run as root (use sudo)")
	}
	if d.Config.Dir == "" || d.Config.Name == "" {
		return nil, errs.New(errs.Validation, "diagnose-helper", "helper directory and name are required")
	}

	diag := &Diagnosis{
		Dir:        d.Config.Dir,
		HelperPath: filepath.Join(d.Config.Dir, d.Config.Name),
	}

	if fi, err := os.Stat(diag.Dir); err == nil && fi.IsDir() {
		diag.DirExists = true
	}

	if fi, err := os.Stat(diag.HelperPath); err == nil {
		diag.HelperExists = true
		diag.Mode = fmt.Sprintf("%#o", fi.Mode().Perm())
		if res, err := d.Runner.Run(ctx, runner.Command{Name: "file", Args: []string{diag.HelperPath}}); err == nil && res.OK() {
			diag.FileType = strings.TrimSpace(strings.TrimPrefix(res.Text(), diag.HelperPath+":"))
		}
	}

	if diag.DirExists {
		entries, err := os.ReadDir(diag.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", diag.Dir, err)
		}
		for _, e := range entries {
			fi, err := e.Info()
			if err != nil {
				continue
			}
			diag.Existing = append(diag.Existing, Existing{Name: e.Name(), Mode: fi.Mode(), Size: fi.Size()})
		}
	}

	diag.Found = d.search(ctx)

	if !diag.HelperExists {
		diag.Suggestions = d.suggestions(diag)
	}
	return diag, nil
}

func (d *Diagnostic) roots() []string {
	roots := append([]string{}, d.Config.FindRoots...)
	if d.Config.UsersDir == "" {
		return roots
	}
	entries, err := os.ReadDir(d.Config.UsersDir)
	if err != nil {
		return roots
	}
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			roots = append(roots, filepath.Join(d.Config.UsersDir, e.Name()))
		}
	}
	return roots
}

func (d *Diagnostic) search(ctx context.Context) []string {
	timeout := d.Config.FindTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var found []string
	seen := make(map[string]bool)
	for _, root := range d.roots() {
		if _, err := os.Stat(root); err != nil {
			continue
		}
		utils.Indent(log.Debug, 2)("Searching " + root)
		res, err := d.Runner.Run(ctx, runner.Command{
			Name:    "find",
			Args:    []string{root, "-name", "*" + d.Config.Name + "*", "-type", "f"},
			Timeout: timeout,
		})
		if err != nil {
			if errors.Is(err, errs.ErrExternalTool) {
				log.WithField("root", root).Warn("search timed out")
			}
			continue
		}
		// find exits non-zero on unreadable subdirectories but still prints matches
		for _, line := range strings.Split(res.Text(), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || seen[line] {
				continue
			}
			seen[line] = true
			found = append(found, line)
		}
	}
	return found
}

func (d *Diagnostic) suggestions(diag *Diagnosis) []string {
	var out []string
	for _, f := range diag.Found {
		out = append(out,
			fmt.Sprintf("Copy the found helper into place: sudo cp '%s' %s", f, diag.HelperPath),
			fmt.Sprintf("Make it executable: sudo chmod 755 %s", diag.HelperPath),
		)
	}
	if !diag.DirExists {
		out = append(out, fmt.Sprintf("Create the helper directory: sudo mkdir -p %s", diag.Dir))
	}
	out = append(out,
		"Reinstall the application that ships the helper and let its installer finish",
		"Look inside the application bundle (Contents/Library/LaunchServices or Contents/Resources) for the helper",
		"Check that System Integrity Protection and the application's permissions allow helper installation",
	)
	return out
}
