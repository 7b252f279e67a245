// Package selftest exercises the bundle builder and checks the host tooling
package selftest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"

	"github.com/blacktop/kextforge/internal/runner"
	"github.com/blacktop/kextforge/internal/utils"
	"github.com/blacktop/kextforge/pkg/bundle"
	"github.com/blacktop/kextforge/pkg/catalog"
)

// Check is one self-test result
type Check struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
	// Advisory failures do not fail the run
	Advisory bool `json:"advisory,omitempty"`
}

// Results is the ordered list of checks
type Results []Check

// Passed reports no failed non-advisory check
func (r Results) Passed() bool {
	for _, c := range r {
		if !c.OK && !c.Advisory {
			return false
		}
	}
	return true
}

// Counts returns passed and failed totals
func (r Results) Counts() (passed, failed int) {
	for _, c := range r {
		if c.OK {
			passed++
		} else {
			failed++
		}
	}
	return
}

// SelfTest holds what the checks need
type SelfTest struct {
	Runner  runner.Runner
	Catalog *catalog.Catalog
	// Root is the system root whose Library/Extensions must be writable
	Root string
	// WorkDir is where test bundles are built; empty means a fresh temp dir
	WorkDir string
}

// Run executes every check in order
func (s *SelfTest) Run(ctx context.Context) (Results, error) {
	work := s.WorkDir
	if work == "" {
		dir, err := os.MkdirTemp("", "kextforge-selftest")
		if err != nil {
			return nil, fmt.Errorf("failed to create work dir: %w", err)
		}
		defer os.RemoveAll(dir)
		work = dir
	}

	cat := s.Catalog
	if cat == nil {
		cat = catalog.Default()
	}

	var out Results
	out = append(out, s.kextChecks(work, cat)...)
	out = append(out, s.frameworkChecks(work, cat)...)
	out = append(out, s.toolChecks(cat)...)
	out = append(out, s.writableCheck())
	return out, nil
}

func check(name string, err error) Check {
	if err != nil {
		return Check{Name: name, Detail: err.Error()}
	}
	return Check{Name: name, OK: true}
}

func (s *SelfTest) kextChecks(work string, cat *catalog.Catalog) Results {
	root := filepath.Join(work, "kext")
	desc := bundle.CompanionDescriptor(cat, bundle.Kext)

	path, err := bundle.Build(root, bundle.Kext, desc)
	if err != nil {
		return Results{check("kext build", err)}
	}
	out := Results{check("kext build", nil)}
	layout := bundle.LayoutFor(bundle.Kext, desc.Executable)

	out = append(out, check("kext structure", existAll(path, append(layout.Dirs, layout.Info, layout.Payload)...)))
	out = append(out, check("kext payload executable", executable(filepath.Join(path, layout.Payload))))
	out = append(out, check("kext descriptor round trip", roundTrip(filepath.Join(path, layout.Info), desc.Normalize(bundle.Kext))))

	before, err := bundle.Inspect(path)
	if err == nil {
		_, err = bundle.Build(root, bundle.Kext, desc)
	}
	if err == nil {
		var after *bundle.Info
		after, err = bundle.Inspect(path)
		if err == nil && !reflect.DeepEqual(before.Files, after.Files) {
			err = fmt.Errorf("rebuild changed the tree")
		}
	}
	out = append(out, check("kext rebuild idempotent", err))
	return out
}

func (s *SelfTest) frameworkChecks(work string, cat *catalog.Catalog) Results {
	root := filepath.Join(work, "framework")
	desc := bundle.CompanionDescriptor(cat, bundle.Framework)

	path, err := bundle.Build(root, bundle.Framework, desc)
	if err != nil {
		return Results{check("framework build", err)}
	}
	out := Results{check("framework build", nil)}
	layout := bundle.LayoutFor(bundle.Framework, desc.Executable)

	out = append(out, check("framework structure", existAll(path, append(layout.Dirs, layout.Info, layout.Payload)...)))

	var linkErr error
	for _, l := range layout.Links {
		got, err := os.Readlink(filepath.Join(path, l[0]))
		if err != nil {
			linkErr = err
			break
		}
		if got != l[1] {
			linkErr = fmt.Errorf("%s points to %s, want %s", l[0], got, l[1])
			break
		}
		if _, err := os.Stat(filepath.Join(path, l[0])); err != nil {
			linkErr = fmt.Errorf("%s does not resolve: %w", l[0], err)
			break
		}
	}
	out = append(out, check("framework symlinks", linkErr))
	out = append(out, check("framework payload executable", executable(filepath.Join(path, layout.Payload))))
	out = append(out, check("framework descriptor round trip", roundTrip(filepath.Join(path, layout.Info), desc.Normalize(bundle.Framework))))
	return out
}

func (s *SelfTest) toolChecks(cat *catalog.Catalog) Results {
	var out Results
	for _, tool := range cat.RequiredTools {
		p, err := s.Runner.LookPath(tool)
		c := Check{Name: "tool " + tool, OK: err == nil, Detail: p, Advisory: true}
		if err != nil {
			c.Detail = "not found in PATH"
		}
		out = append(out, c)
	}
	return out
}

func (s *SelfTest) writableCheck() Check {
	dir := filepath.Join(s.Root, "Library", "Extensions")
	c := Check{Name: "writable " + dir, OK: utils.IsWritable(dir), Advisory: true}
	if !c.OK {
		c.Detail = "not writable by this process"
	}
	return c
}

func existAll(base string, rels ...string) error {
	for _, rel := range rels {
		if _, err := os.Stat(filepath.Join(base, rel)); err != nil {
			return fmt.Errorf("missing %s", rel)
		}
	}
	return nil
}

func executable(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	if fi.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("%s is not executable (%s)", filepath.Base(path), fi.Mode().Perm())
	}
	return nil
}

func roundTrip(path string, want bundle.Descriptor) error {
	got, err := bundle.ReadDescriptor(path)
	if err != nil {
		return err
	}
	if !reflect.DeepEqual(*got, want) {
		return fmt.Errorf("descriptor read back differs from what was written")
	}
	return nil
}
