package bundle

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/blacktop/kextforge/internal/errs"
	"github.com/blacktop/kextforge/pkg/catalog"
)

// PatchOutcome is what one replacement did to a binary
type PatchOutcome struct {
	Find    string `json:"find"`
	Replace string `json:"replace"`
	Count   int    `json:"count"`
}

// Applied reports the pattern was found at least once
func (o PatchOutcome) Applied() bool { return o.Count > 0 }

func (o PatchOutcome) String() string {
	if !o.Applied() {
		return fmt.Sprintf("pattern %x not found", o.Find)
	}
	return fmt.Sprintf("applied %x -> %x (%d)", o.Find, o.Replace, o.Count)
}

// PatchResult is the outcome of PatchBinary
type PatchResult struct {
	Path     string         `json:"path"`
	Outcomes []PatchOutcome `json:"outcomes"`
	// Written is false for dry runs and when no pattern matched
	Written bool `json:"written"`
}

// Applied returns the number of patterns that matched
func (r *PatchResult) Applied() int {
	var n int
	for _, o := range r.Outcomes {
		if o.Applied() {
			n++
		}
	}
	return n
}

// IsMachO reports whether path starts with a thin or fat Mach-O magic
func IsMachO(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	var hdr [4]byte
	if _, err := io.ReadFull(f, hdr[:]); err != nil {
		return false
	}
	_, ok := machoMagic(hdr)
	return ok
}

// PatchBinary replaces every occurrence of each pattern in the Mach-O at path,
// in order. The file is rewritten only when a pattern matched and dryRun is unset.
func PatchBinary(path string, reps []catalog.Replacement, dryRun bool) (*PatchResult, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, errs.Wrap(errs.NotFound, "patch", err, "binary %s", path)
	}
	if !IsMachO(path) {
		return nil, errs.New(errs.Validation, "patch", "%s is not a Mach-O binary", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	res := &PatchResult{Path: path}
	for _, r := range reps {
		find, repl := []byte(r.Find), []byte(r.Replace)
		n := 0
		if len(find) > 0 {
			n = bytes.Count(data, find)
		}
		if n > 0 {
			data = bytes.ReplaceAll(data, find, repl)
		}
		res.Outcomes = append(res.Outcomes, PatchOutcome{Find: r.Find, Replace: r.Replace, Count: n})
	}

	if dryRun || res.Applied() == 0 {
		return res, nil
	}
	if err := os.WriteFile(path, data, fi.Mode().Perm()); err != nil {
		return nil, errs.Wrap(errs.Permission, "patch", err, "failed to write %s", path)
	}
	res.Written = true
	return res, nil
}
