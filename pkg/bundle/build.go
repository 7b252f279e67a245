package bundle

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/blacktop/kextforge/internal/errs"
)

const (
	dirMode     fs.FileMode = 0o755
	fileMode    fs.FileMode = 0o644
	payloadMode fs.FileMode = 0o755
)

// Layout is where a bundle keeps its parts, relative to the bundle directory
type Layout struct {
	Info      string
	Payload   string
	Resources string
	Dirs      []string
	// Links maps link path to target
	Links [][2]string
}

// LayoutFor returns the layout of a kind for an executable name
func LayoutFor(kind Kind, executable string) Layout {
	switch kind {
	case Framework:
		return Layout{
			Info:      filepath.Join("Versions", "A", "Info.plist"),
			Payload:   filepath.Join("Versions", "A", executable),
			Resources: filepath.Join("Versions", "A", "Resources"),
			Dirs: []string{
				filepath.Join("Versions", "A"),
				filepath.Join("Versions", "A", "Resources"),
			},
			Links: [][2]string{
				{filepath.Join("Versions", "Current"), "A"},
				{executable, filepath.Join("Versions", "Current", executable)},
				{"Resources", filepath.Join("Versions", "Current", "Resources")},
			},
		}
	default:
		return Layout{
			Info:      filepath.Join("Contents", "Info.plist"),
			Payload:   filepath.Join("Contents", "MacOS", executable),
			Resources: filepath.Join("Contents", "Resources"),
			Dirs: []string{
				filepath.Join("Contents", "MacOS"),
				filepath.Join("Contents", "Resources"),
			},
		}
	}
}

// Path returns the bundle directory Build would create
func Path(root string, kind Kind, desc Descriptor) string {
	return filepath.Join(root, desc.BundleName()+kind.Extension())
}

func resolveKind(kind Kind, desc Descriptor) (Kind, error) {
	if kind == Unset {
		kind = desc.Kind
	}
	if kind == Unset {
		return Unset, errs.New(errs.Validation, "bundle", "bundle kind is required")
	}
	return kind, nil
}

// Build creates (or repairs) the bundle tree for desc under root and returns
// its path. The descriptor is validated before anything is written. Running it
// twice leaves the same tree, content and permission bits, as running it once.
func Build(root string, kind Kind, desc Descriptor) (string, error) {
	if err := desc.Validate(kind); err != nil {
		return "", err
	}
	kind, err := resolveKind(kind, desc)
	if err != nil {
		return "", err
	}
	desc = desc.Normalize(kind)

	info, err := desc.Marshal()
	if err != nil {
		return "", err
	}

	dir := Path(root, kind, desc)
	layout := LayoutFor(kind, desc.Executable)

	if err := mkdir(dir); err != nil {
		return "", err
	}
	for _, d := range layout.Dirs {
		if err := mkdir(filepath.Join(dir, d)); err != nil {
			return "", err
		}
	}
	if err := WriteFile(filepath.Join(dir, layout.Info), info, fileMode); err != nil {
		return "", err
	}
	if err := WriteFile(filepath.Join(dir, layout.Payload), Placeholder(desc), payloadMode); err != nil {
		return "", err
	}
	for _, l := range layout.Links {
		if err := Symlink(l[1], filepath.Join(dir, l[0])); err != nil {
			return "", err
		}
	}

	return dir, nil
}

// Plan lists the paths Build would create or overwrite, in order
func Plan(root string, kind Kind, desc Descriptor) ([]string, error) {
	if err := desc.Validate(kind); err != nil {
		return nil, err
	}
	kind, err := resolveKind(kind, desc)
	if err != nil {
		return nil, err
	}
	desc = desc.Normalize(kind)

	dir := Path(root, kind, desc)
	layout := LayoutFor(kind, desc.Executable)

	paths := []string{dir}
	for _, d := range layout.Dirs {
		paths = append(paths, filepath.Join(dir, d))
	}
	paths = append(paths, filepath.Join(dir, layout.Info), filepath.Join(dir, layout.Payload))
	for _, l := range layout.Links {
		paths = append(paths, filepath.Join(dir, l[0]))
	}
	return paths, nil
}

// Placeholder is the stand-in payload written where the compiled binary belongs
func Placeholder(desc Descriptor) []byte {
	return []byte(fmt.Sprintf(`#!/bin/sh
# Placeholder payload for %s
# Replace with the compiled %s binary before loading.
echo "%s placeholder loaded"
exit 0
`, desc.Identifier, desc.Executable, desc.BundleName()))
}

func mkdir(path string) error {
	if err := os.MkdirAll(path, dirMode); err != nil {
		return err
	}
	return os.Chmod(path, dirMode)
}

// WriteFile replaces path with data and forces mode regardless of umask or
// the mode of a previous file
func WriteFile(path string, data []byte, mode fs.FileMode) error {
	if err := os.WriteFile(path, data, mode); err != nil {
		return err
	}
	return os.Chmod(path, mode)
}

// Symlink points link at target, replacing any previous link or file
func Symlink(target, link string) error {
	if err := os.Remove(link); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.Symlink(target, link)
}
