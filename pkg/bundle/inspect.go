package bundle

import (
	"encoding/binary"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/blacktop/go-macho/types"
	"github.com/blacktop/kextforge/pkg/plist"
	"github.com/dustin/go-humanize"
)

// Payload classifications
const (
	PayloadMissing     = "missing"
	PayloadPlaceholder = "placeholder"
	PayloadUnknown     = "unknown"
)

// Entry is one file in an inspected bundle
type Entry struct {
	Path   string      `json:"path"`
	Size   int64       `json:"size"`
	Mode   fs.FileMode `json:"mode"`
	Target string      `json:"target,omitempty"`
}

func (e Entry) String() string {
	if e.Target != "" {
		return fmt.Sprintf("%s %s -> %s", e.Mode, e.Path, e.Target)
	}
	if e.Mode.IsDir() {
		return fmt.Sprintf("%s %s/", e.Mode, e.Path)
	}
	return fmt.Sprintf("%s %s (%s)", e.Mode, e.Path, humanize.Bytes(uint64(e.Size)))
}

// Info describes an existing bundle
type Info struct {
	Path       string      `json:"path"`
	Kind       Kind        `json:"-"`
	KindName   string      `json:"kind"`
	Descriptor *Descriptor `json:"descriptor,omitempty"`
	Payload    string      `json:"payload"`
	// PayloadType is a Mach-O magic description, placeholder, unknown or missing
	PayloadType string  `json:"payload_type"`
	Files       []Entry `json:"files"`
}

// Inspect reads the bundle at path
func Inspect(path string) (*Info, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("%s is not a bundle directory", path)
	}

	kind := detectKind(path)
	if kind == Unset {
		return nil, fmt.Errorf("%s has no Info.plist at a known location", path)
	}
	info := &Info{Path: path, Kind: kind, KindName: kind.String()}

	desc, err := ReadDescriptor(filepath.Join(path, LayoutFor(kind, "").Info))
	if err != nil {
		return nil, err
	}
	info.Descriptor = desc

	if desc.Executable != "" {
		info.Payload = LayoutFor(kind, desc.Executable).Payload
		info.PayloadType = PayloadType(filepath.Join(path, info.Payload))
	} else {
		info.PayloadType = PayloadMissing
	}

	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == path {
			return nil
		}
		rel, err := filepath.Rel(path, p)
		if err != nil {
			return err
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		e := Entry{Path: rel, Size: fi.Size(), Mode: fi.Mode()}
		if fi.Mode()&fs.ModeSymlink != 0 {
			e.Target, err = os.Readlink(p)
			if err != nil {
				return err
			}
		}
		info.Files = append(info.Files, e)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", path, err)
	}

	return info, nil
}

func detectKind(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".kext":
		return Kext
	case ".framework":
		return Framework
	}
	for _, k := range []Kind{Kext, Framework} {
		data, err := os.ReadFile(filepath.Join(path, LayoutFor(k, "").Info))
		if err != nil {
			continue
		}
		// CFBundlePackageType wins over where the Info.plist was found
		if info, err := plist.ParseInfo(data); err == nil {
			switch {
			case info.IsKext():
				return Kext
			case info.IsFramework():
				return Framework
			}
		}
		return k
	}
	return Unset
}

// PayloadType classifies the file at path by its leading bytes
func PayloadType(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return PayloadMissing
	}
	defer f.Close()

	var hdr [4]byte
	if _, err := io.ReadFull(f, hdr[:]); err != nil {
		return PayloadUnknown
	}
	if hdr[0] == '#' && hdr[1] == '!' {
		return PayloadPlaceholder
	}
	if magic, ok := machoMagic(hdr); ok {
		return magic.String()
	}
	return PayloadUnknown
}

// machoMagic matches thin and fat Mach-O magics in either byte order
func machoMagic(hdr [4]byte) (types.Magic, bool) {
	for _, magic := range []uint32{binary.LittleEndian.Uint32(hdr[:]), binary.BigEndian.Uint32(hdr[:])} {
		switch types.Magic(magic) {
		case types.Magic32, types.Magic64, types.MagicFat:
			return types.Magic(magic), true
		}
	}
	return 0, false
}

func (i *Info) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%s)\n", i.Path, i.Kind)
	if i.Descriptor != nil {
		fmt.Fprintf(&sb, "  Identifier: %s\n", i.Descriptor.Identifier)
		fmt.Fprintf(&sb, "  Executable: %s\n", i.Descriptor.Executable)
		if i.Descriptor.Version != "" {
			fmt.Fprintf(&sb, "  Version:    %s\n", i.Descriptor.Version)
		}
		if i.Descriptor.MinimumOS != "" {
			fmt.Fprintf(&sb, "  MinimumOS:  %s\n", i.Descriptor.MinimumOS)
		}
	}
	fmt.Fprintf(&sb, "  Payload:    %s (%s)\n", i.Payload, i.PayloadType)
	sb.WriteString("  Files:\n")
	for _, e := range i.Files {
		fmt.Fprintf(&sb, "    %s\n", e)
	}
	return sb.String()
}
