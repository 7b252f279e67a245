// Package bundle fabricates kext and framework bundle trees.
package bundle

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/blacktop/go-plist"
	"github.com/blacktop/kextforge/internal/errs"
)

// Kind is a bundle flavour
type Kind int

const (
	// Unset lets Build decide the kind
	Unset Kind = iota
	Kext
	Framework
)

func (k Kind) String() string {
	switch k {
	case Kext:
		return "kext"
	case Framework:
		return "framework"
	}
	return "unset"
}

// PackageType is the CFBundlePackageType value
func (k Kind) PackageType() string {
	switch k {
	case Kext:
		return "KEXT"
	case Framework:
		return "FMWK"
	}
	return ""
}

// Extension is the bundle directory suffix
func (k Kind) Extension() string {
	switch k {
	case Kext:
		return ".kext"
	case Framework:
		return ".framework"
	}
	return ""
}

// ParseKind accepts "kext", "framework" or a package type
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "kext":
		return Kext, nil
	case "framework", "fmwk":
		return Framework, nil
	case "":
		return Unset, nil
	}
	return Unset, errs.New(errs.Validation, "bundle", "unknown bundle kind %q", s)
}

func kindFromPackageType(pt string) Kind {
	switch pt {
	case "KEXT":
		return Kext
	case "FMWK":
		return Framework
	}
	return Unset
}

// Info.plist keys owned by Descriptor fields
const (
	keyIdentifier   = "CFBundleIdentifier"
	keyExecutable   = "CFBundleExecutable"
	keyName         = "CFBundleName"
	keyPackageType  = "CFBundlePackageType"
	keyVersion      = "CFBundleVersion"
	keyShortVersion = "CFBundleShortVersionString"
	keyMinimumOS    = "LSMinimumSystemVersion"
	keyInfoVersion  = "CFBundleInfoDictionaryVersion"
	keyRegion       = "CFBundleDevelopmentRegion"

	infoDictionaryVersion = "6.0"
	developmentRegion     = "en"
)

var reserved = map[string]bool{
	keyIdentifier: true, keyExecutable: true, keyName: true, keyPackageType: true,
	keyVersion: true, keyShortVersion: true, keyMinimumOS: true,
}

// Descriptor is the metadata written to a bundle's Info.plist
type Descriptor struct {
	Identifier   string `json:"identifier" mapstructure:"identifier"`
	Executable   string `json:"executable" mapstructure:"executable"`
	Name         string `json:"name,omitempty" mapstructure:"name"`
	Kind         Kind   `json:"-" mapstructure:"-"`
	Version      string `json:"version,omitempty" mapstructure:"version"`
	ShortVersion string `json:"short_version,omitempty" mapstructure:"short-version"`
	MinimumOS    string `json:"minimum_os,omitempty" mapstructure:"minimum-os"`
	// Extra holds any other Info.plist keys (strings, bools, nested dicts)
	Extra map[string]any `json:"extra,omitempty" mapstructure:"extra"`
}

// BundleName is the directory stem: Name, or Executable when unnamed
func (d Descriptor) BundleName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.Executable
}

// Validate checks the mandatory fields. A non-Unset want must match d.Kind
// when d.Kind is set.
func (d Descriptor) Validate(want Kind) error {
	if strings.TrimSpace(d.Identifier) == "" {
		return errs.New(errs.Validation, "descriptor", "missing identifier")
	}
	if strings.TrimSpace(d.Executable) == "" {
		return errs.New(errs.Validation, "descriptor", "missing executable name")
	}
	if strings.ContainsAny(d.Executable, "/\x00") || strings.ContainsAny(d.BundleName(), "/\x00") {
		return errs.New(errs.Validation, "descriptor", "bundle and executable names must not contain path separators")
	}
	if want != Unset && d.Kind != Unset && want != d.Kind {
		return errs.New(errs.Validation, "descriptor", "descriptor is a %s, not a %s", d.Kind, want)
	}
	for k := range d.Extra {
		if reserved[k] {
			return errs.New(errs.Validation, "descriptor", "extra key %s shadows a descriptor field", k)
		}
	}
	return nil
}

// Normalize fills Name and Kind the way Build writes them
func (d Descriptor) Normalize(kind Kind) Descriptor {
	if d.Name == "" {
		d.Name = d.Executable
	}
	if d.Kind == Unset {
		d.Kind = kind
	}
	return d
}

// Properties returns the Info.plist dictionary
func (d Descriptor) Properties() map[string]any {
	props := map[string]any{
		keyInfoVersion: infoDictionaryVersion,
		keyRegion:      developmentRegion,
	}
	for k, v := range d.Extra {
		props[k] = v
	}
	props[keyIdentifier] = d.Identifier
	props[keyExecutable] = d.Executable
	props[keyName] = d.BundleName()
	if pt := d.Kind.PackageType(); pt != "" {
		props[keyPackageType] = pt
	}
	if d.Version != "" {
		props[keyVersion] = d.Version
	}
	if d.ShortVersion != "" {
		props[keyShortVersion] = d.ShortVersion
	}
	if d.MinimumOS != "" {
		props[keyMinimumOS] = d.MinimumOS
	}
	return props
}

// Marshal encodes the descriptor as an XML Info.plist
func (d Descriptor) Marshal() ([]byte, error) {
	data, err := plist.MarshalIndent(d.Properties(), plist.XMLFormat, "\t")
	if err != nil {
		return nil, fmt.Errorf("failed to encode Info.plist: %w", err)
	}
	return data, nil
}

// ParseDescriptor decodes an Info.plist in any plist format
func ParseDescriptor(data []byte) (*Descriptor, error) {
	props := make(map[string]any)
	if err := plist.NewDecoder(bytes.NewReader(data)).Decode(&props); err != nil {
		return nil, errs.Wrap(errs.Validation, "descriptor", err, "failed to parse Info.plist")
	}

	str := func(key string) string {
		s, _ := props[key].(string)
		return s
	}
	d := &Descriptor{
		Identifier:   str(keyIdentifier),
		Executable:   str(keyExecutable),
		Name:         str(keyName),
		Kind:         kindFromPackageType(str(keyPackageType)),
		Version:      str(keyVersion),
		ShortVersion: str(keyShortVersion),
		MinimumOS:    str(keyMinimumOS),
	}
	for k, v := range props {
		switch {
		case reserved[k]:
			continue
		case k == keyInfoVersion && v == infoDictionaryVersion:
			continue
		case k == keyRegion && v == developmentRegion:
			continue
		}
		if d.Extra == nil {
			d.Extra = make(map[string]any)
		}
		d.Extra[k] = v
	}
	return d, nil
}

// ReadDescriptor reads and decodes the Info.plist at path
func ReadDescriptor(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseDescriptor(data)
}

// ExtraKeys returns the sorted Extra keys
func (d Descriptor) ExtraKeys() []string {
	keys := make([]string, 0, len(d.Extra))
	for k := range d.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
