package plist

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/blacktop/go-plist"
)

// Info is the typed view of a bundle's Info.plist
type Info struct {
	DevelopmentRegion     string         `plist:"CFBundleDevelopmentRegion,omitempty" json:"development_region,omitempty"`
	Executable            string         `plist:"CFBundleExecutable,omitempty" json:"executable,omitempty"`
	Identifier            string         `plist:"CFBundleIdentifier,omitempty" json:"identifier,omitempty"`
	InfoDictionaryVersion string         `plist:"CFBundleInfoDictionaryVersion,omitempty" json:"info_dictionary_version,omitempty"`
	Name                  string         `plist:"CFBundleName,omitempty" json:"name,omitempty"`
	PackageType           string         `plist:"CFBundlePackageType,omitempty" json:"package_type,omitempty"`
	ShortVersion          string         `plist:"CFBundleShortVersionString,omitempty" json:"short_version,omitempty"`
	Version               string         `plist:"CFBundleVersion,omitempty" json:"version,omitempty"`
	MinimumSystemVersion  string         `plist:"LSMinimumSystemVersion,omitempty" json:"minimum_system_version,omitempty"`
	Required              string         `plist:"OSBundleRequired,omitempty" json:"required,omitempty"`
	Libraries             map[string]any `plist:"OSBundleLibraries,omitempty" json:"libraries,omitempty"`
	Personalities         map[string]any `plist:"IOKitPersonalities,omitempty" json:"personalities,omitempty"`
}

// ParseInfo parses an Info.plist in any plist format
func ParseInfo(data []byte) (*Info, error) {
	info := &Info{}
	if err := plist.NewDecoder(bytes.NewReader(data)).Decode(info); err != nil {
		return nil, fmt.Errorf("failed to parse Info.plist: %w", err)
	}
	return info, nil
}

// IsKext reports a KEXT package type
func (i *Info) IsKext() bool { return i.PackageType == "KEXT" }

// IsFramework reports a FMWK package type
func (i *Info) IsFramework() bool { return i.PackageType == "FMWK" }

func (i *Info) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "  Identifier:   %s\n", i.Identifier)
	fmt.Fprintf(&sb, "  Executable:   %s\n", i.Executable)
	if i.Name != "" {
		fmt.Fprintf(&sb, "  Name:         %s\n", i.Name)
	}
	fmt.Fprintf(&sb, "  PackageType:  %s\n", i.PackageType)
	if i.Version != "" {
		fmt.Fprintf(&sb, "  Version:      %s\n", i.Version)
	}
	if i.MinimumSystemVersion != "" {
		fmt.Fprintf(&sb, "  MinimumOS:    %s\n", i.MinimumSystemVersion)
	}
	if len(i.Libraries) > 0 {
		fmt.Fprintf(&sb, "  Libraries:    %d\n", len(i.Libraries))
	}
	return sb.String()
}
