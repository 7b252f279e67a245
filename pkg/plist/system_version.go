package plist

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/blacktop/go-plist"
)

// SystemVersionPath is where a macOS root keeps its SystemVersion.plist
const SystemVersionPath = "System/Library/CoreServices/SystemVersion.plist"

// SystemVersion is the SystemVersion.plist struct
type SystemVersion struct {
	BuildID             string `plist:"BuildID,omitempty" json:"build_id,omitempty"`
	ProductBuildVersion string `plist:"ProductBuildVersion,omitempty" json:"product_build_version,omitempty"`
	ProductCopyright    string `plist:"ProductCopyright,omitempty" json:"product_copyright,omitempty"`
	ProductName         string `plist:"ProductName,omitempty" json:"product_name,omitempty"`
	ProductVersion      string `plist:"ProductVersion,omitempty" json:"product_version,omitempty"`
	ProductUserVisible  string `plist:"ProductUserVisibleVersion,omitempty" json:"product_user_visible_version,omitempty"`
}

func (sv *SystemVersion) String() string {
	var out string
	out += "[SystemVersion]\n"
	out += "===============\n"
	if len(sv.ProductName) > 0 {
		out += fmt.Sprintf("  ProductName:         %s\n", sv.ProductName)
	}
	if len(sv.ProductVersion) > 0 {
		out += fmt.Sprintf("  ProductVersion:      %s\n", sv.ProductVersion)
	}
	if len(sv.ProductBuildVersion) > 0 {
		out += fmt.Sprintf("  ProductBuildVersion: %s\n", sv.ProductBuildVersion)
	}
	if len(sv.BuildID) > 0 {
		out += fmt.Sprintf("  BuildID:             %s\n", sv.BuildID)
	}
	return out
}

// ParseSystemVersion parses the SystemVersion.plist
func ParseSystemVersion(data []byte) (*SystemVersion, error) {
	sv := &SystemVersion{}
	if err := plist.NewDecoder(bytes.NewReader(data)).Decode(sv); err != nil {
		return nil, fmt.Errorf("failed to parse SystemVersion.plist: %w", err)
	}
	return sv, nil
}

// ReadSystemVersion reads the SystemVersion.plist of the macOS tree at root
func ReadSystemVersion(root string) (*SystemVersion, error) {
	data, err := os.ReadFile(filepath.Join(root, SystemVersionPath))
	if err != nil {
		return nil, err
	}
	return ParseSystemVersion(data)
}
