// Package catalog holds the fixed tables kextforge decides against: the kexts a
// companion driver depends on, the hardware keywords it recognizes, the tools it
// needs and where each injection method installs things.
package catalog

import (
	"fmt"
	"os"
	"strings"

	"github.com/blacktop/kextforge/internal/errs"
	"gopkg.in/yaml.v3"
)

// Method names used as InjectionPoints keys
const (
	DirectLoad             = "direct_kext_load"
	SignedLoad             = "signed_kext_load"
	RuntimeInjectionPlugin = "skyline_plugin"
)

// VendorKeyword tags hardware whose description contains any of Keywords
type VendorKeyword struct {
	Tag      string   `yaml:"tag" json:"tag"`
	Keywords []string `yaml:"keywords" json:"keywords"`
}

// Device is a supported wireless chipset
type Device struct {
	Model     string   `yaml:"model" json:"model"`
	DeviceIDs []string `yaml:"device_ids,omitempty" json:"device_ids,omitempty"`
}

// Companion describes the bundle kextforge fabricates
type Companion struct {
	Name          string            `yaml:"name" json:"name"`
	Identifier    string            `yaml:"identifier" json:"identifier"`
	BundleVersion string            `yaml:"bundle_version" json:"bundle_version"`
	TargetVersion string            `yaml:"target_version" json:"target_version"`
	MinimumOS     string            `yaml:"minimum_os" json:"minimum_os"`
	MaximumOS     string            `yaml:"maximum_os" json:"maximum_os"`
	VendorID      string            `yaml:"vendor_id" json:"vendor_id"`
	Libraries     map[string]string `yaml:"libraries,omitempty" json:"libraries,omitempty"`
}

// Replacement swaps every occurrence of Find for Replace
type Replacement struct {
	Find    string `yaml:"find" json:"find"`
	Replace string `yaml:"replace" json:"replace"`
}

// BinaryPatch is a set of byte replacements for one system binary
type BinaryPatch struct {
	Name string `yaml:"name" json:"name"`
	// Binary is relative to the system root
	Binary       string        `yaml:"binary" json:"binary"`
	Replacements []Replacement `yaml:"replacements" json:"replacements"`
}

// Catalog is the full set of tables
type Catalog struct {
	// RequiredKexts are probed for presence on the host
	RequiredKexts []string `yaml:"required_kexts" json:"required_kexts"`
	// BaselineKexts must all be loaded or the strategy carries a warning
	BaselineKexts    []string            `yaml:"baseline_kexts" json:"baseline_kexts"`
	VendorKeywords   []VendorKeyword     `yaml:"vendor_keywords" json:"vendor_keywords"`
	Devices          []Device            `yaml:"devices" json:"devices"`
	RequiredTools    []string            `yaml:"required_tools" json:"required_tools"`
	InjectionPoints  map[string][]string `yaml:"injection_points" json:"injection_points"`
	BackupComponents []string            `yaml:"backup_components" json:"backup_components"`
	BinaryPatches    []BinaryPatch       `yaml:"binary_patches" json:"binary_patches"`
	Companion        Companion           `yaml:"companion" json:"companion"`
}

// Default returns the compiled in tables
func Default() *Catalog {
	return &Catalog{
		RequiredKexts: []string{
			"com.apple.iokit.IO80211Family",
			"com.apple.iokit.IO80211FamilyV2",
			"com.apple.driver.AppleAirPortBrcmNIC",
			"com.apple.driver.AppleBCMWLANCore",
			"com.apple.driver.AppleBCMWLANCoreMac",
		},
		BaselineKexts: []string{
			"com.apple.iokit.IO80211Family",
			"com.apple.driver.AppleAirPortBrcmNIC",
		},
		VendorKeywords: []VendorKeyword{
			{Tag: "broadcom_wifi", Keywords: []string{"broadcom", "bcm"}},
			{Tag: "intel_wifi", Keywords: []string{"intel"}},
		},
		Devices: []Device{
			{Model: "BCM43224"}, {Model: "BCM43225"}, {Model: "BCM43227"}, {Model: "BCM43228"},
			{Model: "BCM4331"}, {Model: "BCM4335"}, {Model: "BCM4339"}, {Model: "BCM4352"},
			{Model: "BCM4353"}, {Model: "BCM4356"}, {Model: "BCM4358"}, {Model: "BCM4359"},
			{Model: "BCM4360", DeviceIDs: []string{"0x43a0"}},
			{Model: "BCM43602", DeviceIDs: []string{"0x43ba"}},
			{Model: "BCM4364"}, {Model: "BCM4365"}, {Model: "BCM4366"}, {Model: "BCM4371"},
			{Model: "BCM4377"}, {Model: "BCM4378"}, {Model: "BCM4387"},
			{Model: "BCM4398", DeviceIDs: []string{"0x43e0", "0x43e1", "0x43e2", "0x43e3"}},
		},
		RequiredTools: []string{"kextutil", "kextcache", "codesign", "lipo"},
		InjectionPoints: map[string][]string{
			DirectLoad: {
				"System/Library/Extensions/AppleBCMWLANCompanion.kext",
				"System/Library/CoreServices/WiFiAgent.app",
				"System/Library/CoreServices/ControlCenter.app",
			},
			SignedLoad: {
				"Library/Extensions/AppleBCMWLANCompanion.kext",
				"System/Library/CoreServices/WiFiAgent.app",
				"System/Library/CoreServices/ControlCenter.app",
			},
			RuntimeInjectionPlugin: {
				"Library/Application Support/SkyLightPlugins/AppleBCMWLANCompanion.dylib",
				"System/Library/CoreServices/WiFiAgent.app",
				"System/Library/CoreServices/ControlCenter.app",
			},
		},
		BackupComponents: []string{
			"Library/Extensions/AppleBCMWLANCompanion.kext",
			"Library/Frameworks/AppleBCMWLANCompanion.framework",
			"System/Library/Extensions/IO80211Family.kext",
			"System/Library/Frameworks/CoreWLAN.framework",
			"System/Library/PrivateFrameworks/CoreWiFi.framework",
		},
		BinaryPatches: []BinaryPatch{
			{
				Name:   "CoreWLAN",
				Binary: "System/Library/Frameworks/CoreWLAN.framework/Versions/A/CoreWLAN",
				Replacements: []Replacement{
					{Find: "AppleWiFi", Replace: "BCMWiFi"},
					{Find: "15.0.0", Replace: "26.0.0"},
					{Find: "AirPort", Replace: "BCMAirPort"},
				},
			},
			{
				Name:   "CoreWiFi",
				Binary: "System/Library/PrivateFrameworks/CoreWiFi.framework/Versions/A/CoreWiFi",
				Replacements: []Replacement{
					{Find: "IO80211Family", Replace: "IOBCMWLANFamily"},
					{Find: "AppleWiFi", Replace: "BCMWiFi"},
				},
			},
		},
		Companion: Companion{
			Name:          "AppleBCMWLANCompanion",
			Identifier:    "com.apple.driver.AppleBCMWLANCompanion",
			BundleVersion: "1.0.0",
			TargetVersion: "26.0",
			MinimumOS:     "26.0",
			MaximumOS:     "26.9",
			VendorID:      "0x14e4",
			Libraries: map[string]string{
				"com.apple.iokit.IO80211Family": "1200.12.2",
				"com.apple.iokit.IOPCIFamily":   "2.9",
				"com.apple.kpi.bsd":             "8.0.0",
				"com.apple.kpi.iokit":           "8.0.0",
				"com.apple.kpi.libkern":         "8.0.0",
				"com.apple.kpi.mach":            "8.0.0",
			},
		},
	}
}

// Load reads a YAML override and merges it over the defaults.
// A list in the file replaces the default list; injection points and companion
// fields are merged key by key.
func Load(path string) (*Catalog, error) {
	cat := Default()
	if path == "" {
		return cat, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cat); err != nil {
		return nil, errs.Wrap(errs.Validation, "catalog", err, "failed to parse %s", path)
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return cat, nil
}

// Validate checks the tables are usable
func (c *Catalog) Validate() error {
	if c.Companion.Identifier == "" || c.Companion.Name == "" {
		return errs.New(errs.Validation, "catalog", "companion name and identifier are required")
	}
	required := make(map[string]bool, len(c.RequiredKexts))
	for _, id := range c.RequiredKexts {
		required[id] = true
	}
	for _, id := range c.BaselineKexts {
		if !required[id] {
			return errs.New(errs.Validation, "catalog", "baseline kext %s is not in required_kexts", id)
		}
	}
	for _, m := range []string{DirectLoad, SignedLoad, RuntimeInjectionPlugin} {
		if len(c.InjectionPoints[m]) == 0 {
			return errs.New(errs.Validation, "catalog", "no injection points for %s", m)
		}
	}
	for _, bp := range c.BinaryPatches {
		if bp.Binary == "" || len(bp.Replacements) == 0 {
			return errs.New(errs.Validation, "catalog", "binary patch %q needs a binary and replacements", bp.Name)
		}
		for _, r := range bp.Replacements {
			if r.Find == "" || r.Find == r.Replace {
				return errs.New(errs.Validation, "catalog", "binary patch %q has an empty or no-op replacement", bp.Name)
			}
		}
	}
	for _, vk := range c.VendorKeywords {
		if vk.Tag == "" || len(vk.Keywords) == 0 {
			return errs.New(errs.Validation, "catalog", "vendor keyword entries need a tag and keywords")
		}
	}
	return nil
}

// TagFor returns the vendor tag matching desc (case-insensitive) or ""
func (c *Catalog) TagFor(desc string) string {
	desc = strings.ToLower(desc)
	for _, vk := range c.VendorKeywords {
		for _, kw := range vk.Keywords {
			if strings.Contains(desc, strings.ToLower(kw)) {
				return vk.Tag
			}
		}
	}
	return ""
}

// DeviceFor returns the supported device named in desc
func (c *Catalog) DeviceFor(desc string) (Device, bool) {
	upper := strings.ToUpper(desc)
	var best Device
	for _, d := range c.Devices {
		// BCM4360 is a prefix of BCM43602; keep the longest match
		if strings.Contains(upper, strings.ToUpper(d.Model)) && len(d.Model) > len(best.Model) {
			best = d
		}
	}
	return best, best.Model != ""
}

// PCIPrimaryMatch renders the IOPCIPrimaryMatch string for all known device ids
func (c *Catalog) PCIPrimaryMatch() string {
	var parts []string
	for _, d := range c.Devices {
		for _, id := range d.DeviceIDs {
			parts = append(parts, id+strings.TrimPrefix(c.Companion.VendorID, "0x"))
		}
	}
	return strings.Join(parts, " ")
}
