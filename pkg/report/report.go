// Package report renders the artefacts a run leaves behind: the JSON patch
// configuration and the plain text run report.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/blacktop/kextforge/pkg/catalog"
	"github.com/blacktop/kextforge/pkg/probe"
	"github.com/blacktop/kextforge/pkg/strategy"
	"github.com/google/uuid"
)

// SystemInfo is the host section of a PatchConfig
type SystemInfo struct {
	MacOSVersion        string `json:"macos_version"`
	BuildNumber         string `json:"build_number"`
	Architecture        string `json:"architecture"`
	SIPEnabled          bool   `json:"sip_enabled"`
	KextSigningRequired bool   `json:"kext_signing_required"`
}

// Requirements bound the OS versions and kexts the companion needs
type Requirements struct {
	MinimumMacOS  string   `json:"minimum_macos"`
	MaximumMacOS  string   `json:"maximum_macos"`
	RequiredKexts []string `json:"required_kexts"`
}

// Companion is the bundle section of a PatchConfig
type Companion struct {
	TargetVersion   string          `json:"target_version"`
	InjectionMethod strategy.Method `json:"injection_method"`
	KextIdentifier  string          `json:"kext_identifier"`
	BundleVersion   string          `json:"bundle_version"`
	Requirements    Requirements    `json:"compatibility_requirements"`
}

// PatchConfig is the JSON configuration written by the strategy detector
type PatchConfig struct {
	RunID                 string            `json:"run_id"`
	Generated             time.Time         `json:"generated"`
	SystemInfo            SystemInfo        `json:"system_info"`
	HardwareCompatibility map[string]bool   `json:"hardware_compatibility"`
	DetectedHardware      []string          `json:"detected_hardware,omitempty"`
	AvailableKexts        []string          `json:"available_kext_ids"`
	Strategy              strategy.Strategy `json:"patch_strategy"`
	Companion             Companion         `json:"companion"`
	Instructions          []string          `json:"injection_instructions"`
}

// New assembles a PatchConfig
func New(snap probe.Snapshot, strat strategy.Strategy, cat *catalog.Catalog) *PatchConfig {
	hw := make(map[string]bool)
	for _, vk := range cat.VendorKeywords {
		hw[vk.Tag] = snap.HasHardware(vk.Tag)
	}
	hw[probe.TagAppleSilicon] = snap.HasHardware(probe.TagAppleSilicon)
	hw[probe.TagIntelChipset] = snap.HasHardware(probe.TagIntelChipset)

	v := snap.OSVersion()
	version := v.Raw
	if version == "" {
		version = v.String()
	}

	return &PatchConfig{
		RunID:     uuid.NewString(),
		Generated: time.Now().UTC().Truncate(time.Second),
		SystemInfo: SystemInfo{
			MacOSVersion:        version,
			BuildNumber:         v.Build,
			Architecture:        snap.Arch(),
			SIPEnabled:          snap.SIPEnabled(),
			KextSigningRequired: snap.KextSigningRequired(),
		},
		HardwareCompatibility: hw,
		DetectedHardware:      snap.Hardware(),
		AvailableKexts:        snap.AvailableKexts(),
		Strategy:              strat,
		Companion: Companion{
			TargetVersion:   cat.Companion.TargetVersion,
			InjectionMethod: strat.Method,
			KextIdentifier:  cat.Companion.Identifier,
			BundleVersion:   cat.Companion.BundleVersion,
			Requirements: Requirements{
				MinimumMacOS:  cat.Companion.MinimumOS,
				MaximumMacOS:  cat.Companion.MaximumOS,
				RequiredKexts: append([]string{}, cat.BaselineKexts...),
			},
		},
		Instructions: strategy.Render(strat),
	}
}

// JSON returns the indented encoding
func (c *PatchConfig) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode patch config: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteJSON writes the config to path, creating parent directories
func (c *PatchConfig) WriteJSON(path string) error {
	data, err := c.JSON()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write patch config: %w", err)
	}
	return nil
}

// ReadJSON loads a config written by WriteJSON
func ReadJSON(path string) (*PatchConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c PatchConfig
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse patch config %s: %w", path, err)
	}
	return &c, nil
}
