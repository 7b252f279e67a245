// Package strategy decides how the companion bundle gets onto a host.
package strategy

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/blacktop/kextforge/internal/utils"
	"github.com/blacktop/kextforge/pkg/catalog"
	"github.com/blacktop/kextforge/pkg/probe"
)

// Method is an injection method
type Method int

const (
	DirectLoad Method = iota
	SignedLoad
	RuntimeInjectionPlugin
)

// Methods lists every method in precedence order
var Methods = []Method{DirectLoad, SignedLoad, RuntimeInjectionPlugin}

func (m Method) String() string {
	switch m {
	case DirectLoad:
		return catalog.DirectLoad
	case SignedLoad:
		return catalog.SignedLoad
	case RuntimeInjectionPlugin:
		return catalog.RuntimeInjectionPlugin
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// ParseMethod parses the text form of a Method
func ParseMethod(s string) (Method, error) {
	for _, m := range Methods {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown injection method %q", s)
}

func (m Method) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Method) UnmarshalText(b []byte) error {
	v, err := ParseMethod(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Patch levels
const (
	PatchLevelFull          = "full"
	PatchLevelCompatibility = "compatibility"
)

// WarnProtection is attached to every RuntimeInjectionPlugin strategy
const WarnProtection = "protection must be disabled for direct injection"

// Strategy is the outcome of Select
type Strategy struct {
	Method             Method   `json:"method"`
	RequiresSIPDisable bool     `json:"requires_sip_disable"`
	RequiresSigning    bool     `json:"requires_kext_signing"`
	Warnings           []string `json:"warnings"`
	InjectionPoints    []string `json:"injection_points"`
	PatchLevel         string   `json:"patch_level"`
	CompatibleHardware bool     `json:"compatible_hardware"`
}

// Select maps a snapshot onto a strategy. It is pure: the same snapshot and
// catalog always give an equal strategy.
func Select(snap probe.Snapshot, cat *catalog.Catalog) Strategy {
	var s Strategy

	switch {
	case !snap.SIPEnabled():
		s.Method = DirectLoad
	case !snap.KextSigningRequired():
		s.Method = SignedLoad
		s.RequiresSigning = true
	default:
		s.Method = RuntimeInjectionPlugin
		s.RequiresSIPDisable = true
	}

	s.Warnings = []string{}
	if s.Method == RuntimeInjectionPlugin {
		s.Warnings = append(s.Warnings, WarnProtection)
	}

	if missing := utils.Difference(cat.BaselineKexts, snap.AvailableKexts()); len(missing) > 0 {
		s.Warnings = append(s.Warnings, "missing required kexts: "+strings.Join(missing, ", "))
	}

	s.InjectionPoints = append([]string{}, cat.InjectionPoints[s.Method.String()]...)

	if snap.OSVersion().Major >= 26 {
		s.PatchLevel = PatchLevelFull
	} else {
		s.PatchLevel = PatchLevelCompatibility
	}

	for _, vk := range cat.VendorKeywords {
		if snap.HasHardware(vk.Tag) {
			s.CompatibleHardware = true
			break
		}
	}

	return s
}

// JSON returns the indented JSON form
func (s Strategy) JSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}
