package probe

import (
	"fmt"
	"sort"

	version "github.com/hashicorp/go-version"
)

// Version is a parsed macOS version
type Version struct {
	Major int    `json:"major"`
	Minor int    `json:"minor"`
	Patch int    `json:"patch"`
	Build string `json:"build,omitempty"`
	Raw   string `json:"raw,omitempty"`
}

// ParseVersion parses a dotted version such as "26.0.1"; missing components are zero
func ParseVersion(raw string) (Version, error) {
	v, err := version.NewVersion(raw)
	if err != nil {
		return Version{}, fmt.Errorf("failed to parse version %q: %w", raw, err)
	}
	segs := v.Segments()
	out := Version{Raw: raw}
	if len(segs) > 0 {
		out.Major = segs[0]
	}
	if len(segs) > 1 {
		out.Minor = segs[1]
	}
	if len(segs) > 2 {
		out.Patch = segs[2]
	}
	return out, nil
}

// IsZero reports an undetected version
func (v Version) IsZero() bool {
	return v.Major == 0 && v.Minor == 0 && v.Patch == 0
}

// AtLeast reports v >= min; an unparsable min is never satisfied
func (v Version) AtLeast(min string) bool {
	want, err := version.NewVersion(min)
	if err != nil {
		return false
	}
	have, err := version.NewVersion(v.String())
	if err != nil {
		return false
	}
	return have.GreaterThanOrEqual(want)
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Snapshot is the probed state of a host. Build it with NewSnapshot; it is
// never modified afterwards.
type Snapshot struct {
	osVersion           Version
	sipEnabled          bool
	kextSigningRequired bool
	hardware            []string
	kexts               []string
	arch                string
}

// NewSnapshot copies and sorts the given sets
func NewSnapshot(v Version, sipEnabled, signingRequired bool, hardware, kexts []string, arch string) Snapshot {
	return Snapshot{
		osVersion:           v,
		sipEnabled:          sipEnabled,
		kextSigningRequired: signingRequired,
		hardware:            sortedSet(hardware),
		kexts:               sortedSet(kexts),
		arch:                arch,
	}
}

func (s Snapshot) OSVersion() Version { return s.osVersion }
func (s Snapshot) SIPEnabled() bool { return s.sipEnabled }
func (s Snapshot) KextSigningRequired() bool { return s.kextSigningRequired }
func (s Snapshot) Arch() string { return s.arch }
func (s Snapshot) Hardware() []string { return append([]string(nil), s.hardware...) }
func (s Snapshot) AvailableKexts() []string { return append([]string(nil), s.kexts...) }
func (s Snapshot) HasKext(id string) bool { return contains(s.kexts, id) }
func (s Snapshot) HasHardware(tag string) bool { return contains(s.hardware, tag) }

// SnapshotJSON is the serialized form of a Snapshot
type SnapshotJSON struct {
	OSVersion           Version  `json:"os_version"`
	SIPEnabled          bool     `json:"sip_enabled"`
	KextSigningRequired bool     `json:"kext_signing_required"`
	Hardware            []string `json:"detected_hardware"`
	AvailableKexts      []string `json:"available_kext_ids"`
	Arch                string   `json:"architecture,omitempty"`
}

// JSON returns the serializable view
func (s Snapshot) JSON() SnapshotJSON {
	return SnapshotJSON{
		OSVersion:           s.osVersion,
		SIPEnabled:          s.sipEnabled,
		KextSigningRequired: s.kextSigningRequired,
		Hardware:            s.Hardware(),
		AvailableKexts:      s.AvailableKexts(),
		Arch:                s.arch,
	}
}

func sortedSet(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func contains(sorted []string, s string) bool {
	i := sort.SearchStrings(sorted, s)
	return i < len(sorted) && sorted[i] == s
}
