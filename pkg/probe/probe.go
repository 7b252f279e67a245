// Package probe collects the read-only host facts kextforge decides against.
//
// Every query is fail-soft: a missing tool, a non-zero exit, a timeout or
// unparsable output yields a conservative default and never an error.
package probe

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	"github.com/blacktop/kextforge/internal/runner"
	"github.com/blacktop/kextforge/pkg/catalog"
	"github.com/blacktop/kextforge/pkg/plist"
)

// Hardware tags that do not come from the vendor keyword table
const (
	TagAppleSilicon = "apple_silicon"
	TagIntelChipset = "intel_chipset"
)

// Prober runs the host queries
type Prober struct {
	Runner  runner.Runner
	Catalog *catalog.Catalog
	// Root is the macOS tree being probed; anything but "/" is read offline
	Root string
}

// New returns a Prober for root
func New(r runner.Runner, cat *catalog.Catalog, root string) *Prober {
	if cat == nil {
		cat = catalog.Default()
	}
	return &Prober{Runner: r, Catalog: cat, Root: root}
}

func (p *Prober) offline() bool {
	if p.Root == "" {
		return false
	}
	return filepath.Clean(p.Root) != "/"
}

func (p *Prober) run(ctx context.Context, name string, args ...string) (string, bool) {
	res, err := p.Runner.Run(ctx, runner.Command{Name: name, Args: args})
	if err != nil {
		log.WithError(err).Debugf("%s failed", name)
		return "", false
	}
	if !res.OK() {
		log.WithField("exit", res.ExitCode).Debugf("%s exited non-zero", name)
		return res.Text(), false
	}
	return res.Text(), true
}

// ReadOSVersion returns the OS version and build; zeros when undetectable
func (p *Prober) ReadOSVersion(ctx context.Context) Version {
	if p.offline() {
		sv, err := plist.ReadSystemVersion(p.Root)
		if err != nil {
			log.WithError(err).Debug("failed to read SystemVersion.plist")
			return Version{}
		}
		v, err := ParseVersion(sv.ProductVersion)
		if err != nil {
			log.WithError(err).Debug("unparsable ProductVersion")
			return Version{}
		}
		v.Build = sv.ProductBuildVersion
		return v
	}

	out, ok := p.run(ctx, "sw_vers", "-productVersion")
	if !ok {
		return Version{}
	}
	v, err := ParseVersion(out)
	if err != nil {
		log.WithError(err).Debug("unparsable sw_vers output")
		return Version{}
	}
	if build, ok := p.run(ctx, "sw_vers", "-buildVersion"); ok {
		v.Build = build
	}
	return v
}

// ReadSIPStatus returns whether protection is enabled and kext signing enforced.
// Any failure reports both as true.
func (p *Prober) ReadSIPStatus(ctx context.Context) (enabled, signingRequired bool) {
	out, ok := p.run(ctx, "csrutil", "status")
	if !ok {
		return true, true
	}
	return ParseSIPStatus(out)
}

// ParseSIPStatus interprets `csrutil status` output
func ParseSIPStatus(out string) (enabled, signingRequired bool) {
	s := strings.ToLower(out)
	switch {
	case strings.Contains(s, "status: disabled"):
		return false, false
	case strings.Contains(s, "kext signing: disabled"), strings.Contains(s, "kext signing disabled"):
		return true, false
	}
	return true, true
}

// ReadHardwareInventory returns hardware family tags and the machine arch
func (p *Prober) ReadHardwareInventory(ctx context.Context) (tags []string, arch string) {
	if out, ok := p.run(ctx, "system_profiler", "SPAirPortDataType", "-json"); ok {
		tags = append(tags, p.airportTags(out)...)
	}
	if out, ok := p.run(ctx, "system_profiler", "SPPCIDataType", "-json"); ok {
		tags = append(tags, p.pciTags(out)...)
	}
	if out, ok := p.run(ctx, "uname", "-m"); ok && out != "" {
		arch = out
		if strings.Contains(out, "arm64") {
			tags = append(tags, TagAppleSilicon)
		} else {
			tags = append(tags, TagIntelChipset)
		}
	}
	return tags, arch
}

func (p *Prober) airportTags(out string) []string {
	var data map[string]any
	if err := json.Unmarshal([]byte(out), &data); err != nil {
		log.WithError(err).Debug("failed to parse SPAirPortDataType")
		return nil
	}
	var tags []string
	walk(data["SPAirPortDataType"], func(key, val string) {
		if strings.HasSuffix(key, "card_type") {
			if tag := p.Catalog.TagFor(val); tag != "" {
				tags = append(tags, tag)
			}
		}
	})
	return tags
}

func (p *Prober) pciTags(out string) []string {
	var data map[string]any
	if err := json.Unmarshal([]byte(out), &data); err != nil {
		log.WithError(err).Debug("failed to parse SPPCIDataType")
		return nil
	}
	var tags []string
	walk(data["SPPCIDataType"], func(key, val string) {
		if dev, ok := p.Catalog.DeviceFor(val); ok {
			tags = append(tags, dev.Model)
			if tag := p.Catalog.TagFor(dev.Model); tag != "" {
				tags = append(tags, tag)
			}
		}
	})
	return tags
}

// walk calls fn for every string leaf in a decoded JSON value
func walk(v any, fn func(key, val string)) {
	switch t := v.(type) {
	case []any:
		for _, e := range t {
			walk(e, fn)
		}
	case map[string]any:
		for k, e := range t {
			if s, ok := e.(string); ok {
				fn(k, s)
				continue
			}
			walk(e, fn)
		}
	}
}

// ReadLoadedKexts returns the subset of ids currently loaded. One query per id;
// an id counts only when the query exits zero and names it.
func (p *Prober) ReadLoadedKexts(ctx context.Context, ids []string) []string {
	var loaded []string
	for _, id := range ids {
		out, ok := p.run(ctx, "kextstat", "-b", id)
		if ok && strings.Contains(out, id) {
			loaded = append(loaded, id)
		}
	}
	return loaded
}

// Probe runs every query and returns the snapshot; it never fails
func (p *Prober) Probe(ctx context.Context) Snapshot {
	v := p.ReadOSVersion(ctx)
	sip, signing := p.ReadSIPStatus(ctx)
	hw, arch := p.ReadHardwareInventory(ctx)
	kexts := p.ReadLoadedKexts(ctx, p.Catalog.RequiredKexts)

	snap := NewSnapshot(v, sip, signing, hw, kexts, arch)
	log.WithFields(log.Fields{
		"version": v.String(),
		"build":   v.Build,
		"sip":     sip,
		"signing": signing,
		"kexts":   len(snap.AvailableKexts()),
	}).Debug("Probed system")
	return snap
}
