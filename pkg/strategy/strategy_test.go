package strategy

import (
	"encoding/json"
	"testing"

	"github.com/blacktop/kextforge/pkg/catalog"
	"github.com/blacktop/kextforge/pkg/probe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allBaseline = []string{"com.apple.iokit.IO80211Family", "com.apple.driver.AppleAirPortBrcmNIC"}

func snapshot(sip, signing bool, kexts ...string) probe.Snapshot {
	return probe.NewSnapshot(probe.Version{Major: 26}, sip, signing, nil, kexts, "arm64")
}

func TestSelectDecisionTable(t *testing.T) {
	cat := catalog.Default()
	tests := []struct {
		name        string
		sip         bool
		signing     bool
		want        Method
		wantSIP     bool
		wantSigning bool
	}{
		{"protection off, signing off", false, false, DirectLoad, false, false},
		{"protection off dominates signing", false, true, DirectLoad, false, false},
		{"signing off", true, false, SignedLoad, false, true},
		{"everything on", true, true, RuntimeInjectionPlugin, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Select(snapshot(tt.sip, tt.signing, allBaseline...), cat)
			assert.Equal(t, tt.want, s.Method)
			assert.Equal(t, tt.wantSIP, s.RequiresSIPDisable)
			assert.Equal(t, tt.wantSigning, s.RequiresSigning)
		})
	}
}

func TestSelectRuntimeScenario(t *testing.T) {
	s := Select(snapshot(true, true), catalog.Default())
	assert.Equal(t, RuntimeInjectionPlugin, s.Method)
	assert.True(t, s.RequiresSIPDisable)
	assert.False(t, s.RequiresSigning)
	assert.Equal(t, []string{
		"protection must be disabled for direct injection",
		"missing required kexts: com.apple.iokit.IO80211Family, com.apple.driver.AppleAirPortBrcmNIC",
	}, s.Warnings)
}

func TestSelectSignedScenario(t *testing.T) {
	s := Select(snapshot(true, false, allBaseline...), catalog.Default())
	assert.Equal(t, SignedLoad, s.Method)
	assert.False(t, s.RequiresSIPDisable)
	assert.True(t, s.RequiresSigning)
	assert.Empty(t, s.Warnings)
}

func TestSelectMissingOrder(t *testing.T) {
	cat := catalog.Default()
	cat.RequiredKexts = []string{"z", "a", "m"}
	cat.BaselineKexts = []string{"z", "a", "m"}

	s := Select(snapshot(false, false, "a"), cat)
	require.Len(t, s.Warnings, 1)
	assert.Equal(t, "missing required kexts: z, m", s.Warnings[0])
}

func TestSelectDeterministic(t *testing.T) {
	cat := catalog.Default()
	snap := snapshot(true, true, "com.apple.driver.AppleAirPortBrcmNIC")
	first := Select(snap, cat)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Select(snap, cat))
	}
}

func TestSelectInjectionPointsPerMethod(t *testing.T) {
	cat := catalog.Default()
	direct := Select(snapshot(false, false), cat)
	signed := Select(snapshot(true, false), cat)
	runtime := Select(snapshot(true, true), cat)

	assert.Equal(t, cat.InjectionPoints[catalog.DirectLoad], direct.InjectionPoints)
	assert.Equal(t, cat.InjectionPoints[catalog.SignedLoad], signed.InjectionPoints)
	assert.Equal(t, cat.InjectionPoints[catalog.RuntimeInjectionPlugin], runtime.InjectionPoints)
	assert.NotEqual(t, direct.InjectionPoints, signed.InjectionPoints)

	// the strategy owns its slice
	direct.InjectionPoints[0] = "mutated"
	assert.NotEqual(t, "mutated", cat.InjectionPoints[catalog.DirectLoad][0])
}

func TestSelectAdvisories(t *testing.T) {
	cat := catalog.Default()

	old := probe.NewSnapshot(probe.Version{Major: 15, Minor: 5}, false, false, []string{"intel_wifi"}, allBaseline, "")
	s := Select(old, cat)
	assert.Equal(t, PatchLevelCompatibility, s.PatchLevel)
	assert.True(t, s.CompatibleHardware)
	assert.Empty(t, s.Warnings)

	s = Select(snapshot(false, false, allBaseline...), cat)
	assert.Equal(t, PatchLevelFull, s.PatchLevel)
	assert.False(t, s.CompatibleHardware)
}

func TestMethodText(t *testing.T) {
	for _, m := range Methods {
		got, err := ParseMethod(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := ParseMethod("kernel_magic")
	assert.Error(t, err)

	data, err := json.Marshal(Select(snapshot(true, true), catalog.Default()))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"method":"skyline_plugin"`)

	var s Strategy
	require.NoError(t, json.Unmarshal(data, &s))
	assert.Equal(t, RuntimeInjectionPlugin, s.Method)
}

func TestRender(t *testing.T) {
	cat := catalog.Default()
	for _, m := range Methods {
		var snap probe.Snapshot
		switch m {
		case DirectLoad:
			snap = snapshot(false, false)
		case SignedLoad:
			snap = snapshot(true, false)
		default:
			snap = snapshot(true, true)
		}
		steps := Render(Select(snap, cat))
		require.Len(t, steps, 5, m.String())
		assert.Equal(t, "1. ", steps[0][:3])
		assert.Equal(t, "5. ", steps[4][:3])
	}

	direct := Render(Select(snapshot(false, false), cat))
	assert.Equal(t, "2. Copy AppleBCMWLANCompanion.kext to /System/Library/Extensions/", direct[1])
	assert.Equal(t, "4. Load the kext with: sudo kextload /System/Library/Extensions/AppleBCMWLANCompanion.kext", direct[3])
	assert.Equal(t, "5. Verify loading with: kextstat | grep AppleBCMWLANCompanion", direct[4])

	signed := Render(Select(snapshot(true, false), cat))
	assert.Equal(t, "4. Load the kext with: sudo kextload /Library/Extensions/AppleBCMWLANCompanion.kext", signed[3])

	runtime := Render(Select(snapshot(true, true), cat))
	assert.Equal(t, "2. Install the SkyLight plugin AppleBCMWLANCompanion.dylib to /Library/Application Support/SkyLightPlugins/", runtime[1])

	assert.Empty(t, Render(Strategy{Method: Method(42)}))
}
