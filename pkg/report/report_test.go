package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/blacktop/kextforge/pkg/catalog"
	"github.com/blacktop/kextforge/pkg/probe"
	"github.com/blacktop/kextforge/pkg/strategy"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatchConfig(t *testing.T) {
	cat := catalog.Default()
	snap := probe.NewSnapshot(
		probe.Version{Major: 26, Patch: 1, Build: "25A354", Raw: "26.0.1"},
		true, true,
		[]string{"broadcom_wifi", probe.TagAppleSilicon},
		nil, "arm64",
	)
	strat := strategy.Select(snap, cat)
	cfg := New(snap, strat, cat)

	_, err := uuid.Parse(cfg.RunID)
	require.NoError(t, err)
	assert.Equal(t, "26.0.1", cfg.SystemInfo.MacOSVersion)
	assert.Equal(t, "25A354", cfg.SystemInfo.BuildNumber)
	assert.Equal(t, map[string]bool{
		"broadcom_wifi":       true,
		"intel_wifi":          false,
		probe.TagAppleSilicon: true,
		probe.TagIntelChipset: false,
	}, cfg.HardwareCompatibility)
	assert.Equal(t, strategy.RuntimeInjectionPlugin, cfg.Companion.InjectionMethod)
	assert.Equal(t, "com.apple.driver.AppleBCMWLANCompanion", cfg.Companion.KextIdentifier)
	assert.Equal(t, strategy.Render(strat), cfg.Instructions)

	path := filepath.Join(t.TempDir(), "out", "patch_config.json")
	require.NoError(t, cfg.WriteJSON(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	for _, key := range []string{"system_info", "hardware_compatibility", "patch_strategy", "companion", "injection_instructions", "generated", "run_id"} {
		assert.Contains(t, generic, key)
	}
	assert.Equal(t, "skyline_plugin", generic["patch_strategy"].(map[string]any)["method"])

	back, err := ReadJSON(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Strategy, back.Strategy)
	assert.True(t, cfg.Generated.Equal(back.Generated))
}

func TestLog(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	a := Log{now: func() time.Time { return fixed }}
	a.Infof("backed up %d components", 2)

	b := Log{now: func() time.Time { return fixed }}
	b.Warnf("framework missing")
	b.Errorf("kext validation failed: %s", "bad")

	assert.False(t, a.HasErrors())
	a.Append(b)
	assert.True(t, a.HasErrors())
	assert.Equal(t, []string{"backed up 2 components", "framework missing", "kext validation failed: bad"}, a.Messages())
	assert.Len(t, b.Entries, 2, "append must not touch the source log")

	text := Text("Patch Report", a, []string{"/tmp/a.kext"})
	assert.True(t, strings.HasPrefix(text, "Patch Report\n============\n\n"))
	assert.Contains(t, text, "[2026-01-02 03:04:05] WARNING: framework missing\n")
	assert.Contains(t, text, "  - /tmp/a.kext\n")

	path := filepath.Join(t.TempDir(), "report.txt")
	require.NoError(t, WriteText(path, "Patch Report", a, nil))
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, Text("Patch Report", a, nil), string(got))
}
