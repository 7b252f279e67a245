package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/blacktop/kextforge/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestTagFor(t *testing.T) {
	cat := Default()
	tests := []struct {
		desc string
		want string
	}{
		{"Wi-Fi (0x14E4, 0x7BF)", ""},
		{"Broadcom BCM43xx 1.0", "broadcom_wifi"},
		{"bcm4360", "broadcom_wifi"},
		{"Intel(R) Wi-Fi 6 AX201", "intel_wifi"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			assert.Equal(t, tt.want, cat.TagFor(tt.desc))
		})
	}
}

func TestDeviceFor(t *testing.T) {
	cat := Default()

	d, ok := cat.DeviceFor("Broadcom BCM43602 802.11ac")
	require.True(t, ok)
	assert.Equal(t, "BCM43602", d.Model)

	d, ok = cat.DeviceFor("bcm4360")
	require.True(t, ok)
	assert.Equal(t, "BCM4360", d.Model)

	_, ok = cat.DeviceFor("Atheros AR9280")
	assert.False(t, ok)
}

func TestPCIPrimaryMatch(t *testing.T) {
	cat := &Catalog{
		Devices:   []Device{{Model: "A", DeviceIDs: []string{"0x43a0"}}, {Model: "B"}, {Model: "C", DeviceIDs: []string{"0x43e0"}}},
		Companion: Companion{VendorID: "0x14e4"},
	}
	assert.Equal(t, "0x43a014e4 0x43e014e4", cat.PCIPrimaryMatch())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	t.Run("empty path", func(t *testing.T) {
		cat, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, Default(), cat)
	})

	t.Run("override", func(t *testing.T) {
		path := filepath.Join(dir, "catalog.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
required_kexts:
  - com.example.A
  - com.example.B
baseline_kexts:
  - com.example.B
injection_points:
  signed_kext_load:
    - Library/Extensions/Example.kext
companion:
  name: Example
  identifier: com.example.companion
`), 0o644))

		cat, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"com.example.A", "com.example.B"}, cat.RequiredKexts)
		assert.Equal(t, []string{"com.example.B"}, cat.BaselineKexts)
		assert.Equal(t, []string{"Library/Extensions/Example.kext"}, cat.InjectionPoints[SignedLoad])
		assert.Len(t, cat.InjectionPoints[DirectLoad], 3)
		assert.Equal(t, "com.example.companion", cat.Companion.Identifier)
		assert.Equal(t, "26.0", cat.Companion.MinimumOS)
		assert.Equal(t, Default().RequiredTools, cat.RequiredTools)
	})

	t.Run("baseline not required", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("baseline_kexts: [com.example.Z]\n"), 0o644))
		_, err := Load(path)
		assert.ErrorIs(t, err, errs.ErrValidation)
	})

	t.Run("binary patches", func(t *testing.T) {
		path := filepath.Join(dir, "patches.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
binary_patches:
  - name: Example
    binary: usr/lib/libexample.dylib
    replacements:
      - find: "1.0"
        replace: "2.0"
`), 0o644))
		cat, err := Load(path)
		require.NoError(t, err)
		require.Len(t, cat.BinaryPatches, 1)
		assert.Equal(t, []Replacement{{Find: "1.0", Replace: "2.0"}}, cat.BinaryPatches[0].Replacements)

		require.NoError(t, os.WriteFile(path, []byte(`
binary_patches:
  - name: Noop
    binary: usr/lib/libexample.dylib
    replacements:
      - find: same
        replace: same
`), 0o644))
		_, err = Load(path)
		assert.ErrorIs(t, err, errs.ErrValidation)
	})

	t.Run("malformed", func(t *testing.T) {
		path := filepath.Join(dir, "broken.yaml")
		require.NoError(t, os.WriteFile(path, []byte("required_kexts: {"), 0o644))
		_, err := Load(path)
		assert.ErrorIs(t, err, errs.ErrValidation)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "nope.yaml"))
		assert.Equal(t, errs.NotFound, errs.KindOf(err))
	})
}
