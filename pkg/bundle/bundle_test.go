package bundle

import (
	"encoding/binary"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/blacktop/go-macho/types"
	"github.com/blacktop/kextforge/internal/errs"
	"github.com/blacktop/kextforge/pkg/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type node struct {
	mode   fs.FileMode
	data   string
	target string
}

func snapshotTree(t *testing.T, root string) map[string]node {
	t.Helper()
	tree := make(map[string]node)
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		require.NoError(t, err)
		fi, err := d.Info()
		require.NoError(t, err)
		n := node{mode: fi.Mode()}
		switch {
		case fi.Mode()&fs.ModeSymlink != 0:
			n.target, err = os.Readlink(p)
			require.NoError(t, err)
		case fi.Mode().IsRegular():
			b, err := os.ReadFile(p)
			require.NoError(t, err)
			n.data = string(b)
		}
		rel, _ := filepath.Rel(root, p)
		tree[rel] = n
		return nil
	})
	require.NoError(t, err)
	return tree
}

func TestBuildKext(t *testing.T) {
	root := filepath.Join(t.TempDir(), "x")
	require.NoError(t, os.Mkdir(root, 0o755))

	path, err := Build(root, Kext, Descriptor{Identifier: "id.test", Executable: "T"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "T.kext"), path)

	for _, d := range []string{"Contents/MacOS", "Contents/Resources"} {
		fi, err := os.Stat(filepath.Join(path, d))
		require.NoError(t, err)
		assert.True(t, fi.IsDir())
	}

	desc, err := ReadDescriptor(filepath.Join(path, "Contents", "Info.plist"))
	require.NoError(t, err)
	assert.Equal(t, "id.test", desc.Identifier)
	assert.Equal(t, "T", desc.Executable)
	assert.Equal(t, Kext, desc.Kind)

	fi, err := os.Stat(filepath.Join(path, "Contents", "MacOS", "T"))
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o755), fi.Mode().Perm())
}

func TestBuildFramework(t *testing.T) {
	root := t.TempDir()
	desc := Descriptor{Identifier: "com.example.Fw", Executable: "Fw", Version: "1.0.0"}

	path, err := Build(root, Framework, desc)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "Fw.framework"), path)

	links := map[string]string{
		"Versions/Current": "A",
		"Fw":               "Versions/Current/Fw",
		"Resources":        "Versions/Current/Resources",
	}
	for link, want := range links {
		got, err := os.Readlink(filepath.Join(path, link))
		require.NoError(t, err, link)
		assert.Equal(t, filepath.FromSlash(want), got)
	}

	// links resolve
	b, err := os.ReadFile(filepath.Join(path, "Fw"))
	require.NoError(t, err)
	assert.Equal(t, string(Placeholder(desc)), string(b))

	got, err := ReadDescriptor(filepath.Join(path, "Versions", "A", "Info.plist"))
	require.NoError(t, err)
	assert.Equal(t, Framework, got.Kind)
	assert.Equal(t, "1.0.0", got.Version)
}

func TestBuildIdempotent(t *testing.T) {
	for _, kind := range []Kind{Kext, Framework} {
		t.Run(kind.String(), func(t *testing.T) {
			desc := Descriptor{
				Identifier: "com.example.Idem",
				Executable: "Idem",
				MinimumOS:  "26.0",
				Extra:      map[string]any{"OSBundleRequired": "Safe Boot"},
			}

			once := t.TempDir()
			_, err := Build(once, kind, desc)
			require.NoError(t, err)

			twice := t.TempDir()
			_, err = Build(twice, kind, desc)
			require.NoError(t, err)

			// tamper with the tree; the rebuild repairs it
			p, err := Build(twice, kind, desc)
			require.NoError(t, err)
			layout := LayoutFor(kind, "Idem")
			require.NoError(t, os.Chmod(filepath.Join(p, layout.Payload), 0o600))
			require.NoError(t, os.WriteFile(filepath.Join(p, layout.Info), []byte("junk junk junk junk junk junk junk junk junk"), 0o644))
			_, err = Build(twice, kind, desc)
			require.NoError(t, err)

			assert.Equal(t, snapshotTree(t, once), snapshotTree(t, twice))
		})
	}
}

func TestBuildValidation(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		desc Descriptor
	}{
		{"missing identifier", Kext, Descriptor{Executable: "T"}},
		{"missing executable", Kext, Descriptor{Identifier: "id.test"}},
		{"kind mismatch", Kext, Descriptor{Identifier: "id.test", Executable: "T", Kind: Framework}},
		{"no kind at all", Unset, Descriptor{Identifier: "id.test", Executable: "T"}},
		{"path in name", Kext, Descriptor{Identifier: "id.test", Executable: "../T"}},
		{"reserved extra", Kext, Descriptor{Identifier: "id.test", Executable: "T", Extra: map[string]any{"CFBundleIdentifier": "x"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			_, err := Build(root, tt.kind, tt.desc)
			require.Error(t, err)
			assert.ErrorIs(t, err, errs.ErrValidation)
			assert.Equal(t, "ValidationError", errs.KindOf(err).String())

			entries, err := os.ReadDir(root)
			require.NoError(t, err)
			assert.Empty(t, entries, "nothing may be written when validation fails")
		})
	}
}

func TestBuildUnwritableRoot(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	parent := t.TempDir()
	require.NoError(t, os.Chmod(parent, 0o555))
	t.Cleanup(func() { os.Chmod(parent, 0o755) })

	_, err := Build(filepath.Join(parent, "x"), Kext, Descriptor{Identifier: "id.test", Executable: "T"})
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrPermission)
	assert.Equal(t, errs.Permission, errs.KindOf(err))
}

func TestDescriptorRoundTrip(t *testing.T) {
	desc := Descriptor{
		Identifier:   "com.example.RoundTrip",
		Executable:   "RoundTrip",
		Name:         "Round Trip",
		Kind:         Kext,
		Version:      "1.2.3",
		ShortVersion: "1.2",
		MinimumOS:    "26.0",
		Extra: map[string]any{
			"OSBundleRequired":      "Safe Boot",
			"OSBundleAllowUserLoad": true,
			"IOKitPersonalities": map[string]any{
				"Companion": map[string]any{
					"IOClass":         "Companion",
					"IOProviderClass": "IOPCIDevice",
					"IOMatch":         map[string]any{"IOPCIVendorID": "0x14e4", "Enabled": false},
				},
			},
		},
	}

	data, err := desc.Marshal()
	require.NoError(t, err)

	got, err := ParseDescriptor(data)
	require.NoError(t, err)
	assert.Equal(t, desc, *got)
	assert.Equal(t, desc.Properties(), got.Properties())
	assert.Equal(t, []string{"IOKitPersonalities", "OSBundleAllowUserLoad", "OSBundleRequired"}, got.ExtraKeys())

	_, err = ParseDescriptor([]byte("<plist><dict><key>"))
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestPlan(t *testing.T) {
	root := t.TempDir()
	desc := Descriptor{Identifier: "id.test", Executable: "T"}

	plan, err := Plan(root, Framework, desc)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "T.framework"), plan[0])
	assert.Contains(t, plan, filepath.Join(root, "T.framework", "Versions", "Current"))
	assert.Contains(t, plan, filepath.Join(root, "T.framework", "Versions", "A", "T"))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = Plan(root, Kext, Descriptor{Executable: "T"})
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestInspect(t *testing.T) {
	root := t.TempDir()
	desc := Descriptor{Identifier: "id.test", Executable: "T", Version: "1.0"}

	path, err := Build(root, Framework, desc)
	require.NoError(t, err)

	info, err := Inspect(path)
	require.NoError(t, err)
	assert.Equal(t, Framework, info.Kind)
	assert.Equal(t, "id.test", info.Descriptor.Identifier)
	assert.Equal(t, PayloadPlaceholder, info.PayloadType)
	assert.Contains(t, info.String(), "Versions/Current -> A")

	var sawLink bool
	for _, e := range info.Files {
		if e.Path == "Resources" {
			sawLink = true
			assert.Equal(t, filepath.Join("Versions", "Current", "Resources"), e.Target)
		}
	}
	assert.True(t, sawLink)

	_, err = Inspect(filepath.Join(root, "nope.kext"))
	assert.ErrorIs(t, err, fs.ErrNotExist)

	plain := filepath.Join(root, "plain")
	require.NoError(t, os.Mkdir(plain, 0o755))
	_, err = Inspect(plain)
	assert.Error(t, err)

	kext, err := Build(filepath.Join(root, "k"), Kext, Descriptor{Identifier: "id.kext", Executable: "K"})
	require.NoError(t, err)
	bare := filepath.Join(root, "k", "K")
	require.NoError(t, os.Rename(kext, bare))
	info, err = Inspect(bare)
	require.NoError(t, err)
	assert.Equal(t, Kext, info.Kind)
	assert.Equal(t, filepath.Join("Contents", "MacOS", "K"), info.Payload)
}

func TestPayloadType(t *testing.T) {
	dir := t.TempDir()

	write := func(name string, data []byte) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, data, 0o755))
		return p
	}

	macho := make([]byte, 32)
	binary.LittleEndian.PutUint32(macho, uint32(types.Magic64))
	fat := make([]byte, 32)
	binary.BigEndian.PutUint32(fat, uint32(types.MagicFat))

	assert.Equal(t, types.Magic64.String(), PayloadType(write("m64", macho)))
	assert.Equal(t, types.MagicFat.String(), PayloadType(write("fat", fat)))
	assert.Equal(t, PayloadPlaceholder, PayloadType(write("sh", []byte("#!/bin/sh\n"))))
	assert.Equal(t, PayloadUnknown, PayloadType(write("junk", []byte("junkjunk"))))
	assert.Equal(t, PayloadUnknown, PayloadType(write("short", []byte("ab"))))
	assert.Equal(t, PayloadMissing, PayloadType(filepath.Join(dir, "absent")))
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{"kext": Kext, "KEXT": Kext, "framework": Framework, "FMWK": Framework, "": Unset} {
		got, err := ParseKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseKind("dylib")
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestCoerceExtra(t *testing.T) {
	in := map[string]any{
		"OSBundleRequired": "Root",
		"Enabled":          true,
		"Libraries":        map[string]string{"com.apple.kpi.iokit": "8.0.0"},
		"Nested":           map[any]any{"a": map[any]any{"b": "c"}},
		"List":             []string{"x", "y"},
	}
	got := CoerceExtra(in)
	assert.Equal(t, map[string]any{
		"OSBundleRequired": "Root",
		"Enabled":          true,
		"Libraries":        map[string]any{"com.apple.kpi.iokit": "8.0.0"},
		"Nested":           map[string]any{"a": map[string]any{"b": "c"}},
		"List":             []any{"x", "y"},
	}, got)
	assert.Nil(t, CoerceExtra(nil))
}

func TestReadExtra(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extra.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
OSBundleRequired: Safe Boot
OSBundleAllowUserLoad: true
IOKitPersonalities:
  Companion:
    IOClass: AppleBCMWLANCompanion
    IOProviderClass: IOPCIDevice
`), 0o644))

	extra, err := ReadExtra(path)
	require.NoError(t, err)
	assert.Equal(t, "Safe Boot", extra["OSBundleRequired"])
	assert.Equal(t, true, extra["OSBundleAllowUserLoad"])
	assert.Equal(t, map[string]any{
		"Companion": map[string]any{"IOClass": "AppleBCMWLANCompanion", "IOProviderClass": "IOPCIDevice"},
	}, extra["IOKitPersonalities"])

	_, err = ReadExtra(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseExtraPairs(t *testing.T) {
	got, err := ParseExtraPairs([]string{"OSBundleRequired=Root", "OSBundleAllowUserLoad=true", "Note=a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"OSBundleRequired": "Root", "OSBundleAllowUserLoad": true, "Note": "a=b"}, got)

	_, err = ParseExtraPairs([]string{"novalue"})
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestCompanionDescriptor(t *testing.T) {
	cat := catalog.Default()

	kext := CompanionDescriptor(cat, Kext)
	require.NoError(t, kext.Validate(Kext))
	assert.Equal(t, "com.apple.driver.AppleBCMWLANCompanion", kext.Identifier)
	personalities := kext.Extra["IOKitPersonalities"].(map[string]any)
	match := personalities["AppleBCMWLANCompanion"].(map[string]any)["IOPCIPrimaryMatch"]
	assert.Equal(t, cat.PCIPrimaryMatch(), match)
	assert.Contains(t, kext.Extra, "OSBundleLibraries")

	root := t.TempDir()
	path, err := Build(root, Kext, kext)
	require.NoError(t, err)
	got, err := ReadDescriptor(filepath.Join(path, "Contents", "Info.plist"))
	require.NoError(t, err)
	assert.Equal(t, kext.Normalize(Kext), *got)

	fw := CompanionDescriptor(cat, Framework)
	assert.Nil(t, fw.Extra)
	assert.Equal(t, Framework, fw.Kind)
}

func TestPatchBinary(t *testing.T) {
	dir := t.TempDir()

	machoWith := func(name, body string) string {
		hdr := make([]byte, 32)
		binary.LittleEndian.PutUint32(hdr, uint32(types.Magic64))
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, append(hdr, body...), 0o755))
		return p
	}
	reps := []catalog.Replacement{
		{Find: "AppleWiFi", Replace: "BCMWiFi"},
		{Find: "15.0.0", Replace: "26.0.0"},
		{Find: "AirPort", Replace: "BCMAirPort"},
	}

	t.Run("applied", func(t *testing.T) {
		p := machoWith("applied", "AppleWiFi 15.0.0 AppleWiFi")
		res, err := PatchBinary(p, reps, false)
		require.NoError(t, err)
		assert.True(t, res.Written)
		assert.Equal(t, 2, res.Applied())
		assert.Equal(t, 2, res.Outcomes[0].Count)
		assert.Equal(t, 1, res.Outcomes[1].Count)
		assert.False(t, res.Outcomes[2].Applied())
		assert.Equal(t, "pattern 416972506f7274 not found", res.Outcomes[2].String())

		data, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.Equal(t, "BCMWiFi 26.0.0 BCMWiFi", string(data[32:]))
		fi, err := os.Stat(p)
		require.NoError(t, err)
		assert.Equal(t, fs.FileMode(0o755), fi.Mode().Perm())
	})

	t.Run("not found", func(t *testing.T) {
		p := machoWith("none", "nothing to see here")
		before, err := os.ReadFile(p)
		require.NoError(t, err)

		res, err := PatchBinary(p, reps, false)
		require.NoError(t, err)
		assert.False(t, res.Written)
		assert.Zero(t, res.Applied())
		assert.Len(t, res.Outcomes, 3)

		after, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("dry run", func(t *testing.T) {
		p := machoWith("dry", "AirPort")
		res, err := PatchBinary(p, reps, true)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Applied())
		assert.False(t, res.Written)

		data, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.Equal(t, "AirPort", string(data[32:]))
	})

	t.Run("not macho", func(t *testing.T) {
		p := filepath.Join(dir, "script")
		require.NoError(t, os.WriteFile(p, []byte("#!/bin/sh\nAppleWiFi\n"), 0o755))
		_, err := PatchBinary(p, reps, false)
		assert.ErrorIs(t, err, errs.ErrValidation)
		assert.False(t, IsMachO(p))

		data, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.Contains(t, string(data), "AppleWiFi")
	})

	t.Run("missing", func(t *testing.T) {
		_, err := PatchBinary(filepath.Join(dir, "absent"), reps, false)
		assert.ErrorIs(t, err, errs.ErrNotFound)
	})
}
