package utils

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDifference(t *testing.T) {
	type args struct {
		a []string
		b []string
	}
	tests := []struct {
		name string
		args args
		want []string
	}{
		{
			name: "Test Difference",
			args: args{
				a: []string{"a", "b", "c"},
				b: []string{"b", "c", "d"},
			},
			want: []string{"a"},
		},
		{
			name: "Test Difference reversed",
			args: args{
				a: []string{"b", "c", "d"},
				b: []string{"a", "b", "c"},
			},
			want: []string{"d"},
		},
		{
			name: "Test Difference equal",
			args: args{
				a: []string{"a", "b", "c"},
				b: []string{"c", "b", "a"},
			},
			want: []string{},
		},
		{
			name: "Test Difference keeps order",
			args: args{
				a: []string{"c", "b", "a", "d"},
				b: []string{"b"},
			},
			want: []string{"c", "a", "d"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Difference(tt.args.a, tt.args.b); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Difference() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStrSliceHas(t *testing.T) {
	assert.True(t, StrSliceHas([]string{"kextutil", "lipo"}, "LIPO"))
	assert.False(t, StrSliceHas([]string{"kextutil"}, "kext"))
}

func TestCopyTree(t *testing.T) {
	src := filepath.Join(t.TempDir(), "Foo.kext")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "Contents", "MacOS"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "Contents", "Info.plist"), []byte("plist"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "Contents", "MacOS", "Foo"), []byte("bin"), 0o755))
	require.NoError(t, os.Symlink("Contents", filepath.Join(src, "Link")))

	dst := filepath.Join(t.TempDir(), "backup", "Foo.kext")
	require.NoError(t, CopyTree(src, dst))
	// merging into an existing copy works too
	require.NoError(t, CopyTree(src, dst))

	b, err := os.ReadFile(filepath.Join(dst, "Contents", "Info.plist"))
	require.NoError(t, err)
	assert.Equal(t, "plist", string(b))

	fi, err := os.Stat(filepath.Join(dst, "Contents", "MacOS", "Foo"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), fi.Mode().Perm())

	link, err := os.Readlink(filepath.Join(dst, "Link"))
	require.NoError(t, err)
	assert.Equal(t, "Contents", link)

	// single file
	one := filepath.Join(t.TempDir(), "one.plist")
	require.NoError(t, CopyTree(filepath.Join(src, "Contents", "Info.plist"), one))
	b, err = os.ReadFile(one)
	require.NoError(t, err)
	assert.Equal(t, "plist", string(b))
}

func TestIsWritable(t *testing.T) {
	dir := t.TempDir()
	assert.True(t, IsWritable(dir))
	assert.False(t, IsWritable(filepath.Join(dir, "missing")))
}

func TestDiff(t *testing.T) {
	assert.Empty(t, Diff("a\nb\n", "a\nb\n", false))
	got := Diff("a\nb\n", "a\nc\n", false)
	assert.Equal(t, "  a\n- b\n+ c\n", got)
	assert.NotEmpty(t, Diff("", "new\n", true))
}
