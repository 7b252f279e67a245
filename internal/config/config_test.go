package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SUDO_USER", "alice")

	c, err := Load(viper.New())
	require.NoError(t, err)
	assert.Equal(t, "/", c.Root)
	assert.Equal(t, DefaultTimeout, c.Timeout)
	assert.Equal(t, []string{"nobrowse"}, c.Mount.Options)
	assert.Equal(t, "apfs", c.Mount.Type)
	assert.Equal(t, "/etc/sudoers.d/kextforge-mount", c.Sudoers.Path)
	assert.Equal(t, "alice", c.Sudoers.User)
	assert.Equal(t, 30*time.Second, c.Helper.FindTimeout)
	assert.NotEmpty(t, c.Patch.BackupDir)
}

func TestLoadYAML(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
root: /Volumes/Target
timeout: 45s
catalog:
  file: /etc/kextforge/catalog.yaml
patch:
  backup-dir: /var/backups/kextforge
  minimum-os: "26.0"
mount:
  options: nobrowse,rdonly
helper:
  find-timeout: 5s
`)))

	c, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "/Volumes/Target", c.Root)
	assert.Equal(t, 45*time.Second, c.Timeout)
	assert.Equal(t, "/etc/kextforge/catalog.yaml", c.Catalog.File)
	assert.Equal(t, "/var/backups/kextforge", c.Patch.BackupDir)
	assert.Equal(t, []string{"nobrowse", "rdonly"}, c.Mount.Options)
	assert.Equal(t, 5*time.Second, c.Helper.FindTimeout)
}

func TestLoadInvalidMinimumOS(t *testing.T) {
	v := viper.New()
	v.Set("patch.minimum-os", "twenty-six")
	_, err := Load(v)
	assert.Error(t, err)
}
