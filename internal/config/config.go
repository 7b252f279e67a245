// Package config is used to load the configuration file
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-viper/mapstructure/v2"
	version "github.com/hashicorp/go-version"
	"github.com/spf13/viper"
)

// DefaultTimeout bounds external commands when the config does not
const DefaultTimeout = 10 * time.Second

type catalog struct {
	File string `mapstructure:"file" json:"file,omitempty"`
}

type patch struct {
	BackupDir  string `mapstructure:"backup-dir" json:"backup_dir,omitempty"`
	ReportDir  string `mapstructure:"report-dir" json:"report_dir,omitempty"`
	MinimumOS  string `mapstructure:"minimum-os" json:"minimum_os,omitempty"`
	SkipCaches bool   `mapstructure:"skip-caches" json:"skip_caches,omitempty"`
	Framework  bool   `mapstructure:"framework" json:"framework,omitempty"`
}

type mount struct {
	Options []string `mapstructure:"options" json:"options,omitempty"`
	Type    string   `mapstructure:"type" json:"type,omitempty"`
}

type sudoers struct {
	Path string `mapstructure:"path" json:"path,omitempty"`
	User string `mapstructure:"user" json:"user,omitempty"`
}

type helper struct {
	Dir         string        `mapstructure:"dir" json:"dir,omitempty"`
	Name        string        `mapstructure:"name" json:"name,omitempty"`
	FindRoots   []string      `mapstructure:"find-roots" json:"find_roots,omitempty"`
	FindTimeout time.Duration `mapstructure:"find-timeout" json:"find_timeout,omitempty"`
}

// Config is the configuration struct
type Config struct {
	Root    string        `mapstructure:"root" json:"root"`
	Timeout time.Duration `mapstructure:"timeout" json:"timeout"`
	Catalog catalog       `mapstructure:"catalog" json:"catalog"`
	Patch   patch         `mapstructure:"patch" json:"patch"`
	Mount   mount         `mapstructure:"mount" json:"mount"`
	Sudoers sudoers       `mapstructure:"sudoers" json:"sudoers"`
	Helper  helper        `mapstructure:"helper" json:"helper"`
}

func (c *Config) verify() error {
	if c.Root == "" {
		c.Root = "/"
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Patch.BackupDir == "" {
		c.Patch.BackupDir = filepath.Join(os.TempDir(), "kextforge-backup")
	}
	if c.Patch.ReportDir == "" {
		c.Patch.ReportDir = filepath.Join(os.TempDir(), "kextforge")
	}
	if c.Patch.MinimumOS != "" {
		if _, err := version.NewVersion(c.Patch.MinimumOS); err != nil {
			return fmt.Errorf("config: invalid patch.minimum-os %q: %v", c.Patch.MinimumOS, err)
		}
	}
	if len(c.Mount.Options) == 0 {
		c.Mount.Options = []string{"nobrowse"}
	}
	if c.Mount.Type == "" {
		c.Mount.Type = "apfs"
	}
	if c.Sudoers.Path == "" {
		c.Sudoers.Path = "/etc/sudoers.d/kextforge-mount"
	}
	if c.Sudoers.User == "" {
		c.Sudoers.User = os.Getenv("SUDO_USER")
	}
	if c.Sudoers.User == "" {
		c.Sudoers.User = os.Getenv("USER")
	}
	if c.Helper.Dir == "" {
		c.Helper.Dir = "/Library/PrivilegedHelperTools"
	}
	if c.Helper.Name == "" {
		c.Helper.Name = "com.kextforge.privileged-helper"
	}
	if len(c.Helper.FindRoots) == 0 {
		c.Helper.FindRoots = []string{"/Applications", "/Library", "/usr/local"}
	}
	if c.Helper.FindTimeout <= 0 {
		c.Helper.FindTimeout = 30 * time.Second
	}
	return nil
}

// LoadConfig loads the configuration file
func LoadConfig() (*Config, error) {
	return Load(viper.GetViper())
}

// Load decodes v into a verified Config
func Load(v *viper.Viper) (*Config, error) {
	var c *Config

	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&c, hook); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal: %v", err)
	}
	if c == nil {
		c = &Config{}
	}

	if err := c.verify(); err != nil {
		return nil, fmt.Errorf("config: failed to verify: %v", err)
	}

	return c, nil
}
