package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "remarkbridge.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, 8777, cfg.Server.Port)
	assert.Equal(t, 20.0, cfg.Server.RateLimit)
	assert.Equal(t, "git", cfg.Git.Bin)
	assert.Equal(t, "markdown", cfg.Tracker.Markup)
	assert.Empty(t, cfg.Rules)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfig(t, `
[server]
port = 9000

[git]
bin = "/usr/local/bin/git"

[tracker]
database_url = "postgres://tracker@localhost/tracker"
markup = "textile"

[[rules]]
id = 2
project_pattern = "^demo"
enabled = true
remark_tracker = "Review Remark"
remark_closed_status = 5
resolve_keyword = "RESOLVE"

[[rules]]
id = 1
project_pattern = ".*"
enabled = false
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 20.0, cfg.Server.RateLimit, "unset keys keep their defaults")
	assert.Equal(t, "/usr/local/bin/git", cfg.Git.Bin)
	assert.Equal(t, "textile", cfg.Tracker.Markup)

	require.Len(t, cfg.Rules, 2)
	assert.Equal(t, int64(2), cfg.Rules[0].ID)
	assert.Equal(t, "Review Remark", cfg.Rules[0].RemarkTracker)
	assert.Equal(t, int64(5), cfg.Rules[0].RemarkClosedStatus)
	assert.Equal(t, "RESOLVE", cfg.Rules[0].ResolveKeyword)
	assert.False(t, cfg.Rules[1].Enabled)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("REMARKBRIDGE_SERVER_PORT", "8081")

	cfg, err := LoadConfig(writeConfig(t, "[server]\nport = 9000\n"))
	require.NoError(t, err)
	assert.Equal(t, 8081, cfg.Server.Port)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}

func TestInitConfigProducesLoadableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "remarkbridge.toml")
	require.NoError(t, InitConfig(path))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, Validate(cfg))
	require.Len(t, cfg.Rules, 1)
	assert.True(t, cfg.Rules[0].Enabled)

	assert.Error(t, InitConfig(path), "refuses to overwrite an existing file")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		cfg.Server.Port = 8777
		cfg.Git.Bin = "git"
		cfg.Tracker.DatabaseURL = "postgres://tracker@localhost/tracker"
		cfg.Tracker.Markup = "markdown"
		cfg.Rules = []Rule{{ID: 1, ProjectPattern: ".*", Enabled: true, RemarkClosedStatus: 5}}
		return cfg
	}

	require.NoError(t, Validate(valid()))

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing port", func(c *Config) { c.Server.Port = 0 }, "port"},
		{"missing git bin", func(c *Config) { c.Git.Bin = "" }, "git"},
		{"missing database url", func(c *Config) { c.Tracker.DatabaseURL = "" }, "database_url"},
		{"bad markup", func(c *Config) { c.Tracker.Markup = "asciidoc" }, "markup"},
		{"rule without pattern", func(c *Config) { c.Rules[0].ProjectPattern = "" }, "project_pattern"},
		{"enabled rule without closed status", func(c *Config) { c.Rules[0].RemarkClosedStatus = 0 }, "remark_closed_status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
