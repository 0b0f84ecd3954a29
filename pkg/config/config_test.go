package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blockpage.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadWithoutFileReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("Load(\"\") mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Setenv("BLOCKPAGE_TEST_DSN", "postgres://pages@localhost/pages")
	path := writeConfig(t, `
server:
  addr: ":9000"
database:
  driver: postgres
  dsn: ${BLOCKPAGE_TEST_DSN}
cache:
  ttl: 2m
sessions:
  max_idle: 1h
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "Home", cfg.Server.Title, "untouched keys keep their default")
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://pages@localhost/pages", cfg.Database.DSN)
	assert.Equal(t, 2*time.Minute, cfg.Cache.TTL.Duration)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, time.Hour, cfg.Sessions.MaxIdle.Duration)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, "cache:\n  ttl: soon\n")
	_, err := Load(path)
	assert.ErrorContains(t, err, "line 2")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, `database.driver "mysql"`},
		{"postgres without dsn", func(c *Config) { c.Database.Driver = "postgres" }, "database.dsn"},
		{"s3 without bucket", func(c *Config) { c.Media.Backend = "s3" }, "media.s3.bucket"},
		{"zero idle", func(c *Config) { c.Sessions.MaxIdle = Duration{} }, "sessions.max_idle"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}
