package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 10, cfg.Game.HandSize)
	assert.Len(t, cfg.Game.DefaultPhases, 10)
	assert.Equal(t, 3*time.Second, cfg.Redis.LockTTL)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
server:
  address: ":9090"
game:
  hand_size: 7
  default_phases: [R, S4, C3+S2]
  default_time_limit: 90s
logging:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("PHASETEN_GAME_HAND_SIZE", "8")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, 8, cfg.Game.HandSize)
	assert.Equal(t, []string{"R", "S4", "C3+S2"}, cfg.Game.DefaultPhases)
	assert.Equal(t, 90*time.Second, cfg.Game.DefaultTimeLimit)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestValidateRejects(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Database.Driver = "sqlite" }},
		{"bad pool", func(c *Config) { c.Database.Driver = "postgres"; c.Database.MinConns = 5; c.Database.MaxConns = 2 }},
		{"zero hand", func(c *Config) { c.Game.HandSize = 0 }},
		{"bad phase", func(c *Config) { c.Game.DefaultPhases = []string{"S3+X2"} }},
		{"empty phases", func(c *Config) { c.Game.DefaultPhases = nil }},
		{"redis without addr", func(c *Config) { c.Redis.Enabled = true; c.Redis.Addr = "" }},
		{"log level", func(c *Config) { c.Logging.Level = "trace" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
