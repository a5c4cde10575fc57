/*
2026 © Postgres.ai
*/

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")

	require.NoError(t, os.WriteFile(path, []byte(`
app:
  debug: true
store:
  driver: memory
credentials:
  stalenessWindow: 15m
emulator:
  host: mainframe.example.com
`), 0600))

	t.Setenv("HOSTLINK_QUEUE_WORKERS", "8")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.App.Debug)
	assert.Equal(t, uint(2400), cfg.App.Port)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, 8, cfg.Queue.Workers)
	assert.Equal(t, 15*time.Minute, cfg.Credentials.StalenessWindow)
	assert.Equal(t, 10*time.Minute, cfg.Sessions.LeaseTTL)
	assert.Equal(t, "s3270", cfg.Emulator.Binary)
	assert.Equal(t, uint(23), cfg.Emulator.Port)
	assert.Equal(t, "config/instructions", cfg.Instructions.Dir)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Store:       Store{Driver: DriverPostgres, DSN: "postgres://localhost/hostlink"},
			Queue:       Queue{Workers: 1},
			Credentials: Credentials{StalenessWindow: time.Minute},
			Sessions:    Sessions{LeaseTTL: time.Minute, IdleCheckInterval: time.Minute},
			Emulator:    Emulator{Host: "mainframe"},
		}
	}

	testCases := []struct {
		caseName string
		modify   func(cfg *Config)
		valid    bool
	}{
		{caseName: "valid", modify: func(*Config) {}, valid: true},
		{caseName: "postgres without dsn", modify: func(cfg *Config) { cfg.Store.DSN = "" }},
		{caseName: "unknown driver", modify: func(cfg *Config) { cfg.Store.Driver = "sqlite" }},
		{caseName: "no emulator host", modify: func(cfg *Config) { cfg.Emulator.Host = "" }},
		{caseName: "no workers", modify: func(cfg *Config) { cfg.Queue.Workers = 0 }},
		{caseName: "no lease ttl", modify: func(cfg *Config) { cfg.Sessions.LeaseTTL = 0 }},
		{caseName: "no idle check interval", modify: func(cfg *Config) { cfg.Sessions.IdleCheckInterval = 0 }},
	}

	for _, tc := range testCases {
		t.Run(tc.caseName, func(t *testing.T) {
			cfg := valid()
			tc.modify(&cfg)

			err := cfg.Validate()
			if tc.valid {
				assert.NoError(t, err)
				return
			}

			assert.Error(t, err)
		})
	}
}

func TestResolvePath(t *testing.T) {
	assert.Equal(t, "/etc/hostlink/key.txt", ResolvePath("/etc/hostlink/key.txt"))
	assert.Empty(t, ResolvePath(""))

	existing := filepath.Join(t.TempDir(), "key.txt")
	require.NoError(t, os.WriteFile(existing, nil, 0600))
	assert.Equal(t, existing, ResolvePath(existing))
}
