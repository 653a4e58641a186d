package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neoswaps/internal/engine"
	"neoswaps/internal/fixed"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 5, cfg.Store.MaxRetries)

	ecfg, err := cfg.Engine.Engine()
	require.NoError(t, err)
	assert.Equal(t, engine.DefaultConfig(), ecfg)
}

func TestLoadEnvAndFlags(t *testing.T) {
	t.Setenv("NEOSWAPS_MAX_ASSETS", "16")
	t.Setenv("NEOSWAPS_STORE", "pebble")
	t.Setenv("NEOSWAPS_PEBBLE_PATH", "/tmp/pools")

	flags := pflag.NewFlagSet("replay", pflag.ContinueOnError)
	flags.String("max-swap-fee", "", "")
	flags.String("script", "", "")
	require.NoError(t, flags.Parse([]string{"--max-swap-fee=0.05", "--script=calls.jsonl"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, "calls.jsonl", cfg.Script)
	assert.Equal(t, BackendPebble, cfg.Store.Backend)
	assert.Equal(t, "/tmp/pools", cfg.Store.PebblePath)

	ecfg, err := cfg.Engine.Engine()
	require.NoError(t, err)
	assert.Equal(t, 16, ecfg.MaxAssets)
	assert.Equal(t, fixed.Frac(5, 100), ecfg.MaxSwapFee)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "neoswaps.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store: postgres\npg-dsn: postgres://localhost/neoswaps\nmax-splits: 8\n"), 0o644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, BackendPostgres, cfg.Store.Backend)
	assert.Equal(t, 8, cfg.Engine.MaxSplits)
}

func TestStoreValidation(t *testing.T) {
	require.Error(t, StoreConfig{Backend: "redis"}.Validate())
	require.Error(t, StoreConfig{Backend: BackendPostgres}.Validate())
	require.Error(t, StoreConfig{Backend: BackendPebble}.Validate())
	require.NoError(t, StoreConfig{Backend: BackendMemory}.Validate())
}

func TestLoadAggregate(t *testing.T) {
	_, err := LoadAggregate("", nil)
	require.Error(t, err)

	t.Setenv("NEOSWAPS_OUT", "metrics.jsonl")
	t.Setenv("NEOSWAPS_WINDOW", "1h")
	cfg, err := LoadAggregate("", nil)
	require.NoError(t, err)
	secs, err := cfg.WindowSeconds()
	require.NoError(t, err)
	assert.Equal(t, uint64(3600), secs)

	cfg.Window = "500ms"
	_, err = cfg.WindowSeconds()
	require.Error(t, err)
}

func TestParseTimestamp(t *testing.T) {
	ts, err := ParseTimestamp("1700000000")
	require.NoError(t, err)
	assert.Equal(t, uint64(1700000000), ts)

	ts, err = ParseTimestamp("2023-11-14T22:13:20Z")
	require.NoError(t, err)
	assert.Equal(t, uint64(1700000000), ts)

	ts, err = ParseTimestamp(" ")
	require.NoError(t, err)
	assert.Zero(t, ts)

	_, err = ParseTimestamp("yesterday")
	require.Error(t, err)
}
