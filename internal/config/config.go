package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"neoswaps/internal/engine"
	"neoswaps/internal/fixed"
)

const envPrefix = "NEOSWAPS"

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendPebble   = "pebble"
	BackendPostgres = "postgres"
)

// StoreConfig selects and locates the pool store.
type StoreConfig struct {
	Backend      string
	PebblePath   string
	PGDSN        string
	MaxRetries   int
	RetryBackoff time.Duration
}

// EngineConfig holds the engine limits as configured.
type EngineConfig struct {
	MaxAssets             int
	MaxSplits             int
	MaxLiquidityTreeDepth uint32
	MaxSwapFee            string
}

// Engine converts the configured limits into engine.Config.
func (c EngineConfig) Engine() (engine.Config, error) {
	cfg := engine.DefaultConfig()
	if c.MaxAssets > 0 {
		cfg.MaxAssets = c.MaxAssets
	}
	if c.MaxSplits > 0 {
		cfg.MaxSplits = c.MaxSplits
	}
	if c.MaxLiquidityTreeDepth > 0 {
		cfg.MaxLiquidityTreeDepth = c.MaxLiquidityTreeDepth
	}
	if c.MaxSwapFee != "" {
		fee, err := fixed.Parse(c.MaxSwapFee)
		if err != nil {
			return engine.Config{}, fmt.Errorf("max swap fee: %w", err)
		}
		cfg.MaxSwapFee = fee
	}
	return cfg, nil
}

// Config holds configuration for the replay command.
type Config struct {
	Script      string
	Events      string
	Results     string
	StopOnError bool
	MetricsAddr string
	LogLevel    string
	Store       StoreConfig
	Engine      EngineConfig
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("events", "./data/events.jsonl")
		v.SetDefault("results", "./data/results.jsonl")
		v.SetDefault("stop-on-error", false)
		setStoreDefaults(v)
		setEngineDefaults(v)
	})
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Script:      v.GetString("script"),
		Events:      v.GetString("events"),
		Results:     v.GetString("results"),
		StopOnError: v.GetBool("stop-on-error"),
		MetricsAddr: v.GetString("metrics-addr"),
		LogLevel:    v.GetString("log-level"),
		Store:       storeConfig(v),
		Engine: EngineConfig{
			MaxAssets:             v.GetInt("max-assets"),
			MaxSplits:             v.GetInt("max-splits"),
			MaxLiquidityTreeDepth: v.GetUint32("max-tree-depth"),
			MaxSwapFee:            v.GetString("max-swap-fee"),
		},
	}
	if err := cfg.Store.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the selected backend has what it needs.
func (c StoreConfig) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendPebble:
		if c.PebblePath == "" {
			return fmt.Errorf("pebble path is required for the pebble backend")
		}
	case BackendPostgres:
		if c.PGDSN == "" {
			return fmt.Errorf("pg dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Backend)
	}
	return nil
}

func newViper(cfgFile string, flags *pflag.FlagSet, defaults func(v *viper.Viper)) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("log-level", "info")
	if defaults != nil {
		defaults(v)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("neoswaps")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func setStoreDefaults(v *viper.Viper) {
	v.SetDefault("store", BackendMemory)
	v.SetDefault("pebble-path", "./data/pools")
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
}

func setEngineDefaults(v *viper.Viper) {
	v.SetDefault("max-assets", engine.DefaultMaxAssets)
	v.SetDefault("max-splits", engine.DefaultMaxSplits)
	v.SetDefault("max-tree-depth", engine.DefaultMaxLiquidityTreeDepth)
	v.SetDefault("max-swap-fee", fixed.Format(fixed.Frac(engine.DefaultMaxSwapFee, fixed.One)))
}

func storeConfig(v *viper.Viper) StoreConfig {
	return StoreConfig{
		Backend:      strings.ToLower(strings.TrimSpace(v.GetString("store"))),
		PebblePath:   v.GetString("pebble-path"),
		PGDSN:        v.GetString("pg-dsn"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
	}
}
