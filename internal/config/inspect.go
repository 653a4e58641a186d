package config

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// InspectConfig holds configuration for the inspect command.
type InspectConfig struct {
	Pools    []uint64
	LogLevel string
	Store    StoreConfig
}

// LoadInspect merges config file, environment variables, and flags into InspectConfig.
func LoadInspect(cfgFile string, flags *pflag.FlagSet) (InspectConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		setStoreDefaults(v)
		v.SetDefault("store", BackendPebble)
	})
	if err != nil {
		return InspectConfig{}, err
	}

	var pools []uint64
	for _, id := range v.GetIntSlice("pool") {
		if id < 0 {
			return InspectConfig{}, fmt.Errorf("invalid pool id %d", id)
		}
		pools = append(pools, uint64(id))
	}

	cfg := InspectConfig{
		Pools:    pools,
		LogLevel: v.GetString("log-level"),
		Store:    storeConfig(v),
	}
	if err := cfg.Store.Validate(); err != nil {
		return InspectConfig{}, err
	}
	return cfg, nil
}
