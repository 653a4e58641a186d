package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"neoswaps/internal/config"
	"neoswaps/internal/engine"
	"neoswaps/internal/model"
	"neoswaps/internal/replay"
)

func runInspect(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadInspect(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := replay.OpenStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	env, err := replay.NewEnv(engine.DefaultConfig(), store)
	if err != nil {
		return err
	}

	ids := make([]model.PoolID, 0, len(cfg.Pools))
	for _, id := range cfg.Pools {
		ids = append(ids, model.PoolID(id))
	}
	if len(ids) == 0 {
		if ids, err = env.Engine.Pools(ctx); err != nil {
			return err
		}
	}
	logger.Info("inspect", zap.String("store", cfg.Store.Backend), zap.Int("pools", len(ids)))

	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, id := range ids {
		info, err := env.Engine.PoolInfo(ctx, id)
		if err != nil {
			return err
		}
		if err := enc.Encode(replay.PoolSummary(info)); err != nil {
			return err
		}
	}
	return nil
}
