package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"neoswaps/internal/config"
	"neoswaps/internal/engine"
	"neoswaps/internal/metrics"
	"neoswaps/internal/replay"
	"neoswaps/internal/storage"
)

func main() {
	root := &cobra.Command{
		Use:          "neoswaps",
		Short:        "LMSR prediction market AMM engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Apply a JSONL call script to the engine",
		RunE:  runReplay,
	}

	replayCmd.Flags().String("script", "", "input call script JSONL")
	replayCmd.Flags().String("events", "./data/events.jsonl", "output event log JSONL")
	replayCmd.Flags().String("results", "./data/results.jsonl", "output call results JSONL")
	replayCmd.Flags().Bool("stop-on-error", false, "stop at the first failed call")
	replayCmd.Flags().String("metrics-addr", "", "serve prometheus metrics on this address (e.g. :9100)")
	addStoreFlags(replayCmd, config.BackendMemory)
	replayCmd.Flags().Int("max-assets", engine.DefaultMaxAssets, "maximum assets per pool")
	replayCmd.Flags().Int("max-splits", engine.DefaultMaxSplits, "maximum position splits per combinatorial deployment")
	replayCmd.Flags().Uint32("max-tree-depth", engine.DefaultMaxLiquidityTreeDepth, "liquidity tree depth")
	replayCmd.Flags().String("max-swap-fee", "0.1", "maximum pool swap fee")
	replayCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(replayCmd)

	inspectCmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the state of stored pools",
		RunE:  runInspect,
	}

	inspectCmd.Flags().IntSlice("pool", nil, "pool ids (comma-separated), all pools when empty")
	addStoreFlags(inspectCmd, config.BackendPebble)
	inspectCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(inspectCmd)

	aggregateCmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate the event log into pool window metrics",
		RunE:  runAggregate,
	}

	aggregateCmd.Flags().String("in", "./data/events.jsonl", "input event log JSONL")
	aggregateCmd.Flags().String("window", "5m", "aggregation window (e.g. 1m, 5m, 1h)")
	aggregateCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	aggregateCmd.Flags().String("out", "", "output window metrics JSONL, used when no pg dsn is set")
	aggregateCmd.Flags().Int("batch-size", 1000, "batch size for metric writes")
	aggregateCmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	aggregateCmd.Flags().String("recompute-from", "", "recompute from timestamp (unix seconds or RFC3339)")
	aggregateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(aggregateCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addStoreFlags(cmd *cobra.Command, backend string) {
	cmd.Flags().String("store", backend, "pool store backend (memory, pebble, postgres)")
	cmd.Flags().String("pebble-path", "./data/pools", "pebble database directory")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN")
	cmd.Flags().Int("max-retries", 5, "maximum connection retry attempts")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
}

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Script == "" {
		return fmt.Errorf("script path is required")
	}
	engineCfg, err := cfg.Engine.Engine()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := replay.OpenStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	env, err := replay.NewEnv(engineCfg, store)
	if err != nil {
		return err
	}
	env.Engine.SetLogger(logger.Named("engine"))
	env.Engine.SetEventSink(storage.NewJsonlStorage(cfg.Events))

	if cfg.MetricsAddr != "" {
		env.Engine.SetMetrics(metrics.Engine())
		shutdown := serveMetrics(cfg.MetricsAddr, logger)
		defer shutdown()
	}

	script, err := os.Open(cfg.Script)
	if err != nil {
		return fmt.Errorf("open script: %w", err)
	}
	defer script.Close()

	results, err := replay.NewJSONLResults(cfg.Results)
	if err != nil {
		return err
	}

	logger.Info("replay start",
		zap.String("script", cfg.Script),
		zap.String("events", cfg.Events),
		zap.String("results", cfg.Results),
		zap.String("store", cfg.Store.Backend),
		zap.Bool("stop_on_error", cfg.StopOnError),
	)

	runner := replay.NewRunner(replay.RunConfig{StopOnError: cfg.StopOnError}, env, results, logger)
	_, runErr := runner.Run(ctx, script)
	if err := results.Close(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// serveMetrics exposes the prometheus handler until the returned function is
// called.
func serveMetrics(addr string, logger *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("metrics listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("metrics shutdown", zap.Error(err))
		}
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
