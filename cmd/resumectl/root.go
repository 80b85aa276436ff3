package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"gar-rock/resume-crunch/internal/config"
	"gar-rock/resume-crunch/internal/logger"
	"gar-rock/resume-crunch/internal/repositories"
	"gar-rock/resume-crunch/internal/services"
)

const app = "resumectl"

var rootCmd = &cobra.Command{
	Use:          app,
	Short:        "resumectl manages uploaded resumes: import, extract, evaluate, stats and export",
	SilenceUsage: true,
}

// Execute executes the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

// runtime holds what every subcommand shares: config, logger, store and the
// extraction stack. close releases the store.
type runtime struct {
	cfg       *config.Config
	log       *zap.Logger
	repo      repositories.ResumeRepository
	storage   services.StorageService
	registry  *services.ExtractorRegistry
	extractor services.TextExtractor
	close     func() error
}

func newRuntime(ctx context.Context, withStore bool) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	level, format := "warn", "console"
	if viper.GetBool("debug") {
		level = "debug"
	}
	if viper.GetBool("json") {
		format = "json"
	}
	log, err := logger.NewStderr(level, format)
	if err != nil {
		return nil, fmt.Errorf("creating a logger: %w", err)
	}

	rt := &runtime{cfg: cfg, log: log, close: func() error { return nil }}
	rt.registry = services.NewExtractorRegistry(services.DefaultBackends(), cfg.Extractor.Disabled, log)
	rt.extractor = services.NewTextExtractor(rt.registry, log)
	rt.storage = services.NewStorageService(cfg.Storage.UploadPath, cfg.Storage.MaxFileSize, rt.registry.SupportedExtensions())

	if withStore {
		repo, closeStore, err := repositories.Open(ctx, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("opening resume store: %w", err)
		}
		rt.repo = repo
		rt.close = closeStore
	}

	return rt, nil
}

func (rt *runtime) shutdown() {
	if err := rt.close(); err != nil {
		rt.log.Warn("⚠️ Failed to close resume store", zap.Error(err))
	}
	_ = rt.log.Sync()
}
