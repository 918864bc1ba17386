package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/hrplane/reporting/internal/report/batch"
	"github.com/hrplane/reporting/internal/report/config"
	"github.com/hrplane/reporting/internal/report/db"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	flagDate   string
	flagConfig string
)

func main() {
	cmd := &cobra.Command{
		Use:   "reconciler",
		Short: "Recompute report aggregates affected by a day's mutations",
		Long: "Runs one reconciliation pass: detects source rows mutated on the run date,\n" +
			"rebuilds the touched point-in-time reports and replays the affected\n" +
			"staff-growth timeframes from the source-of-truth tables.",
		RunE: run,
	}
	cmd.Flags().StringVar(&flagDate, "date", "", "run date in YYYY-MM-DD form (default today)")
	cmd.Flags().StringVar(&flagConfig, "config", defaultConfigPath(), "path to the YAML config file")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	logger := initLogger()
	defer func(logger *zap.Logger) {
		err := logger.Sync()
		if err != nil {
			logger.Error("failed to sync logger", zap.Error(err))
		}
	}(logger)

	runDate := time.Now().UTC()
	if flagDate != "" {
		parsed, err := time.Parse("2006-01-02", flagDate)
		if err != nil {
			return err
		}
		runDate = parsed
	}

	cfg, err := config.Load(flagConfig)
	if err != nil {
		logger.Error("failed to load config", zap.Error(err))
		return err
	}

	repo, err := db.NewRepository(&db.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	})
	if err != nil {
		logger.Error("failed to initialize database", zap.Error(err))
		return err
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Error("failed to close database", zap.Error(err))
		}
	}()

	reconciler := batch.NewReconciler(repo, logger, batch.Config{
		LookbackDays: cfg.LookbackDays,
		MaxRetries:   cfg.MaxRetries,
	})
	return reconciler.Run(context.Background(), runDate)
}

func initLogger() *zap.Logger {
	logger, _ := zap.NewProduction()
	return logger
}

func defaultConfigPath() string {
	if p := os.Getenv("REPORTING_CONFIG"); p != "" {
		return p
	}
	return filepath.Join("internal", "report", "config", "config.yaml")
}
