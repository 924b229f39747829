package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/amplifrens/amplifrens-indexer/internal/adapter"
	"github.com/amplifrens/amplifrens-indexer/internal/config"
	"github.com/amplifrens/amplifrens-indexer/internal/logger"
	"github.com/amplifrens/amplifrens-indexer/internal/platform"
	"github.com/amplifrens/amplifrens-indexer/internal/simulator"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
	days       = flag.Int("days", 7, "Number of simulated days to run after the fixture scenario")
)

func main() {
	flag.Parse()

	config.ChdirRepoRoot()
	cfg, err := config.LoadSimulatorConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		Environment:     cfg.Environment,
		BreadcrumbLevel: zapcore.InfoLevel,
		Service:         "simulator",
		Tags: map[string]string{
			"service": "simulator",
			"chain":   string(cfg.ChainID),
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)

	start, err := cfg.Start()
	if err != nil {
		logger.FatalCtx(ctx, "Invalid start time", zap.Error(err))
	}

	sim, err := simulator.New(simulator.Config{
		Platform: platform.Config{
			Chain:           cfg.ChainID,
			ContractAddress: cfg.ContractAddress,
			Admin:           cfg.Admin,
			UpkeepInterval:  cfg.UpkeepInterval,
			StartBlock:      1,
		},
		Start:          start,
		UpkeepSchedule: cfg.UpkeepSchedule,
		ReportWorkers:  cfg.ReportWorkers,
	})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create simulator", zap.Error(err))
	}

	logger.InfoCtx(ctx, "Running fixture scenario")
	if err := sim.RunFixture(ctx); err != nil {
		logger.FatalCtx(ctx, "Fixture scenario failed", zap.Error(err))
	}

	logger.InfoCtx(ctx, "Simulating days", zap.Int("days", *days), zap.String("schedule", cfg.UpkeepSchedule))
	if err := sim.RunDays(ctx, *days); err != nil {
		logger.FatalCtx(ctx, "Simulation failed", zap.Error(err))
	}

	report, err := sim.Report(ctx)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to build report", zap.Error(err))
	}

	data, err := adapter.NewJSON().MarshalIndent(report)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to encode report", zap.Error(err))
	}
	if _, err := fmt.Fprintln(os.Stdout, string(data)); err != nil {
		logger.FatalCtx(ctx, "Failed to write report", zap.Error(err))
	}

	logger.InfoCtx(ctx, "Simulation finished",
		zap.Uint64("head", report.Head),
		zap.Int("events", report.Events),
		zap.Uint64("current_day", report.CurrentDay),
	)
}
