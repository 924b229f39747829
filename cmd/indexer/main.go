package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/amplifrens/amplifrens-indexer/internal/adapter"
	"github.com/amplifrens/amplifrens-indexer/internal/block"
	"github.com/amplifrens/amplifrens-indexer/internal/config"
	"github.com/amplifrens/amplifrens-indexer/internal/indexer"
	"github.com/amplifrens/amplifrens-indexer/internal/logger"
	"github.com/amplifrens/amplifrens-indexer/internal/mapper"
	"github.com/amplifrens/amplifrens-indexer/internal/metrics"
	"github.com/amplifrens/amplifrens-indexer/internal/notify"
	"github.com/amplifrens/amplifrens-indexer/internal/providers/ethereum"
	"github.com/amplifrens/amplifrens-indexer/internal/ratelimit"
	"github.com/amplifrens/amplifrens-indexer/internal/store"
	"github.com/amplifrens/amplifrens-indexer/internal/views"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadIndexerConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		Environment:     cfg.Environment,
		BreadcrumbLevel: zapcore.InfoLevel,
		Service:         "indexer",
		Tags: map[string]string{
			"service": "indexer",
			"chain":   string(cfg.Ethereum.ChainID),
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting AmpliFrens Indexer")

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err), zap.String("host", cfg.Database.Host))
	}
	if err := store.ConfigureConnectionPool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
		logger.FatalCtx(ctx, "Failed to configure connection pool", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Connected to database")
	dataStore := store.NewPGStore(db)

	// Initialize adapters
	clockAdapter := adapter.NewClock()
	jsonAdapter := adapter.NewJSON()
	natsJS := adapter.NewNatsJetStream()

	// View calls go over plain RPC
	ethDialer := adapter.NewEthClientDialer()
	adapterEthClient, err := ethDialer.Dial(ctx, cfg.Ethereum.RPCURL)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to dial Ethereum RPC", zap.Error(err), zap.String("rpc_url", cfg.Ethereum.RPCURL))
	}
	defer adapterEthClient.Close()
	ethereumClient := ethereum.NewClient(cfg.Ethereum.ChainID, adapterEthClient)

	redisClient := adapter.NewRedisClient(adapter.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("Failed to close Redis client", zap.Error(err))
		}
	}()
	if err := redisClient.Ping(ctx); err != nil {
		// The limiter falls back to local pacing and notifications are best effort
		logger.WarnCtx(ctx, "Redis is unreachable", zap.Error(err), zap.String("addr", cfg.Redis.Addr))
	}

	limiter, err := ratelimit.NewLimiter(ratelimit.Config{
		Name:                    "views-" + string(cfg.Ethereum.ChainID),
		RequestsPerSecond:       cfg.RateLimit.RequestsPerSecond,
		Burst:                   cfg.RateLimit.Burst,
		KeyPrefix:               cfg.RateLimit.KeyPrefix,
		EnableLocalFallback:     cfg.RateLimit.EnableLocalFallback,
		LocalFallbackMultiplier: cfg.RateLimit.LocalFallbackMultiplier,
	}, redisClient, clockAdapter)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create rate limiter", zap.Error(err))
	}

	chainReader, err := views.NewEthereumReader(ethereumClient, views.Contracts{
		SBT:     cfg.Ethereum.SBTContract,
		Profile: cfg.Ethereum.ProfileContract,
	})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create view reader", zap.Error(err))
	}
	viewReader := views.NewRetrying(views.NewRateLimited(chainReader, limiter), views.RetryConfig{
		InitialInterval: cfg.ViewRetry.InitialInterval,
		MaxInterval:     cfg.ViewRetry.MaxInterval,
		MaxElapsedTime:  cfg.ViewRetry.MaxElapsedTime,
		MaxRetries:      cfg.ViewRetry.MaxRetries,
	})

	var notifier notify.Notifier
	if cfg.Notify.Enabled {
		notifier = notify.NewRedisNotifier(redisClient, cfg.Notify.Stream, cfg.Notify.MaxLen)
	} else {
		notifier = notify.NewNopNotifier()
	}

	eventIndexer, err := indexer.NewIndexer(
		indexer.Config{
			URL:              cfg.NATS.URL,
			StreamName:       cfg.NATS.StreamName,
			ConsumerName:     cfg.NATS.ConsumerName,
			MaxReconnects:    cfg.NATS.MaxReconnects,
			ReconnectWait:    cfg.NATS.ReconnectWait,
			ConnectionName:   cfg.NATS.ConnectionName,
			AckWaitTimeout:   cfg.NATS.AckWait,
			MaxDeliver:       cfg.NATS.MaxDeliver,
			RetryDelay:       cfg.RetryDelay,
			SnapshotSchedule: cfg.SnapshotSchedule,
			ChainHead:        block.NewHeadProvider(ethereumClient, block.Config{
				TTL:         cfg.ChainHead.TTL,
				StaleWindow: cfg.ChainHead.StaleWindow,
			}, clockAdapter),
		},
		natsJS,
		jsonAdapter,
		dataStore,
		mapper.NewMapper(viewReader, jsonAdapter),
		notifier,
	)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create indexer", zap.Error(err), zap.String("url", cfg.NATS.URL))
	}
	defer eventIndexer.Close()
	logger.InfoCtx(ctx, "Connected to NATS JetStream")

	metricsServer := newMetricsServer(cfg.MetricsAddr)
	go func() {
		logger.InfoCtx(ctx, "Serving metrics", zap.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorCtx(ctx, err, zap.String("component", "metrics"))
		}
	}()

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := eventIndexer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()

	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("component", "indexer"))
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Failed to stop metrics server", zap.Error(err))
	}

	logger.Info("AmpliFrens Indexer stopped")
}

func newMetricsServer(addr string) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
