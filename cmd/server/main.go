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

	"github.com/VelascoAMath/phase.ten/internal/config"
	"github.com/VelascoAMath/phase.ten/internal/game"
	"github.com/VelascoAMath/phase.ten/internal/game/rules"
	"github.com/VelascoAMath/phase.ten/internal/lock"
	"github.com/VelascoAMath/phase.ten/internal/repository"
	"github.com/VelascoAMath/phase.ten/internal/server"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	envPath    = flag.String("env", ".env", "optional dotenv file loaded before the configuration")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	if err := godotenv.Load(*envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load %s: %v\n", *envPath, err)
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting phase ten server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	store, closeStore, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to open storage", zap.Error(err))
	}
	defer closeStore()

	locker, closeLocker := openLocker(ctx, cfg.Redis, logger)
	defer closeLocker()

	opts := []game.Option{
		game.WithHandSize(cfg.Game.HandSize),
		game.WithDefaultPhases(cfg.Game.DefaultPhases),
		game.WithDefaultTimeLimit(cfg.Game.DefaultTimeLimit),
		game.WithBotMaxMoves(cfg.Game.BotMaxMoves),
		game.WithBotMoveDelay(cfg.Game.BotMoveDelay),
		game.WithRegistry(rules.NewRegistry(cfg.Game.RuleCacheSize, cfg.Game.RuleCacheTTL)),
	}
	if cfg.Game.ReplayDir != "" {
		opts = append(opts, game.WithReplayRecorder(game.NewReplayRecorder(logger, cfg.Game.ReplayDir)))
		logger.Info("recording replays", zap.String("directory", cfg.Game.ReplayDir))
	}
	engine := game.NewEngine(store, locker, logger, opts...)
	logger.Info("game engine initialized",
		zap.Int("hand_size", cfg.Game.HandSize),
		zap.Strings("default_phases", cfg.Game.DefaultPhases),
		zap.Duration("default_time_limit", cfg.Game.DefaultTimeLimit),
	)

	hub := server.NewHub(engine, cfg.Server, logger)
	go hub.Run(ctx)
	go hub.PollSlowPlayers(ctx)

	httpServer := server.NewHTTPServer(cfg.Server, hub)
	go func() {
		logger.Info("starting WebSocket server", zap.String("address", cfg.Server.Address))
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("WebSocket server error", zap.Error(serveErr))
			cancel()
		}
	}()

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case <-ctx.Done():
	}

	logger.Info("shutting down gracefully...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", zap.Error(err))
	}
	cancel()

	logger.Info("phase ten server stopped")
}

func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (game.Store, func(), error) {
	if cfg.Driver != "postgres" {
		logger.Info("using in-memory storage")
		return repository.NewMemory(), func() {}, nil
	}

	db, err := repository.NewDB(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Migrate {
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
	}
	stats := db.Stats()
	logger.Info("database connection pool initialized",
		zap.Int32("total_conns", stats.TotalConns()),
		zap.Int32("idle_conns", stats.IdleConns()),
	)
	return repository.NewPostgres(db), db.Close, nil
}

func openLocker(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (game.Locker, func()) {
	if !cfg.Enabled {
		logger.Info("using in-process game locks")
		return lock.NewLocal(), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to reach redis", zap.String("addr", cfg.Addr), zap.Error(err))
	}
	logger.Info("using redis game locks", zap.String("addr", cfg.Addr))
	return lock.NewRedisLocker(client, logger,
		lock.WithTTL(cfg.LockTTL),
		lock.WithMaxRetries(cfg.MaxRetries),
		lock.WithRetryDelay(cfg.RetryDelay),
	), func() { _ = client.Close() }
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
