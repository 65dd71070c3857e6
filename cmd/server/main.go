package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tabletopd/tabletopd/internal/ai"
	"github.com/tabletopd/tabletopd/internal/config"
	"github.com/tabletopd/tabletopd/internal/lock"
	"github.com/tabletopd/tabletopd/internal/notify"
	"github.com/tabletopd/tabletopd/internal/plugin"
	_ "github.com/tabletopd/tabletopd/internal/plugin/tictactoe" // Import to register game types
	"github.com/tabletopd/tabletopd/internal/server"
	"github.com/tabletopd/tabletopd/internal/state"
	"github.com/tabletopd/tabletopd/internal/store"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

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

	logger.Info("starting tabletopd",
		zap.String("version", version),
		zap.String("config", *configPath),
		zap.Strings("game_types", plugin.Default.Types()),
	)

	// Create context that listens for termination signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Initialize the game store
	gameStore, err := newGameStore(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to initialize game store", zap.Error(err))
	}
	logger.Info("game store initialized", zap.String("driver", cfg.Database.Driver))

	// Initialize notification hub
	hub := notify.NewHub(logger)
	go hub.Run(ctx)
	logger.Info("notification hub initialized")

	// Initialize lock manager
	lockMgr := lock.NewManager(logger)
	logger.Info("lock manager initialized")

	// Initialize state manager
	stateMgr := state.NewManager(gameStore, plugin.Default, lockMgr, hub, logger)
	logger.Info("state manager initialized")

	// Initialize AI player manager and turn orchestrator
	aiPlayers := ai.NewPlayers(logger)
	orchestrator := ai.NewOrchestrator(stateMgr, aiPlayers, plugin.Default, hub,
		cfg.AI.DefaultTimeLimit, cfg.AI.QueueSize, logger)
	stateMgr.SetAIScheduler(orchestrator)
	go orchestrator.Run(ctx)
	logger.Info("ai turn orchestrator initialized",
		zap.Duration("default_time_limit", cfg.AI.DefaultTimeLimit),
		zap.Int("queue_size", cfg.AI.QueueSize),
	)

	// Start websocket gateway
	go func() {
		if wsErr := server.StartWebSocketServer(ctx, cfg.Server.WebSocket, hub, logger); wsErr != nil {
			logger.Error("websocket gateway error", zap.Error(wsErr))
		}
	}()

	logger.Info("tabletopd initialized",
		zap.String("version", version),
		zap.String("websocket_address", cfg.Server.WebSocket.Address),
	)

	// Wait for termination signal
	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	logger.Info("shutting down gracefully...")
	cancel()

	logger.Info("tabletopd stopped")
}

// newGameStore builds the configured store backend.
func newGameStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (store.GameStore, error) {
	switch cfg.Driver {
	case "memory":
		return store.NewMemoryStore(), nil
	case "postgres":
		poolCfg, err := pgxpool.ParseConfig(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse database url: %w", err)
		}
		poolCfg.MaxConns = cfg.MaxConns

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}

		pg := store.NewPostgresStore(pool, logger)
		if err := pg.Migrate(ctx); err != nil {
			return nil, err
		}
		return pg, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
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
