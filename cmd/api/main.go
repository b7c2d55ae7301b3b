// cmd/api/main.go

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"aegis/internal/adapter/cache"
	"aegis/internal/adapter/storage"
	"aegis/internal/config"
	"aegis/internal/domain/alert"
	"aegis/internal/domain/presence"
	domainsignal "aegis/internal/domain/signal"
	"aegis/internal/server"
	alertservice "aegis/internal/service/alert"
	feedservice "aegis/internal/service/feed"
	signalservice "aegis/internal/service/signal"
	viewservice "aegis/internal/service/view"
)

func main() {
	// Load .env if present; real environments set variables directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Setup context cancelled by shutdown signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Change-feed bus: every store/manager mutation flows through here
	bus := feedservice.NewBus(feedservice.BusConfig{
		SubscriberBuffer: cfg.Feed.SubscriberBuffer,
	}, logger)

	// Initialize storage
	var (
		presenceStore presence.Store
		signalStore   domainsignal.Store
		alertStore    alert.Store
	)

	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		db, err := initDatabase(ctx, cfg.Database)
		if err != nil {
			logger.Fatal("Failed to initialize database", zap.Error(err))
		}
		defer db.Close()

		var presenceCache *cache.PresenceCache
		if cfg.Redis.Addr != "" {
			redisClient := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			defer redisClient.Close()
			presenceCache = cache.NewPresenceCache(redisClient, cfg.Redis.CacheTTL, logger)
		}

		presenceStore = storage.NewPostgresPresenceStore(db, bus, presenceCache)
		signalStore = storage.NewPostgresSignalStore(db)
		alertStore = storage.NewPostgresAlertStore(db)
	default:
		presenceStore = storage.NewMemoryPresenceStore(bus)
		signalStore = storage.NewMemorySignalStore()
		alertStore = storage.NewMemoryAlertStore()
	}

	// Initialize managers
	signalManager := signalservice.NewManager(signalStore, bus, logger)
	alertManager := alertservice.NewManager(alertStore, bus, logger)

	// Presence view backing the aggregated snapshot endpoints
	presenceView := viewservice.New(bus, presenceStore, signalManager, alertManager, logger)
	if err := presenceView.Start(ctx); err != nil {
		logger.Fatal("Failed to start presence view", zap.Error(err))
	}
	defer presenceView.Close()

	// Optional NATS relay for cross-process subscribers
	var relay *feedservice.Relay
	if cfg.NATS.RelayEnabled {
		natsConn, err := initNATS(cfg.NATS, logger)
		if err != nil {
			logger.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer natsConn.Close()

		relay = feedservice.NewRelay(bus, natsConn, feedservice.RelayConfig{
			SubjectPrefix: cfg.NATS.SubjectPrefix,
		}, logger)
		if err := relay.Start(ctx); err != nil {
			logger.Fatal("Failed to start change-feed relay", zap.Error(err))
		}
	}

	// Initialize HTTP server
	httpServer := server.NewServer(cfg, bus, presenceStore, signalManager, alertManager, presenceView, logger)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info("Starting HTTP server",
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP server shutdown error", zap.Error(err))
		}
		if relay != nil {
			relay.Stop()
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}

	logger.Info("Shutdown complete")
}

// newLogger builds the process logger for the environment
func newLogger(environment string) (*zap.Logger, error) {
	if environment == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// initDatabase opens and verifies the pgx connection pool
func initDatabase(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.MaxLifetime

	db, err := pgxpool.ConnectConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	// Test connection
	if err := db.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return db, nil
}

// initNATS opens the NATS connection used by the change-feed relay
func initNATS(cfg config.NATSConfig, logger *zap.Logger) (*nats.Conn, error) {
	options := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}

	nc, err := nats.Connect(cfg.URL, options...)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to NATS: %w", err)
	}

	return nc, nil
}
