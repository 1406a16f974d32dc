package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lsat-session-service/internal/app"
	"lsat-session-service/internal/config"
	"lsat-session-service/internal/infra/memory"
	pgstore "lsat-session-service/internal/infra/postgres"
	redisinfra "lsat-session-service/internal/infra/redis"
	"lsat-session-service/internal/logger"
	transport "lsat-session-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewStartCmd builds the CLI subcommand to start the relay server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the session relay server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log := logger.New(cfg.Log.Level, cfg.Log.File)
	defer log.Sync()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.TestLoader = memory.NewStaticTestLoader(nil)
	if pool != nil {
		loader = pgstore.NewTestStore(pool)
	}

	libraryTTL := config.TTLDuration(cfg.Library.TTL, 10*time.Minute)
	var library app.LibraryRepository
	if redisClient != nil {
		library = redisinfra.NewTestLibrary(redisClient, loader, libraryTTL)
	} else {
		library = memory.NewTestLibrary(loader, libraryTTL)
	}

	var store app.SessionRepository
	if redisClient != nil {
		store = redisinfra.NewSessionStore(redisClient, redisTTL)
	} else {
		store = memory.NewSessionStore()
	}

	maxAge := config.TTLDuration(cfg.Session.MaxAge, 2*time.Hour)
	idleTimeout := config.TTLDuration(cfg.Session.IdleTimeout, 5*time.Minute)
	cleanupInterval := config.TTLDuration(cfg.Session.CleanupInterval, time.Minute)

	service := app.NewSessionService(store, log, maxAge, idleTimeout)

	cleanupCtx, stopCleanup := context.WithCancel(ctx)
	defer stopCleanup()
	service.StartCleanup(cleanupCtx, cleanupInterval)

	mux := transport.NewRouter(
		transport.NewSessionHandler(service, log),
		transport.NewWSHandler(service, log),
		transport.NewLibraryHandler(library, log),
	)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting session relay", zap.String("port", finalPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("failed to start server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server...")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
