package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/config"
	"timed-quiz-service/internal/infra/memory"
	"timed-quiz-service/internal/infra/postgres"
	infraredis "timed-quiz-service/internal/infra/redis"
	transport "timed-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, logger, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if ctx == nil {
		ctx = context.Background()
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
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

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	service := app.NewContentService(store, logger.Named("app"), app.Options{
		VerifyScores: cfg.Scoring.Verify,
		Hub:          app.NewLeaderboardHub(),
		Metrics:      app.NewMetrics(registry),
	})
	api := transport.NewServer(service, logger.Named("http"), transport.Options{
		AdminSecret:       cfg.Admin.Secret,
		RegistrationRate:  cfg.Server.RegistrationRate,
		RegistrationBurst: cfg.Server.RegistrationBurst,
		Registry:          registry,
	})

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// no WriteTimeout: /ws/leaderboard holds connections open
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting quiz service", zap.String("addr", server.Addr), zap.Bool("admin_gate", cfg.Admin.Secret != ""))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	case err := <-errCh:
		logger.Error("server failed", zap.Error(err))
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// openStore picks the backend: postgres (with a redis or in-process list
// cache), then redis, then memory.
func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (app.Store, func(), error) {
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	cacheTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
	closeRedis := func() {
		if redisClient != nil {
			_ = redisClient.Close()
		}
	}

	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			closeRedis()
			return nil, nil, err
		}
		closeAll := func() {
			pool.Close()
			closeRedis()
		}
		base := postgres.NewStore(pool)
		if redisClient != nil {
			logger.Info("using postgres store with redis question cache", zap.Duration("ttl", cacheTTL))
			return infraredis.NewQuestionCache(base, redisClient, cacheTTL, logger.Named("cache")), closeAll, nil
		}
		logger.Info("using postgres store with in-process question cache", zap.Duration("ttl", cacheTTL))
		return memory.NewQuestionCache(base, cacheTTL), closeAll, nil
	}

	if redisClient != nil {
		if err := redisClient.Ping(ctx).Err(); err != nil {
			closeRedis()
			return nil, nil, err
		}
		logger.Info("using redis store", zap.String("addr", cfg.Redis.Addr))
		return infraredis.NewStore(redisClient), closeRedis, nil
	}

	logger.Warn("no persistent store configured, data lives in memory")
	return memory.NewStore(), func() {}, nil
}
