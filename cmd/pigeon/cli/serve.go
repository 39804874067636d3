package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pigeonhq/pigeon/internal/auth"
	"github.com/pigeonhq/pigeon/internal/config"
	"github.com/pigeonhq/pigeon/internal/counter"
	"github.com/pigeonhq/pigeon/internal/credstore"
	"github.com/pigeonhq/pigeon/internal/provider"
	"github.com/pigeonhq/pigeon/internal/queue"
	"github.com/pigeonhq/pigeon/internal/ratelimit"
	"github.com/pigeonhq/pigeon/internal/retry"
	"github.com/pigeonhq/pigeon/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		host string
		dev  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Pigeon API gateway",
		Long:  "Start the HTTP server that accepts, authenticates, rate-limits, and queues notification requests.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, host, port, dev)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP listen port (overrides config)")
	cmd.Flags().StringVar(&host, "host", "", "HTTP listen host (overrides config)")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (debug logging)")

	return cmd
}

func runServe(cmd *cobra.Command, host string, port int, dev bool) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if host != "" {
		cfg.Server.Host = host
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	if dataDir != "" {
		cfg.Creds.DataDir = dataDir
	}

	logger := newLogger(cfg.Logging, dev)

	// 1. Credential store.
	var (
		creds credstore.Store
		admin credstore.AdminStore
	)
	switch cfg.Creds.Driver {
	case "postgres":
		pg, err := credstore.NewPostgresStore(cfg.Creds.DSN, retry.DefaultPolicy())
		if err != nil {
			return fmt.Errorf("open credential store: %w", err)
		}
		creds = pg
	default:
		lite, err := credstore.NewSQLiteStore(cfg.Creds.DataDir)
		if err != nil {
			return fmt.Errorf("open credential store: %w", err)
		}
		if cfg.Creds.SeedFile != "" {
			seed, err := credstore.LoadSeedFile(cfg.Creds.SeedFile)
			if err != nil {
				return fmt.Errorf("load seed file: %w", err)
			}
			services, keys, err := seed.Apply(context.Background(), lite)
			if err != nil {
				return fmt.Errorf("apply seed file: %w", err)
			}
			logger.Info("credential store seeded",
				"path", cfg.Creds.SeedFile, "services", services, "api_keys", keys)
		}
		creds = lite
		admin = lite
	}
	defer creds.Close()
	logger.Info("credential store initialized", "driver", cfg.Creds.Driver)

	// 2. Counter store. Missing Redis is not fatal: the gates fall back
	// to no-op strategies and every request is admitted.
	var counters counter.Store
	if cfg.Redis.URL != "" {
		rs, err := counter.NewRedisStore(counter.RedisConfig{
			URL:         cfg.Redis.URL,
			DialTimeout: cfg.Redis.DialTimeout,
			OpTimeout:   cfg.Redis.OpTimeout,
		}, retry.NoBackoff(), logger)
		if err != nil {
			logger.Error("redis unavailable, rate limiting disabled", "error", err)
		} else {
			counters = rs
			defer rs.Close()
			logger.Info("counter store initialized", "url", cfg.Redis.URL)
		}
	}

	// 3. Admission strategies.
	serviceStrategy, dailyStrategy := buildStrategies(cfg.RateLimit, counters != nil, logger)

	// 4. Trust resolver.
	adminSecret := cfg.Auth.AdminSecret
	if adminSecret == "" {
		if !dev {
			return fmt.Errorf("auth.admin_secret is required (set PIGEON_AUTH_ADMIN_SECRET)")
		}
		adminSecret = "pigeon-dev-secret-change-me"
		logger.Warn("using built-in development admin secret")
	}
	resolver := auth.NewResolver(creds, auth.Config{
		AdminSecret: []byte(adminSecret),
		Algorithm:   cfg.Auth.Algorithm,
		Window:      cfg.Auth.Window(),
		Leeway:      cfg.Auth.Leeway(),
	}, logger)

	// 5. Delivery pipeline.
	q := queue.NewMemory(cfg.Queue.Capacity)
	defer q.Close()
	prov := provider.NewLogProvider(logger)
	dispatcher := queue.NewDispatcher(q, prov, prov, logger)
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	defer stopDispatch()
	go func() {
		if err := dispatcher.Run(dispatchCtx); err != nil {
			logger.Error("dispatcher stopped", "error", err)
		}
	}()

	// 6. HTTP server.
	srv := server.New(server.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		CORSOrigins:     cfg.Server.CORSOrigins,
		IPRateLimit:     cfg.Server.IPRateLimit,
		Version:         versionString(),
	}, server.Deps{
		Resolver: resolver,
		Creds:    creds,
		Admin:    admin,
		Counters: counters,
		Queue:    q,
		Service:  serviceStrategy,
		Daily:    dailyStrategy,
	}, logger)

	fmt.Fprintf(cmd.OutOrStdout(), "→ Pigeon %s\n", versionString())
	fmt.Fprintf(cmd.OutOrStdout(), "→ Listening on http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Fprintf(cmd.OutOrStdout(), "→ Health: http://%s:%d/healthz\n", cfg.Server.Host, cfg.Server.Port)

	return srv.ListenAndServe()
}

func newLogger(cfg config.LoggingConfig, dev bool) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if dev {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// buildStrategies compiles the configured strategy names, falling back to
// no-op (with a log line) on unknown names or a missing counter store.
func buildStrategies(cfg config.RateLimitConfig, haveCounters bool, logger *slog.Logger) (ratelimit.Strategy, ratelimit.Strategy) {
	if !haveCounters {
		if cfg.Strategy != ratelimit.StrategyNoop || cfg.DailyStrategy != ratelimit.StrategyNoop {
			logger.Warn("no counter store configured, rate limiting disabled")
		}
		return ratelimit.NoOp{}, ratelimit.NoOp{}
	}

	svc, err := ratelimit.NewServiceStrategy(cfg.Strategy, cfg.Limit, cfg.WindowSeconds)
	if err != nil {
		logger.Error("invalid rate limiting strategy, using noop", "error", err)
		svc = ratelimit.NoOp{}
	}
	daily, err := ratelimit.NewDailyStrategy(cfg.DailyStrategy, cfg.DailyLimit)
	if err != nil {
		logger.Error("invalid daily rate limiting strategy, using noop", "error", err)
		daily = ratelimit.NoOp{}
	}
	return svc, daily
}
