// Command accountd serves the account API over HTTP.
//
// Configuration comes from the environment: the JWT_* and ACCOUNT_* variables
// read by goAccount.LoadConfigFromEnv, plus the variables in serverEnv.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goAccount "github.com/MrEthical07/goAccount"
	"github.com/MrEthical07/goAccount/middleware"
	"github.com/MrEthical07/goAccount/store/postgres"
	"github.com/caarlos0/env/v11"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
)

type serverEnv struct {
	Port          string        `env:"PORT"              envDefault:"8080"`
	RedisHost     string        `env:"REDIS_HOST"        envDefault:"localhost"`
	RedisPort     string        `env:"REDIS_PORT"        envDefault:"6379"`
	RedisPassword string        `env:"REDIS_PW"`
	DatabaseURL   string        `env:"DATABASE_URL,required"`
	Migrate       bool          `env:"ACCOUNT_DB_MIGRATE" envDefault:"true"`
	LogLevel      slog.Level    `env:"LOG_LEVEL"         envDefault:"INFO"`
	ShutdownWait  time.Duration `env:"SHUTDOWN_TIMEOUT"  envDefault:"10s"`
	// TrustedProxies lists proxy addresses or CIDRs whose X-Forwarded-For
	// header is honoured. Empty means the peer address is the client.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`
}

func main() {
	if err := run(); err != nil {
		slog.Error("accountd exited", "err", err)
		os.Exit(1)
	}
}

func run() error {
	var senv serverEnv
	if err := env.Parse(&senv); err != nil {
		return fmt.Errorf("parse server env: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: senv.LogLevel}))
	slog.SetDefault(logger)

	cfg, err := goAccount.LoadConfigFromEnv()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(senv.RedisHost, senv.RedisPort),
		Password: senv.RedisPassword,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	db, err := sql.Open("pgx", senv.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if senv.Migrate {
		if err := postgres.Migrate(ctx, db, postgres.AdminUsersTable, postgres.ConsumerUsersTable); err != nil {
			return err
		}
		seeded, err := postgres.Seed(ctx, db)
		if err != nil {
			return err
		}
		if seeded {
			logger.Info("seeded default roles and permissions")
		}
	}

	admins, err := postgres.NewUserStore(db, postgres.AdminUsersTable)
	if err != nil {
		return err
	}
	consumers, err := postgres.NewUserStore(db, postgres.ConsumerUsersTable)
	if err != nil {
		return err
	}
	roles, err := postgres.NewRoleStore(db)
	if err != nil {
		return err
	}

	engine, err := goAccount.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(goAccount.PlatformAdmin, admins).
		WithUserStore(goAccount.PlatformConsumer, consumers).
		WithRoleStore(roles).
		WithLogger(logger).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	report := engine.SecurityReport()
	logger.Info("engine ready",
		"alg", report.SigningAlgorithm,
		"access_ttl", report.AccessTTL,
		"refresh_ttl", report.RefreshTTL,
		"login_throttle", report.LoginThrottleActive,
		"onetime_throttle", report.OneTimeThrottleActive,
		"audit", report.AuditEnabled,
	)

	ips, err := middleware.NewIPResolver(senv.TrustedProxies...)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + senv.Port,
		Handler:           newRouter(newServer(engine, logNotifier{logger: logger}, logger, ips)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), senv.ShutdownWait)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
