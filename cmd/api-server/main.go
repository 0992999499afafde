package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/curalink/booking-engine/internal/api"
	"github.com/curalink/booking-engine/internal/booking"
	"github.com/curalink/booking-engine/internal/config"
	"github.com/curalink/booking-engine/internal/db"
	"github.com/curalink/booking-engine/internal/otp"
	redisclient "github.com/curalink/booking-engine/internal/redis"
)

const version = "1.0.0"

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()
	sugar := logger.Sugar()

	sugar.Info("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		sugar.Fatalw("config load error", "error", err)
	}

	sugar.Infow("configuration loaded", "env", cfg.Env, "http_port", cfg.HTTPPort, "lock_ttl", cfg.LockTTL, "otp_ttl", cfg.OTPTTL)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		sugar.Fatalw("postgres connection error", "error", err)
	}
	defer pgPool.Close()
	sugar.Info("connected to Postgres")

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		sugar.Fatalw("redis connection error", "error", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			sugar.Warnw("error closing redis", "error", err)
		}
	}()
	sugar.Info("connected to Redis")

	repo := booking.NewPgRepository(pgPool)

	migCtx, cancelMig := context.WithTimeout(rootCtx, 30*time.Second)
	err = repo.Migrate(migCtx)
	cancelMig()
	if err != nil {
		sugar.Fatalw("migration error", "error", err)
	}
	sugar.Info("schema up to date")

	locker := redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)
	bookingSvc := booking.NewService(repo, locker, logger)

	codec := otp.NewCodec(cfg.OTPSecret, cfg.OTPTTL)
	mailer := otp.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPSender)
	otpSvc := otp.NewService(codec, mailer, logger)

	router := api.NewRouter(api.RouterConfig{
		Booking: bookingSvc,
		OTP:     otpSvc,
		PgPool:  pgPool,
		Redis:   rdb,
		Logger:  logger,
		Env:     cfg.Env,
		Version: version,
	})

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}

	g, gCtx := errgroup.WithContext(rootCtx)

	g.Go(func() error {
		sugar.Infow("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		sugar.Info("shutting down api-server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("api-server terminated with error", "error", err)
	}
}
