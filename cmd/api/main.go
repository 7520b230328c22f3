package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/productr-api/internal/application/auth"
	"github.com/productr-api/internal/application/notification"
	"github.com/productr-api/internal/config"
	"github.com/productr-api/internal/infrastructure/cache"
	"github.com/productr-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/productr-api/internal/infrastructure/jwt"
	"github.com/productr-api/internal/infrastructure/memory"
	"github.com/productr-api/internal/infrastructure/postgres"
	"github.com/productr-api/internal/infrastructure/smtp"
	"github.com/productr-api/internal/infrastructure/sns"
	"github.com/productr-api/internal/pkg/logger"
	"github.com/productr-api/internal/pkg/otp"
	"github.com/productr-api/internal/pkg/throttle"
	transporthttp "github.com/productr-api/internal/transport/http"
	appmiddleware "github.com/productr-api/internal/transport/http/middleware"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	zlog, err := logger.New(cfg.LogPath, cfg.LogDebug)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx := context.Background()

	store, closeStore, err := newCredentialStore(ctx, cfg, zlog)
	if err != nil {
		zlog.Fatal("credential store unavailable", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer closeStore()

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		zlog.Fatal("jwt provider", zap.Error(err))
	}

	hasher, err := newHasher(cfg)
	if err != nil {
		zlog.Fatal("otp hasher", zap.Error(err))
	}

	// SNS SMS sender is opt-in; phone OTPs are a logged no-op without it.
	var smsSender sns.SMSSender
	if cfg.SMSEnabled {
		if sender, err := sns.NewSender(cfg); err == nil {
			smsSender = sender
		} else {
			zlog.Warn("SNS sender not available", zap.Error(err))
		}
	}

	counter, closeCounter := newCounter(ctx, cfg, zlog)
	defer closeCounter()

	var limiter auth.Throttle
	if cfg.OTPRequestLimit > 0 {
		limiter = throttle.NewLimiter(counter, throttle.RequestPrefix, cfg.OTPRequestLimit, cfg.OTPRequestWindow)
	}
	var attempts auth.AttemptLimiter
	if cfg.OTPVerifyLimit > 0 {
		attempts = throttle.NewLimiter(counter, throttle.VerifyPrefix, cfg.OTPVerifyLimit, cfg.OTPRequestWindow)
	}

	proxies, err := appmiddleware.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		zlog.Fatal("TRUSTED_PROXIES", zap.Error(err))
	}

	authSvc := auth.NewService(auth.ServiceDeps{
		Store:    store,
		Notifier: notification.NewService(smtp.NewMailer(cfg), smsSender),
		Tokens:   jwtProvider,
		Hasher:   hasher,
		Limiter:  limiter,
		Attempts: attempts,
		TTL:      cfg.OTPTTL,
		EchoOTP:  cfg.EchoOTP(),
		Logger:   zlog.Named("auth"),
	})
	if cfg.EchoOTP() {
		zlog.Warn("DEV_RETURN_OTP is on: request-otp responses carry the code")
	}

	router, stopRouter := transporthttp.NewRouter(cfg, &transporthttp.Deps{
		AuthService: authSvc,
		Tokens:      jwtProvider,
		Proxies:     proxies,
		Logger:      zlog.Named("http"),
	})
	defer stopRouter()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zlog.Info("server starting",
			zap.String("port", cfg.AppPort),
			zap.String("env", cfg.AppEnv),
			zap.String("store", cfg.StoreDriver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("forced shutdown", zap.Error(err))
		return
	}
	zlog.Info("server stopped")
}

// newCredentialStore opens the backend named by STORE_DRIVER.
func newCredentialStore(ctx context.Context, cfg *config.Config, zlog *zap.Logger) (auth.CredentialStore, func(), error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return postgres.NewUserRepo(pool), pool.Close, nil
	case config.StoreMemory:
		zlog.Warn("using in-memory credential store; state is lost on restart")
		return memory.NewUserRepo(), func() {}, nil
	default:
		client, err := dynamo.NewClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		dynamo.Bootstrap(ctx, client, cfg.DynamoTables, zlog)
		return dynamo.NewUserRepo(client, cfg.DynamoTables.Users), func() {}, nil
	}
}

// newHasher keys the OTP digest with OTP_HASH_SECRET, or a sub-key of
// JWT_SECRET when that is unset.
func newHasher(cfg *config.Config) (*otp.Hasher, error) {
	if cfg.OTPHashSecret != "" {
		return otp.NewHasher([]byte(cfg.OTPHashSecret))
	}
	key, err := otp.DeriveKey([]byte(cfg.JWTSecret), "productr otp digest")
	if err != nil {
		return nil, err
	}
	return otp.NewHasher(key)
}

// newCounter returns the hit counter behind the OTP throttles, shared through
// Redis when REDIS_ADDR is set.
func newCounter(ctx context.Context, cfg *config.Config, zlog *zap.Logger) (throttle.Counter, func()) {
	if cfg.RedisAddr != "" {
		rdb, err := cache.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err == nil {
			return cache.NewCounter(rdb), func() { _ = rdb.Close() }
		}
		zlog.Warn("redis unavailable, throttling OTP requests in memory", zap.Error(err))
	}
	return throttle.NewMemoryCounter(), func() {}
}
