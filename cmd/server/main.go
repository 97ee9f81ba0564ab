// server runs the core-auth gRPC API. See internal/config for the environment it reads.
package main

import (
	"context"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	accountrepo "core-auth/internal/account/repository"
	"core-auth/internal/audit"
	"core-auth/internal/audit/producer"
	"core-auth/internal/config"
	"core-auth/internal/db"
	healthhandler "core-auth/internal/health/handler"
	identityhandler "core-auth/internal/identity/handler"
	identityservice "core-auth/internal/identity/service"
	"core-auth/internal/lockout"
	"core-auth/internal/logging"
	"core-auth/internal/security"
	"core-auth/internal/server"
	sessionrepo "core-auth/internal/session/repository"
	sessionservice "core-auth/internal/session/service"
	telemetryotel "core-auth/internal/telemetry/otel"
)

const healthInterval = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.ValidateAuth(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.Env, cfg.ServiceName)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var emitters audit.MultiEmitter
	emitters = append(emitters, audit.NewLogEmitter(logger))

	if cfg.OTLPEndpoint != "" {
		providers, err := telemetryotel.NewProviders(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.OTLPInsecure)
		if err != nil {
			logger.Fatal("otel setup failed", zap.Error(err))
		}
		providers.SetGlobal()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := providers.Shutdown(shutdownCtx); err != nil {
				logger.Warn("otel shutdown failed", zap.Error(err))
			}
		}()
		emitters = append(emitters, telemetryotel.NewAuditEmitter(providers.LoggerProvider))
		logger.Info("otel export enabled", zap.String("endpoint", cfg.OTLPEndpoint))
	}

	if brokers := cfg.KafkaBrokersList(); len(brokers) > 0 {
		kp := producer.NewKafkaProducer(brokers, cfg.AuditKafkaTopic)
		defer func() {
			if err := kp.Close(); err != nil {
				logger.Warn("kafka producer close failed", zap.Error(err))
			}
		}()
		emitters = append(emitters, kp)
		logger.Info("audit stream enabled", zap.Strings("brokers", brokers), zap.String("topic", cfg.AuditKafkaTopic))
	}

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database open failed", zap.Error(err))
	}
	defer pool.Close()

	tokens, err := security.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.AccessTTL())
	if err != nil {
		logger.Fatal("token issuer", zap.Error(err))
	}
	hasher := security.NewHasher(security.HasherParams{
		Memory:  uint32(cfg.Argon2MemoryKB),
		Time:    uint32(cfg.Argon2Time),
		Threads: uint8(cfg.Argon2Threads),
	})
	sessions := sessionservice.NewService(sessionrepo.NewPostgresRepository(pool), tokens, cfg.RefreshTTL())

	opts := []identityservice.Option{
		identityservice.WithAudit(emitters),
		identityservice.WithLogger(logger),
	}
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal("invalid REDIS_URL", zap.Error(err))
		}
		rdb := redis.NewClient(redisOpts)
		defer rdb.Close()
		opts = append(opts, identityservice.WithLockout(lockout.NewLimiter(rdb, lockout.Config{
			Threshold: cfg.LockoutThreshold,
			Window:    cfg.LockoutDuration(),
		})))
		logger.Info("login lockout enabled", zap.Int("threshold", cfg.LockoutThreshold), zap.Duration("window", cfg.LockoutDuration()))
	}
	auth := identityservice.NewAuthService(accountrepo.NewPostgresRepository(pool), sessions, hasher, cfg.ServiceName, opts...)

	health := healthhandler.NewServer(pool, identityhandler.ServiceName, logger)
	go health.Run(ctx, healthInterval)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Fatal("listen failed", zap.Error(err))
	}
	defer lis.Close()

	s := server.NewServer(server.Deps{Auth: auth, Health: health, Logger: logger})

	go func() {
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		if err := s.Serve(lis); err != nil {
			logger.Fatal("serve failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down gRPC server")
	health.Shutdown()
	s.GracefulStop()
	// Async audit emits use their own context; give them time to finish.
	time.Sleep(audit.ShutdownDrainDuration)
	logger.Info("gRPC server stopped")
}
