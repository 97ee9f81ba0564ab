// Worker consumes audit events from Kafka into Postgres and purges expired sessions.
// Set DATABASE_URL and JWT_SECRET; set KAFKA_BROKERS to enable the audit consumer.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	auditconsumer "core-auth/internal/audit/consumer"
	auditrepo "core-auth/internal/audit/repository"
	"core-auth/internal/config"
	"core-auth/internal/db"
	"core-auth/internal/logging"
	"core-auth/internal/security"
	sessionrepo "core-auth/internal/session/repository"
	sessionservice "core-auth/internal/session/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.ValidateAuth(); err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.Env, cfg.ServiceName).Named("worker")
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database open failed", zap.Error(err))
	}
	defer pool.Close()

	tokens, err := security.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.AccessTTL())
	if err != nil {
		logger.Fatal("token issuer", zap.Error(err))
	}
	sessions := sessionservice.NewService(sessionrepo.NewPostgresRepository(pool), tokens, cfg.RefreshTTL())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("session janitor started", zap.Duration("interval", cfg.PurgeInterval()))
		sessions.RunJanitor(ctx, cfg.PurgeInterval(), logger)
	}()

	if brokers := cfg.KafkaBrokersList(); len(brokers) > 0 {
		consumer := auditconsumer.NewConsumer(brokers, cfg.AuditKafkaTopic, cfg.KafkaGroupID, auditrepo.NewPostgresRepository(pool), logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if err := consumer.Close(); err != nil {
					logger.Warn("audit consumer close failed", zap.Error(err))
				}
			}()
			logger.Info("audit consumer started", zap.String("topic", cfg.AuditKafkaTopic), zap.String("group", cfg.KafkaGroupID))
			if err := consumer.Run(ctx); err != nil {
				logger.Error("audit consumer stopped", zap.Error(err))
				stop()
			}
		}()
	} else {
		logger.Info("KAFKA_BROKERS not set; audit consumer disabled")
	}

	<-ctx.Done()
	logger.Info("worker: shutting down")
	wg.Wait()
	logger.Info("worker: stopped")
}
