// seed registers a development account for local testing.
// Idempotent: does nothing if the username already exists.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	accountdomain "core-auth/internal/account/domain"
	accountrepo "core-auth/internal/account/repository"
	"core-auth/internal/config"
	"core-auth/internal/db"
	"core-auth/internal/logging"
	"core-auth/internal/security"
)

func main() {
	username := flag.String("username", "dev", "username of the seeded account")
	password := flag.String("password", "password123", "password of the seeded account")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.Env, cfg.ServiceName).Named("seed")
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database open failed", zap.Error(err))
	}
	defer pool.Close()

	accounts := accountrepo.NewPostgresRepository(pool)
	existing, err := accounts.GetByUsername(ctx, *username)
	if err != nil {
		logger.Fatal("seed check failed", zap.Error(err))
	}
	if existing != nil {
		logger.Info("seed already applied; skipping", zap.String("account_id", existing.ID))
		return
	}

	hasher := security.NewHasher(security.HasherParams{
		Memory:  uint32(cfg.Argon2MemoryKB),
		Time:    uint32(cfg.Argon2Time),
		Threads: uint8(cfg.Argon2Threads),
	})
	hash, err := hasher.Hash(*password)
	if err != nil {
		logger.Fatal("hash password", zap.Error(err))
	}
	now := time.Now().UTC()
	id, err := accounts.Create(ctx, &accountdomain.Account{
		ID:           accountdomain.NewID(),
		Username:     *username,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		logger.Fatal("create account", zap.Error(err))
	}
	logger.Info("seeded account", zap.String("account_id", id), zap.String("username", *username))
}
