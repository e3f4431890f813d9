package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/axegao/axegaoshop/internal/app/config"
	"github.com/axegao/axegaoshop/internal/app/logger"
	"github.com/axegao/axegaoshop/internal/app/server"
)

func main() {
	// a missing .env is fine, env vars and flags still apply
	_ = godotenv.Load()

	cfg := config.Config{
		RunAddress:    "localhost:8080",
		DatabaseURI:   "postgres://localhost:5432/axegaoshop",
		SecretKey:     "",
		LogLevel:      "info",
		RedisAddress:  "localhost:6379",
		AmountsKey:    "payment:amounts",
		BankAddress:   "https://finance.ozon.ru",
		ClientTimeout: 5,
		PendingWindow: 10 * time.Minute,
		SweepInterval: 4 * time.Second,
	}

	if err := env.Parse(&cfg); err != nil {
		logger.Logger.Fatal().Err(err).Msg("")
	}

	flag.StringVar(&cfg.RunAddress, "a", cfg.RunAddress, "run address")
	flag.StringVar(&cfg.DatabaseURI, "d", cfg.DatabaseURI, "database URI")
	flag.StringVar(&cfg.RedisAddress, "r", cfg.RedisAddress, "redis address")
	flag.StringVar(&cfg.BankAddress, "b", cfg.BankAddress, "bank API address")
	flag.StringVar(&cfg.SecretKey, "s", cfg.SecretKey, "secret key")
	flag.Parse()

	logger.SetLevel(cfg.LogLevel)

	if cfg.SecretKey == "" {
		randBytes := make([]byte, 16)
		if _, err := rand.Read(randBytes); err != nil {
			logger.Logger.Fatal().Err(err).Msg("")
		}
		cfg.SecretKey = hex.EncodeToString(randBytes)
	}

	if err := server.Serve(&cfg); err != nil {
		logger.Logger.Fatal().Err(err).Msg("")
	}
}
