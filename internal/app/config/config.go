package config

import "time"

type Config struct {
	RunAddress  string `env:"RUN_ADDRESS"`
	DatabaseURI string `env:"DATABASE_URI"`
	SecretKey   string `env:"SECRET_KEY"`
	LogLevel    string `env:"LOG_LEVEL"`

	RedisAddress string `env:"REDIS_ADDRESS"`
	// Name of the shared set holding reserved payment fingerprints.
	AmountsKey string `env:"REDIS_AMOUNTS_KEY"`

	BankAddress      string `env:"BANK_ADDRESS"`
	BankPinCode      string `env:"BANK_PIN_CODE"`
	BankRefreshToken string `env:"BANK_REFRESH_TOKEN"`
	ClientTimeout    int    `env:"CLIENT_TIMEOUT"`

	// PendingWindow bounds how long an unpaid order or top-up may wait
	// before the sweeper cancels it.
	PendingWindow time.Duration `env:"PENDING_WINDOW"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL"`
}
