// Package config содержит логику чтения конфигурации сервиса маркетплейса.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config содержит параметры конфигурации сервиса маркетплейса.
type Config struct {
	RunAddress  string `env:"RUN_ADDRESS"`
	DatabaseURI string `env:"DATABASE_URI"`
	LogLevel    string `env:"LOG_LEVEL"`

	JWTSecret string        `env:"JWT_SECRET"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"24h"`

	// ManagerEmail и ManagerPassword задают менеджера, создаваемого при старте.
	ManagerEmail    string `env:"MANAGER_EMAIL"`
	ManagerPassword string `env:"MANAGER_PASSWORD"`

	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"1h"`
	RateLimit     float64       `env:"RATE_LIMIT" envDefault:"10"`
	RateBurst     int           `env:"RATE_BURST" envDefault:"20"`

	Policy Policy
}

// Policy содержит пороги бизнес-правил.
type Policy struct {
	DemotionComplaints int     `env:"DEMOTION_COMPLAINTS" envDefault:"3"`
	DemotionRating     float64 `env:"DEMOTION_RATING" envDefault:"2"`
	WarningRating      float64 `env:"WARNING_RATING" envDefault:"2.5"`
	BonusCompliments   int     `env:"BONUS_COMPLIMENTS" envDefault:"3"`
	BonusRating        float64 `env:"BONUS_RATING" envDefault:"4"`
	WageCut            int64   `env:"WAGE_CUT" envDefault:"1000"`
	BonusAmount        int64   `env:"BONUS_AMOUNT" envDefault:"1000"`
	StartingWage       int64   `env:"STARTING_WAGE" envDefault:"50000"`

	BlacklistWarnings   int   `env:"BLACKLIST_WARNINGS" envDefault:"3"`
	VIPDemotionWarnings int   `env:"VIP_DEMOTION_WARNINGS" envDefault:"2"`
	VIPSpendThreshold   int64 `env:"VIP_SPEND_THRESHOLD" envDefault:"10000"`
	VIPOrderThreshold   int   `env:"VIP_ORDER_THRESHOLD" envDefault:"5"`

	VIPDiscountPct    int64 `env:"VIP_DISCOUNT_PCT" envDefault:"5"`
	DeliveryFee       int64 `env:"DELIVERY_FEE" envDefault:"500"`
	FreeDeliveryEvery int   `env:"FREE_DELIVERY_EVERY" envDefault:"3"`

	BidWindow   time.Duration `env:"BID_WINDOW" envDefault:"30m"`
	BidThrottle time.Duration `env:"BID_THROTTLE" envDefault:"30s"`
}

// Parse считывает конфигурацию из файла .env, флагов командной строки и переменных
// окружения. Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envLogLevel := cfg.LogLevel

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI, in-memory storage if empty")
	flag.StringVar(&cfg.LogLevel, "l", "info", "log level")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envLogLevel != "" {
		cfg.LogLevel = envLogLevel
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.ManagerEmail != "" && cfg.ManagerPassword == "" {
		return nil, fmt.Errorf("MANAGER_PASSWORD is required when MANAGER_EMAIL is set")
	}

	return cfg, nil
}
