// Package config содержит логику чтения конфигурации чат-магазина.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации чат-магазина.
type Config struct {
	RunAddress       string `env:"RUN_ADDRESS"`
	DatabaseURI      string `env:"DATABASE_URI"`
	GatewayAddress   string `env:"GATEWAY_ADDRESS"`
	ExtractorAddress string `env:"EXTRACTOR_ADDRESS"`
	GatewaySecret    string `env:"GATEWAY_SECRET"`

	PointsPerUnit         int64 `env:"POINTS_PER_UNIT"`
	ReferralBonus         int64 `env:"REFERRAL_BONUS"`
	RefereeBonus          int64 `env:"REFEREE_BONUS"`
	ReferralPurchaseBonus int64 `env:"REFERRAL_PURCHASE_BONUS"`
	DailyBonus            int64 `env:"DAILY_BONUS"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envCopy := *cfg

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.GatewayAddress, "g", "", "chat gateway callback address")
	flag.StringVar(&cfg.ExtractorAddress, "x", "", "text extraction service address")
	flag.StringVar(&cfg.GatewaySecret, "s", "", "gateway token secret")
	flag.Int64Var(&cfg.PointsPerUnit, "p", 1000, "points charged per currency unit")
	flag.Int64Var(&cfg.ReferralBonus, "rb", 100, "points for referrer on signup")
	flag.Int64Var(&cfg.RefereeBonus, "eb", 50, "points for referee on signup")
	flag.Int64Var(&cfg.ReferralPurchaseBonus, "pb", 100, "points for referrer on verified purchase")
	flag.Int64Var(&cfg.DailyBonus, "db", 10, "points for a daily claim")

	flag.Parse()

	// Значения из окружения имеют приоритет над флагами.
	if envCopy.RunAddress != "" {
		cfg.RunAddress = envCopy.RunAddress
	}
	if envCopy.DatabaseURI != "" {
		cfg.DatabaseURI = envCopy.DatabaseURI
	}
	if envCopy.GatewayAddress != "" {
		cfg.GatewayAddress = envCopy.GatewayAddress
	}
	if envCopy.ExtractorAddress != "" {
		cfg.ExtractorAddress = envCopy.ExtractorAddress
	}
	if envCopy.GatewaySecret != "" {
		cfg.GatewaySecret = envCopy.GatewaySecret
	}
	if envCopy.PointsPerUnit != 0 {
		cfg.PointsPerUnit = envCopy.PointsPerUnit
	}
	if envCopy.ReferralBonus != 0 {
		cfg.ReferralBonus = envCopy.ReferralBonus
	}
	if envCopy.RefereeBonus != 0 {
		cfg.RefereeBonus = envCopy.RefereeBonus
	}
	if envCopy.ReferralPurchaseBonus != 0 {
		cfg.ReferralPurchaseBonus = envCopy.ReferralPurchaseBonus
	}
	if envCopy.DailyBonus != 0 {
		cfg.DailyBonus = envCopy.DailyBonus
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.PointsPerUnit <= 0 {
		return nil, fmt.Errorf("points per unit must be positive, got %d", cfg.PointsPerUnit)
	}

	return cfg, nil
}
