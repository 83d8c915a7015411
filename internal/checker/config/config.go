package config

import (
	"github.com/namanxajmera/stock-alerts/pkg/config"
)

// Telegram holds bot credentials for alert delivery.
type Telegram struct {
	BotToken string `mapstructure:"bot_token"`
}

// Checker holds checker-specific configuration.
type Checker struct {
	SymbolDelay string `mapstructure:"symbol_delay"`
	RunLockTTL  string `mapstructure:"run_lock_ttl"`
	CronSpec    string `mapstructure:"cron_spec"`
}

// Config holds the full configuration for the checker service.
type Config struct {
	App      config.App      `mapstructure:"app"`
	Logger   config.Logger   `mapstructure:"logger"`
	Database config.Database `mapstructure:"database"`
	Redis    config.Redis    `mapstructure:"redis"`
	Tiingo   config.Tiingo   `mapstructure:"tiingo"`
	Cache    config.Cache    `mapstructure:"cache"`
	Telegram Telegram        `mapstructure:"telegram"`
	Checker  Checker         `mapstructure:"checker"`
}

// Load loads the checker configuration from the given path.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := config.Load(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
