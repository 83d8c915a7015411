package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

// App holds application configuration.
type App struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

// Logger holds logger configuration.
type Logger struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

// Database holds database configuration.
type Database struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"name"`
	SSLMode         string `mapstructure:"ssl_mode"`
	TimeZone        string `mapstructure:"time_zone"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
	LogLevel        string `mapstructure:"log_level"`
}

// Redis holds Redis configuration.
type Redis struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// API holds API server configuration.
type API struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Tiingo holds upstream price API configuration.
type Tiingo struct {
	BaseURL         string `mapstructure:"base_url"`
	APIToken        string `mapstructure:"api_token"`
	RequestTimeout  string `mapstructure:"request_timeout"`
	MaxRetries      int    `mapstructure:"max_retries"`
	RequestDelay    string `mapstructure:"request_delay"`
	HourlyHardLimit int    `mapstructure:"hourly_hard_limit"`
	DailyHardLimit  int    `mapstructure:"daily_hard_limit"`
	SafeHourlyLimit int    `mapstructure:"safe_hourly_limit"`
	SafeDailyLimit  int    `mapstructure:"safe_daily_limit"`
}

// Cache holds freshness TTL configuration for the persistent caches.
type Cache struct {
	StockMaxAgeHours int `mapstructure:"stock_max_age_hours"`
	StatsMaxAgeHours int `mapstructure:"stats_max_age_hours"`
}

// Load loads configuration from a file into the given config struct.
func Load(path string, config interface{}) error {
	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		log.Println("Failed to read config file, falling back to environment variables")
	}

	return viper.Unmarshal(config)
}
