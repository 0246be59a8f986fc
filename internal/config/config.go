package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode       string `mapstructure:"mode"`
	Port       int    `mapstructure:"port"`
	Secret     string `mapstructure:"secret"`
	StaticPath string `mapstructure:"static_path"`

	LogLevel  string `mapstructure:"log_level"`
	LogPretty bool   `mapstructure:"log_pretty"`

	ReadLimit         int64         `mapstructure:"read_limit"`
	BackpressureBytes int           `mapstructure:"backpressure_bytes"`
	HeartbeatEvery    int           `mapstructure:"heartbeat_every"`
	EconomyTick       time.Duration `mapstructure:"economy_tick"`
	QueueTick         time.Duration `mapstructure:"queue_tick"`
	SessionsRefresh   time.Duration `mapstructure:"sessions_refresh"`
	FallbackViewers   int           `mapstructure:"fallback_viewers"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("secret", "colonycast")
	v.SetDefault("static_path", "./web")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", true)
	v.SetDefault("read_limit", 16<<20)
	v.SetDefault("backpressure_bytes", 64<<10)
	v.SetDefault("heartbeat_every", 30)
	v.SetDefault("economy_tick", "10s")
	v.SetDefault("queue_tick", "1s")
	v.SetDefault("sessions_refresh", "30s")
	v.SetDefault("fallback_viewers", 50)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
