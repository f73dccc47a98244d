// Package config loads service configuration from an optional config.yaml
// plus AGENTPARTY_-prefixed environment variables. Every knob has a
// default; a missing config file is not an error.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the configuration for the service
type Config struct {
	LogLevel string `mapstructure:"log_level"`

	Catalog struct {
		AgentsDir    string `mapstructure:"agents_dir"`
		WorkflowsDir string `mapstructure:"workflows_dir"`
		JobsDir      string `mapstructure:"jobs_dir"`
		Watch        bool   `mapstructure:"watch"`
	} `mapstructure:"catalog"`

	Store struct {
		UseMemory bool   `mapstructure:"use_memory"`
		Table     string `mapstructure:"table"`
		Region    string `mapstructure:"region"`
		Endpoint  string `mapstructure:"endpoint"`
	} `mapstructure:"store"`

	Session struct {
		TTL                 time.Duration `mapstructure:"ttl"`
		BudgetUSD           float64       `mapstructure:"budget_usd"`
		BudgetResetInterval time.Duration `mapstructure:"budget_reset_interval"`
		WarningThreshold    float64       `mapstructure:"warning_threshold"`
		CleanupInterval     time.Duration `mapstructure:"cleanup_interval"`
	} `mapstructure:"session"`

	HTTP struct {
		Enable bool   `mapstructure:"enable"`
		Addr   string `mapstructure:"addr"`
	} `mapstructure:"http"`
}

// Load reads configuration from configPath (or the working directory when
// empty) and the environment
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix("AGENTPARTY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("catalog.agents_dir", "catalog/agents")
	v.SetDefault("catalog.workflows_dir", "catalog/workflows")
	v.SetDefault("catalog.jobs_dir", "catalog/jobs")
	v.SetDefault("catalog.watch", true)

	v.SetDefault("store.use_memory", false)
	v.SetDefault("store.table", "agentparty")
	v.SetDefault("store.region", "us-east-1")
	v.SetDefault("store.endpoint", "")

	v.SetDefault("session.ttl", 24*time.Hour)
	v.SetDefault("session.budget_usd", 10.0)
	v.SetDefault("session.budget_reset_interval", 24*time.Hour)
	v.SetDefault("session.warning_threshold", 0.8)
	v.SetDefault("session.cleanup_interval", time.Hour)

	v.SetDefault("http.enable", true)
	v.SetDefault("http.addr", ":3000")
}
