package main

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is parquedbctl's configuration: the on-disk database location
// plus the same tunables engine.Config exposes, loaded from a config
// file (default .parquedbctl.yaml) and environment variables prefixed
// PARQUEDB_, the environment taking precedence over the file. No
// command-line flag sets these values.
type Config struct {
	DBPath               string        `mapstructure:"dbPath"`
	CacheCapacityBytes   int           `mapstructure:"cacheCapacityBytes"`
	CacheTTL             time.Duration `mapstructure:"cacheTtl"`
	RowGroupSize         int           `mapstructure:"rowGroupSize"`
	CompactionMinAge     time.Duration `mapstructure:"compactionMinAge"`
	CompactionMaxPending int           `mapstructure:"compactionMaxPending"`
}

func loadConfig(configFile string) (*Config, error) {
	v := viper.New()
	v.SetDefault("dbPath", ".db")
	v.SetDefault("cacheCapacityBytes", 64<<20)
	v.SetDefault("cacheTtl", 0)
	v.SetDefault("rowGroupSize", 0)
	v.SetDefault("compactionMinAge", 5*time.Minute)
	v.SetDefault("compactionMaxPending", 50)

	v.SetEnvPrefix("PARQUEDB")
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(".parquedbctl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}
