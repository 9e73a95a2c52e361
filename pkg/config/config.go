// Package config provides a reusable loader for the conformance harness's
// configuration files and environment variables: a default YAML file, an
// optional named overlay, and environment-variable overrides, all via
// viper.
//
// Version: v0.1.0
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"jamconform/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config is the unified configuration for either binary; a given process
// only reads the section it needs, but both can share one config file.
type Config struct {
	Target struct {
		Socket     string `mapstructure:"socket" json:"socket"`
		Verbose    bool   `mapstructure:"verbose" json:"verbose"`
		TraceScope string `mapstructure:"trace_scope" json:"trace_scope"`
		Params     string `mapstructure:"params" json:"params"`
	} `mapstructure:"target" json:"target"`

	Fuzzer struct {
		Socket  string `mapstructure:"socket" json:"socket"`
		Seed    uint64 `mapstructure:"seed" json:"seed"`
		Blocks  int    `mapstructure:"blocks" json:"blocks"`
		Output  string `mapstructure:"output" json:"output"`
		Verbose bool   `mapstructure:"verbose" json:"verbose"`
		Params  string `mapstructure:"params" json:"params"`
	} `mapstructure:"fuzzer" json:"fuzzer"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads the default configuration file and merges an optional
// environment-specific overlay, then applies environment-variable
// overrides. The resulting configuration is stored in AppConfig and
// returned. If no config file is found, sane zero-value defaults are filled
// in by the caller's flag parsing instead — this is not itself an error.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, utils.Wrap(err, "load config")
		}
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv()

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the JAMCONFORM_ENV environment
// variable to select the overlay.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("JAMCONFORM_ENV", ""))
}
