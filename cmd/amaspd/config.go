package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"github.com/xvzf/amasp/internal/link"
)

type Config struct {
	Link link.Config `mapstructure:",squash"`

	// ListenAddr is the address of the prometheus endpoint
	ListenAddr string `mapstructure:"listen_addr"`
	// Production switches to JSON logs
	Production bool `mapstructure:"production"`
}

func setDefaults(v *viper.Viper) {
	def := link.DefaultConfig()
	v.SetDefault("port", "/dev/ttyUSB0")
	v.SetDefault("baud_rate", def.Serial.BaudRate)
	v.SetDefault("read_timeout", def.ReadTimeout)
	v.SetDefault("poll_interval", def.PollInterval)
	v.SetDefault("checksum", def.Checksum)
	v.SetDefault("role", string(def.Role))
	v.SetDefault("request_timeout", def.RequestTimeout)
	v.SetDefault("echo", false)
	v.SetDefault("listen_addr", ":9667")
	v.SetDefault("production", false)
}

// loadConfig reads the configuration file, if any, and applies AMASPD_
// environment overrides on top of the defaults.
func loadConfig(file string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("amaspd")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/amaspd/")
		v.AddConfigPath("$HOME/.amaspd")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if _, err := cfg.Link.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
