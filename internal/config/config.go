// Package config loads the server's startup options (spec §6
// "Configuration") via viper: environment variables prefixed
// GRAPHCORE_, an optional config file, and hard-coded defaults.
package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config is the resolved set of startup options (spec §6's table).
type Config struct {
	TCPPort            int      `mapstructure:"tcp-port"`
	WSPort             int      `mapstructure:"ws-port"`
	EnableWebSocket    bool     `mapstructure:"enable-websocket?"`
	AllowedOrigins     []string `mapstructure:"allowed-origins"`
	MaxMessageBytes    int      `mapstructure:"max-message-bytes"`
	DefaultTimeoutMs   int      `mapstructure:"default-timeout-ms"`
	SocketReadTimeoutMs int     `mapstructure:"socket-read-timeout-ms"`
	BatchSize          int      `mapstructure:"batch-size"`
	RefType            string   `mapstructure:"ref-type"`
	StoragePath        string   `mapstructure:"storage-path"`
	DebugLog           bool     `mapstructure:"debug-log?"`
	DataDir            string   `mapstructure:"data-dir"`
}

// Load resolves Config from the environment, an optional config file
// named "graphcore" on the working directory's path, and the defaults
// below, in viper's usual precedence order (explicit Set > flag > env >
// config file > default).
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("graphcore")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", "?", ""))
	v.AutomaticEnv()

	v.SetConfigName("graphcore")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/graphcore")

	v.SetDefault("tcp-port", 47632)
	v.SetDefault("ws-port", 47633)
	v.SetDefault("enable-websocket?", true)
	v.SetDefault("allowed-origins", []string{"http://localhost", "http://127.0.0.1"})
	v.SetDefault("max-message-bytes", 10*1024*1024)
	v.SetDefault("default-timeout-ms", 30_000)
	v.SetDefault("socket-read-timeout-ms", 200)
	v.SetDefault("batch-size", 5_000)
	v.SetDefault("ref-type", "soft")
	v.SetDefault("storage-path", "")
	v.SetDefault("debug-log?", true)
	v.SetDefault("data-dir", "")

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// OverrideTCPPort applies the CLI's single positional port argument,
// which takes precedence over every other source (spec §6 CLI).
func (c *Config) OverrideTCPPort(port int) {
	c.TCPPort = port
}
