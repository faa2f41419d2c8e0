// Package config loads server settings from a YAML file, RPCSERVE_*
// environment variables and command-line flags, in increasing order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. RPCSERVE_SERVER_ADDR.
const EnvPrefix = "RPCSERVE"

type Config struct {
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	RPC    RPCConfig    `mapstructure:"rpc" yaml:"rpc"`
	Limits LimitsConfig `mapstructure:"limits" yaml:"limits"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

type RPCConfig struct {
	Path              string        `mapstructure:"path" yaml:"path"`
	WebSocketPath     string        `mapstructure:"websocket_path" yaml:"websocket_path"`
	LegacyLookupFault bool          `mapstructure:"legacy_lookup_fault" yaml:"legacy_lookup_fault"`
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// LimitsConfig holds per-call rate limits (Rate, Burst) and the HTTP-level
// throttle (ThrottleRate, ThrottleBurst). Zero disables a limit.
type LimitsConfig struct {
	Rate          int     `mapstructure:"rate" yaml:"rate"`
	Burst         int     `mapstructure:"burst" yaml:"burst"`
	ThrottleRate  float64 `mapstructure:"throttle_rate" yaml:"throttle_rate"`
	ThrottleBurst int     `mapstructure:"throttle_burst" yaml:"throttle_burst"`
}

type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

// Default returns the settings used when nothing overrides them.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080"},
		RPC: RPCConfig{
			Path:          "/rpc",
			WebSocketPath: "/ws",
			Timeout:       30 * time.Second,
		},
		Log: LogConfig{Level: "info"},
	}
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"addr":      "server.addr",
	"rpc-path":  "rpc.path",
	"ws-path":   "rpc.websocket_path",
	"timeout":   "rpc.timeout",
	"rate":      "limits.rate",
	"burst":     "limits.burst",
	"log-level": "log.level",
}

// FlagSet returns the flags understood by Load, plus --config and --env-file.
func FlagSet(name string) *pflag.FlagSet {
	d := Default()
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "", "path to a YAML config file")
	fs.StringSlice("env-file", nil, "dotenv files to load before reading the environment")
	fs.String("addr", d.Server.Addr, "listen address")
	fs.String("rpc-path", d.RPC.Path, "HTTP path of the JSON-RPC endpoint")
	fs.String("ws-path", d.RPC.WebSocketPath, "HTTP path of the WebSocket endpoint")
	fs.Duration("timeout", d.RPC.Timeout, "per-call timeout; 0 disables")
	fs.Int("rate", d.Limits.Rate, "calls per second; 0 disables rate limiting")
	fs.Int("burst", d.Limits.Burst, "rate limit burst size")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	return fs
}

// Load reads path (skipped when empty), then the environment, then any
// flags in fs that were set on the command line.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	if fs != nil {
		for flag, key := range flagKeys {
			f := fs.Lookup(flag)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("config: bind --%s: %w", flag, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("rpc.path", d.RPC.Path)
	v.SetDefault("rpc.websocket_path", d.RPC.WebSocketPath)
	v.SetDefault("rpc.legacy_lookup_fault", d.RPC.LegacyLookupFault)
	v.SetDefault("rpc.timeout", d.RPC.Timeout)
	v.SetDefault("limits.rate", d.Limits.Rate)
	v.SetDefault("limits.burst", d.Limits.Burst)
	v.SetDefault("limits.throttle_rate", d.Limits.ThrottleRate)
	v.SetDefault("limits.throttle_burst", d.Limits.ThrottleBurst)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", d.Log.Development)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Server.Addr == "":
		return errors.New("config: server.addr is required")
	case !strings.HasPrefix(c.RPC.Path, "/"):
		return fmt.Errorf("config: rpc.path must start with /: %q", c.RPC.Path)
	case c.RPC.WebSocketPath != "" && !strings.HasPrefix(c.RPC.WebSocketPath, "/"):
		return fmt.Errorf("config: rpc.websocket_path must start with /: %q", c.RPC.WebSocketPath)
	case c.RPC.WebSocketPath == c.RPC.Path:
		return errors.New("config: rpc.path and rpc.websocket_path must differ")
	case c.RPC.Timeout < 0:
		return errors.New("config: rpc.timeout must not be negative")
	case c.Limits.Rate < 0 || c.Limits.Burst < 0:
		return errors.New("config: limits.rate and limits.burst must not be negative")
	case c.Limits.Rate > 0 && c.Limits.Burst == 0:
		return errors.New("config: limits.burst is required when limits.rate is set")
	case c.Limits.ThrottleRate < 0 || c.Limits.ThrottleBurst < 0:
		return errors.New("config: limits.throttle_rate and limits.throttle_burst must not be negative")
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: log.level: %w", err)
	}
	return nil
}

// WriteYAML writes c in the format Load reads.
func (c *Config) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}

// LoadEnv loads dotenv files into the process environment without
// overriding variables that are already set. With no arguments it loads
// ./.env if that file exists.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		files = []string{".env"}
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("config: load env: %w", err)
	}
	return nil
}

// Logger builds a zap logger for c.
func (c LogConfig) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
