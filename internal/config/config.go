// Package config loads the gateway's configuration from a YAML file and
// PIGEON_-prefixed environment variables, env winning over file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the top-level gateway configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Auth      AuthConfig      `mapstructure:"auth" yaml:"auth"`
	Creds     CredsConfig     `mapstructure:"credentials" yaml:"credentials"`
	Redis     RedisConfig     `mapstructure:"redis" yaml:"redis"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
	Queue     QueueConfig     `mapstructure:"queue" yaml:"queue"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// ServerConfig controls the HTTP server behavior.
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins" yaml:"cors_origins"`
	IPRateLimit     int           `mapstructure:"ip_rate_limit" yaml:"ip_rate_limit"`
}

// AuthConfig controls token verification.
type AuthConfig struct {
	AdminSecret   string `mapstructure:"admin_secret" yaml:"admin_secret"`
	Algorithm     string `mapstructure:"algorithm" yaml:"algorithm"`
	WindowSeconds int    `mapstructure:"window_seconds" yaml:"window_seconds"`
	LeewaySeconds int    `mapstructure:"leeway_seconds" yaml:"leeway_seconds"`
}

// CredsConfig selects the credential store backend.
type CredsConfig struct {
	// Driver is "postgres" for the legacy credential database or
	// "sqlite" for the local development store.
	Driver  string `mapstructure:"driver" yaml:"driver"`
	DSN     string `mapstructure:"dsn" yaml:"dsn"`
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`
	// SeedFile optionally populates the sqlite store at startup.
	SeedFile string `mapstructure:"seed_file" yaml:"seed_file"`
}

// RedisConfig locates the counter store. An empty URL disables it and the
// admission gates fall back to no-op strategies.
type RedisConfig struct {
	URL         string        `mapstructure:"url" yaml:"url"`
	DialTimeout time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	OpTimeout   time.Duration `mapstructure:"op_timeout" yaml:"op_timeout"`
}

// RateLimitConfig selects the admission strategies and their budgets.
type RateLimitConfig struct {
	Strategy      string `mapstructure:"strategy" yaml:"strategy"`
	Limit         int    `mapstructure:"limit" yaml:"limit"`
	WindowSeconds int    `mapstructure:"window_seconds" yaml:"window_seconds"`
	DailyStrategy string `mapstructure:"daily_strategy" yaml:"daily_strategy"`
	DailyLimit    int    `mapstructure:"daily_limit" yaml:"daily_limit"`
}

// QueueConfig sizes the in-process delivery queue.
type QueueConfig struct {
	Capacity int `mapstructure:"capacity" yaml:"capacity"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Window returns the access-token expiry window as a duration.
func (c AuthConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// Leeway returns the clock-skew tolerance as a duration.
func (c AuthConfig) Leeway() time.Duration {
	return time.Duration(c.LeewaySeconds) * time.Second
}

// Load reads configuration from the given file (optional) and the
// environment. Flat keys use underscores, e.g. PIGEON_SERVER_PORT or
// PIGEON_AUTH_ADMIN_SECRET.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PIGEON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("pigeon")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.pigeon")
		// Config file is optional without an explicit path.
		v.ReadInConfig()
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.ip_rate_limit", 600)

	v.SetDefault("auth.algorithm", "HS256")
	v.SetDefault("auth.window_seconds", 60)
	v.SetDefault("auth.leeway_seconds", 30)

	v.SetDefault("credentials.driver", "sqlite")
	v.SetDefault("credentials.data_dir", "")

	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.op_timeout", 2*time.Second)

	v.SetDefault("rate_limit.strategy", "noop")
	v.SetDefault("rate_limit.limit", 3000)
	v.SetDefault("rate_limit.window_seconds", 60)
	v.SetDefault("rate_limit.daily_strategy", "noop")
	v.SetDefault("rate_limit.daily_limit", 250000)

	v.SetDefault("queue.capacity", 1024)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate rejects configurations the gateway cannot run with.
func (c *Config) Validate() error {
	switch c.Creds.Driver {
	case "sqlite":
	case "postgres":
		if c.Creds.DSN == "" {
			return fmt.Errorf("credentials.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown credentials driver %q", c.Creds.Driver)
	}
	if c.Auth.WindowSeconds <= 0 || c.Auth.LeewaySeconds < 0 {
		return fmt.Errorf("auth window/leeway out of range")
	}
	return nil
}

// WriteDefault writes a commented starter configuration to path.
func WriteDefault(path string) error {
	cfg := Config{}
	v := viper.New()
	setDefaults(v)
	if err := v.Unmarshal(&cfg); err != nil {
		return err
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
