// Package config loads hub settings from defaults, an optional YAML file,
// HUB_* environment variables and command line flags, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. HUB_EXTERNAL_PORT
const EnvPrefix = "HUB"

// Storage types
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// Listener is a host and port pair
type Listener struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Config holds the hub configuration
type Config struct {
	External Listener `mapstructure:"external"`
	Internal Listener `mapstructure:"internal"`

	Tokens struct {
		File                string  `mapstructure:"file"`
		ExpungeTriggerRatio float64 `mapstructure:"expunge_trigger_ratio"`
	} `mapstructure:"tokens"`

	Users struct {
		File                string  `mapstructure:"file"`
		ExpungeTriggerRatio float64 `mapstructure:"expunge_trigger_ratio"`
		BcryptCost          int     `mapstructure:"bcrypt_cost"`
	} `mapstructure:"users"`

	ExpungeInterval time.Duration `mapstructure:"expunge_interval"`
	LoginLifespan   time.Duration `mapstructure:"login_lifespan"`

	Storage struct {
		Type     string        `mapstructure:"type"`
		RedisURL string        `mapstructure:"redis_url"`
		GameTTL  time.Duration `mapstructure:"game_ttl"`
	} `mapstructure:"storage"`

	Broker struct {
		Host         string `mapstructure:"host"`
		ServerPort   int    `mapstructure:"server_port"`
		InternalPort int    `mapstructure:"internal_port"`
	} `mapstructure:"broker"`

	// Relay runs an in-process relay on the broker ports
	Relay struct {
		Local bool `mapstructure:"local"`
	} `mapstructure:"relay"`

	RateLimit struct {
		RPS   float64 `mapstructure:"rps"`
		Burst int     `mapstructure:"burst"`
	} `mapstructure:"rate_limit"`

	Verbosity int `mapstructure:"verbosity"`
}

var defaults = map[string]any{
	"external.host":                "",
	"external.port":                8080,
	"internal.host":                "127.0.0.1",
	"internal.port":                8081,
	"tokens.file":                  "tokens.jsonl",
	"tokens.expunge_trigger_ratio": 1.0,
	"users.file":                   "users.jsonl",
	"users.expunge_trigger_ratio":  1.0,
	"users.bcrypt_cost":            10,
	"expunge_interval":             time.Minute,
	"login_lifespan":               24 * time.Hour,
	"storage.type":                 StorageTypeMemory,
	"storage.redis_url":            "",
	"storage.game_ttl":             24 * time.Hour,
	"broker.host":                  "127.0.0.1",
	"broker.server_port":           9090,
	"broker.internal_port":         9091,
	"relay.local":                  false,
	"rate_limit.rps":               10.0,
	"rate_limit.burst":             20,
	"verbosity":                    2,
}

// New returns a viper instance with defaults and environment binding set up
func New() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// RegisterFlags adds the hub flags to fs
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "YAML config file")
	fs.String("external-host", "", "external listener host")
	fs.Int("external-port", 8080, "external listener port")
	fs.String("internal-host", "127.0.0.1", "internal listener host")
	fs.Int("internal-port", 8081, "internal listener port")
	fs.String("token-file", "tokens.jsonl", "token journal path, empty for memory only")
	fs.String("user-file", "users.jsonl", "user journal path, empty for memory only")
	fs.Float64("expunge-trigger-ratio", 1, "dirty to live ratio that triggers journal compaction")
	fs.Duration("expunge-interval", time.Minute, "how often journals are checked for compaction")
	fs.String("storage", StorageTypeMemory, "game registry storage: memory or redis")
	fs.String("redis-url", "", "redis URL when --storage=redis")
	fs.String("broker-host", "127.0.0.1", "relay host games are placed on")
	fs.Int("broker-server-port", 9090, "relay streaming port")
	fs.Int("broker-internal-port", 9091, "relay control port")
	fs.Bool("local-relay", false, "run an in-process relay on the broker ports")
	fs.CountP("verbose", "v", "increase log verbosity")
	fs.CountP("quiet", "q", "decrease log verbosity")
}

var flagKeys = map[string]string{
	"external-host":         "external.host",
	"external-port":         "external.port",
	"internal-host":         "internal.host",
	"internal-port":         "internal.port",
	"token-file":            "tokens.file",
	"user-file":             "users.file",
	"expunge-trigger-ratio": "tokens.expunge_trigger_ratio",
	"expunge-interval":      "expunge_interval",
	"storage":               "storage.type",
	"redis-url":             "storage.redis_url",
	"broker-host":           "broker.host",
	"broker-server-port":    "broker.server_port",
	"broker-internal-port":  "broker.internal_port",
	"local-relay":           "relay.local",
}

// BindFlags binds the flags registered by RegisterFlags to their config keys.
// Only flags set on the command line override the file and environment.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	// one ratio flag drives both journals
	if f := fs.Lookup("expunge-trigger-ratio"); f != nil {
		if err := v.BindPFlag("users.expunge_trigger_ratio", f); err != nil {
			return fmt.Errorf("bind flag %s: %w", f.Name, err)
		}
	}
	return nil
}

// Load reads the config file if path is set and decodes the result
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks values viper cannot check by type alone
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Type {
	case StorageTypeMemory:
	case StorageTypeRedis:
		if c.Storage.RedisURL == "" {
			errs = append(errs, errors.New("storage.redis_url is required when storage.type is redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.type must be %q or %q, got %q", StorageTypeMemory, StorageTypeRedis, c.Storage.Type))
	}
	if c.Tokens.ExpungeTriggerRatio <= 0 || c.Users.ExpungeTriggerRatio <= 0 {
		errs = append(errs, errors.New("expunge_trigger_ratio must be positive"))
	}
	if c.ExpungeInterval <= 0 {
		errs = append(errs, errors.New("expunge_interval must be positive"))
	}
	if c.LoginLifespan <= 0 {
		errs = append(errs, errors.New("login_lifespan must be positive"))
	}
	return errors.Join(errs...)
}

// LogLevel maps the verbosity count to a slog level: 0 error, 1 warn, 2 info, 3 or more debug
func LogLevel(verbosity int) slog.Level {
	switch {
	case verbosity <= 0:
		return slog.LevelError
	case verbosity == 1:
		return slog.LevelWarn
	case verbosity == 2:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
