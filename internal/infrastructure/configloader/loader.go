package configloader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// ServerConfig holds server-specific configurations.
type ServerConfig struct {
	Port           string   `yaml:"port" default:"8080" validate:"required"`
	ReadTimeout    int      `yaml:"readTimeout" default:"15" validate:"gt=0"`  // seconds
	WriteTimeout   int      `yaml:"writeTimeout" default:"15" validate:"gt=0"` // seconds
	IdleTimeout    int      `yaml:"idleTimeout" default:"60" validate:"gt=0"`  // seconds
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

// LoggingConfig holds logging-specific configurations.
type LoggingConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"console" validate:"oneof=json console"`
	File   string `yaml:"file"`
}

// DEXScreenerConfig holds DEXScreener API specific configurations.
type DEXScreenerConfig struct {
	BaseURL              string  `yaml:"baseURL" default:"https://api.dexscreener.com" validate:"required,url"`
	RequestTimeoutMillis int64   `yaml:"requestTimeoutMillis" default:"10000" validate:"gt=0"`
	RateLimitPerSecond   float64 `yaml:"rateLimitPerSecond" default:"5" validate:"gt=0"`
	RateLimitBurst       int     `yaml:"rateLimitBurst" default:"5" validate:"gt=0"`
}

// UpdaterConfig holds configuration for the background token refresh.
type UpdaterConfig struct {
	Interval  time.Duration `yaml:"interval" default:"5m" validate:"gt=0"`
	BatchSize int           `yaml:"batchSize" default:"10" validate:"gt=0"`
	// BookkeepingRetention bounds how long a last-updated timestamp is kept.
	BookkeepingRetention time.Duration `yaml:"bookkeepingRetention" default:"168h" validate:"gtfield=Interval"`
}

// RedisConfig holds the Redis state backend settings.
type RedisConfig struct {
	Addr      string `yaml:"addr" default:"localhost:6379"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"keyPrefix" default:"portfolio_tracker:"`
}

// StorageConfig selects where portfolio state is persisted.
type StorageConfig struct {
	Backend string      `yaml:"backend" default:"file" validate:"oneof=file redis"`
	Dir     string      `yaml:"dir" default:"data"`
	Redis   RedisConfig `yaml:"redis"`
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"/metrics"`
}

// Config is the top-level configuration structure.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
	DEXScreener DEXScreenerConfig `yaml:"dexScreener"`
	Updater     UpdaterConfig     `yaml:"updater"`
	Storage     StorageConfig     `yaml:"storage"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// RequestTimeout returns the DEXScreener request timeout as a duration.
func (c DEXScreenerConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMillis) * time.Millisecond
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Default returns a configuration populated only from defaults.
func Default() (*Config, error) {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply config defaults: %w", err)
	}
	return &cfg, nil
}

// Load reads the YAML configuration file from the given path on top of the defaults.
// A missing file is not an error: the defaults are used.
func Load(path string) (*Config, error) {
	logrus.Infof("Loading configuration from path: %s", path)
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logrus.Warnf("Config file %s not found, using defaults", path)
	case err != nil:
		logrus.Errorf("Failed to read config file %s: %v", path, err)
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			logrus.Errorf("Failed to unmarshal config data from %s: %v", path, err)
			return nil, fmt.Errorf("failed to unmarshal config data from %s: %w", path, err)
		}
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}

	if cfg.Storage.Backend == "file" && cfg.Storage.Dir == "" {
		cfg.Storage.Dir = "data"
		logrus.Infof("Storage.Dir not set, defaulting to %s", cfg.Storage.Dir)
	}

	logrus.WithFields(logrus.Fields{
		"storage":   cfg.Storage.Backend,
		"interval":  cfg.Updater.Interval,
		"batchSize": cfg.Updater.BatchSize,
	}).Info("Configuration loaded successfully.")
	return cfg, nil
}
