package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store drivers accepted in STORE_DRIVER.
const (
	DriverFile   = "file"
	DriverMemory = "memory"
	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"
)

// Config is the server configuration, read from the environment.
type Config struct {
	Port string `env:"PORT" envDefault:"3000"`

	StoreDriver   string `env:"STORE_DRIVER" envDefault:"file"`
	StorePath     string `env:"STORE_PATH" envDefault:"./db.json"`
	MongoURI      string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDatabase string `env:"MONGO_DB" envDefault:"estimation"`
	SQLitePath    string `env:"SQLITE_PATH" envDefault:"./estimation.db"`

	// Empty keeps bandit state in process memory.
	RedisURI string `env:"REDIS_URI"`

	BridgeTimeout time.Duration `env:"BRIDGE_TIMEOUT" envDefault:"15s"`
	BanditEpsilon float64       `env:"BANDIT_EPSILON" envDefault:"0.1"`
	BanditTTL     time.Duration `env:"BANDIT_TTL" envDefault:"720h"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
	Debug           bool          `env:"LOG_DEBUG"`

	CORS CORSConfig `envPrefix:"CORS_"`
	AI   AIConfig
}

type CORSConfig struct {
	AllowedOrigins string `env:"ALLOWED_ORIGINS" envDefault:"*"`
	AllowedMethods string `env:"ALLOWED_METHODS" envDefault:"GET, POST, PUT, DELETE, OPTIONS, HEAD"`
	AllowedHeaders string `env:"ALLOWED_HEADERS" envDefault:"Content-Type, Authorization"`
}

// Load parses the environment and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverFile, DriverMemory, DriverMongo, DriverSQLite:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.BridgeTimeout <= 0 {
		return fmt.Errorf("BRIDGE_TIMEOUT must be positive")
	}
	if c.BanditEpsilon < 0 || c.BanditEpsilon > 1 {
		return fmt.Errorf("BANDIT_EPSILON must be within [0,1]")
	}
	return nil
}

// RedisAddr strips the redis:// scheme the deployment files use.
func (c *Config) RedisAddr() string {
	return strings.TrimPrefix(c.RedisURI, "redis://")
}
