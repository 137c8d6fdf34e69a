package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"odinbook/database"
)

type Config struct {
	Port          int    `json:"port" yaml:"port"`
	Env           string `json:"env" yaml:"env"`
	Pepper        string `json:"pepper" yaml:"pepper"`
	JWTKey        string `json:"jwt_key" yaml:"jwt_key"`
	TokenHours    int    `json:"token_hours" yaml:"token_hours"`
	AdminPassword string `json:"admin_password" yaml:"admin_password"`

	Database database.Config `json:"database" yaml:"database"`
	Facebook FacebookConfig  `json:"facebook" yaml:"facebook"`
	NATS     NATSConfig      `json:"nats" yaml:"nats"`
	Redis    RedisConfig     `json:"redis" yaml:"redis"`
	Notify   NotifyConfig    `json:"notify" yaml:"notify"`
}

// FacebookConfig enables the Facebook login when ID is set.
type FacebookConfig struct {
	ID          string `json:"id" yaml:"id"`
	Secret      string `json:"secret" yaml:"secret"`
	RedirectURL string `json:"redirect_url" yaml:"redirect_url"`
	GraphURL    string `json:"graph_url" yaml:"graph_url"`
}

// NATSConfig moves the notification fan-out onto NATS when URL is set.
// Otherwise events are dispatched in-process.
type NATSConfig struct {
	URL string `json:"url" yaml:"url"`
}

// RedisConfig enables the recommendation snapshot when URL is set.
type RedisConfig struct {
	URL               string `json:"url" yaml:"url"`
	RankingTTLSeconds int    `json:"ranking_ttl_seconds" yaml:"ranking_ttl_seconds"`
}

// NotifyConfig sizes the in-process dispatcher and bounds each notification.
type NotifyConfig struct {
	Workers        int `json:"workers" yaml:"workers"`
	Buffer         int `json:"buffer" yaml:"buffer"`
	TimeoutSeconds int `json:"timeout_seconds" yaml:"timeout_seconds"`
}

func (c Config) IsProd() bool {
	return c.Env == "prod"
}

func (c Config) TokenExpiry() time.Duration {
	return time.Duration(c.TokenHours) * time.Hour
}

func (c Config) RankingTTL() time.Duration {
	return time.Duration(c.Redis.RankingTTLSeconds) * time.Second
}

func (c Config) NotifyTimeout() time.Duration {
	return time.Duration(c.Notify.TimeoutSeconds) * time.Second
}

func DefaultConfig() Config {
	return Config{
		Port:          1111,
		Env:           "dev",
		Pepper:        "secret-random-string",
		JWTKey:        "dev-jwt-key-that-is-32-bytes-long",
		TokenHours:    24,
		AdminPassword: "",
		Database:      DefaultDatabaseConfig(),
		Redis:         RedisConfig{RankingTTLSeconds: 600},
		Notify:        NotifyConfig{Workers: 4, Buffer: 256, TimeoutSeconds: 10},
	}
}

func DefaultDatabaseConfig() database.Config {
	return database.Config{
		Driver:          database.DriverPostgres,
		DSN:             "host=localhost port=5432 user=postgres dbname=odinbook sslmode=disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// LoadConfig reads .config.yaml or .config.json from the working directory,
// then applies environment overrides. Without a config file the defaults are
// used, unless configRequired is set.
func LoadConfig(configRequired bool) (Config, error) {
	return loadConfig(".", configRequired)
}

func loadConfig(dir string, configRequired bool) (Config, error) {
	c := DefaultConfig()
	found := false
	for _, name := range []string{".config.yaml", ".config.yml", ".config.json"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return c, err
		}
		if filepath.Ext(name) == ".json" {
			err = json.Unmarshal(data, &c)
		} else {
			err = yaml.Unmarshal(data, &c)
		}
		if err != nil {
			return c, fmt.Errorf("parsing %s: %w", name, err)
		}
		slog.Info("loaded config file", "file", name)
		found = true
		break
	}
	if !found && configRequired {
		return c, fmt.Errorf("a .config.yaml or .config.json file is required in production")
	}
	if err := applyEnv(&c); err != nil {
		return c, err
	}
	return c, nil
}

// applyEnv lets the environment override the connection settings.
func applyEnv(c *Config) error {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		c.NATS.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
	if v := os.Getenv("JWT_KEY"); v != "" {
		c.JWTKey = v
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q", v)
		}
		c.Port = port
	}
	return nil
}
