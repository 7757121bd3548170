package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config/config.yaml"

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	TLSCert         string        `yaml:"tls_cert"`
	TLSKey          string        `yaml:"tls_key"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
}

// RedisConfig with an empty Addr disables Redis; dev mode then keeps sessions
// in memory and skips the dashboard cache.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AuthConfig struct {
	JWTSecret    string        `yaml:"jwt_secret"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
	CookieName   string        `yaml:"cookie_name"`
	CookieSecure bool          `yaml:"cookie_secure"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json | console
}

type Config struct {
	Version string         `yaml:"version"`
	Mode    string         `yaml:"mode"`
	Server  ServerConfig   `yaml:"server"`
	DB      DatabaseConfig `yaml:"database"`
	Redis   RedisConfig    `yaml:"redis"`
	Auth    AuthConfig     `yaml:"auth"`
	Log     LogConfig      `yaml:"log"`
}

// Load reads the yaml file, then .env (if present), then EB_* overrides.
func Load(path string) (*Config, error) {
	// .env is optional; a missing file is not an error.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		buf, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Default() *Config {
	return &Config{
		Mode: "dev",
		Server: ServerConfig{
			Addr:            ":8080",
			CORSOrigins:     []string{"http://localhost:3000"},
			ShutdownTimeout: 10 * time.Second,
		},
		DB: DatabaseConfig{
			Host:     "127.0.0.1",
			Port:     3306,
			Username: "equipborrow",
			DBName:   "equipborrow",
		},
		Redis: RedisConfig{Addr: "127.0.0.1:6379"},
		Auth: AuthConfig{
			TokenTTL:   24 * time.Hour,
			CookieName: "eb_session",
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

func (c *Config) applyEnvOverrides() {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	str("EB_MODE", &c.Mode)
	str("EB_HTTP_ADDR", &c.Server.Addr)
	str("EB_DB_HOST", &c.DB.Host)
	str("EB_DB_USER", &c.DB.Username)
	str("EB_DB_PASSWORD", &c.DB.Password)
	str("EB_DB_NAME", &c.DB.DBName)
	str("EB_REDIS_ADDR", &c.Redis.Addr)
	str("EB_REDIS_PASSWORD", &c.Redis.Password)
	str("EB_JWT_SECRET", &c.Auth.JWTSecret)
	str("EB_LOG_LEVEL", &c.Log.Level)

	if v := os.Getenv("EB_DB_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.DB.Port = n
		}
	}
	if v := os.Getenv("EB_CORS_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if s := strings.TrimSpace(o); s != "" {
				origins = append(origins, s)
			}
		}
		c.Server.CORSOrigins = origins
	}
}

func (c *Config) Validate() error {
	if c.Mode != "dev" && c.Mode != "release" {
		return fmt.Errorf("mode must be dev or release, got %q", c.Mode)
	}
	if c.Auth.JWTSecret == "" {
		if c.Mode == "release" {
			return errors.New("auth.jwt_secret (or EB_JWT_SECRET) is required in release mode")
		}
		c.Auth.JWTSecret = "dev-only-secret"
	}
	if c.Redis.Addr == "" && c.Mode == "release" {
		return errors.New("redis.addr (or EB_REDIS_ADDR) is required in release mode")
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}
	if c.Auth.CookieName == "" {
		c.Auth.CookieName = "eb_session"
	}
	return nil
}

func (c *Config) IsDev() bool { return c.Mode == "dev" }
