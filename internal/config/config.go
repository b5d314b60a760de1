package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Databases   map[string]DatabaseConfig `json:"databases"`
	Redis       RedisConfig               `json:"redis"`
	Auth        AuthConfig                `json:"auth"`
	LLM         LLMConfig                 `json:"llm"`
	Providers   map[string]ProviderConfig `json:"providers"`
}

type BasicConfig struct {
	ServerAddress  string   `json:"server_address"`
	Database       string   `json:"database"`
	AllowedOrigins []string `json:"allowed_origins"`
	LogLevel       string   `json:"log_level"`
	Debug          bool     `json:"debug"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type AuthConfig struct {
	JWTSecret         string `json:"jwt_secret"`
	AccessTTLMinutes  int    `json:"access_ttl_minutes"`
	RefreshTTLMinutes int    `json:"refresh_ttl_minutes"`
}

// LLMConfig selects which provider entry backs the chatbot.
type LLMConfig struct {
	Provider     string `json:"provider"`
	MaxToolSteps int    `json:"max_tool_steps"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key"`
}

const (
	DefaultGeminiModel = "gemini-1.5-pro-latest"
	defaultAccessTTL   = 5 * time.Minute
	defaultRefreshTTL  = 24 * time.Hour
)

// Default returns a configuration usable for local development with sqlite.
func Default() *Config {
	return &Config{
		BasicConfig: BasicConfig{
			ServerAddress:  ":8000",
			Database:       "sqlite3",
			AllowedOrigins: []string{"http://localhost:3000", "http://127.0.0.1:3000"},
			LogLevel:       "info",
		},
		Databases: map[string]DatabaseConfig{
			"sqlite3": {DSN: "mentora.db"},
			"mysql":   {Host: "127.0.0.1", Port: 3306, DBName: "mentora", Params: "parseTime=true"},
		},
		LLM: LLMConfig{Provider: "gemini", MaxToolSteps: 5},
		Providers: map[string]ProviderConfig{
			"gemini": {Model: DefaultGeminiModel},
		},
	}
}

// Load reads configuration from the provided path (defaults to config.json). A missing file
// yields the defaults; environment overrides are applied on top.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	cfg := Default()
	file, err := os.Open(absPath)
	switch {
	case err == nil:
		defer file.Close()
		if err := json.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
		if db, ok := cfg.Databases["sqlite3"]; ok && db.DSN != "" && db.DSN != ":memory:" && !filepath.IsAbs(db.DSN) {
			db.DSN = filepath.Join(filepath.Dir(absPath), db.DSN)
			cfg.Databases["sqlite3"] = db
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := strings.TrimSpace(os.Getenv("MENTORA_DB")); v != "" {
		c.BasicConfig.Database = v
	}
	c.BasicConfig.Database = normalizeDriver(c.BasicConfig.Database)
	if v := strings.TrimSpace(os.Getenv("DATABASE_DSN")); v != "" {
		if c.Databases == nil {
			c.Databases = make(map[string]DatabaseConfig)
		}
		db := c.Databases[c.BasicConfig.Database]
		db.DSN = v
		c.Databases[c.BasicConfig.Database] = db
	}
	if v := strings.TrimSpace(os.Getenv("JWT_SECRET")); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := strings.TrimSpace(os.Getenv("LLM_PROVIDER")); v != "" {
		c.LLM.Provider = v
	}
	if v := strings.TrimSpace(os.Getenv("GOOGLE_API_KEY")); v != "" {
		if c.Providers == nil {
			c.Providers = make(map[string]ProviderConfig)
		}
		p := c.Providers["gemini"]
		p.APIKey = v
		c.Providers["gemini"] = p
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_ADDR")); v != "" {
		host, portStr, err := net.SplitHostPort(v)
		if err != nil {
			return fmt.Errorf("parse REDIS_ADDR: %w", err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("parse REDIS_ADDR port: %w", err)
		}
		c.Redis.Enabled = true
		c.Redis.Host = host
		c.Redis.Port = port
	}
	return nil
}

// normalizeDriver maps driver aliases onto the keys used in Databases.
func normalizeDriver(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "sqlite" {
		return "sqlite3"
	}
	return name
}

// Validate reports configuration that cannot start the service.
func (c *Config) Validate() error {
	switch strings.ToLower(c.BasicConfig.Database) {
	case "sqlite", "sqlite3", "mysql":
	default:
		return fmt.Errorf("unsupported database %q", c.BasicConfig.Database)
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("jwt_secret must be configured (or JWT_SECRET set)")
	}
	return nil
}

// AccessTTL is the lifetime of access tokens.
func (a AuthConfig) AccessTTL() time.Duration {
	if a.AccessTTLMinutes <= 0 {
		return defaultAccessTTL
	}
	return time.Duration(a.AccessTTLMinutes) * time.Minute
}

// RefreshTTL is the lifetime of refresh tokens.
func (a AuthConfig) RefreshTTL() time.Duration {
	if a.RefreshTTLMinutes <= 0 {
		return defaultRefreshTTL
	}
	return time.Duration(a.RefreshTTLMinutes) * time.Minute
}
