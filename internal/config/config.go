package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application settings.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Session  SessionConfig  `mapstructure:"session"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
	Gemini   GeminiConfig   `mapstructure:"gemini"`
	Google   GoogleConfig   `mapstructure:"google"`
	Seed     SeedConfig     `mapstructure:"seed"`
}

// ServerConfig contains HTTP server settings. BaseURL is the canonical public
// origin used in magic links and redirects; it must never be derived from
// request headers.
type ServerConfig struct {
	Port    string `mapstructure:"port"`
	BaseURL string `mapstructure:"base_url"`
}

// DatabaseConfig contains PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN builds the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// RedisConfig contains Redis settings. Redis is optional: when Addr is empty
// the magic-link rate limiter falls back to counting token rows.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SessionConfig contains session-token settings.
type SessionConfig struct {
	Secret     string `mapstructure:"secret"`
	ExpiryDays int    `mapstructure:"expiry_days"`
	CookieName string `mapstructure:"cookie_name"`
}

// Expiry returns the session lifetime.
func (s *SessionConfig) Expiry() time.Duration {
	days := s.ExpiryDays
	if days <= 0 {
		days = 30
	}
	return time.Duration(days) * 24 * time.Hour
}

// SMTPConfig contains outbound email settings.
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// GeminiConfig contains the AI completion settings.
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// GoogleConfig enables the optional Google sign-in path when ClientID is set.
type GoogleConfig struct {
	ClientID string `mapstructure:"client_id"`
}

// SeedConfig points at the question corpus file loaded at startup.
type SeedConfig struct {
	QuestionsPath string `mapstructure:"questions_path"`
}

// Load reads config.yaml from ./configs (when present) and merges environment
// variables on top, e.g. DATABASE_HOST overrides database.host.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.base_url", "http://localhost:8080")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("session.expiry_days", 30)
	viper.SetDefault("session.cookie_name", "session_token")
	viper.SetDefault("gemini.model", "gemini-1.5-flash")
	viper.SetDefault("seed.questions_path", "questions.json")

	if err := viper.ReadInConfig(); err != nil {
		// Environment-only deployments are fine.
		log.Println("Could not find config.yaml, using environment variables only.")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Session.Secret == "" {
		return nil, fmt.Errorf("session secret is required in config")
	}
	if cfg.Database.Host == "" || cfg.Database.DBName == "" {
		return nil, fmt.Errorf("database configuration (host, dbname) is incomplete")
	}

	return &cfg, nil
}
