package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Port                             string `mapstructure:"PORT"`
	GinMode                          string `mapstructure:"GIN_MODE"`
	FirebaseProjectID                string `mapstructure:"FIREBASE_PROJECT_ID"`
	GoogleApplicationCredentials     string `mapstructure:"GOOGLE_APPLICATION_CREDENTIALS"`
	FirebaseServiceAccountJSONBase64 string `mapstructure:"FIREBASE_SERVICE_ACCOUNT_JSON_BASE64"`
	ClientURL                        string `mapstructure:"CLIENT_URL"`

	CRMAPIKey        string        `mapstructure:"CRM_API_KEY"`
	CRMBaseURL       string        `mapstructure:"CRM_BASE_URL"`
	CRMTimeout       time.Duration `mapstructure:"CRM_TIMEOUT"`
	CRMCreateTimeout time.Duration `mapstructure:"CRM_CREATE_TIMEOUT"`
	// CRMDeleteContactOnAccountDelete removes the whole CRM contact on account deletion instead of only its tags.
	CRMDeleteContactOnAccountDelete bool `mapstructure:"CRM_DELETE_CONTACT_ON_ACCOUNT_DELETE"`

	AuthLookupTimeout         time.Duration `mapstructure:"AUTH_LOOKUP_TIMEOUT"`
	AuthAllowUnverifiedTokens bool          `mapstructure:"AUTH_ALLOW_UNVERIFIED_TOKENS"`

	RedisURL    string        `mapstructure:"REDIS_URL"`
	TagCacheTTL time.Duration `mapstructure:"TAG_CACHE_TTL"`

	RabbitMQURL    string `mapstructure:"RABBITMQ_URL"`
	EventsExchange string `mapstructure:"EVENTS_EXCHANGE"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`

	LogLevel      string `mapstructure:"LOG_LEVEL"`
	LogFile       string `mapstructure:"LOG_FILE"`
	LogMaxSizeMB  int    `mapstructure:"LOG_MAX_SIZE_MB"`
	LogMaxBackups int    `mapstructure:"LOG_MAX_BACKUPS"`
	LogMaxAgeDays int    `mapstructure:"LOG_MAX_AGE_DAYS"`
}

// IsRelease reports whether the service runs with GIN_MODE=release.
func (c *Config) IsRelease() bool {
	return strings.EqualFold(c.GinMode, "release")
}

// LoadConfig loads configuration from the environment (and an optional .env / config file) using Viper.
// Outside release mode a .env file in the working directory is loaded first if present.
func LoadConfig() (*Config, error) {
	if !strings.EqualFold(os.Getenv("GIN_MODE"), "release") {
		// A missing .env is normal; real deployments set the environment directly.
		_ = godotenv.Load()
	}
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if file := os.Getenv("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", file, err)
		}
	}

	// Set default values
	v.SetDefault("PORT", "8080")
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("CRM_BASE_URL", "https://api.systeme.io")
	v.SetDefault("CRM_TIMEOUT", "10s")
	v.SetDefault("CRM_CREATE_TIMEOUT", "5s")
	v.SetDefault("CRM_DELETE_CONTACT_ON_ACCOUNT_DELETE", false)
	v.SetDefault("AUTH_LOOKUP_TIMEOUT", "3s")
	v.SetDefault("AUTH_ALLOW_UNVERIFIED_TOKENS", false)
	v.SetDefault("TAG_CACHE_TTL", "24h")
	v.SetDefault("EVENTS_EXCHANGE", "breath-school.events")
	v.SetDefault("RATE_LIMIT_RPS", 5)
	v.SetDefault("RATE_LIMIT_BURST", 10)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_MAX_SIZE_MB", 100)
	v.SetDefault("LOG_MAX_BACKUPS", 7)
	v.SetDefault("LOG_MAX_AGE_DAYS", 30)

	// Bind environment variables
	_ = v.BindEnv("PORT")
	_ = v.BindEnv("GIN_MODE")
	_ = v.BindEnv("FIREBASE_PROJECT_ID")
	_ = v.BindEnv("GOOGLE_APPLICATION_CREDENTIALS")
	_ = v.BindEnv("FIREBASE_SERVICE_ACCOUNT_JSON_BASE64")
	_ = v.BindEnv("CLIENT_URL")
	_ = v.BindEnv("CRM_API_KEY", "CRM_API_KEY", "SYSTEME_API_KEY")
	_ = v.BindEnv("CRM_BASE_URL")
	_ = v.BindEnv("CRM_TIMEOUT")
	_ = v.BindEnv("CRM_CREATE_TIMEOUT")
	_ = v.BindEnv("CRM_DELETE_CONTACT_ON_ACCOUNT_DELETE")
	_ = v.BindEnv("AUTH_LOOKUP_TIMEOUT")
	_ = v.BindEnv("AUTH_ALLOW_UNVERIFIED_TOKENS")
	_ = v.BindEnv("REDIS_URL")
	_ = v.BindEnv("TAG_CACHE_TTL")
	_ = v.BindEnv("RABBITMQ_URL")
	_ = v.BindEnv("EVENTS_EXCHANGE")
	_ = v.BindEnv("RATE_LIMIT_RPS")
	_ = v.BindEnv("RATE_LIMIT_BURST")
	_ = v.BindEnv("LOG_LEVEL")
	_ = v.BindEnv("LOG_FILE")
	_ = v.BindEnv("LOG_MAX_SIZE_MB")
	_ = v.BindEnv("LOG_MAX_BACKUPS")
	_ = v.BindEnv("LOG_MAX_AGE_DAYS")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields and rejects unsafe combinations.
func (c *Config) Validate() error {
	if c.FirebaseProjectID == "" {
		return errors.New("FIREBASE_PROJECT_ID is required")
	}
	if strings.TrimSpace(c.CRMAPIKey) == "" {
		return errors.New("CRM_API_KEY (or SYSTEME_API_KEY) is required")
	}
	if c.CRMBaseURL == "" {
		return errors.New("CRM_BASE_URL cannot be empty")
	}
	if c.AuthAllowUnverifiedTokens && c.IsRelease() {
		return errors.New("AUTH_ALLOW_UNVERIFIED_TOKENS cannot be enabled when GIN_MODE=release")
	}
	if c.AuthLookupTimeout <= 0 {
		return errors.New("AUTH_LOOKUP_TIMEOUT must be positive")
	}
	if c.CRMTimeout <= 0 || c.CRMCreateTimeout <= 0 {
		return errors.New("CRM_TIMEOUT and CRM_CREATE_TIMEOUT must be positive")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	return nil
}
