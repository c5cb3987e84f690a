package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Auth        AuthConfig        `mapstructure:"auth"`
	CORS        CORSConfig        `mapstructure:"cors"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Supabase    SupabaseConfig    `mapstructure:"supabase"`
	Email       EmailConfig       `mapstructure:"email"`
	Quota       QuotaConfig       `mapstructure:"quota"`
	Dispatch    DispatchConfig    `mapstructure:"dispatch"`
	Feed        FeedConfig        `mapstructure:"feed"`
	Dedup       DedupConfig       `mapstructure:"dedup"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Templates   TemplatesConfig   `mapstructure:"templates"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// AuthConfig holds API key authentication settings.
type AuthConfig struct {
	APIKeys []string `mapstructure:"api_keys"`
}

// CORSConfig holds CORS policy settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

// RateLimitConfig holds per-IP HTTP rate limiting settings.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// RedisConfig holds Redis connection settings (change feed, dedup, scheduler).
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SupabaseConfig holds Supabase project settings for the document store.
type SupabaseConfig struct {
	URL        string `mapstructure:"url"`
	ServiceKey string `mapstructure:"service_key"`
}

// EmailConfig holds email gateway settings.
type EmailConfig struct {
	Provider    string `mapstructure:"provider"`
	APIKey      string `mapstructure:"api_key"`
	FromAddress string `mapstructure:"from_address"`
	FromName    string `mapstructure:"from_name"`
}

// QuotaConfig holds the daily send quota settings.
type QuotaConfig struct {
	DailyLimit int `mapstructure:"daily_limit"`
}

// DispatchConfig holds dispatch pipeline settings.
type DispatchConfig struct {
	BulkBatchSize        int     `mapstructure:"bulk_batch_size"`
	SinglePerSecond      float64 `mapstructure:"single_per_second"`
	BulkBatchesPerSecond float64 `mapstructure:"bulk_batches_per_second"`
	SendTimeoutSec       int     `mapstructure:"send_timeout_sec"`
}

// FeedConfig holds change feed settings.
type FeedConfig struct {
	StreamPrefix string `mapstructure:"stream_prefix"`
	BlockSec     int    `mapstructure:"block_sec"`
}

// DedupConfig holds classifier idempotency settings.
type DedupConfig struct {
	TTLHours int `mapstructure:"ttl_hours"`
}

// MaintenanceConfig holds the cron specs for scheduled maintenance tasks.
type MaintenanceConfig struct {
	QuotaResetCron    string `mapstructure:"quota_reset_cron"`
	CampaignSweepCron string `mapstructure:"campaign_sweep_cron"`
	SweepBatchSize    int    `mapstructure:"sweep_batch_size"`
}

// TemplatesConfig holds message template settings.
type TemplatesConfig struct {
	Dir string `mapstructure:"dir"`
}

// Load reads configuration from config.yaml and environment variables.
// Environment variables use the MEDINOTIFY_ prefix and underscore separators.
// Example: MEDINOTIFY_SERVER_PORT overrides server.port in config.yaml.
func Load() (*Config, error) {
	v := viper.New()

	// Config file settings
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Load .env file if it exists
	_ = godotenv.Load()

	// Environment variable settings
	v.SetEnvPrefix("MEDINOTIFY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type", "Accept", "X-API-Key", "X-Request-ID"})
	v.SetDefault("rate_limit.requests_per_second", 10)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("email.provider", "resend")
	v.SetDefault("quota.daily_limit", 100)
	v.SetDefault("dispatch.bulk_batch_size", 50)
	v.SetDefault("dispatch.single_per_second", 5)
	v.SetDefault("dispatch.bulk_batches_per_second", 0.5)
	v.SetDefault("dispatch.send_timeout_sec", 10)
	v.SetDefault("feed.stream_prefix", "changes:")
	v.SetDefault("feed.block_sec", 5)
	v.SetDefault("dedup.ttl_hours", 720) // 30 days
	v.SetDefault("maintenance.quota_reset_cron", "0 0 * * *")
	v.SetDefault("maintenance.campaign_sweep_cron", "* * * * *")
	v.SetDefault("maintenance.sweep_batch_size", 20)
	v.SetDefault("templates.dir", "internal/infra/template/templates")

	// Read config file (optional — env vars can provide everything)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Handle comma-separated API keys from env var
	if apiKeysStr := v.GetString("auth.api_keys"); apiKeysStr != "" && len(cfg.Auth.APIKeys) == 0 {
		keys := strings.Split(apiKeysStr, ",")
		for i := range keys {
			keys[i] = strings.TrimSpace(keys[i])
		}
		cfg.Auth.APIKeys = keys
	}

	return &cfg, nil
}
