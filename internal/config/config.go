package config

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/viper"
)

// Config holds all application settings.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Email      EmailConfig
	Storage    StorageConfig
	Moderation ModerationConfig
	Firebase   FirebaseConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  int
	WriteTimeout int
	// PublicBaseURL is used to build verification and reset links in emails.
	PublicBaseURL string `mapstructure:"public_base_url"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds unified Redis connection settings.
// Supported modes: single, sentinel, cluster.
type RedisConfig struct {
	Mode       string   `mapstructure:"mode"`
	Addrs      []string `mapstructure:"addrs"`
	Addr       string   `mapstructure:"addr"`
	Password   string   `mapstructure:"password"`
	DB         int      `mapstructure:"db"`
	MasterName string   `mapstructure:"master_name"`
	MaxRetries int      `mapstructure:"max_retries"`
}

// JWTConfig holds token signing settings.
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	// AccessExpiryHrs is the bearer token lifetime (default 168 = 7 days).
	AccessExpiryHrs int `mapstructure:"access_expiry_hrs"`
	// ActionExpiryMin is the email-verification/reset token lifetime (default 60).
	ActionExpiryMin int `mapstructure:"action_expiry_min"`
}

// EmailConfig holds Resend mail delivery settings.
type EmailConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
	From    string `mapstructure:"from"`
}

// StorageConfig holds S3-compatible asset store settings.
type StorageConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	// PublicBaseURL is the CDN/base URL that serves uploaded objects.
	PublicBaseURL string `mapstructure:"public_base_url"`
}

// ModerationConfig holds content moderation settings.
type ModerationConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	// CacheTTLMin caches verdicts for identical content (default 60).
	CacheTTLMin int `mapstructure:"cache_ttl_min"`
}

// FirebaseConfig holds settings for the delegated auth surface.
type FirebaseConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
	// ProjectID is the expected audience of Firebase ID tokens.
	ProjectID string `mapstructure:"project_id"`
}

// PostgresConnectionString builds the PostgreSQL DSN.
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// Load reads configuration from an optional file plus explicitly bound
// environment variables.
func Load(configPath string) (*Config, error) {
	vip := viper.New()

	vip.SetDefault("server.port", "8080")
	vip.SetDefault("server.readtimeout", 15)
	vip.SetDefault("server.writetimeout", 15)
	vip.SetDefault("server.public_base_url", "http://localhost:8080")
	vip.SetDefault("database.port", "5432")
	vip.SetDefault("database.sslmode", "disable")
	vip.SetDefault("redis.mode", "single")
	vip.SetDefault("redis.addr", "localhost:6379")
	vip.SetDefault("jwt.access_expiry_hrs", 168)
	vip.SetDefault("jwt.action_expiry_min", 60)
	vip.SetDefault("moderation.model", "gemini-2.0-flash")
	vip.SetDefault("moderation.cache_ttl_min", 60)

	vip.BindEnv("server.port", "SERVER_PORT")
	vip.BindEnv("server.readtimeout", "SERVER_READTIMEOUT")
	vip.BindEnv("server.writetimeout", "SERVER_WRITETIMEOUT")
	vip.BindEnv("server.public_base_url", "SERVER_PUBLIC_BASE_URL")

	vip.BindEnv("database.host", "DATABASE_HOST")
	vip.BindEnv("database.port", "DATABASE_PORT")
	vip.BindEnv("database.user", "DATABASE_USER")
	vip.BindEnv("database.password", "DATABASE_PASSWORD")
	vip.BindEnv("database.dbname", "DATABASE_DBNAME")
	vip.BindEnv("database.sslmode", "DATABASE_SSLMODE")

	vip.BindEnv("redis.mode", "REDIS_MODE")
	vip.BindEnv("redis.addrs", "REDIS_ADDRS")
	vip.BindEnv("redis.addr", "REDIS_ADDR")
	vip.BindEnv("redis.password", "REDIS_PASSWORD")
	vip.BindEnv("redis.db", "REDIS_DB")
	vip.BindEnv("redis.master_name", "REDIS_MASTER_NAME")

	vip.BindEnv("jwt.secret", "JWT_SECRET")
	vip.BindEnv("jwt.access_expiry_hrs", "JWT_ACCESS_EXPIRY_HRS")
	vip.BindEnv("jwt.action_expiry_min", "JWT_ACTION_EXPIRY_MIN")

	vip.BindEnv("email.enabled", "EMAIL_ENABLED")
	vip.BindEnv("email.api_key", "EMAIL_API_KEY")
	vip.BindEnv("email.from", "EMAIL_FROM")

	vip.BindEnv("storage.enabled", "STORAGE_ENABLED")
	vip.BindEnv("storage.region", "STORAGE_REGION")
	vip.BindEnv("storage.bucket", "STORAGE_BUCKET")
	vip.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	vip.BindEnv("storage.access_key_id", "STORAGE_ACCESS_KEY_ID")
	vip.BindEnv("storage.secret_access_key", "STORAGE_SECRET_ACCESS_KEY")
	vip.BindEnv("storage.public_base_url", "STORAGE_PUBLIC_BASE_URL")

	vip.BindEnv("moderation.enabled", "MODERATION_ENABLED")
	vip.BindEnv("moderation.api_key", "MODERATION_API_KEY")
	vip.BindEnv("moderation.model", "MODERATION_MODEL")
	vip.BindEnv("moderation.cache_ttl_min", "MODERATION_CACHE_TTL_MIN")

	vip.BindEnv("firebase.enabled", "FIREBASE_ENABLED")
	vip.BindEnv("firebase.api_key", "FIREBASE_API_KEY")
	vip.BindEnv("firebase.project_id", "FIREBASE_PROJECT_ID")

	if configPath != "" {
		vip.SetConfigFile(configPath)
		if err := vip.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				log.Printf("[Config] file '%s' not found, using environment variables", configPath)
			} else {
				log.Printf("[Config] warning: could not read '%s': %v", configPath, err)
			}
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if os.Getenv("GIN_MODE") != "release" {
		log.Printf("[Config] database host=%s dbname=%s", cfg.Database.Host, cfg.Database.DBName)
		log.Printf("[Config] redis addr=%s mode=%s", cfg.Redis.Addr, cfg.Redis.Mode)
		log.Printf("[Config] email enabled=%t storage enabled=%t moderation enabled=%t firebase enabled=%t",
			cfg.Email.Enabled, cfg.Storage.Enabled, cfg.Moderation.Enabled, cfg.Firebase.Enabled)
	}

	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT secret is required (check JWT_SECRET env var)")
	}
	if cfg.Database.Host == "" || cfg.Database.DBName == "" || cfg.Database.User == "" {
		return nil, fmt.Errorf("database configuration (host, dbname, user) is incomplete (check DATABASE_HOST, DATABASE_DBNAME, DATABASE_USER env vars)")
	}
	if cfg.Email.Enabled && cfg.Email.APIKey == "" {
		return nil, fmt.Errorf("email is enabled but EMAIL_API_KEY is not set")
	}
	if cfg.Storage.Enabled && (cfg.Storage.Bucket == "" || cfg.Storage.AccessKeyID == "") {
		return nil, fmt.Errorf("storage is enabled but bucket/credentials are incomplete")
	}
	if cfg.Firebase.Enabled && cfg.Firebase.APIKey == "" {
		return nil, fmt.Errorf("firebase auth is enabled but FIREBASE_API_KEY is not set")
	}

	return &cfg, nil
}
