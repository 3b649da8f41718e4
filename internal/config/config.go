package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Config holds application configuration. Components receive it (or a
// sub-struct) at construction; nothing reads the environment after startup.
type Config struct {
	Port         int
	Environment  string
	SiteRoot     string
	PingEndpoint string
	SecretKey    string
	CORSOrigins  []string
	LogDir       string

	Database DatabaseConfig
	S3       S3Config
	SMTP     SMTPConfig

	// TelegramToken is the bot token shared by all telegram channels.
	TelegramToken string
	// PushoverToken is the application token for pushover channels.
	PushoverToken string

	// PingBodyLimit caps the accepted ping request body, in bytes.
	PingBodyLimit int64
	// InlineBodyLimit is the size above which ping bodies go to object
	// storage instead of the pings table.
	InlineBodyLimit int
	// PingLogLimit is how many most-recent pings are retained per check.
	PingLogLimit int
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// S3Config holds object-storage configuration. An empty Bucket disables
// archival: large ping bodies are then stored inline.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Bucket    string
	UseSSL    bool
}

// SMTPConfig holds the outbound mail server settings used by email channels.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	env := getEnv("ENVIRONMENT", "production")
	siteRoot := strings.TrimRight(getEnv("SITE_ROOT", "http://localhost:8080"), "/")

	cfg := &Config{
		Port:         getEnvInt("PORT", 8080),
		Environment:  env,
		SiteRoot:     siteRoot,
		PingEndpoint: getEnv("PING_ENDPOINT", siteRoot+"/ping/"),
		SecretKey:    os.Getenv("SECRET_KEY"),
		CORSOrigins:  []string{siteRoot},
		LogDir:       os.Getenv("LOG_DIR"),
		Database: DatabaseConfig{
			DSN:          getEnv("DATABASE_DSN", buildPostgresDSN()),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
		},
		S3: S3Config{
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
			Region:    os.Getenv("S3_REGION"),
			Bucket:    os.Getenv("S3_BUCKET"),
			UseSSL:    getEnvBool("S3_USE_SSL", true),
		},
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getEnvInt("SMTP_PORT", 587),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     getEnv("SMTP_FROM", "alerts@localhost"),
		},
		TelegramToken:   os.Getenv("TELEGRAM_TOKEN"),
		PushoverToken:   os.Getenv("PUSHOVER_TOKEN"),
		PingBodyLimit:   int64(getEnvInt("PING_BODY_LIMIT", 10000)),
		InlineBodyLimit: getEnvInt("INLINE_BODY_LIMIT", 100),
		PingLogLimit:    getEnvInt("PING_LOG_LIMIT", 100),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func buildPostgresDSN() string {
	host := getEnv("POSTGRES_HOST", "localhost")
	port := getEnv("POSTGRES_PORT", "5432")
	user := getEnv("POSTGRES_USER", "pulsewatch")
	password := getEnv("POSTGRES_PASSWORD", "secret")
	dbName := getEnv("POSTGRES_DB", "pulsewatch")
	sslMode := getEnv("POSTGRES_SSLMODE", "disable")

	u := url.URL{
		Scheme: "postgresql",
		User:   url.UserPassword(user, password),
		Host:   fmt.Sprintf("%s:%s", host, port),
		Path:   dbName,
	}

	query := u.Query()
	query.Set("sslmode", sslMode)
	u.RawQuery = query.Encode()

	return u.String()
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Environment == "production" && len(c.SecretKey) < 32 {
		return fmt.Errorf("SECRET_KEY must be at least 32 characters in production")
	}

	if c.S3.Bucket != "" {
		if c.S3.Endpoint == "" || c.S3.AccessKey == "" || c.S3.SecretKey == "" {
			return fmt.Errorf("S3_BUCKET is set but S3_ENDPOINT, S3_ACCESS_KEY or S3_SECRET_KEY is missing")
		}
	}

	if c.PingLogLimit < 1 {
		return fmt.Errorf("PING_LOG_LIMIT must be positive")
	}

	return nil
}

// ArchiveEnabled reports whether object storage is configured.
func (c *Config) ArchiveEnabled() bool {
	return c.S3.Bucket != ""
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}
