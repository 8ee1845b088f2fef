package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	DB        DBConfig
	S3        S3Config
	Log       LogConfig
	CORS      CORSConfig
	Queue     QueueConfig
	Extractor ExtractorConfig
	Mapper    MapperConfig
	Snapshot  SnapshotConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// S3Config holds AWS S3 settings for uploaded source documents.
type S3Config struct {
	Region        string `mapstructure:"region"`
	Bucket        string `mapstructure:"bucket"`
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	MaxFileSizeMB int64  `mapstructure:"max_file_size_mb"`
	PresignExpiry int64  `mapstructure:"presign_expiry"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// QueueConfig holds mapping queue worker settings.
type QueueConfig struct {
	PollIntervalSecs int `mapstructure:"poll_interval_secs"`
	MaxRetries       int `mapstructure:"max_retries"`
	Concurrency      int `mapstructure:"concurrency"`
}

// ExtractorConfig holds vision extraction provider settings.
type ExtractorConfig struct {
	Provider     string `mapstructure:"provider"`
	APIKey       string `mapstructure:"api_key"`
	DefaultModel string `mapstructure:"default_model"`
	MaxRetries   int    `mapstructure:"max_retries"`
	TimeoutSecs  int    `mapstructure:"timeout_secs"`
}

// MapperConfig holds canonical mapping settings, including the optional LLM
// gap-filling pass.
type MapperConfig struct {
	LLMEnabled   bool   `mapstructure:"llm_enabled"`
	APIKey       string `mapstructure:"api_key"`
	DefaultModel string `mapstructure:"default_model"`
	TimeoutSecs  int    `mapstructure:"timeout_secs"`
}

// SnapshotConfig holds the on-disk snapshot store settings.
type SnapshotConfig struct {
	Dir string `mapstructure:"dir"`
}

// Load reads configuration from environment variables with the POLICONV_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("POLICONV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.environment", "development")

	// DB defaults
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "policonv")
	v.SetDefault("db.password", "policonv_secret")
	v.SetDefault("db.name", "policonv_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 25)
	v.SetDefault("db.max_idle", 10)

	// S3 defaults
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "policonv-uploads")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.max_file_size_mb", 50)
	v.SetDefault("s3.presign_expiry", 3600)

	// Log defaults
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "console")

	// CORS defaults (localhost origins for development)
	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")

	// Queue defaults
	v.SetDefault("queue.poll_interval_secs", 10)
	v.SetDefault("queue.max_retries", 5)
	v.SetDefault("queue.concurrency", 5)

	// Extractor defaults
	v.SetDefault("extractor.provider", "claude")
	v.SetDefault("extractor.api_key", "")
	v.SetDefault("extractor.default_model", "claude-sonnet-4-20250514")
	v.SetDefault("extractor.max_retries", 2)
	v.SetDefault("extractor.timeout_secs", 120)

	// Mapper defaults
	v.SetDefault("mapper.llm_enabled", false)
	v.SetDefault("mapper.api_key", "")
	v.SetDefault("mapper.default_model", "claude-sonnet-4-20250514")
	v.SetDefault("mapper.timeout_secs", 120)

	// Snapshot defaults
	v.SetDefault("snapshot.dir", "data/snapshots")

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":              "POLICONV_SERVER_PORT",
		"server.read_timeout":      "POLICONV_SERVER_READ_TIMEOUT",
		"server.write_timeout":     "POLICONV_SERVER_WRITE_TIMEOUT",
		"server.environment":       "POLICONV_SERVER_ENVIRONMENT",
		"db.host":                  "POLICONV_DB_HOST",
		"db.port":                  "POLICONV_DB_PORT",
		"db.user":                  "POLICONV_DB_USER",
		"db.password":              "POLICONV_DB_PASSWORD",
		"db.name":                  "POLICONV_DB_NAME",
		"db.sslmode":               "POLICONV_DB_SSLMODE",
		"db.max_open":              "POLICONV_DB_MAX_OPEN",
		"db.max_idle":              "POLICONV_DB_MAX_IDLE",
		"s3.region":                "POLICONV_S3_REGION",
		"s3.bucket":                "POLICONV_S3_BUCKET",
		"s3.endpoint":              "POLICONV_S3_ENDPOINT",
		"s3.access_key":            "POLICONV_S3_ACCESS_KEY",
		"s3.secret_key":            "POLICONV_S3_SECRET_KEY",
		"s3.max_file_size_mb":      "POLICONV_S3_MAX_FILE_SIZE_MB",
		"s3.presign_expiry":        "POLICONV_S3_PRESIGN_EXPIRY",
		"log.level":                "POLICONV_LOG_LEVEL",
		"log.format":               "POLICONV_LOG_FORMAT",
		"cors.allowed_origins":     "POLICONV_CORS_ALLOWED_ORIGINS",
		"queue.poll_interval_secs": "POLICONV_QUEUE_POLL_INTERVAL_SECS",
		"queue.max_retries":        "POLICONV_QUEUE_MAX_RETRIES",
		"queue.concurrency":        "POLICONV_QUEUE_CONCURRENCY",
		"extractor.provider":       "POLICONV_EXTRACTOR_PROVIDER",
		"extractor.api_key":        "POLICONV_EXTRACTOR_API_KEY",
		"extractor.default_model":  "POLICONV_EXTRACTOR_DEFAULT_MODEL",
		"extractor.max_retries":    "POLICONV_EXTRACTOR_MAX_RETRIES",
		"extractor.timeout_secs":   "POLICONV_EXTRACTOR_TIMEOUT_SECS",
		"mapper.llm_enabled":       "POLICONV_MAPPER_LLM_ENABLED",
		"mapper.api_key":           "POLICONV_MAPPER_API_KEY",
		"mapper.default_model":     "POLICONV_MAPPER_DEFAULT_MODEL",
		"mapper.timeout_secs":      "POLICONV_MAPPER_TIMEOUT_SECS",
		"snapshot.dir":             "POLICONV_SNAPSHOT_DIR",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// Railway/Heroku/Render set a PORT env var. Use it if POLICONV_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("POLICONV_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:         serverPort,
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),
	}
	cfg.DB = DBConfig{
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),
	}
	cfg.S3 = S3Config{
		Region:        v.GetString("s3.region"),
		Bucket:        v.GetString("s3.bucket"),
		Endpoint:      v.GetString("s3.endpoint"),
		AccessKey:     v.GetString("s3.access_key"),
		SecretKey:     v.GetString("s3.secret_key"),
		MaxFileSizeMB: v.GetInt64("s3.max_file_size_mb"),
		PresignExpiry: v.GetInt64("s3.presign_expiry"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}
	// Parse CORS allowed origins from comma-separated string
	var corsOrigins []string
	for _, o := range strings.Split(v.GetString("cors.allowed_origins"), ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			corsOrigins = append(corsOrigins, o)
		}
	}
	cfg.CORS = CORSConfig{
		AllowedOrigins: corsOrigins,
	}
	cfg.Queue = QueueConfig{
		PollIntervalSecs: v.GetInt("queue.poll_interval_secs"),
		MaxRetries:       v.GetInt("queue.max_retries"),
		Concurrency:      v.GetInt("queue.concurrency"),
	}
	cfg.Extractor = ExtractorConfig{
		Provider:     v.GetString("extractor.provider"),
		APIKey:       v.GetString("extractor.api_key"),
		DefaultModel: v.GetString("extractor.default_model"),
		MaxRetries:   v.GetInt("extractor.max_retries"),
		TimeoutSecs:  v.GetInt("extractor.timeout_secs"),
	}
	cfg.Mapper = MapperConfig{
		LLMEnabled:   v.GetBool("mapper.llm_enabled"),
		APIKey:       v.GetString("mapper.api_key"),
		DefaultModel: v.GetString("mapper.default_model"),
		TimeoutSecs:  v.GetInt("mapper.timeout_secs"),
	}
	cfg.Snapshot = SnapshotConfig{
		Dir: v.GetString("snapshot.dir"),
	}

	return cfg, nil
}
