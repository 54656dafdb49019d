package config

import (
	"errors"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds application level configuration loaded from environment variables.
type Config struct {
	Env             string        `envconfig:"ENV" default:"development"`
	ServerPort      string        `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"10s"`

	MySQLDSN string `envconfig:"MYSQL_DSN" default:"user:password@tcp(localhost:3306)/campusmarket?charset=utf8mb4&parseTime=True&loc=Local"`

	RedisAddr string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisDB   int    `envconfig:"REDIS_DB" default:"0"`
	RedisPass string `envconfig:"REDIS_PASSWORD"`

	JWTSecret   string `envconfig:"JWT_SECRET" required:"true"`
	EmailDomain string `envconfig:"EMAIL_DOMAIN" default:"@mite.ac.in"`

	StorageDriver  string `envconfig:"STORAGE_DRIVER" default:"local"`
	UploadDir      string `envconfig:"UPLOAD_DIR" default:"uploads"`
	UploadMaxBytes int64  `envconfig:"UPLOAD_MAX_BYTES" default:"2097152"`
	S3Bucket       string `envconfig:"S3_BUCKET"`
	S3Region       string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Endpoint     string `envconfig:"S3_ENDPOINT"`
	S3PublicURL    string `envconfig:"S3_PUBLIC_URL"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	CORSOrigins   []string `envconfig:"CORS_ORIGINS" default:"*"`
	AuthRateLimit int      `envconfig:"AUTH_RATE_LIMIT" default:"30"`
	SwaggerHost   string   `envconfig:"SWAGGER_HOST"`
}

// Load builds Config from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return nil, errors.New("jwt secret must be provided")
	}
	if !strings.HasPrefix(cfg.EmailDomain, "@") {
		cfg.EmailDomain = "@" + cfg.EmailDomain
	}
	cfg.EmailDomain = strings.ToLower(cfg.EmailDomain)

	switch cfg.StorageDriver {
	case "local":
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, errors.New("S3_BUCKET is required when STORAGE_DRIVER=s3")
		}
	default:
		return nil, errors.New("STORAGE_DRIVER must be local or s3")
	}
	if cfg.UploadMaxBytes <= 0 {
		return nil, errors.New("UPLOAD_MAX_BYTES must be positive")
	}
	return &cfg, nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.Env == "production"
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.ServerPort
}
