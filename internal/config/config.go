package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server  ServerConfig
	DB      DBConfig
	MinIO   MinIOConfig
	SMTP    SMTPConfig
	Session SessionConfig
	Upload  UploadConfig
}

type ServerConfig struct {
	Port        string
	BaseURL     string
	FrontendURL string
	// OutboundTimeout bounds every call to the object store and the
	// mail relay.
	OutboundTimeout time.Duration
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type SessionConfig struct {
	Secret        string
	Lifetime      time.Duration
	SweepInterval time.Duration
}

type UploadConfig struct {
	TempDir  string
	MaxBytes int64
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			BaseURL:         getEnv("APP_BASE_URL", "http://localhost:8080"),
			FrontendURL:     getEnv("FRONTEND_URL", "http://localhost:3000"),
			OutboundTimeout: getEnvAsDuration("OUTBOUND_TIMEOUT", 30*time.Second),
		},
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "skydrive"),
			Password: getEnv("DB_PASSWORD", "skydrive_secret"),
			Name:     getEnv("DB_NAME", "skydrive"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", "skydrive"),
			SecretKey: getEnv("MINIO_SECRET_KEY", "skydrive_secret"),
			Bucket:    getEnv("MINIO_BUCKET", "skydrive"),
			UseSSL:    getEnvAsBool("MINIO_USE_SSL", false),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "localhost"),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "no-reply@skydrive.local"),
		},
		Session: SessionConfig{
			Secret:        getEnv("SESSION_SECRET", "change-me-in-production"),
			Lifetime:      getEnvAsDuration("SESSION_LIFETIME", 7*24*time.Hour),
			SweepInterval: getEnvAsDuration("SESSION_SWEEP_INTERVAL", 2*time.Minute),
		},
		Upload: UploadConfig{
			TempDir:  getEnv("UPLOAD_TEMP_DIR", os.TempDir()),
			MaxBytes: getEnvAsInt64("UPLOAD_MAX_BYTES", 10*1024*1024),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsInt64(key string, fallback int64) int64 {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}
