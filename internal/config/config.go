package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	App      AppConfig
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Queue    QueueConfig
	Push     PushConfig
	Email    EmailConfig
}

type AppConfig struct {
	Env      string
	LogLevel string
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	MigrationsPath  string
}

type RedisConfig struct {
	URL          string
	MaxRetries   int
	PoolSize     int
	MinIdleConns int
}

type QueueConfig struct {
	Key         string
	IdleBackoff time.Duration
	MaxRetries  int
	MailboxSize int
}

type PushConfig struct {
	CredentialsPath string
	ProjectID       string
	Endpoint        string
	Timeout         time.Duration
}

type EmailConfig struct {
	APIKey   string
	Endpoint string
	Timeout  time.Duration
}

// Load creates a new Config from environment variables. DATABASE_URL,
// REDIS_URL and QUEUE_KEY have no sane default and make Load fail.
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Env:      getEnv("APP_ENV", "development"),
			LogLevel: getEnv("LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			MaxOpenConns:    getIntEnv("DATABASE_MAX_OPEN_CONNS", 10),
			ConnMaxLifetime: getDurationEnv("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
			MigrationsPath:  getEnv("DATABASE_MIGRATIONS_PATH", "migrations"),
		},
		Redis: RedisConfig{
			MaxRetries:   getIntEnv("REDIS_MAX_RETRIES", 3),
			PoolSize:     getIntEnv("REDIS_POOL_SIZE", 10),
			MinIdleConns: getIntEnv("REDIS_MIN_IDLE_CONNS", 2),
		},
		Queue: QueueConfig{
			IdleBackoff: getDurationEnv("QUEUE_IDLE_BACKOFF", 10*time.Second),
			MaxRetries:  getIntEnv("QUEUE_MAX_RETRIES", 3),
			MailboxSize: getIntEnv("WORKER_MAILBOX_SIZE", 64),
		},
		Push: PushConfig{
			CredentialsPath: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
			ProjectID:       getEnv("PROJECT_ID", ""),
			Endpoint:        getEnv("FCM_ENDPOINT", "https://fcm.googleapis.com/v1"),
			Timeout:         getDurationEnv("PUSH_TIMEOUT", 10*time.Second),
		},
		Email: EmailConfig{
			APIKey:   getEnv("SENDGRID_API_KEY", ""),
			Endpoint: getEnv("SENDGRID_ENDPOINT", "https://api.sendgrid.com/v3/mail/send"),
			Timeout:  getDurationEnv("EMAIL_TIMEOUT", 10*time.Second),
		},
	}

	var err error
	if cfg.Database.URL, err = requireEnv("DATABASE_URL"); err != nil {
		return nil, err
	}
	if cfg.Redis.URL, err = requireEnv("REDIS_URL"); err != nil {
		return nil, err
	}
	if cfg.Queue.Key, err = requireEnv("QUEUE_KEY"); err != nil {
		return nil, err
	}

	return cfg, nil
}

func requireEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("env %s must be set", key)
	}
	return value, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
