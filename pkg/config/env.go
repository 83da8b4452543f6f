package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Storage backends.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds application configuration
type Config struct {
	Port     string
	LogLevel string
	Storage  string

	// Shared secrets. An empty value disables the check.
	WebhookToken string
	RelaySecret  string

	Database DatabaseConfig
	RabbitMQ RabbitMQConfig
	Redis    RedisConfig

	TelegramBotToken string

	Notify NotifyConfig

	LinkCodeTTL     time.Duration
	TradesPageLimit int
	AllowedOrigins  []string

	WebhookRateLimit float64
	WebhookBurst     int

	Schedule ScheduleConfig
}

// DatabaseConfig holds PostgreSQL settings
type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	Name           string
	SSLMode        string
	TimeZone       string
	MigrateOnStart bool
	AutoMigrate    bool
	MigrationsDir  string
}

// DSN returns the gorm postgres connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode, c.TimeZone)
}

// RabbitMQConfig holds broker settings
type RabbitMQConfig struct {
	Host     string
	Port     string
	User     string
	Password string
}

// Enabled reports whether a broker is configured.
func (c RabbitMQConfig) Enabled() bool {
	return c.Host != ""
}

// URL returns the AMQP connection URL.
func (c RabbitMQConfig) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/", c.User, c.Password, c.Host, c.Port)
}

// RedisConfig holds Redis settings
type RedisConfig struct {
	Host     string
	Port     string
	Password string
}

// Enabled reports whether Redis is configured.
func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

// NotifyConfig holds dispatcher settings
type NotifyConfig struct {
	Queue         string
	BlockedMarker string
	BurstTTL      time.Duration
	KeyTTL        time.Duration
}

// ScheduleConfig holds cron specs (with seconds) for maintenance jobs
type ScheduleConfig struct {
	PurgeLinkCodes string
	PurgeKeys      string
	KeyRetention   time.Duration
}

// Load reads .env (if present) and the environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, using environment variables")
	}

	return &Config{
		Port:     getEnvOrDefault("PORT", "8080"),
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		Storage:  strings.ToLower(getEnvOrDefault("STORAGE", StoragePostgres)),

		WebhookToken: os.Getenv("WEBHOOK_TOKEN"),
		RelaySecret:  os.Getenv("RELAY_SECRET"),

		Database: DatabaseConfig{
			Host:           getEnvOrDefault("DB_HOST", "localhost"),
			Port:           getEnvOrDefault("DB_PORT", "5432"),
			User:           getEnvOrDefault("DB_USER", "tradewatch"),
			Password:       getEnvOrDefault("DB_PASSWORD", ""),
			Name:           getEnvOrDefault("DB_NAME", "tradewatch"),
			SSLMode:        getEnvOrDefault("DB_SSLMODE", "disable"),
			TimeZone:       getEnvOrDefault("DB_TIMEZONE", "UTC"),
			MigrateOnStart: getEnvBool("MIGRATE_ON_START", false),
			AutoMigrate:    getEnvBool("DB_AUTO_MIGRATE", true),
			MigrationsDir:  getEnvOrDefault("MIGRATIONS_DIR", "migrations"),
		},

		RabbitMQ: RabbitMQConfig{
			Host:     os.Getenv("RABBITMQ_HOST"),
			Port:     getEnvOrDefault("RABBITMQ_PORT", "5672"),
			User:     getEnvOrDefault("RABBITMQ_USER", "guest"),
			Password: getEnvOrDefault("RABBITMQ_PASSWORD", "guest"),
		},

		Redis: RedisConfig{
			Host:     os.Getenv("REDIS_HOST"),
			Port:     getEnvOrDefault("REDIS_PORT", "6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},

		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),

		Notify: NotifyConfig{
			Queue:         getEnvOrDefault("NOTIFY_QUEUE", ""),
			BlockedMarker: getEnvOrDefault("NOTIFY_BLOCKED_MARKER", "[internal]"),
			BurstTTL:      getEnvDuration("FOLLOWUP_BURST_TTL", 2*time.Minute),
			KeyTTL:        getEnvDuration("NOTIFY_KEY_TTL", 24*time.Hour),
		},

		LinkCodeTTL:     getEnvDuration("LINK_CODE_TTL", 10*time.Minute),
		TradesPageLimit: getEnvInt("TRADES_PAGE_LIMIT", 200),
		AllowedOrigins:  getEnvList("ALLOWED_ORIGINS"),

		WebhookRateLimit: getEnvFloat("WEBHOOK_RATE_LIMIT", 20),
		WebhookBurst:     getEnvInt("WEBHOOK_RATE_BURST", 40),

		Schedule: ScheduleConfig{
			PurgeLinkCodes: getEnvOrDefault("SCHEDULE_PURGE_LINK_CODES", "0 */5 * * * *"),
			PurgeKeys:      getEnvOrDefault("SCHEDULE_PURGE_KEYS", "0 0 * * * *"),
			KeyRetention:   getEnvDuration("NOTIFY_KEY_RETENTION", 7*24*time.Hour),
		},
	}
}

// SetupLogger configures the standard logrus logger for a binary.
func SetupLogger(level string) {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
}

// getEnvOrDefault gets environment variable or returns default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets environment variable as int or returns default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		logrus.WithField("key", key).Warnf("Invalid integer %q, using default %d", value, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		logrus.WithField("key", key).Warnf("Invalid number %q, using default %v", value, defaultValue)
		return defaultValue
	}
	return f
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		logrus.WithField("key", key).Warnf("Invalid duration %q, using default %s", value, defaultValue)
		return defaultValue
	}
	return d
}

// getEnvList splits a comma-separated variable, dropping empty items.
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
