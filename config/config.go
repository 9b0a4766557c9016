package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every runtime setting. It is built once in main and handed
// to each component at construction; nothing reads the environment after
// startup.
type Config struct {
	Port string

	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string

	RedisHost     string
	RedisPassword string

	KafkaBroker string

	ElasticsearchURL string

	SentryDSN  string
	AppEnv     string
	AppVersion string

	JWTSecret string
	TokenTTL  time.Duration

	SendGridAPIKey string
	MailFrom       string
	MailFromName   string

	// NotifyEmails receive an informational notice when a lead, contact
	// or note is created.
	NotifyEmails []string

	DispatcherPollInterval time.Duration
	DispatcherWorkers      int
}

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8080"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getEnv("DB_NAME", "minicrm"),
		DBPort:     getEnv("DB_PORT", "5432"),

		RedisHost:     getEnv("REDIS_HOST", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		KafkaBroker: getEnv("KAFKA_BROKER", "localhost:9092"),

		ElasticsearchURL: getEnv("ELASTICSEARCH_URL", "http://localhost:9200"),

		SentryDSN:  os.Getenv("SENTRY_DSN"),
		AppEnv:     getEnv("APP_ENV", "development"),
		AppVersion: getEnv("APP_VERSION", "dev"),

		JWTSecret: os.Getenv("JWT_SECRET"),
		TokenTTL:  getDuration("TOKEN_TTL", 24*time.Hour),

		SendGridAPIKey: os.Getenv("SENDGRID_API_KEY"),
		MailFrom:       getEnv("MAIL_FROM", "reminders@minicrm.dev"),
		MailFromName:   getEnv("MAIL_FROM_NAME", "Mini CRM"),

		NotifyEmails: splitList(os.Getenv("NOTIFY_EMAILS")),

		DispatcherPollInterval: getDuration("DISPATCHER_POLL_INTERVAL", 15*time.Second),
		DispatcherWorkers:      getInt("DISPATCHER_WORKERS", 4),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
