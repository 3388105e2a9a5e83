package utils

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Payment   PaymentConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Telemetry TelemetryConfig
	Reaper    ReaperConfig
}

type AppConfig struct {
	Name            string
	Port            string
	Debug           bool
	LogPath         string
	PublicURL       string // base URL the processor calls back to
	FrontendURL     string // where checkout redirects land
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Driver      string // postgres | memory
	Host        string
	Port        string
	Name        string
	User        string
	Password    string
	MaxConns    int32
	AutoMigrate bool
	Tracing     bool
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type PaymentConfig struct {
	Provider            string // mercadopago | stripe | mock
	Currency            string
	MercadoPagoToken    string
	MercadoPagoSecret   string
	StripeSecretKey     string
	StripeWebhookSecret string
	Timeout             time.Duration
}

type RedisConfig struct {
	Enabled        bool
	Addr           string
	Password       string
	DB             int
	IdempotencyTTL time.Duration
}

type KafkaConfig struct {
	Enabled  bool
	Brokers  []string
	Topic    string
	ClientID string
}

type TelemetryConfig struct {
	Enabled       bool
	ServiceName   string
	Version       string
	Environment   string
	CollectorAddr string
}

type ReaperConfig struct {
	Enabled    bool
	Interval   time.Duration
	PendingTTL time.Duration
	BatchSize  int
}

func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")

	// Set defaults
	viper.SetDefault("APP_NAME", "cinema-ticketing")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DEBUG", false)
	viper.SetDefault("LOG_PATH", "logs/")
	viper.SetDefault("PUBLIC_URL", "http://localhost:8080")
	viper.SetDefault("FRONTEND_URL", "http://localhost:3000")
	viper.SetDefault("SHUTDOWN_TIMEOUT", "15s")
	viper.SetDefault("DB_DRIVER", "postgres")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_MAX_CONNS", 10)
	viper.SetDefault("DB_AUTO_MIGRATE", false)
	viper.SetDefault("JWT_ISSUER", "cinema-auth")
	viper.SetDefault("PAYMENT_PROVIDER", "mercadopago")
	viper.SetDefault("PAYMENT_CURRENCY", "ARS")
	viper.SetDefault("PAYMENT_TIMEOUT", "10s")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("IDEMPOTENCY_TTL", "24h")
	viper.SetDefault("KAFKA_TOPIC", "ticket.issued")
	viper.SetDefault("KAFKA_CLIENT_ID", "cinema-ticketing")
	viper.SetDefault("OTEL_SERVICE_NAME", "cinema-ticketing")
	viper.SetDefault("OTEL_SERVICE_VERSION", "dev")
	viper.SetDefault("OTEL_ENVIRONMENT", "development")
	viper.SetDefault("OTEL_COLLECTOR_ADDR", "localhost:4317")
	viper.SetDefault("REAPER_ENABLED", true)
	viper.SetDefault("REAPER_INTERVAL", "1m")
	viper.SetDefault("REAPER_PENDING_TTL", "2h")
	viper.SetDefault("REAPER_BATCH_SIZE", 100)

	// .env is optional, plain environment variables are enough in containers
	if _, err := os.Stat(".env"); err == nil {
		if err := viper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	viper.AutomaticEnv()

	config := &Config{
		App: AppConfig{
			Name:            viper.GetString("APP_NAME"),
			Port:            viper.GetString("PORT"),
			Debug:           viper.GetBool("DEBUG"),
			LogPath:         viper.GetString("LOG_PATH"),
			PublicURL:       strings.TrimRight(viper.GetString("PUBLIC_URL"), "/"),
			FrontendURL:     strings.TrimRight(viper.GetString("FRONTEND_URL"), "/"),
			ShutdownTimeout: viper.GetDuration("SHUTDOWN_TIMEOUT"),
		},
		Database: DatabaseConfig{
			Driver:      viper.GetString("DB_DRIVER"),
			Host:        viper.GetString("DB_HOST"),
			Port:        viper.GetString("DB_PORT"),
			Name:        viper.GetString("DB_NAME"),
			User:        viper.GetString("DB_USER"),
			Password:    viper.GetString("DB_PASS"),
			MaxConns:    viper.GetInt32("DB_MAX_CONNS"),
			AutoMigrate: viper.GetBool("DB_AUTO_MIGRATE"),
			Tracing:     viper.GetBool("OTEL_ENABLED"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("JWT_SECRET"),
			Issuer: viper.GetString("JWT_ISSUER"),
		},
		Payment: PaymentConfig{
			Provider:            strings.ToLower(viper.GetString("PAYMENT_PROVIDER")),
			Currency:            strings.ToUpper(viper.GetString("PAYMENT_CURRENCY")),
			MercadoPagoToken:    viper.GetString("MP_ACCESS_TOKEN"),
			MercadoPagoSecret:   viper.GetString("MP_WEBHOOK_SECRET"),
			StripeSecretKey:     viper.GetString("STRIPE_SECRET_KEY"),
			StripeWebhookSecret: viper.GetString("STRIPE_WEBHOOK_SECRET"),
			Timeout:             viper.GetDuration("PAYMENT_TIMEOUT"),
		},
		Redis: RedisConfig{
			Enabled:        viper.GetBool("REDIS_ENABLED"),
			Addr:           viper.GetString("REDIS_ADDR"),
			Password:       viper.GetString("REDIS_PASSWORD"),
			DB:             viper.GetInt("REDIS_DB"),
			IdempotencyTTL: viper.GetDuration("IDEMPOTENCY_TTL"),
		},
		Kafka: KafkaConfig{
			Enabled:  viper.GetBool("KAFKA_ENABLED"),
			Brokers:  splitList(viper.GetString("KAFKA_BROKERS")),
			Topic:    viper.GetString("KAFKA_TOPIC"),
			ClientID: viper.GetString("KAFKA_CLIENT_ID"),
		},
		Telemetry: TelemetryConfig{
			Enabled:       viper.GetBool("OTEL_ENABLED"),
			ServiceName:   viper.GetString("OTEL_SERVICE_NAME"),
			Version:       viper.GetString("OTEL_SERVICE_VERSION"),
			Environment:   viper.GetString("OTEL_ENVIRONMENT"),
			CollectorAddr: viper.GetString("OTEL_COLLECTOR_ADDR"),
		},
		Reaper: ReaperConfig{
			Enabled:    viper.GetBool("REAPER_ENABLED"),
			Interval:   viper.GetDuration("REAPER_INTERVAL"),
			PendingTTL: viper.GetDuration("REAPER_PENDING_TTL"),
			BatchSize:  viper.GetInt("REAPER_BATCH_SIZE"),
		},
	}

	return config, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
