package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewRateFileHolder),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Redis   RedisConfig
	Email   EmailConfig
	Invoice InvoiceConfig
	Revenue RevenueConfig

	SchedulerInterval   time.Duration
	SnowflakeNode       int64
	RateFileWatch       bool
	RateRefreshInterval time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

type EmailConfig struct {
	ResendAPIKey string
	FromEmail    string
	FromName     string
}

type InvoiceConfig struct {
	NumberPrefix        string
	NumberTemplate      string
	SellerOfRecord      string
	DeliveryTimeout     time.Duration
	MaxDeliveryAttempts int
}

type RevenueConfig struct {
	DefaultCurrency    string
	AggregationTimeout time.Duration
	ChunkDays          int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:           getenv("APP_SERVICE", "settlekit"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("ENVIRONMENT", "development"),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint:      getenv("OTLP_ENDPOINT", "localhost:4317"),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "settlekit"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 300),
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
		},
		Email: EmailConfig{
			ResendAPIKey: strings.TrimSpace(getenv("RESEND_API_KEY", "")),
			FromEmail:    getenv("EMAIL_FROM", "billing@settlekit.local"),
			FromName:     getenv("EMAIL_FROM_NAME", "Settlekit Billing"),
		},
		Invoice: InvoiceConfig{
			NumberPrefix:        strings.ToUpper(strings.TrimSpace(getenv("INVOICE_NUMBER_PREFIX", "INV"))),
			NumberTemplate:      getenv("INVOICE_NUMBER_TEMPLATE", "{PREFIX}-{YYYY}-{SEQ6}"),
			SellerOfRecord:      getenv("INVOICE_SELLER_OF_RECORD", "Settlekit Ltd"),
			DeliveryTimeout:     getenvDuration("INVOICE_DELIVERY_TIMEOUT", 10*time.Second),
			MaxDeliveryAttempts: getenvInt("INVOICE_MAX_DELIVERY_ATTEMPTS", 5),
		},
		Revenue: RevenueConfig{
			DefaultCurrency:    strings.ToUpper(getenv("REVENUE_DEFAULT_CURRENCY", "GBP")),
			AggregationTimeout: getenvDuration("REVENUE_AGGREGATION_TIMEOUT", 15*time.Second),
			ChunkDays:          getenvInt("REVENUE_CHUNK_DAYS", 31),
		},
		SchedulerInterval:   getenvDuration("SCHEDULER_INTERVAL", time.Hour),
		SnowflakeNode:       int64(getenvInt("SNOWFLAKE_NODE", 1)),
		RateFileWatch:       getenvBool("RATES_WATCH", true),
		RateRefreshInterval: getenvDuration("RATES_REFRESH_INTERVAL", 30*time.Second),
	}
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
