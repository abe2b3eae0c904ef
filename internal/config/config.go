package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Env      string
	Server   ServerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	MP       MercadoPagoConfig
	Checkout CheckoutConfig
	Limits   LimitsConfig
	Rabbit   RabbitConfig
	Mongo    MongoConfig
}

// IsProduction reports whether webhook signatures must be enforced.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

type ServerConfig struct {
	Host          string
	Port          int
	PublicBaseURL string
	CORSOrigins   []string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PostgresConfig struct {
	User     string
	Password string
	Name     string
	Host     string
	Port     int
	SSLMode  string
	MaxConns int32
}

type MercadoPagoConfig struct {
	AccessToken     string
	WebhookSecret   string
	BaseURL         string
	NotificationURL string
	Timeout         time.Duration
}

type CheckoutConfig struct {
	Brand               string
	Currency            string
	StatementDescriptor string
	TicketPrice         decimal.Decimal
}

type LimitsConfig struct {
	PreferenceRate   int
	PreferenceWindow time.Duration
	StatusCacheTTL   time.Duration
	LedgerTTL        time.Duration
}

// RabbitConfig is optional; an empty URL disables the outbox dispatcher.
type RabbitConfig struct {
	URL      string
	Exchange string
}

// MongoConfig is optional; an empty URI disables the webhook delivery log.
type MongoConfig struct {
	URI string
	DB  string
}

func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	env := getEnv("APP_ENV", "development")

	serverPort, err := getInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	serverCfg := ServerConfig{
		Host:          getEnv("SERVER_HOST", "localhost"),
		Port:          serverPort,
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", fmt.Sprintf("http://localhost:%d", serverPort)), "/"),
		CORSOrigins:   splitList(os.Getenv("CORS_ORIGINS")),
	}

	postgresPort, err := getInt("POSTGRES_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	postgresMaxConns, err := getInt("POSTGRES_MAX_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	postgresUser := os.Getenv("POSTGRES_USER")
	if postgresUser == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_USER", op)
	}

	postgresPassword := os.Getenv("POSTGRES_PASSWORD")
	if postgresPassword == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_PASSWORD", op)
	}

	postgresDB := os.Getenv("POSTGRES_DB")
	if postgresDB == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_DB", op)
	}

	postgresCfg := PostgresConfig{
		User:     postgresUser,
		Password: postgresPassword,
		Name:     postgresDB,
		Host:     getEnv("POSTGRES_HOST", "localhost"),
		Port:     postgresPort,
		SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		MaxConns: int32(postgresMaxConns),
	}

	redisDB, err := getInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	redisCfg := RedisConfig{
		Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       redisDB,
	}

	accessToken := os.Getenv("MP_ACCESS_TOKEN")
	if accessToken == "" {
		return nil, fmt.Errorf("%s: missing MP_ACCESS_TOKEN", op)
	}

	webhookSecret := os.Getenv("MP_WEBHOOK_SECRET")
	if webhookSecret == "" && env == "production" {
		return nil, fmt.Errorf("%s: missing MP_WEBHOOK_SECRET (required in production)", op)
	}

	mpTimeout, err := getDuration("MP_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	mpCfg := MercadoPagoConfig{
		AccessToken:     accessToken,
		WebhookSecret:   webhookSecret,
		BaseURL:         getEnv("MP_BASE_URL", "https://api.mercadopago.com"),
		NotificationURL: os.Getenv("MP_NOTIFICATION_URL"),
		Timeout:         mpTimeout,
	}

	ticketPrice, err := decimal.NewFromString(getEnv("TICKET_PRICE", "15.00"))
	if err != nil || !ticketPrice.IsPositive() {
		return nil, fmt.Errorf("%s: invalid TICKET_PRICE", op)
	}

	checkoutCfg := CheckoutConfig{
		Brand:               getEnv("CHECKOUT_BRAND", "Cinetix"),
		Currency:            getEnv("MP_CURRENCY", "PEN"),
		StatementDescriptor: getEnv("MP_STATEMENT_DESCRIPTOR", "CINETIX"),
		TicketPrice:         ticketPrice,
	}

	rate, err := getInt("PREFERENCE_RATE_LIMIT", 10)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	window, err := getDuration("PREFERENCE_RATE_WINDOW", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	statusTTL, err := getDuration("STATUS_CACHE_TTL", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ledgerTTL, err := getDuration("WEBHOOK_LEDGER_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	limitsCfg := LimitsConfig{
		PreferenceRate:   rate,
		PreferenceWindow: window,
		StatusCacheTTL:   statusTTL,
		LedgerTTL:        ledgerTTL,
	}

	return &Config{
		Env:      env,
		Server:   serverCfg,
		Postgres: postgresCfg,
		Redis:    redisCfg,
		MP:       mpCfg,
		Checkout: checkoutCfg,
		Limits:   limitsCfg,
		Rabbit: RabbitConfig{
			URL:      os.Getenv("RABBIT_URL"),
			Exchange: getEnv("RABBIT_EXCHANGE", "cinetix.events"),
		},
		Mongo: MongoConfig{
			URI: os.Getenv("MONGO_URI"),
			DB:  getEnv("MONGO_DB", "cinetix"),
		},
	}, nil
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}

	return v, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}

	return v, nil
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
