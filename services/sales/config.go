package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config reúne a configuração do serviço lida do ambiente
type Config struct {
	Env         string
	Port        string
	ServiceName string
	LogLevel    string

	DatabaseHost     string
	DatabasePort     string
	DatabaseUser     string
	DatabasePassword string
	DatabaseName     string
	DatabaseMaxConns int32

	OTelEnabled  bool
	OTelEndpoint string

	AuthURL      string
	AuthAPIKey   string
	AuthCacheTTL time.Duration
	RedisURL     string

	StockMaxRetries int
}

// LoadConfig carrega o .env, se existir, e lê as variáveis com valores padrão.
// Roda antes do logger existir, então erros são retornados e não registrados.
func LoadConfig() (*Config, error) {
	// Sem .env seguimos só com o ambiente; .env ilegível é erro
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{
		Env:              getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "8080"),
		ServiceName:      getEnv("SERVICE_NAME", "sales-service"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		DatabaseHost:     getEnv("DATABASE_HOST", "localhost"),
		DatabasePort:     getEnv("DATABASE_PORT", "5432"),
		DatabaseUser:     getEnv("DATABASE_USER", "root"),
		DatabasePassword: getEnv("DATABASE_PASSWORD", "pass"),
		DatabaseName:     getEnv("DATABASE_NAME", "sales_db"),
		DatabaseMaxConns: int32(getEnvInt("DATABASE_MAX_CONNS", 10)),
		OTelEnabled:      getEnvBool("OTEL_ENABLED", true),
		OTelEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		AuthURL:          os.Getenv("AUTH_URL"),
		AuthAPIKey:       os.Getenv("AUTH_API_KEY"),
		AuthCacheTTL:     getEnvDuration("AUTH_CACHE_TTL", time.Minute),
		RedisURL:         os.Getenv("REDIS_URL"),
		StockMaxRetries:  getEnvInt("STOCK_MAX_RETRIES", defaultStockMaxRetries),
	}

	if cfg.Env == "production" && (cfg.AuthURL == "" || cfg.AuthAPIKey == "") {
		return nil, fmt.Errorf("missing identity service environment variables AUTH_URL and AUTH_API_KEY")
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = "https://placeholder.supabase.co"
	}

	return cfg, nil
}

// PostgresDSN monta a URL usada pelo pgxpool
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DatabaseUser, c.DatabasePassword, c.DatabaseHost, c.DatabasePort, c.DatabaseName,
	)
}

// LibPQDSN monta o DSN no formato chave=valor do lib/pq
func (c *Config) LibPQDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DatabaseHost, c.DatabasePort, c.DatabaseUser, c.DatabasePassword, c.DatabaseName,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
