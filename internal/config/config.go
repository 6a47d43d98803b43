package config

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds everything the service reads from the environment.
type Config struct {
	Port           string
	MongoURI       string
	DBName         string
	JWTSecret      string
	RedisAddr      string
	RedisPassword  string
	AMQPURL        string
	AMQPExchange   string
	Environment    string
	AllowedOrigins []string
	OTLPEndpoint   string
	DebugEndpoints bool
}

// Load reads configuration from a .env file when present, then from the
// environment, falling back to development defaults.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on environment variables")
	}

	return &Config{
		Port:           getEnv("PORT", "8083"),
		MongoURI:       getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		DBName:         getEnv("DB_NAME", "campus_chat"),
		JWTSecret:      getEnv("JWT_SECRET", "dev-secret"),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		AMQPURL:        getEnv("AMQP_URL", ""),
		AMQPExchange:   getEnv("AMQP_EXCHANGE", "campus.events"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		OTLPEndpoint:   getEnv("OTLP_ENDPOINT", ""),
		DebugEndpoints: getEnv("DEBUG_ENDPOINTS", "") == "true",
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
