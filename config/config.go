package config

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
)

type Config struct {
	Port           string
	BackendURL     string
	RemoteTimeout  time.Duration
	GuestTTL       time.Duration
	NoticeTTL      time.Duration
	EventsTopic    string
	AllowedOrigins []string
	CookieSecure   bool
	SessionAuthKey string
	SessionEncKey  string
}

// Load reads .env when present and then the process environment.
func Load() Config {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("[config] no .env file found, using process environment")
	}

	return Config{
		Port:           GetEnv("PORT", "8084"),
		BackendURL:     GetEnv("BACKEND_URL", "http://localhost:8080/api"),
		RemoteTimeout:  GetDuration("REMOTE_TIMEOUT", 10*time.Second),
		GuestTTL:       GetDuration("GUEST_CART_TTL", 30*24*time.Hour),
		NoticeTTL:      GetDuration("NOTICE_TTL", 3*time.Second),
		EventsTopic:    GetEnv("CART_EVENTS_TOPIC", "cart-events"),
		AllowedOrigins: splitList(os.Getenv("ALLOWED_ORIGINS")),
		CookieSecure:   GetEnv("COOKIE_SECURE", "false") == "true",
		SessionAuthKey: os.Getenv("SESSION_AUTH_KEY"),
		SessionEncKey:  os.Getenv("SESSION_ENC_KEY"),
	}
}

func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func GetDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// SessionKeys decodes the cookie keys. Missing keys are replaced with random
// ones, which invalidates guest cookies on every restart.
func (c Config) SessionKeys() ([][]byte, error) {
	if c.SessionAuthKey == "" {
		log.Println("[config] SESSION_AUTH_KEY not set, generating an ephemeral key")
		return [][]byte{securecookie.GenerateRandomKey(64), securecookie.GenerateRandomKey(32)}, nil
	}

	authKey, err := base64.StdEncoding.DecodeString(c.SessionAuthKey)
	if err != nil {
		return nil, fmt.Errorf("decode SESSION_AUTH_KEY: %w", err)
	}
	if c.SessionEncKey == "" {
		return [][]byte{authKey}, nil
	}

	encKey, err := base64.StdEncoding.DecodeString(c.SessionEncKey)
	if err != nil {
		return nil, fmt.Errorf("decode SESSION_ENC_KEY: %w", err)
	}
	return [][]byte{authKey, encKey}, nil
}

// GenerateSessionKeys returns a fresh auth/encryption key pair in the form
// SESSION_AUTH_KEY and SESSION_ENC_KEY expect.
func GenerateSessionKeys() (string, string, error) {
	authKey := securecookie.GenerateRandomKey(64)
	encKey := securecookie.GenerateRandomKey(32)
	if authKey == nil || encKey == nil {
		return "", "", fmt.Errorf("generate session keys: random source unavailable")
	}
	return base64.StdEncoding.EncodeToString(authKey), base64.StdEncoding.EncodeToString(encKey), nil
}

func MustInitPostgres() *sql.DB {
	dbHost := os.Getenv("DB_HOST")
	dbPort := os.Getenv("DB_PORT")
	dbName := os.Getenv("DB_NAME")
	dbUser := os.Getenv("DB_USER")
	dbPassword := os.Getenv("DB_PASSWORD")

	connStr := "host=" + dbHost + " port=" + dbPort + " user=" + dbUser +
		" password=" + dbPassword + " dbname=" + dbName + " sslmode=disable"

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	if err = db.Ping(); err != nil {
		log.Fatal("Failed to ping database:", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	return db
}

func MustInitRedis() *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: GetEnv("REDIS_HOST", "localhost") + ":" + GetEnv("REDIS_PORT", "6379"),
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}

	return client
}

func NewKafkaWriter(topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(os.Getenv("KAFKA_BROKER")),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
}
