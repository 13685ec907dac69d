package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	AppPort    string
	AppEnv     string

	// Payment gateway
	GatewayBaseURL  string
	MerchantID      string
	SaltKeys        map[string]string // salt index -> salt key
	ActiveSaltIndex string
	CallbackURL     string
	RedirectURL     string

	// Fulfillment
	Currency          string
	ShippingFee       int64
	LowStockThreshold int

	JWTSecret string
}

func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBPort:     os.Getenv("DB_PORT"),
		AppPort:    os.Getenv("APP_PORT"),
		AppEnv:     os.Getenv("APP_ENV"),

		GatewayBaseURL:  os.Getenv("PAYMENT_BASE_URL"),
		MerchantID:      os.Getenv("PAYMENT_MERCHANT_ID"),
		SaltKeys:        parseSaltKeys(os.Getenv("PAYMENT_SALT_KEYS")),
		ActiveSaltIndex: os.Getenv("PAYMENT_SALT_INDEX"),
		CallbackURL:     os.Getenv("PAYMENT_CALLBACK_URL"),
		RedirectURL:     os.Getenv("PAYMENT_REDIRECT_URL"),

		Currency:          envOr("CURRENCY", "INR"),
		ShippingFee:       envInt64("SHIPPING_FEE", 1000),
		LowStockThreshold: int(envInt64("LOW_STOCK_THRESHOLD", 10)),

		JWTSecret: os.Getenv("SECRET_KEY"),
	}

	if cfg.DBHost == "" {
		log.Fatal("Environment variables not loaded properly")
	}

	return cfg
}

// parseSaltKeys reads "1:saltA,2:saltB" so callback verification can pick the
// key named by the salt index that rides along with the signature.
func parseSaltKeys(raw string) map[string]string {
	keys := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		idx, key, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		keys[strings.TrimSpace(idx)] = strings.TrimSpace(key)
	}
	return keys
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}
