package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Razorpay  RazorpayConfig
	WhatsApp  WhatsAppConfig
	Broadcast BroadcastConfig
	LogLevel  string

	// AllowUnsignedWebhooks lets a webhook through when the provider
	// signature header is absent. Test environments only; defaults to off.
	AllowUnsignedWebhooks bool
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds ledger database configuration
type DatabaseConfig struct {
	Path string
}

// RazorpayConfig holds payment gateway webhook configuration
type RazorpayConfig struct {
	WebhookSecret string
}

// WhatsAppConfig holds WhatsApp Cloud API configuration
type WhatsAppConfig struct {
	AccessToken     string
	PhoneNumberID   string
	VerifyToken     string
	AppSecret       string
	APIBaseURL      string
	VerifySignature bool
	SendTimeout     time.Duration
	SendRetryCount  int
}

// BroadcastConfig holds live event stream configuration
type BroadcastConfig struct {
	HeartbeatInterval time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Host: getEnv("HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "./db/okneppo.db"),
		},
		Razorpay: RazorpayConfig{
			WebhookSecret: getEnv("RAZORPAY_WEBHOOK_SECRET", ""),
		},
		WhatsApp: WhatsAppConfig{
			AccessToken:     getEnv("WHATSAPP_ACCESS_TOKEN", ""),
			PhoneNumberID:   getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
			VerifyToken:     getEnv("WHATSAPP_VERIFY_TOKEN", ""),
			AppSecret:       getEnv("WHATSAPP_APP_SECRET", ""),
			APIBaseURL:      getEnv("WHATSAPP_API_BASE_URL", "https://graph.facebook.com/v18.0"),
			VerifySignature: parseBool(getEnv("WHATSAPP_VERIFY_SIGNATURE", "false"), false),
			SendTimeout:     parseDuration(getEnv("WHATSAPP_SEND_TIMEOUT", "10s"), 10*time.Second),
			SendRetryCount:  parseInt(getEnv("WHATSAPP_SEND_RETRY_COUNT", "3"), 3),
		},
		Broadcast: BroadcastConfig{
			HeartbeatInterval: parseDuration(getEnv("EVENTS_HEARTBEAT_INTERVAL", "30s"), 30*time.Second),
		},
		LogLevel:              getEnv("LOG_LEVEL", "INFO"),
		AllowUnsignedWebhooks: parseBool(getEnv("ALLOW_UNSIGNED_WEBHOOKS", "false"), false),
	}

	// Validate required fields
	if config.Razorpay.WebhookSecret == "" && !config.AllowUnsignedWebhooks {
		return nil, fmt.Errorf("RAZORPAY_WEBHOOK_SECRET is required")
	}
	if config.WhatsApp.VerifySignature && config.WhatsApp.AppSecret == "" {
		return nil, fmt.Errorf("WHATSAPP_APP_SECRET is required when WHATSAPP_VERIFY_SIGNATURE is enabled")
	}

	return config, nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// parseInt parses string to int with default value
func parseInt(value string, defaultValue int) int {
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

// parseDuration parses string to time.Duration with default value
func parseDuration(value string, defaultValue time.Duration) time.Duration {
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}

// parseBool parses string to bool with default value
func parseBool(value string, defaultValue bool) bool {
	if value == "" {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return boolValue
}
