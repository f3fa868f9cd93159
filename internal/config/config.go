package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Session cookie settings. TTL is a sliding window: every
	// authenticated request renews it.
	SessionName   string
	SessionSecret string
	SessionTTL    time.Duration

	// Clinical day window for appointments, local hours [open, close).
	ClinicOpenHour  int
	ClinicCloseHour int

	// When true, booking a slot the doctor already has an event on is
	// rejected instead of silently double-booked.
	AppointmentOverlapCheck bool

	// Upper bound on any single store operation.
	StoreTimeout time.Duration

	// Rate limit on register/login attempts, per IP.
	AuthRateLimit float64
	AuthRateBurst int

	CORSAllowedOrigins []string

	// Video consultation room token issuance.
	VideoRoomName string
	VideoTokenTTL time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		SessionName:   getEnv("SESSION_NAME", "sid"),
		SessionSecret: getEnv("SESSION_SECRET", ""),
		SessionTTL:    getEnvAsDuration("SESSION_TTL", time.Hour),

		ClinicOpenHour:  getEnvAsInt("CLINIC_OPEN_HOUR", 9),
		ClinicCloseHour: getEnvAsInt("CLINIC_CLOSE_HOUR", 17),

		AppointmentOverlapCheck: getEnvAsBool("APPOINTMENT_OVERLAP_CHECK", false),

		StoreTimeout: getEnvAsDuration("STORE_TIMEOUT", 5*time.Second),

		AuthRateLimit: getEnvAsFloat("AUTH_RATE_LIMIT", 2),
		AuthRateBurst: getEnvAsInt("AUTH_RATE_BURST", 10),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", nil),

		VideoRoomName: getEnv("VIDEO_ROOM_NAME", "telemedicineAppointment"),
		VideoTokenTTL: getEnvAsDuration("VIDEO_TOKEN_TTL", 7400*time.Second),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsFloat retrieves an environment variable as a float or returns a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
