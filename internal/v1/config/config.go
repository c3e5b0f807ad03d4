package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// DefaultAlphabet is the room-key codec alphabet: a shuffled base-62 set so
// keys are opaque rather than sequential.
const DefaultAlphabet = "9Qh1UT6ewJLmGyWHokjIM7NCYfxaS4Zg2PvVEOlFpXt0rc3bDsn8RdiuBAzq5K"

// Config holds validated environment configuration
type Config struct {
	// Required variables
	Port           string
	RedisAddr      string
	AuthServiceURL string

	// Optional variables with defaults
	RedisPassword   string
	ReplicaID       string
	RoomTTLSeconds  int
	KingPower       int
	CastlePower     int
	ColorsCount     int
	Alphabet        string
	AllowedOrigins  string
	DevelopmentMode bool

	// Rate Limits (format: "<count>-<period>", e.g. "100-M")
	RateLimitAPI  string
	RateLimitWsIP string
}

// Load validates all required environment variables and returns a Config
// object. Returns an error listing every missing or invalid variable.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []string

	// Required: PORT (valid port number)
	cfg.Port = os.Getenv("PORT")
	if cfg.Port == "" {
		errs = append(errs, "PORT is required")
	} else {
		port, err := strconv.Atoi(cfg.Port)
		if err != nil || port < 1 || port > 65535 {
			errs = append(errs, fmt.Sprintf("PORT must be a valid port number between 1 and 65535 (got '%s')", cfg.Port))
		}
	}

	// Required: REDIS_ADDR (format: host:port)
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	if cfg.RedisAddr == "" {
		errs = append(errs, "REDIS_ADDR is required")
	} else if !isValidHostPort(cfg.RedisAddr) {
		errs = append(errs, fmt.Sprintf("REDIS_ADDR must be in format 'host:port' (got '%s')", cfg.RedisAddr))
	}
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")

	// Required: AUTH_SERVICE_URL (token validation endpoint base)
	cfg.AuthServiceURL = os.Getenv("AUTH_SERVICE_URL")
	if cfg.AuthServiceURL == "" {
		errs = append(errs, "AUTH_SERVICE_URL is required")
	}

	// Optional: REPLICA_ID (defaults to the host name)
	cfg.ReplicaID = os.Getenv("REPLICA_ID")
	if cfg.ReplicaID == "" {
		hostname, err := os.Hostname()
		if err != nil {
			errs = append(errs, "REPLICA_ID not set and hostname unavailable")
		} else {
			cfg.ReplicaID = hostname
		}
	}

	cfg.RoomTTLSeconds = intEnvOrDefault("ROOM_TTL_SECONDS", 86400, &errs)
	cfg.KingPower = intEnvOrDefault("DEFAULT_KING_POWER", 12, &errs)
	cfg.CastlePower = intEnvOrDefault("DEFAULT_CASTLE_POWER", 12, &errs)
	cfg.ColorsCount = intEnvOrDefault("COLORS_COUNT", 6, &errs)

	cfg.Alphabet = getEnvOrDefault("ROOM_KEY_ALPHABET", DefaultAlphabet)
	if len(cfg.Alphabet) < 16 {
		errs = append(errs, fmt.Sprintf("ROOM_KEY_ALPHABET must have at least 16 distinct characters (got %d)", len(cfg.Alphabet)))
	}

	cfg.AllowedOrigins = os.Getenv("ALLOWED_ORIGINS")
	cfg.DevelopmentMode = os.Getenv("DEVELOPMENT_MODE") == "true"

	cfg.RateLimitAPI = getEnvOrDefault("RATE_LIMIT_API", "100-M")
	cfg.RateLimitWsIP = getEnvOrDefault("RATE_LIMIT_WS_IP", "60-M")

	// If there are validation errors, return them
	if len(errs) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	logValidatedConfig(cfg)

	return cfg, nil
}

// isValidHostPort checks if a string is in the format "host:port"
func isValidHostPort(addr string) bool {
	parts := strings.Split(addr, ":")
	if len(parts) != 2 {
		return false
	}

	// Validate port is a number
	port, err := strconv.Atoi(parts[1])
	if err != nil || port < 1 || port > 65535 {
		return false
	}

	// Validate host is not empty
	if parts[0] == "" {
		return false
	}

	return true
}

// logValidatedConfig logs the validated configuration with secrets redacted
func logValidatedConfig(cfg *Config) {
	slog.Info("Environment configuration validated")
	slog.Info("Configuration",
		"port", cfg.Port,
		"redis_addr", cfg.RedisAddr,
		"redis_password", redactSecret(cfg.RedisPassword),
		"auth_service_url", cfg.AuthServiceURL,
		"replica_id", cfg.ReplicaID,
		"room_ttl_seconds", cfg.RoomTTLSeconds,
		"colors_count", cfg.ColorsCount,
		"development_mode", cfg.DevelopmentMode,
		"rate_limit_api", cfg.RateLimitAPI,
	)
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// intEnvOrDefault parses an integer environment variable, collecting an
// error when the value is present but not a positive integer.
func intEnvOrDefault(key string, defaultValue int, errs *[]string) int {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		*errs = append(*errs, fmt.Sprintf("%s must be a positive integer (got '%s')", key, value))
		return defaultValue
	}
	return n
}

// redactSecret redacts a secret by showing only whether it is set
func redactSecret(secret string) string {
	if secret == "" {
		return ""
	}
	return "***"
}
