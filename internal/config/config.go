package config

import (
	"fmt"
	"log"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all environment-based configuration for sessionlink.
type Config struct {
	// Base WebSocket URL of the capture server's realtime interface,
	// e.g. "wss://capture-host:8443/realtime". The per-session endpoint
	// is derived from it.
	Endpoint string `env:"SESSION_ENDPOINT"`

	// Session to join at startup. If empty, the last persisted session
	// is resumed.
	SessionID string `env:"SESSION_ID"`

	// Outbound queue bounds while disconnected.
	MaxQueueSize  int           `env:"MAX_QUEUE_SIZE" envDefault:"100"`
	MaxMessageAge time.Duration `env:"MAX_MESSAGE_AGE" envDefault:"60s"`

	// Liveness monitoring. The monitor ticks at half the timeout.
	HeartbeatTimeout time.Duration `env:"HEARTBEAT_TIMEOUT" envDefault:"30s"`

	// Reconnection backoff.
	ReconnectBaseDelay   time.Duration `env:"RECONNECT_BASE_DELAY" envDefault:"1s"`
	MaxReconnectAttempts int           `env:"MAX_RECONNECT_ATTEMPTS" envDefault:"10"`

	// Optional YAML file tuning the recovery chains.
	RecoveryTuningFile string `env:"RECOVERY_TUNING_FILE"`

	// State database location. Empty means ~/.sessionlink/state.db.
	StateDBPath string `env:"STATE_DB_PATH"`

	// Prometheus metrics listener.
	MetricsListenAddr string `env:"METRICS_LISTEN_ADDR" envDefault:":9190"`

	// Environment controls log format.
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

// warnInsecureEnvFile checks whether the .env file (if present) has
// overly permissive permissions. Endpoint URLs can carry session
// tokens in the query string, so group or world readable files risk
// exposing them to other users.
func warnInsecureEnvFile() {
	if runtime.GOOS == "windows" {
		return
	}

	info, err := os.Stat(".env")
	if err != nil {
		return // file does not exist, nothing to check
	}

	mode := info.Mode().Perm()
	if mode&0o077 != 0 {
		log.Printf("WARNING: .env file has insecure permissions %04o; recommended 0600", mode)
	}
}

// Load reads configuration from environment variables.
// It first attempts to load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	warnInsecureEnvFile()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("SESSION_ENDPOINT is required")
	}

	if !strings.HasPrefix(c.Endpoint, "ws://") && !strings.HasPrefix(c.Endpoint, "wss://") {
		return fmt.Errorf("SESSION_ENDPOINT must be a ws:// or wss:// URL")
	}

	if c.MaxQueueSize <= 0 {
		return fmt.Errorf("MAX_QUEUE_SIZE must be positive")
	}

	if c.MaxMessageAge <= 0 {
		return fmt.Errorf("MAX_MESSAGE_AGE must be positive")
	}

	if c.HeartbeatTimeout < 2*time.Second {
		return fmt.Errorf("HEARTBEAT_TIMEOUT must be at least 2s")
	}

	if c.ReconnectBaseDelay <= 0 {
		return fmt.Errorf("RECONNECT_BASE_DELAY must be positive")
	}

	if c.MaxReconnectAttempts <= 0 {
		return fmt.Errorf("MAX_RECONNECT_ATTEMPTS must be positive")
	}

	return nil
}

// IsProduction returns true when the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
