package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hasirciogluhq/canned-responder/cmd/responder/internal/core"
	"github.com/hasirciogluhq/canned-responder/cmd/responder/internal/protocol"
)

// Config holds all application configuration
type Config struct {
	// Core
	Debug     bool
	LogFormat string // text, json

	// Server
	ListenAddr       string
	ListenBacklog    int
	ServerMode       core.Mode
	HealthServerPort string // empty disables the health server

	// Event loop
	ChunkSize       int
	IdleWait        time.Duration
	ConnIdleTimeout time.Duration
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		// Core
		Debug:     getEnvBool("DEBUG", false),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),

		// Server
		ListenAddr:       getEnv("LISTEN_ADDR", "localhost:3000"),
		ListenBacklog:    getEnvInt("LISTEN_BACKLOG", 128),
		ServerMode:       determineServerMode(),
		HealthServerPort: os.Getenv("HEALTH_SERVER_PORT"),

		// Event loop
		ChunkSize:       getEnvInt("IO_CHUNK_SIZE", protocol.DefaultChunkSize),
		IdleWait:        getEnvDuration("IDLE_WAIT", 50*time.Millisecond),
		ConnIdleTimeout: getEnvDuration("CONN_IDLE_TIMEOUT", 0),
	}
	if _, set := os.LookupEnv("HEALTH_SERVER_PORT"); !set {
		cfg.HealthServerPort = "8080"
	}

	// Legacy support
	if err := cfg.applyLegacySupport(); err != nil {
		return nil, err
	}

	// Validation
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate ensures configuration is coherent
func (c *Config) validate() error {
	switch c.ServerMode {
	case core.ModeBlocking, core.ModeThreaded, core.ModeNonBlocking:
	default:
		return fmt.Errorf("unsupported SERVER_MODE: %s (supported: %s, %s, %s)",
			c.ServerMode, core.ModeBlocking, core.ModeThreaded, core.ModeNonBlocking)
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("unsupported LOG_FORMAT: %s (supported: text, json)", c.LogFormat)
	}

	if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		return fmt.Errorf("invalid LISTEN_ADDR %q: %w", c.ListenAddr, err)
	}

	if c.ChunkSize < 1 || c.ChunkSize > protocol.RequestCapacity {
		return fmt.Errorf("IO_CHUNK_SIZE must be between 1 and %d, got %d", protocol.RequestCapacity, c.ChunkSize)
	}

	if c.ListenBacklog < 1 {
		return fmt.Errorf("LISTEN_BACKLOG must be positive, got %d", c.ListenBacklog)
	}

	if c.IdleWait < 0 || c.ConnIdleTimeout < 0 {
		return fmt.Errorf("IDLE_WAIT and CONN_IDLE_TIMEOUT must not be negative")
	}

	return nil
}

// applyLegacySupport handles backward compatibility
func (c *Config) applyLegacySupport() error {
	// Legacy: PORT replaces the port of LISTEN_ADDR
	port := getEnv("PORT", "")
	if port == "" {
		return nil
	}
	host, _, err := net.SplitHostPort(c.ListenAddr)
	if err != nil {
		return fmt.Errorf("invalid LISTEN_ADDR %q: %w", c.ListenAddr, err)
	}
	c.ListenAddr = net.JoinHostPort(host, port)
	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}

func determineServerMode() core.Mode {
	switch strings.ToLower(os.Getenv("SERVER_MODE")) {
	case "", "nonblocking", "non-blocking", "eventloop", "event-loop":
		return core.ModeNonBlocking
	case "threaded", "threads", "goroutine":
		return core.ModeThreaded
	case "blocking", "primitive":
		return core.ModeBlocking
	default:
		return core.Mode(os.Getenv("SERVER_MODE"))
	}
}
