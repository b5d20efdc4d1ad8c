// Package config loads server configuration from the environment,
// following the teacher's caarlos0/env + godotenv pattern.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds every tunable of the chat server (§4.H).
type Config struct {
	Addr        string `env:"CHATD_ADDR" envDefault:":30000"`
	MetricsAddr string `env:"CHATD_METRICS_ADDR" envDefault:":9100"`

	MaxThreads          int `env:"CHATD_MAX_THREADS" envDefault:"2"`
	MaxClientsPerThread int `env:"CHATD_MAX_CLIENTS_PER_THREAD" envDefault:"1000"`
	MaxRooms            int `env:"CHATD_MAX_ROOMS" envDefault:"50"`
	MaxClientsPerRoom   int `env:"CHATD_MAX_CLIENTS_PER_ROOM" envDefault:"40"`

	AdmissionGuardEnabled bool          `env:"CHATD_ADMISSION_GUARD_ENABLED" envDefault:"true"`
	CPURejectThreshold    float64       `env:"CHATD_CPU_REJECT_THRESHOLD" envDefault:"90.0"`
	MetricsInterval       time.Duration `env:"CHATD_METRICS_INTERVAL" envDefault:"2s"`

	LogLevel  string `env:"CHATD_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"CHATD_LOG_FORMAT" envDefault:"json"`
	Env       string `env:"CHATD_ENV" envDefault:"development"`
}

// MaxConnections is the hard global capacity bound implied by the worker
// layout (§3): MaxThreads workers, each holding at most
// MaxClientsPerThread clients.
func (c Config) MaxConnections() int {
	return c.MaxThreads * c.MaxClientsPerThread
}

// Load reads a .env file if present (missing is not an error) and then
// parses the process environment into a Config.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("info: no .env file found, using process environment only")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing configuration: %w", err)
	}
	return cfg, nil
}

// Print logs the resolved configuration at startup.
func (c Config) Print(logger zerolog.Logger) {
	logger.Info().
		Str("addr", c.Addr).
		Str("metrics_addr", c.MetricsAddr).
		Int("max_threads", c.MaxThreads).
		Int("max_clients_per_thread", c.MaxClientsPerThread).
		Int("max_connections", c.MaxConnections()).
		Int("max_rooms", c.MaxRooms).
		Int("max_clients_per_room", c.MaxClientsPerRoom).
		Bool("admission_guard_enabled", c.AdmissionGuardEnabled).
		Float64("cpu_reject_threshold", c.CPURejectThreshold).
		Str("env", c.Env).
		Msg("configuration loaded")
}
