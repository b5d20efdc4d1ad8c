// Command chatd runs the multi-room TCP chat server.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"chatd/internal/config"
	"chatd/internal/logging"
	"chatd/internal/transport"

	_ "go.uber.org/automaxprocs"
)

func main() {
	bootstrap := logging.New(logging.Options{Level: "info", Format: "console"})

	cfg, err := config.Load()
	if err != nil {
		bootstrap.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	cfg.Print(logger)

	if suggested := config.SuggestedMaxConnections(); suggested > 0 && cfg.MaxConnections() > suggested {
		logger.Warn().
			Int("configured_max_connections", cfg.MaxConnections()).
			Int("memory_suggested_max_connections", suggested).
			Msg("configured connection capacity exceeds the container's memory-derived budget")
	}

	srv := transport.New(cfg, logger)
	if err := srv.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start server")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("shutdown signal received")
	srv.Shutdown()
}
