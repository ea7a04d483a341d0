package main

import (
	"log"
	"os"

	"github.com/seantiz/brickrun/internal/api"
	"github.com/seantiz/brickrun/internal/config"
	"github.com/seantiz/brickrun/internal/databricks"
	"github.com/seantiz/brickrun/internal/payload"
	"github.com/seantiz/brickrun/internal/runner"
	"github.com/seantiz/brickrun/internal/track"
)

func main() {
	cfg := config.Load()
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)
	logger.Info("brickrund: starting", "listen_addr", cfg.ListenAddr, "log_level", cfg.LogLevel)

	registry := databricks.NewRegistry()
	if cfg.DatabricksHost != "" {
		registry.Register(databricks.DefaultConnectionID, databricks.Connection{
			Host:  cfg.DatabricksHost,
			Token: cfg.DatabricksTok,
		})
		logger.Info("brickrund: registered default connection", "host", cfg.DatabricksHost)
	} else {
		logger.Warn("brickrund: no default connection configured; set BRICKRUN_DATABRICKS_HOST")
	}

	tracker := track.NewTracker()
	run := runner.NewRunner(tracker, registry, runner.Defaults{
		PollingPeriod: cfg.PollingPeriod,
		RetryLimit:    cfg.RetryLimit,
		Renderer:      payload.DefaultRenderer,
	}, logger)

	srv := api.NewServer(cfg.ListenAddr, tracker, run, logger)
	if err := srv.Run(); err != nil {
		log.Fatalf("brickrund: server error: %v", err)
	}

	// Cancel in-flight poll loops, then let them finish their bookkeeping.
	// The remote runs keep going; only the local tracking stops.
	run.Shutdown()
	run.Wait()
	logger.Info("brickrund: shutdown complete")
}
