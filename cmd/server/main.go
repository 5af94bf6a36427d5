// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/SabaVan/kame-sub000/internal/app/jukebox"
	"github.com/SabaVan/kame-sub000/internal/infra/catalog"
	"github.com/SabaVan/kame-sub000/internal/infra/config"
	"github.com/SabaVan/kame-sub000/internal/infra/logger"
)

var (
	app        = kingpin.New("kame-server", "Credit-bid jukebox server")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	// check command
	checkCmd = app.Command("check", "Validate the config file and exit")
)

func init() {
	// start command (default)
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	// Initialize logger
	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if command == checkCmd.FullCommand() {
		zlog.Info().Msgf("Config OK: %d rooms, %d grant policies", len(cfg.Rooms), len(cfg.Grants))
		return
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %v", err)
		os.Exit(1)
	}
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	ctx := context.Background()

	catalogClient, err := catalog.New(ctx, catalog.Config{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		RefreshToken: cfg.Spotify.RefreshToken,
		Market:       cfg.Spotify.Market,
	})
	if err != nil {
		return fmt.Errorf("failed to create catalog client: %w", err)
	}

	manager, err := jukebox.NewManager(cfg, catalogClient)
	if err != nil {
		return fmt.Errorf("failed to create manager: %w", err)
	}

	manager.Start()
	defer manager.Stop()
	zlog.Info().Msgf("%s started with %d rooms", cfg.Server.Name, len(cfg.Rooms))

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	zlog.Info().Msgf("Received signal %v, shutting down", sig)

	return nil
}
