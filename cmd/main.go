package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/keytrack/internal/repositories"
	"github.com/desertthunder/keytrack/internal/services"
	"github.com/desertthunder/keytrack/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := shared.NewLogger(nil)

	configPath := os.Getenv("KEYTRACK_CONFIG")
	if configPath == "" {
		configPath = "config.toml"
	}

	config, err := shared.LoadConfigOrDefault(configPath)
	if err != nil {
		logger.Warn("failed to load config, using defaults", "path", configPath, "error", err)
		config = shared.DefaultConfig()
	}
	if err := shared.SetLogLevel(logger, config.Log.Level); err != nil {
		logger.Warn("ignoring log level", "error", err)
	}

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		Provider:   newProvider(ctx, config, configPath, logger),
		Store:      openStore(ctx, config, logger),
		Logger:     logger,
		Engine:     engineOpts(config),
	})
	defer runner.Close()

	app := &cli.Command{
		Name:     "keytrack",
		Usage:    "Annotate Spotify playlists with key and BPM, sort them harmonically and find new tracks",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(ctx, os.Args); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		logger.Error("application error", "error", err)
		runner.Close()
		os.Exit(1)
	}
}

// newProvider builds the Spotify service when client credentials are configured.
// Refreshed tokens are written back to the config file.
func newProvider(ctx context.Context, config *shared.Config, configPath string, logger *log.Logger) services.Provider {
	creds := config.Credentials.Spotify
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil
	}

	svc, err := services.NewSpotifyService(creds.Map())
	if err != nil {
		logger.Warn("spotify service unavailable", "error", err)
		return nil
	}

	svc.SetTokenRefreshCallback(func(token *oauth2.Token) {
		if err := config.Credentials.Spotify.Update(token); err != nil {
			logger.Warn("failed to store refreshed token", "error", err)
			return
		}
		if err := shared.SaveConfig(configPath, config); err != nil {
			logger.Warn("failed to save refreshed token", "error", err)
		}
	})

	if token := creds.Token(); token != nil {
		if err := svc.OAuthenticate(ctx, token); err != nil {
			logger.Warn("stored token rejected", "error", err)
		}
	}
	return svc
}

// openStore opens the configured document store. Chord progressions are optional, so failures only warn.
func openStore(ctx context.Context, config *shared.Config, logger *log.Logger) repositories.DocumentStore {
	if config.Database.Driver != "mongo" {
		if _, err := os.Stat(config.Database.Path); err != nil {
			logger.Debug("no database yet, run 'keytrack setup database'", "path", config.Database.Path)
			return nil
		}
	}

	store, err := repositories.Open(ctx, config.Database)
	if err != nil {
		logger.Warn("document store unavailable, chord progressions disabled", "error", err)
		return nil
	}
	return store
}
