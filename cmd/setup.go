package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/keytrack/internal/repositories"
	"github.com/desertthunder/keytrack/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase writes a config file when none exists, then opens the configured store.
//
// Opening a SQLite store runs pending migrations; opening MongoDB verifies the connection.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := r.configName()

	config := r.config
	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else if config, err = shared.LoadConfig(configPath); err != nil {
			r.logger.Warn("failed to load created config, using defaults", "error", err)
			config = shared.DefaultConfig()
		}
	}

	if path := cmd.String("path"); path != "" {
		config.Database.Driver = "sqlite"
		config.Database.Path = path
	}

	driver := config.Database.Driver
	if driver == "" {
		driver = "sqlite"
	}
	r.logger.Info("initializing database", "driver", driver, "path", config.Database.Path)

	store, err := repositories.Open(ctx, config.Database)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", driver, err)
	}
	defer store.Close()

	if driver == "mongo" {
		r.logger.Infof("setup complete for database: %v", config.Database.Name)
		return r.writePlain("✓ Connected to MongoDB database %s\n", config.Database.Name)
	}

	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	return r.writePlain("✓ Database ready at %s\n", config.Database.Path)
}
