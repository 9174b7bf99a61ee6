package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/keytrack/internal/shared"
	"github.com/desertthunder/keytrack/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireProvider(); err != nil {
		return err
	}

	wheel, err := r.wheel(cmd)
	if err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	logPath := r.config.Log.File
	if logPath == "" {
		logPath = "./tmp/keytrack-tui.log"
	}
	fileLogger, err := shared.NewFileLogger(logPath)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	if err := shared.SetLogLevel(fileLogger, r.config.Log.Level); err != nil {
		r.logger.Warn("ignoring log level", "error", err)
	}
	r.SetLogger(fileLogger)

	model := ui.NewModel(ctx, r.provider, r.engine, ui.Options{
		Debounce: r.config.Engine.Debounce(),
		Wheel:    wheel,
		Logger:   fileLogger,
	})

	if err := ui.Run(ctx, model); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
