package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/desertthunder/keytrack/internal/formatter"
	"github.com/desertthunder/keytrack/internal/models"
	"github.com/desertthunder/keytrack/internal/shared"
	"github.com/desertthunder/keytrack/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Export writes annotated playlists to disk.
//
// A single --id honors the filter flags; several ids or --all run a bulk export with a manifest.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	format := strings.ToLower(cmd.String("format"))
	if !formatter.ValidFormat(format) {
		return fmt.Errorf("%w: format must be one of %s", shared.ErrInvalidArgument, strings.Join(formatter.Formats(), ", "))
	}

	ids := cmd.StringSlice("id")
	switch {
	case cmd.Bool("all"):
		return r.bulkExport(ctx, cmd, format, nil)
	case len(ids) == 1:
		return r.exportOne(ctx, cmd, format, ids[0])
	case len(ids) > 1:
		return r.bulkExport(ctx, cmd, format, ids)
	default:
		return fmt.Errorf("%w: provide --id or --all", shared.ErrMissingArgument)
	}
}

func (r *Runner) exportOne(ctx context.Context, cmd *cli.Command, format, playlistID string) error {
	criteria, err := criteriaFromFlags(cmd)
	if err != nil {
		return err
	}

	session, err := r.openSession(ctx, playlistID)
	if err != nil {
		return err
	}
	defer session.Close()

	dir := cmd.String("output")
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	export := tasks.NewExport(session, criteria, cmd.Bool("sort"))
	var imageURL string
	if cmd.Bool("covers") {
		imageURL = export.Playlist.ImageURL
	}

	files, err := tasks.WriteExport(export, format, dir, imageURL, r.logger.Warn)
	if err != nil {
		return err
	}

	r.logger.Info("playlist exported", "playlist", playlistID, "format", format, "files", len(files))
	r.writePlain("✓ Exported %s (%d tracks)\n", export.Playlist.Name, len(export.Rows))
	for _, f := range files {
		r.writePlain("  %s\n", f)
	}
	return nil
}

func (r *Runner) bulkExport(ctx context.Context, cmd *cli.Command, format string, ids []string) error {
	if err := r.requireProvider(); err != nil {
		return err
	}
	wheel, err := r.wheel(cmd)
	if err != nil {
		return err
	}

	if ids == nil {
		var playlists []models.Playlist
		err := r.withReauth(ctx, func() (err error) {
			playlists, err = r.provider.Playlists(ctx)
			return err
		})
		if err != nil {
			return err
		}
		for _, p := range playlists {
			ids = append(ids, p.ID)
		}
	}

	workers := int(cmd.Int("workers"))
	if workers <= 0 {
		workers = r.config.Engine.Workers
	}

	progress := make(chan tasks.ProgressUpdate, 100)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for u := range progress {
			r.writePlain("[%d/%d] %s\n", u.Step, u.Total, u.Message)
		}
	}()

	result, err := r.engine.BulkExport(ctx, progress, ids, tasks.BulkExportOpts{
		Format:     format,
		OutputDir:  cmd.String("output"),
		NumWorkers: workers,
		Wheel:      wheel,
		Sorted:     cmd.Bool("sort"),
		Covers:     cmd.Bool("covers"),
	})
	close(progress)
	<-done
	if err != nil {
		return err
	}

	r.writePlainln("Bulk export complete")
	r.writePlain("  Directory: %s\n", result.OutputDirectory)
	r.writePlain("  Exported: %d/%d\n", result.SuccessfulExports, result.TotalPlaylists)
	if result.FailedExports > 0 {
		r.writePlain("  Failed: %d (see %s)\n", result.FailedExports, result.ManifestPath)
	}
	return nil
}
