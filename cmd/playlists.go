package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/keytrack/internal/formatter"
	"github.com/desertthunder/keytrack/internal/keys"
	"github.com/desertthunder/keytrack/internal/library"
	"github.com/desertthunder/keytrack/internal/models"
	"github.com/desertthunder/keytrack/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Playlists lists the user's playlists, optionally filtered by --search.
func (r *Runner) Playlists(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireProvider(); err != nil {
		return err
	}

	var playlists []models.Playlist
	err := r.withReauth(ctx, func() (err error) {
		playlists, err = r.provider.Playlists(ctx)
		return err
	})
	if err != nil {
		return err
	}

	playlists = library.FilterPlaylists(playlists, cmd.String("search"))
	if limit := int(cmd.Int("limit")); limit > 0 && limit < len(playlists) {
		playlists = playlists[:limit]
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, cmd.Bool("pretty"))
	}

	r.writePlain("Found %d playlists:\n\n", len(playlists))
	for i, p := range playlists {
		r.writePlain("%d. %s\n", i+1, p.Name)
		if p.Description != "" {
			r.writePlain("   Description: %s\n", p.Description)
		}
		r.writePlain("   ID: %s\n", p.ID)
		r.writePlain("   Owner: %s\n", p.OwnerName)
		r.writePlain("   Tracks: %d\n\n", p.TrackCount)
	}
	return nil
}

// Tracks loads one playlist and prints its annotated, filtered and optionally sorted tracks.
func (r *Runner) Tracks(ctx context.Context, cmd *cli.Command) error {
	criteria, err := criteriaFromFlags(cmd)
	if err != nil {
		return err
	}

	session, err := r.openSession(ctx, cmd.String("id"))
	if err != nil {
		return err
	}
	defer session.Close()

	rows := session.View(criteria, cmd.Bool("sort"), sortOptions(cmd)...)

	if cmd.Bool("json") {
		export := tasks.NewExport(session, criteria, cmd.Bool("sort"))
		export.Rows = rows
		data, err := formatter.ExportToJSON(export, cmd.Bool("pretty"))
		if err != nil {
			return err
		}
		return r.writePlain("%s\n", data)
	}

	total, analyzed := entriesSummary(session.Entries(), session)
	r.writePlainHeader(session.Playlist().Name)
	r.writePlain("%d tracks, %d analyzed", total, analyzed)
	if criteria.Active() {
		r.writePlain(", %d matching", len(rows))
	}
	r.writePlain("\n\n%s\n", formatter.RenderTable(rows, criteria.Wheel))

	if cmd.Bool("chords") {
		for _, row := range rows {
			if row.Chords != "" {
				r.writePlain("%s: %s\n", row.Track.Name, row.Chords)
			}
		}
	}
	return nil
}

// Recommend prints artist-seeded recommendations and optionally adds some or all of them.
func (r *Runner) Recommend(ctx context.Context, cmd *cli.Command) error {
	wheel, err := r.wheel(cmd)
	if err != nil {
		return err
	}

	session, err := r.openSession(ctx, cmd.String("id"))
	if err != nil {
		return err
	}
	defer session.Close()

	var candidates []tasks.Candidate
	err = r.withReauth(ctx, func() (err error) {
		candidates, err = session.Recommend(ctx)
		return err
	})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		out := make([]tasks.Candidate, len(candidates))
		for i, c := range candidates {
			out[i] = c.InWheel(wheel)
		}
		if err := r.writeJSON(out, cmd.Bool("pretty")); err != nil {
			return err
		}
	} else {
		r.printCandidates(candidates, wheel)
	}

	switch {
	case cmd.Bool("add-all"):
		if len(candidates) == 0 {
			return nil
		}
		if err := session.AddAllCandidates(ctx); err != nil {
			return err
		}
		r.logger.Info("added recommendations", "playlist", session.Playlist().ID, "count", len(candidates))
		return r.writePlain("✓ Added %d track(s) to %s\n", len(candidates), session.Playlist().Name)

	case len(cmd.StringSlice("add")) > 0:
		var added int
		for _, id := range cmd.StringSlice("add") {
			if err := session.AddCandidate(ctx, id); err != nil {
				return fmt.Errorf("failed to add %s after %d added: %w", id, added, err)
			}
			added++
		}
		return r.writePlain("✓ Added %d track(s) to %s\n", added, session.Playlist().Name)
	}
	return nil
}

func (r *Runner) printCandidates(candidates []tasks.Candidate, w keys.Wheel) {
	if len(candidates) == 0 {
		r.writePlain("No new tracks found for this playlist's artists\n")
		return
	}

	r.writePlain("%d recommendations:\n\n", len(candidates))
	rows := make([]library.Row, len(candidates))
	for i, c := range candidates {
		rows[i] = library.Row{Track: c.Track, Attributes: c.Attributes}
	}
	r.writePlain("%s\n", formatter.RenderTable(rows, w))

	for i, c := range candidates {
		r.writePlain("%d. %s (seeded by %s)\n", i+1, c.Track.ID, c.SeedArtist.Name)
	}
}
