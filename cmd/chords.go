package main

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/desertthunder/keytrack/internal/models"
	"github.com/desertthunder/keytrack/internal/shared"
	"github.com/urfave/cli/v3"
)

// ChordsGet prints the stored chord progressions of a user, or one track's with --track.
func (r *Runner) ChordsGet(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStore(); err != nil {
		return err
	}
	userID, err := r.currentUser(ctx, cmd)
	if err != nil {
		return err
	}

	doc, err := r.store.Get(ctx, userID)
	if errors.Is(err, shared.ErrDocumentNotFound) {
		doc = &models.UserDocument{UserID: userID, ChordProgressions: map[string]string{}}
	} else if err != nil {
		return err
	}

	if trackID := cmd.String("track"); trackID != "" {
		text, ok := doc.ChordProgressions[trackID]
		if !ok {
			return fmt.Errorf("%w: no progression stored for %s", shared.ErrTrackNotFound, trackID)
		}
		return r.writePlain("%s\n", text)
	}

	if cmd.Bool("json") {
		return r.writeJSON(doc, cmd.Bool("pretty"))
	}

	if len(doc.ChordProgressions) == 0 {
		return r.writePlain("No chord progressions stored for %s\n", userID)
	}

	trackIDs := make([]string, 0, len(doc.ChordProgressions))
	for id := range doc.ChordProgressions {
		trackIDs = append(trackIDs, id)
	}
	slices.Sort(trackIDs)

	r.writePlain("%d chord progressions for %s:\n\n", len(trackIDs), userID)
	for _, id := range trackIDs {
		r.writePlain("%s  %s\n", id, doc.ChordProgressions[id])
	}
	return nil
}

// ChordsSet stores the progression for one track. Blank text removes it.
func (r *Runner) ChordsSet(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStore(); err != nil {
		return err
	}

	trackID := cmd.String("track")
	if trackID == "" {
		return fmt.Errorf("%w: --track flag is required", shared.ErrMissingArgument)
	}

	userID, err := r.currentUser(ctx, cmd)
	if err != nil {
		return err
	}

	text := strings.TrimSpace(cmd.String("text"))
	if err := r.store.SetProgression(ctx, userID, trackID, text); err != nil {
		return err
	}

	r.logger.Info("chord progression updated", "user", userID, "track", trackID, "removed", text == "")
	if text == "" {
		return r.writePlain("✓ Removed progression for %s\n", trackID)
	}
	return r.writePlain("✓ Saved %q for %s\n", text, trackID)
}

// ChordsUsers lists every user with stored progressions.
func (r *Runner) ChordsUsers(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStore(); err != nil {
		return err
	}

	users, err := r.store.Users(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(users, cmd.Bool("pretty"))
	}
	if len(users) == 0 {
		return r.writePlain("No chord progressions stored\n")
	}
	for _, id := range users {
		r.writePlain("%s\n", id)
	}
	return nil
}

// ChordsClear removes every stored progression of a user.
func (r *Runner) ChordsClear(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStore(); err != nil {
		return err
	}
	userID, err := r.currentUser(ctx, cmd)
	if err != nil {
		return err
	}

	if err := r.store.Delete(ctx, userID); err != nil {
		return err
	}

	r.logger.Info("chord progressions cleared", "user", userID)
	return r.writePlain("✓ Cleared chord progressions for %s\n", userID)
}
