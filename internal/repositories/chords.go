package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/desertthunder/keytrack/internal/models"
	"github.com/desertthunder/keytrack/internal/shared"
)

// ChordRepository is the SQLite [DocumentStore].
//
// A document is the users row plus every chord_progressions row that references it.
type ChordRepository struct {
	db    *sql.DB
	users *UserRepository
}

// NewChordRepository creates a new [ChordRepository] with the given database connection.
// Close closes db.
func NewChordRepository(db *sql.DB) *ChordRepository {
	return &ChordRepository{db: db, users: NewUserRepository(db)}
}

// Users lists the IDs of every user with a document, sorted.
func (r *ChordRepository) Users(ctx context.Context) ([]string, error) {
	users, err := r.users.List(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	slices.Sort(ids)
	return ids, nil
}

// Delete removes the user's document and every progression in it.
func (r *ChordRepository) Delete(ctx context.Context, userID string) error {
	err := r.users.Delete(ctx, userID)
	if errors.Is(err, shared.ErrUserNotFound) {
		return fmt.Errorf("%w: %s", shared.ErrDocumentNotFound, userID)
	}
	return err
}

// Get assembles the user's document.
func (r *ChordRepository) Get(ctx context.Context, userID string) (*models.UserDocument, error) {
	user, err := r.users.Get(ctx, userID)
	if errors.Is(err, shared.ErrUserNotFound) {
		return nil, fmt.Errorf("%w: %s", shared.ErrDocumentNotFound, userID)
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT track_id, progression, updated_at
		FROM chord_progressions
		WHERE user_id = ?
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chord progressions: %w", err)
	}
	defer rows.Close()

	doc := &models.UserDocument{
		UserID:            userID,
		ChordProgressions: make(map[string]string),
		UpdatedAt:         user.UpdatedAt,
	}
	for rows.Next() {
		var (
			trackID     string
			progression string
			updatedAt   time.Time
		)
		if err := rows.Scan(&trackID, &progression, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chord progression: %w", err)
		}
		doc.ChordProgressions[trackID] = progression
		if updatedAt.After(doc.UpdatedAt) {
			doc.UpdatedAt = updatedAt
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return doc, nil
}

// Put replaces every progression of doc.UserID in one transaction.
func (r *ChordRepository) Put(ctx context.Context, doc *models.UserDocument) error {
	if err := validDocument(doc); err != nil {
		return err
	}

	now := time.Now().UTC()
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := upsertUser(ctx, tx, doc.UserID, "", now); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM chord_progressions WHERE user_id = ?`, doc.UserID); err != nil {
		return fmt.Errorf("failed to clear chord progressions: %w", err)
	}

	for trackID, text := range doc.ChordProgressions {
		if strings.TrimSpace(text) == "" {
			continue
		}
		if err := insertProgression(ctx, tx, doc.UserID, trackID, text, now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chord progressions: %w", err)
	}
	doc.UpdatedAt = now
	return nil
}

// SetProgression upserts one track's progression, or deletes it when text is blank.
func (r *ChordRepository) SetProgression(ctx context.Context, userID, trackID, text string) error {
	if userID == "" || trackID == "" {
		return fmt.Errorf("%w: user and track ids are required", shared.ErrMissingArgument)
	}

	now := time.Now().UTC()
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := upsertUser(ctx, tx, userID, "", now); err != nil {
		return err
	}

	if strings.TrimSpace(text) == "" {
		_, err = tx.ExecContext(ctx, `DELETE FROM chord_progressions WHERE user_id = ? AND track_id = ?`, userID, trackID)
		if err != nil {
			return fmt.Errorf("failed to delete chord progression: %w", err)
		}
	} else if err := insertProgression(ctx, tx, userID, trackID, text, now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chord progression: %w", err)
	}
	return nil
}

func insertProgression(ctx context.Context, ex execer, userID, trackID, text string, now time.Time) error {
	query := `
		INSERT INTO chord_progressions (id, user_id, track_id, progression, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, track_id) DO UPDATE SET progression = excluded.progression, updated_at = excluded.updated_at
	`

	if _, err := ex.ExecContext(ctx, query, shared.GenerateID(), userID, trackID, text, now); err != nil {
		return fmt.Errorf("failed to save chord progression for %s: %w", trackID, err)
	}
	return nil
}

// Close closes the underlying database.
func (r *ChordRepository) Close() error {
	return r.db.Close()
}
