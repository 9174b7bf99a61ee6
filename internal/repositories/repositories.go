package repositories

import (
	"context"
	"fmt"

	"github.com/desertthunder/keytrack/internal/models"
	"github.com/desertthunder/keytrack/internal/shared"
)

// DocumentStore persists one [models.UserDocument] per user.
type DocumentStore interface {
	// Get returns the user's document, or [shared.ErrDocumentNotFound] when none has been stored.
	Get(ctx context.Context, userID string) (*models.UserDocument, error)
	// Put replaces the user's document.
	Put(ctx context.Context, doc *models.UserDocument) error
	// SetProgression stores text for one track. Empty text removes the entry.
	SetProgression(ctx context.Context, userID, trackID, text string) error
	// Users lists the IDs of every stored document.
	Users(ctx context.Context) ([]string, error)
	// Delete removes the user's document, or returns [shared.ErrDocumentNotFound].
	Delete(ctx context.Context, userID string) error
	Close() error
}

// Open builds the document store selected by cfg.Driver.
func Open(ctx context.Context, cfg shared.DatabaseConfig) (DocumentStore, error) {
	switch cfg.Driver {
	case "", "sqlite":
		db, err := shared.OpenDatabase(cfg)
		if err != nil {
			return nil, err
		}
		return NewChordRepository(db), nil
	case "mongo":
		return NewMongoStore(ctx, cfg.URI, cfg.Name)
	default:
		return nil, fmt.Errorf("%w: unknown database driver %q", shared.ErrInvalidConfig, cfg.Driver)
	}
}

func validDocument(doc *models.UserDocument) error {
	if doc == nil || doc.UserID == "" {
		return fmt.Errorf("%w: document requires a user id", shared.ErrMissingArgument)
	}
	return nil
}
