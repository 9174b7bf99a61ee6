package services

import (
	"context"

	"github.com/desertthunder/keytrack/internal/features"
	"github.com/desertthunder/keytrack/internal/models"
	"golang.org/x/oauth2"
)

// Request size limits imposed by the Spotify Web API.
const (
	MaxPageSize         = 100
	MaxFeatureBatchSize = 100
	MaxAddTracks        = 100
)

// TrackPage is one page of a playlist's entries.
type TrackPage struct {
	Entries []models.PlaylistEntry
	Offset  int
	Total   int // total entries in the playlist, including ones dropped from Entries
}

// Provider is the read/write surface of the streaming service that keytrack consumes.
//
// Every method fails with an error wrapping [shared.ErrProviderUnavailable] when the request fails.
type Provider interface {
	// Name returns the name of the service (e.g., "Spotify")
	Name() string

	// CurrentUserID returns the ID of the authenticated user.
	CurrentUserID(ctx context.Context) (string, error)

	// Playlists lists every playlist in the user's library.
	Playlists(ctx context.Context) ([]models.Playlist, error)

	// Playlist fetches metadata for a single playlist.
	Playlist(ctx context.Context, playlistID string) (*models.Playlist, error)

	// PlaylistTracks fetches one page of entries. Items without a playable track are dropped.
	PlaylistTracks(ctx context.Context, playlistID string, offset, limit int) (*TrackPage, error)

	// AudioFeatures fetches analysis for up to [MaxFeatureBatchSize] tracks.
	// The result is positionally aligned with trackIDs; tracks without analysis are nil.
	AudioFeatures(ctx context.Context, trackIDs []string) ([]*features.Record, error)

	// ArtistTopTracks returns the artist's most popular tracks.
	ArtistTopTracks(ctx context.Context, artistID string) ([]models.Track, error)

	// AddTracks appends tracks to the end of a playlist.
	AddTracks(ctx context.Context, playlistID string, trackIDs []string) error
}

// OAuthService extends [Provider] for services authorized with the OAuth2 authorization code flow.
type OAuthService interface {
	Provider

	// Authenticate accepts either an "access_token" (with optional "refresh_token") or an "auth_code".
	Authenticate(ctx context.Context, credentials map[string]string) error

	// OAuthenticate installs an already issued token.
	OAuthenticate(ctx context.Context, token *oauth2.Token) error

	// GetAuthURL returns the URL the user must visit to grant access.
	GetAuthURL(state string) string

	// GetOAuthConfig exposes the config so callback handlers can exchange codes.
	GetOAuthConfig() *oauth2.Config
}
