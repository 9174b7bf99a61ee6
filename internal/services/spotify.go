// Spotify Web API implementation of [Provider] built on github.com/zmb3/spotify/v2
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/keytrack/internal/features"
	"github.com/desertthunder/keytrack/internal/keys"
	"github.com/desertthunder/keytrack/internal/models"
	"github.com/desertthunder/keytrack/internal/shared"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	defaultMarket   = "US"
	playlistsLimit  = 50
)

var spotifyScopes = []string{
	"user-read-private",
	"playlist-read-private",
	"playlist-read-collaborative",
	"playlist-modify-public",
	"playlist-modify-private",
}

// SpotifyService implements [OAuthService] for the Spotify Web API.
type SpotifyService struct {
	config         *oauth2.Config
	market         string
	baseURL        string
	httpClient     *http.Client
	onTokenRefresh func(*oauth2.Token)

	mu     sync.RWMutex
	token  *oauth2.Token
	client *spotify.Client
}

// SpotifyOption configures a [SpotifyService].
type SpotifyOption func(*SpotifyService)

// WithBaseURL points API requests at another host, e.g. an httptest server.
func WithBaseURL(u string) SpotifyOption {
	return func(s *SpotifyService) {
		if !strings.HasSuffix(u, "/") {
			u += "/"
		}
		s.baseURL = u
	}
}

// WithHTTPClient sets the base client wrapped by the oauth2 transport.
func WithHTTPClient(c *http.Client) SpotifyOption {
	return func(s *SpotifyService) { s.httpClient = c }
}

// NewSpotifyService creates a new Spotify service from client credentials.
//
// Recognized keys: client_id, client_secret (both required), redirect_uri, market.
func NewSpotifyService(credentials map[string]string, opts ...SpotifyOption) (*SpotifyService, error) {
	clientID := credentials["client_id"]
	if clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret := credentials["client_secret"]
	if clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI := credentials["redirect_uri"]
	if redirectURI == "" {
		redirectURI = "http://127.0.0.1:3000/callback"
	}

	market := credentials["market"]
	if market == "" {
		market = defaultMarket
	}

	s := &SpotifyService{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       spotifyScopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  spotifyAuthURL,
				TokenURL: spotifyTokenURL,
			},
		},
		market: market,
	}

	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// GetOAuthConfig returns the underlying [oauth2.Config].
func (s *SpotifyService) GetOAuthConfig() *oauth2.Config {
	return s.config
}

// SetTokenRefreshCallback registers fn to be called whenever the token source issues a new access token.
// Must be called before Authenticate.
func (s *SpotifyService) SetTokenRefreshCallback(fn func(*oauth2.Token)) {
	s.onTokenRefresh = fn
}

// Authenticate performs OAuth2 authentication with Spotify. Expects either an "access_token" or "auth_code" in credentials.
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	if accessToken := credentials["access_token"]; accessToken != "" {
		return s.OAuthenticate(ctx, &oauth2.Token{
			AccessToken:  accessToken,
			RefreshToken: credentials["refresh_token"],
		})
	}

	if authCode := credentials["auth_code"]; authCode != "" {
		token, err := s.config.Exchange(s.oauthContext(ctx), authCode)
		if err != nil {
			return fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
		}
		return s.OAuthenticate(ctx, token)
	}

	return fmt.Errorf("%w: missing access_token or auth_code", shared.ErrMissingCredentials)
}

// OAuthenticate builds the API client around token. Expired tokens are refreshed on demand by the oauth2 transport.
func (s *SpotifyService) OAuthenticate(ctx context.Context, token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: empty token", shared.ErrMissingCredentials)
	}

	source := &refreshableTokenSource{
		source:   s.config.TokenSource(s.oauthContext(ctx), token),
		callback: s.onTokenRefresh,
		last:     token.AccessToken,
	}
	httpClient := oauth2.NewClient(s.oauthContext(ctx), source)

	var opts []spotify.ClientOption
	if s.baseURL != "" {
		opts = append(opts, spotify.WithBaseURL(s.baseURL))
	}

	s.mu.Lock()
	s.token = token
	s.client = spotify.New(httpClient, opts...)
	s.mu.Unlock()
	return nil
}

// oauthContext detaches the token source from request cancellation and injects the base HTTP client.
func (s *SpotifyService) oauthContext(ctx context.Context) context.Context {
	ctx = context.WithoutCancel(ctx)
	if s.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	}
	return ctx
}

func (s *SpotifyService) api() (*spotify.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.client == nil {
		return nil, fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}
	return s.client, nil
}

// CurrentUserID returns the authenticated user's ID.
func (s *SpotifyService) CurrentUserID(ctx context.Context) (string, error) {
	c, err := s.api()
	if err != nil {
		return "", err
	}

	user, err := c.CurrentUser(ctx)
	if err != nil {
		return "", wrapError("current user", err, nil)
	}
	return user.ID, nil
}

// Playlists pages through the current user's playlists.
func (s *SpotifyService) Playlists(ctx context.Context) ([]models.Playlist, error) {
	c, err := s.api()
	if err != nil {
		return nil, err
	}

	var playlists []models.Playlist
	for offset := 0; ; offset += playlistsLimit {
		page, err := c.CurrentUsersPlaylists(ctx, spotify.Limit(playlistsLimit), spotify.Offset(offset))
		if err != nil {
			return nil, wrapError("list playlists", err, nil)
		}

		for _, p := range page.Playlists {
			playlists = append(playlists, toPlaylist(p))
		}

		if len(page.Playlists) == 0 || offset+len(page.Playlists) >= int(page.Total) {
			break
		}
	}

	return playlists, nil
}

// Playlist retrieves playlist metadata by ID.
func (s *SpotifyService) Playlist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	c, err := s.api()
	if err != nil {
		return nil, err
	}

	fp, err := c.GetPlaylist(ctx, spotify.ID(playlistID))
	if err != nil {
		return nil, wrapError("get playlist "+playlistID, err, shared.ErrPlaylistNotFound)
	}

	p := toPlaylist(fp.SimplePlaylist)
	p.TrackCount = int(fp.Tracks.Total)
	return &p, nil
}

// PlaylistTracks fetches one page of a playlist. Episodes and removed tracks are dropped.
func (s *SpotifyService) PlaylistTracks(ctx context.Context, playlistID string, offset, limit int) (*TrackPage, error) {
	c, err := s.api()
	if err != nil {
		return nil, err
	}

	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}

	page, err := c.GetPlaylistItems(ctx, spotify.ID(playlistID), spotify.Limit(limit), spotify.Offset(offset))
	if err != nil {
		return nil, wrapError("get playlist items "+playlistID, err, shared.ErrPlaylistNotFound)
	}

	result := &TrackPage{
		Entries: make([]models.PlaylistEntry, 0, len(page.Items)),
		Offset:  offset,
		Total:   int(page.Total),
	}

	for _, item := range page.Items {
		if item.Track.Track == nil {
			continue
		}
		result.Entries = append(result.Entries, models.PlaylistEntry{
			AddedAt: parseAddedAt(item.AddedAt),
			Track:   toTrack(item.Track.Track),
		})
	}

	return result, nil
}

// AudioFeatures fetches analysis for up to [MaxFeatureBatchSize] tracks.
func (s *SpotifyService) AudioFeatures(ctx context.Context, trackIDs []string) ([]*features.Record, error) {
	if len(trackIDs) == 0 {
		return nil, nil
	}
	if len(trackIDs) > MaxFeatureBatchSize {
		return nil, fmt.Errorf("%w: at most %d track IDs per request, got %d", shared.ErrInvalidArgument, MaxFeatureBatchSize, len(trackIDs))
	}

	c, err := s.api()
	if err != nil {
		return nil, err
	}

	ids := make([]spotify.ID, len(trackIDs))
	for i, id := range trackIDs {
		ids[i] = spotify.ID(id)
	}

	afs, err := c.GetAudioFeatures(ctx, ids...)
	if err != nil {
		return nil, wrapError("get audio features", err, nil)
	}

	records := make([]*features.Record, len(afs))
	for i, af := range afs {
		if af == nil {
			continue
		}
		records[i] = &features.Record{
			TrackID:    af.ID.String(),
			PitchClass: keys.PitchClass(int(af.Key)),
			Mode:       keys.Mode(int(af.Mode)),
			Tempo:      float64(af.Tempo),
		}
	}
	return records, nil
}

// ArtistTopTracks returns the artist's top tracks in the configured market.
func (s *SpotifyService) ArtistTopTracks(ctx context.Context, artistID string) ([]models.Track, error) {
	c, err := s.api()
	if err != nil {
		return nil, err
	}

	fts, err := c.GetArtistsTopTracks(ctx, spotify.ID(artistID), s.market)
	if err != nil {
		return nil, wrapError("get top tracks "+artistID, err, nil)
	}

	tracks := make([]models.Track, 0, len(fts))
	for i := range fts {
		tracks = append(tracks, toTrack(&fts[i]))
	}
	return tracks, nil
}

// AddTracks appends tracks to a playlist in requests of at most [MaxAddTracks].
func (s *SpotifyService) AddTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	if len(trackIDs) == 0 {
		return nil
	}

	c, err := s.api()
	if err != nil {
		return err
	}

	for start := 0; start < len(trackIDs); start += MaxAddTracks {
		end := min(start+MaxAddTracks, len(trackIDs))

		ids := make([]spotify.ID, 0, end-start)
		for _, id := range trackIDs[start:end] {
			ids = append(ids, spotify.ID(id))
		}

		if _, err := c.AddTracksToPlaylist(ctx, spotify.ID(playlistID), ids...); err != nil {
			return wrapError("add tracks to "+playlistID, err, shared.ErrPlaylistNotFound)
		}
	}
	return nil
}

// wrapError maps a client error onto the shared sentinels. notFound is attached for 404 responses when set.
func wrapError(op string, err error, notFound error) error {
	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Status == http.StatusUnauthorized:
			return fmt.Errorf("%w: %w: %s: %v", shared.ErrProviderUnavailable, shared.ErrTokenExpired, op, err)
		case apiErr.Status == http.StatusNotFound && notFound != nil:
			return fmt.Errorf("%w: %w: %s: %v", shared.ErrProviderUnavailable, notFound, op, err)
		}
	}
	return fmt.Errorf("%w: %s: %v", shared.ErrProviderUnavailable, op, err)
}

func toPlaylist(p spotify.SimplePlaylist) models.Playlist {
	pl := models.Playlist{
		ID:          p.ID.String(),
		Name:        p.Name,
		Description: p.Description,
		OwnerID:     p.Owner.ID,
		OwnerName:   p.Owner.DisplayName,
		TrackCount:  int(p.Tracks.Total),
		Public:      p.IsPublic,
	}
	if len(p.Images) > 0 {
		pl.ImageURL = p.Images[0].URL
	}
	return pl
}

func toTrack(ft *spotify.FullTrack) models.Track {
	t := models.Track{
		ID:    ft.ID.String(),
		Name:  ft.Name,
		Album: ft.Album.Name,
		URI:   string(ft.URI),
	}
	for _, a := range ft.Artists {
		t.Artists = append(t.Artists, models.Artist{ID: a.ID.String(), Name: a.Name})
	}
	if len(ft.Album.Images) > 0 {
		t.AlbumArt = ft.Album.Images[0].URL
	}
	return t
}

func parseAddedAt(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// refreshableTokenSource reports every newly issued access token to callback.
type refreshableTokenSource struct {
	source   oauth2.TokenSource
	callback func(*oauth2.Token)

	mu   sync.Mutex
	last string
}

func (s *refreshableTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.source.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	changed := token.AccessToken != s.last
	s.last = token.AccessToken
	s.mu.Unlock()

	if changed && s.callback != nil {
		s.callback(token)
	}
	return token, nil
}
