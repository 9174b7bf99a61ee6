// Package services defines the [Provider] interface for the streaming service and implements it for Spotify.
//
// # Provider Interface
//
// The rest of keytrack reads playlists, audio analysis and artist top tracks through [Provider],
// so the engine and its tests never depend on the Spotify client directly.
//
// # Spotify Implementation
//
// [SpotifyService] wraps github.com/zmb3/spotify/v2 behind an OAuth2 client with automatic token refresh.
// Each newly issued access token is reported through [SpotifyService.SetTokenRefreshCallback] so the
// CLI can persist it to the config file.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrNotAuthenticated] : Authenticate() not called
//   - [shared.ErrProviderUnavailable] : any failed request
//   - [shared.ErrTokenExpired] : 401 from the API, reauthorization needed
//   - [shared.ErrPlaylistNotFound] : 404 for a playlist ID
//
// # API Mappings
//
// Spotify objects are mapped onto [models.Playlist], [models.Track] and [features.Record].
// Playlist items without a track (local files removed upstream, podcast episodes) are dropped.
package services
