// Package server provides HTTP routing, middleware, the OAuth callback and the JSON API.
//
// # Router Infrastructure
//
// [BasicRouter] wraps [http.ServeMux] method patterns and applies [Middleware] in reverse order,
// so the first middleware added runs first. Types implementing [Handler] register their own routes.
//
// # OAuth Callback
//
// [OAuthHandler] serves the redirect path of the Spotify OAuth config for one login. It checks the
// state parameter, exchanges the code, and publishes exactly one [OAuthResult] on its channel.
// The CLI runs it on a short-lived server during `auth login`.
//
// # JSON API
//
// [API] exposes playlist browsing, annotated and filtered track lists, recommendations and the key
// tables for an external UI:
//
//	GET  /api/playlists?q=
//	GET  /api/playlists/{id}/tracks?q=&wheel=&key=&quality=&min_bpm=&max_bpm=&sort=
//	POST /api/playlists/{id}/recommendations?wheel=
//	POST /api/playlists/{id}/recommendations/{trackID}
//	POST /api/playlists/{id}/recommendations/all
//	GET  /api/keys?wheel=
//	GET  /api/keys/{code}/compatible
//
// Domain errors map to statuses through [StatusFor]: 400 for invalid input, 404 for unknown playlists
// and tracks, 409 when a newer load replaced the session, 502 when the provider failed.
package server
