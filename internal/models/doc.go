// Package models defines the data transfer objects shared across keytrack.
//
// The types mirror what the streaming provider returns, trimmed to what the key and tempo tools need:
//   - [Playlist] : playlist metadata shown in the library view
//   - [PlaylistEntry] : one position in a playlist, with the time it was added
//   - [Track] : track metadata, including artists for recommendation seeding
//   - [User] : a signed-in provider account
//   - [UserDocument] : per-user document holding chord progression notes
//
// Audio analysis is not part of these types; it lives in the features package and is joined by track ID.
package models
