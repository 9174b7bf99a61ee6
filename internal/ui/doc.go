// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI walks through one playlist at a time:
//  1. [PlaylistListView] : Browse and search Spotify playlists
//  2. [LoadingView] : Stream load progress (tracks, audio features, chord progressions)
//  3. [TrackView] : Annotated tracks with key, BPM and chords
//  4. [RecommendView] : Artist-seeded recommendations that can be added back
//
// Search input is debounced: every keystroke schedules a tick tagged with a sequence number and
// only the newest tick is applied. Enter applies the input immediately, esc clears it.
//
// In the track views w cycles the key notation (Musical, Camelot, Open Key), s toggles harmonic sort,
// r requests recommendations, a adds the selected recommendation and A adds all of them.
//
// Loads are tagged with an id so a cancelled or superseded load never replaces the visible session.
package ui
