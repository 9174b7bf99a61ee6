// Package tasks loads playlists into sessions, selects recommendations and exports annotated playlists.
//
// # Core Operations
//
//  1. [Engine.Open] : Load one playlist
//     - Fetches the first page to learn the total, then the rest concurrently
//     - Fetches audio features in batches concurrently, all or nothing
//     - Builds one immutable [features.Index] and loads chord progressions
//     - Publishes a [Session] unless a newer Open superseded it
//
//  2. [Session.Recommend] : Artist-seeded recommendations
//     - [Selector] samples seed tracks, fetches each lead artist's top tracks
//     - Excludes anything already in the playlist by ID or normalized name
//     - Attaches resolved attributes to every [Candidate]
//
//  3. [Session.AddCandidate] / [Session.AddAllCandidates] : Write back
//     - Calls the provider mutation, then merges entries and features in place
//
//  4. [Engine.BulkExport] : Export many playlists with a worker pool
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # Pacing
//
// Every provider request waits on one shared token bucket (golang.org/x/time/rate).
// Failed requests are never retried.
package tasks
