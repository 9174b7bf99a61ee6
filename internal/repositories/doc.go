// Package repositories persists per-user chord progression documents.
//
// Two [DocumentStore] implementations are available, selected by the database driver setting:
//   - [ChordRepository] : SQLite, one row per (user, track) in chord_progressions
//   - [MongoStore] : MongoDB, one document per user in the users collection
//
// [UserRepository] keeps the SQLite users table that chord rows reference.
package repositories
