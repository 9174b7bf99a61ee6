package models

import (
	"strings"
	"time"
)

// Artist is a credited artist on a [Track].
type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Track is a playable track from the provider.
type Track struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Artists  []Artist `json:"artists"`
	Album    string   `json:"album,omitempty"`
	AlbumArt string   `json:"album_art,omitempty"`
	URI      string   `json:"uri"`
}

// ArtistNames joins the credited artists with ", ".
func (t Track) ArtistNames() string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

// PlaylistEntry is one position in a playlist.
type PlaylistEntry struct {
	AddedAt time.Time `json:"added_at"`
	Track   Track     `json:"track"`
}

// Playlist is playlist metadata as listed in the user's library.
type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	OwnerID     string `json:"owner_id"`
	OwnerName   string `json:"owner_name"`
	TrackCount  int    `json:"track_count"`
	Public      bool   `json:"public"`
	ImageURL    string `json:"image_url,omitempty"`
}

// UserDocument is the per-user document store record.
//
// ChordProgressions maps track IDs to free-form progression text, e.g. "vi-IV-I-V".
type UserDocument struct {
	UserID            string            `json:"user_id" bson:"_id"`
	ChordProgressions map[string]string `json:"chord_progressions" bson:"chordProgressions"`
	UpdatedAt         time.Time         `json:"updated_at" bson:"updatedAt"`
}

// User is a provider account that has signed in.
type User struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
