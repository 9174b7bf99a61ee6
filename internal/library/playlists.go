package library

import (
	"strings"

	"github.com/desertthunder/keytrack/internal/models"
)

// FilterPlaylists keeps playlists whose name, description or owner name contains search, ignoring case.
// An empty search returns a copy of the input.
func FilterPlaylists(playlists []models.Playlist, search string) []models.Playlist {
	needle := strings.ToLower(strings.TrimSpace(search))
	out := make([]models.Playlist, 0, len(playlists))

	for _, p := range playlists {
		if needle == "" ||
			strings.Contains(strings.ToLower(p.Name), needle) ||
			strings.Contains(strings.ToLower(p.Description), needle) ||
			strings.Contains(strings.ToLower(p.OwnerName), needle) {
			out = append(out, p)
		}
	}
	return out
}
