package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/table"
	"github.com/desertthunder/keytrack/internal/keys"
	"github.com/desertthunder/keytrack/internal/library"
	"github.com/desertthunder/keytrack/internal/models"
	"github.com/desertthunder/keytrack/internal/tasks"
)

var _ list.Item = playlistItem{}

// playlistItem wraps [models.Playlist] to implement [list.Item].
type playlistItem struct {
	playlist models.Playlist
}

func (i playlistItem) FilterValue() string { return i.playlist.Name }
func (i playlistItem) Title() string       { return i.playlist.Name }
func (i playlistItem) Description() string {
	parts := []string{fmt.Sprintf("%d tracks", i.playlist.TrackCount)}
	if i.playlist.OwnerName != "" {
		parts = append(parts, "by "+i.playlist.OwnerName)
	}
	if i.playlist.Description != "" {
		parts = append(parts, i.playlist.Description)
	}
	return strings.Join(parts, " • ")
}

func playlistItems(playlists []models.Playlist) []list.Item {
	items := make([]list.Item, len(playlists))
	for i, pl := range playlists {
		items[i] = playlistItem{playlist: pl}
	}
	return items
}

func keyHeader(w keys.Wheel) string {
	switch w {
	case keys.Camelot:
		return "Camelot"
	case keys.Open:
		return "Open Key"
	default:
		return "Key"
	}
}

// trackColumns splits width between the flexible title and artist columns.
func trackColumns(w keys.Wheel, width int) []table.Column {
	fixed := 5 + 9 + 5 + 14 + 12
	flex := max(width-fixed, 30)
	return []table.Column{
		{Title: "#", Width: 5},
		{Title: "Title", Width: flex * 55 / 100},
		{Title: "Artist", Width: flex * 45 / 100},
		{Title: keyHeader(w), Width: 9},
		{Title: "BPM", Width: 5},
		{Title: "Chords", Width: 14},
	}
}

func trackRows(rows []library.Row) []table.Row {
	out := make([]table.Row, len(rows))
	for i, r := range rows {
		out[i] = table.Row{
			fmt.Sprintf("%d", i+1),
			r.Track.Name,
			r.Track.ArtistNames(),
			r.Attributes.DisplayKey(),
			r.Attributes.DisplayBPM(),
			r.Chords,
		}
	}
	return out
}

func candidateColumns(w keys.Wheel, width int) []table.Column {
	fixed := 9 + 5 + 8
	flex := max(width-fixed, 30)
	return []table.Column{
		{Title: "Title", Width: flex * 40 / 100},
		{Title: "Artist", Width: flex * 30 / 100},
		{Title: "Seed", Width: flex * 30 / 100},
		{Title: keyHeader(w), Width: 9},
		{Title: "BPM", Width: 5},
	}
}

func candidateRows(candidates []tasks.Candidate, w keys.Wheel) []table.Row {
	out := make([]table.Row, len(candidates))
	for i, c := range candidates {
		attrs := c.Attributes.InWheel(w)
		out[i] = table.Row{
			c.Track.Name,
			c.Track.ArtistNames(),
			c.SeedArtist.Name,
			attrs.DisplayKey(),
			attrs.DisplayBPM(),
		}
	}
	return out
}
