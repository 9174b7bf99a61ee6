package library

import (
	"time"

	"github.com/desertthunder/keytrack/internal/features"
	"github.com/desertthunder/keytrack/internal/keys"
	"github.com/desertthunder/keytrack/internal/models"
)

// Row is a playlist entry with its resolved attributes, ready for display or export.
type Row struct {
	Track      models.Track        `json:"track"`
	AddedAt    time.Time           `json:"added_at"`
	Attributes features.Attributes `json:"attributes"`
	Chords     string              `json:"chords,omitempty"`
}

// Annotate resolves every entry in the given wheel. chords may be nil.
func Annotate(entries []models.PlaylistEntry, ix *features.Index, w keys.Wheel, chords map[string]string) []Row {
	rows := make([]Row, len(entries))
	for i, e := range entries {
		rows[i] = Row{
			Track:      e.Track,
			AddedAt:    e.AddedAt,
			Attributes: ix.Resolve(e.Track.ID, w),
			Chords:     chords[e.Track.ID],
		}
	}
	return rows
}

// View filters, optionally sorts, then annotates entries in the criteria's wheel.
func View(entries []models.PlaylistEntry, ix *features.Index, c Criteria, sorted bool, chords map[string]string, opts ...SortOption) []Row {
	out := Apply(entries, c, ix)
	if sorted {
		out = HarmonicSort(out, ix, opts...)
	}
	return Annotate(out, ix, c.Wheel, chords)
}
