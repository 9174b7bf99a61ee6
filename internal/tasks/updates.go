package tasks

import (
	"fmt"

	"github.com/desertthunder/keytrack/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchTracks Phase = iota
	FetchFeatures
	LoadChords
	Recommend
	AddTracks
	ExportPlaylist
)

func (p Phase) String() string {
	switch p {
	case FetchTracks:
		return "fetch_tracks"
	case FetchFeatures:
		return "fetch_features"
	case LoadChords:
		return "load_chords"
	case Recommend:
		return "recommend"
	case AddTracks:
		return "add_tracks"
	case ExportPlaylist:
		return "export_playlist"
	default:
		return ""
	}
}

func fetchTracksUpdate(step, total int, pl models.Playlist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Fetching tracks for %s...", step, total, pl.Name),
	}
}

func fetchFeaturesUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchFeatures,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Fetching audio features...", step, total),
	}
}

func loadChordsUpdate(userID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LoadChords,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Loading chord progressions for %s...", userID),
	}
}

func sessionReadyUpdate(s *Session) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LoadChords,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Loaded %s (%d tracks, %d analyzed)", s.playlist.Name, len(s.entries), s.index.Len()),
		Data:    s,
	}
}

func recommendUpdate(seeds int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Recommend,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Finding recommendations from %d seed artists...", seeds),
	}
}

func addTracksUpdate(count int, pl models.Playlist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AddTracks,
		Step:    count,
		Total:   count,
		Message: fmt.Sprintf("Added %d track(s) to %s", count, pl.Name),
	}
}

func exportingPlaylistUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Exporting: %s...", step, total, name),
	}
}

func exportCompletedUpdate(step, total int, name string, filesCount int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d files)", step, total, name, filesCount),
	}
}

func exportFailedUpdate(step, total int, name string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, name, err),
	}
}
