package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/keytrack/internal/keys"
	"github.com/desertthunder/keytrack/internal/library"
	"github.com/desertthunder/keytrack/internal/models"
	"github.com/desertthunder/keytrack/internal/shared"
	th "github.com/desertthunder/keytrack/internal/testing"
)

// bulkFixture creates n playlists "playlist1".."playlistN" of 3 tracks each.
func bulkFixture(n int) (*th.MockProvider, []string) {
	mock := newFixture(0)
	mock.Lists = nil

	var ids []string
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("playlist%d", i)
		ids = append(ids, id)
		mock.Lists = append(mock.Lists, models.Playlist{ID: id, Name: "Playlist " + id})
		mock.Entries[id] = []models.PlaylistEntry{
			th.Entry(id+"-a", "A", "x"),
			th.Entry(id+"-b", "B", "y"),
			th.Entry(id+"-c", "C", "z"),
		}
	}
	return mock, ids
}

func TestBulkExport_SuccessfulExport(t *testing.T) {
	tests := []struct {
		name          string
		format        string
		playlistCount int
		filesEach     int
	}{
		{"single playlist json export", "json", 1, 1},
		{"multiple playlists csv export", "csv", 3, 2},
		{"text export", "txt", 2, 1},
		{"markdown export", "markdown", 2, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, ids := bulkFixture(tt.playlistCount)
			engine := NewEngine(mock, nil, nil, fastOpts())
			tempDir := t.TempDir()

			result, err := engine.BulkExport(context.Background(), nil, ids, BulkExportOpts{
				Format:     tt.format,
				OutputDir:  tempDir,
				NumWorkers: 2,
				Wheel:      keys.Camelot,
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if result.SuccessfulExports != tt.playlistCount || result.FailedExports != 0 {
				t.Errorf("expected %d successes, got %d (failed %d)", tt.playlistCount, result.SuccessfulExports, result.FailedExports)
			}

			for _, res := range result.Results {
				if len(res.Files) != tt.filesEach {
					t.Errorf("%s: expected %d files, got %v", res.PlaylistID, tt.filesEach, res.Files)
				}
				for _, f := range res.Files {
					th.AssertFileExists(t, f)
				}
			}

			th.AssertFileExists(t, result.ManifestPath)
		})
	}
}

func TestBulkExport_PartialFailure(t *testing.T) {
	mock, ids := bulkFixture(2)
	ids = append(ids, "missing")
	engine := NewEngine(mock, nil, nil, fastOpts())
	tempDir := t.TempDir()

	progress := make(chan ProgressUpdate, 50)
	result, err := engine.BulkExport(context.Background(), progress, ids, BulkExportOpts{Format: "json", OutputDir: tempDir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.SuccessfulExports != 2 || result.FailedExports != 1 {
		t.Errorf("expected 2 successes and 1 failure, got %d and %d", result.SuccessfulExports, result.FailedExports)
	}

	var manifest struct {
		TotalPlaylists int `json:"total_playlists"`
		Results        []struct {
			PlaylistID string `json:"playlist_id"`
			Success    bool   `json:"success"`
			Error      string `json:"error"`
		} `json:"results"`
	}
	if err := json.Unmarshal([]byte(th.MustReadFile(t, result.ManifestPath)), &manifest); err != nil {
		t.Fatalf("invalid manifest: %v", err)
	}

	if manifest.TotalPlaylists != 3 {
		t.Errorf("expected total 3, got %d", manifest.TotalPlaylists)
	}
	for _, r := range manifest.Results {
		if r.PlaylistID == "missing" && (r.Success || !strings.Contains(r.Error, "playlist not found")) {
			t.Errorf("unexpected manifest entry %+v", r)
		}
	}

	close(progress)
	var failed int
	for u := range progress {
		if u.Phase == ExportPlaylist && strings.Contains(u.Message, "✗") {
			failed++
		}
	}
	if failed != 1 {
		t.Errorf("expected 1 failure update, got %d", failed)
	}
}

func TestBulkExport_Validation(t *testing.T) {
	t.Run("unknown format", func(t *testing.T) {
		mock, ids := bulkFixture(1)
		_, err := NewEngine(mock, nil, nil, fastOpts()).BulkExport(context.Background(), nil, ids, BulkExportOpts{Format: "xml", OutputDir: t.TempDir()})
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("does not replace the current session", func(t *testing.T) {
		mock, ids := bulkFixture(1)
		mock.Lists = append(mock.Lists, testPlaylist)
		mock.Entries[testPlaylist.ID] = mock.Entries[ids[0]]

		engine := NewEngine(mock, nil, nil, fastOpts())
		session, err := engine.Open(context.Background(), testPlaylist, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if _, err := engine.BulkExport(context.Background(), nil, ids, BulkExportOpts{OutputDir: t.TempDir()}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !session.Current() {
			t.Error("bulk export superseded the open session")
		}
	})

	t.Run("default output directory", func(t *testing.T) {
		dir := t.TempDir()
		wd := th.MustGetwd(t)
		th.MustChdir(t, dir)
		defer th.MustChdir(t, wd)

		mock, ids := bulkFixture(1)
		result, err := NewEngine(mock, nil, nil, fastOpts()).BulkExport(context.Background(), nil, ids, BulkExportOpts{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.HasPrefix(result.OutputDirectory, "keytrack_export_") {
			t.Errorf("unexpected output directory %s", result.OutputDirectory)
		}
		th.AssertFileExists(t, filepath.Join(dir, result.OutputDirectory, "playlist1.json"))
	})
}

func TestBulkExport_Cancelled(t *testing.T) {
	mock, ids := bulkFixture(2)
	ids = append(ids, "missing")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// the first load blocks until cancellation; the producer cancels while resolving the last id
	// and keeps that request in flight until the workers have given up
	mock.OnPlaylistTrack = func(offset int) { <-ctx.Done() }
	mock.OnPlaylist = func(id string) {
		if id == "missing" {
			cancel()
			time.Sleep(50 * time.Millisecond)
		}
	}

	result, err := NewEngine(mock, nil, nil, fastOpts()).BulkExport(ctx, nil, ids, BulkExportOpts{
		Format:     "json",
		OutputDir:  t.TempDir(),
		NumWorkers: 1,
	})
	if !errors.Is(err, shared.ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
	if result == nil || result.SuccessfulExports != 0 {
		t.Fatalf("expected no successful exports, got %+v", result)
	}

	var missing bool
	for _, r := range result.Results {
		if r.PlaylistID == "missing" && r.Error != nil {
			missing = true
		}
	}
	if !missing {
		t.Errorf("expected the in-flight lookup to be reported, got %+v", result.Results)
	}
}

func TestNewExport(t *testing.T) {
	session, _ := sessionWithRecs(t)

	export := NewExport(session, library.Criteria{Wheel: keys.Open, Search: "strobe"}, false)
	if export.Playlist.ID != testPlaylist.ID || export.Wheel != keys.Open {
		t.Errorf("unexpected export header %+v", export)
	}
	if len(export.Rows) != 1 || export.Rows[0].Track.ID != "t2" {
		t.Errorf("expected filtered rows, got %+v", export.Rows)
	}

	files, err := WriteExport(export, "txt", t.TempDir(), "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected one file, got %v", files)
	}
	if _, err := os.Stat(files[0]); err != nil {
		t.Errorf("export file missing: %v", err)
	}
}
