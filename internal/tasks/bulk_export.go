package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/desertthunder/keytrack/internal/features"
	"github.com/desertthunder/keytrack/internal/formatter"
	"github.com/desertthunder/keytrack/internal/keys"
	"github.com/desertthunder/keytrack/internal/library"
	"github.com/desertthunder/keytrack/internal/models"
	"github.com/desertthunder/keytrack/internal/shared"
)

// BulkExportOpts contains configuration for bulk playlist exports.
type BulkExportOpts struct {
	Format     string     // Export format: json, csv, markdown, txt
	OutputDir  string     // Base output directory (default: keytrack_export_{epoch})
	NumWorkers int        // Concurrent workers (default: 5, max: 10)
	Wheel      keys.Wheel // Notation for the key column of text exports
	Sorted     bool       // Apply harmonic sort before writing
	Covers     bool       // Download cover images for markdown exports
}

// BulkExportResult summarizes a bulk export and is written as the manifest.
type BulkExportResult struct {
	TotalPlaylists    int                    `json:"total_playlists"`
	SuccessfulExports int                    `json:"successful_exports"`
	FailedExports     int                    `json:"failed_exports"`
	OutputDirectory   string                 `json:"output_directory"`
	ManifestPath      string                 `json:"-"`
	ExportedAt        time.Time              `json:"exported_at"`
	Results           []PlaylistExportResult `json:"results"`
}

// PlaylistExportResult is the outcome for one playlist.
type PlaylistExportResult struct {
	PlaylistID   string   `json:"playlist_id"`
	PlaylistName string   `json:"playlist_name"`
	Success      bool     `json:"success"`
	Files        []string `json:"files,omitempty"`
	Message      string   `json:"error,omitempty"`
	Error        error    `json:"-"`
}

type playlistExportJob struct {
	Playlist models.Playlist
}

// NewExport snapshots the session as an export, applying c and the optional harmonic sort.
func NewExport(s *Session, c library.Criteria, sorted bool) *formatter.Export {
	return &formatter.Export{
		Playlist:   s.Playlist(),
		Wheel:      c.Wheel,
		Rows:       s.View(c, sorted),
		ExportedAt: time.Now().UTC(),
	}
}

// BulkExport exports multiple playlists concurrently with rate limiting and progress tracking.
//
// A producer resolves playlist metadata and feeds a worker pool that loads tracks and features
// and writes files. Failures are recorded per playlist; the manifest lists every outcome.
// Bulk loads never replace the engine's current session.
func (e *Engine) BulkExport(ctx context.Context, prog chan<- ProgressUpdate, ids []string, opts BulkExportOpts) (*BulkExportResult, error) {
	if e.provider == nil {
		return nil, fmt.Errorf("%w: provider not initialized", shared.ErrServiceUnavailable)
	}

	if opts.Format == "" {
		opts.Format = "json"
	}
	if !formatter.ValidFormat(opts.Format) {
		return nil, fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, opts.Format)
	}
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("keytrack_export_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 5
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &BulkExportResult{
		TotalPlaylists:  len(ids),
		OutputDirectory: opts.OutputDir,
		ExportedAt:      time.Now().UTC(),
		Results:         make([]PlaylistExportResult, 0, len(ids)),
	}

	jobs := make(chan playlistExportJob, len(ids))
	results := make(chan PlaylistExportResult, len(ids))

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go e.exportWorker(ctx, &wg, jobs, results, opts)
	}

	// the producer also sends on results, so it joins the group the closer waits on
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(jobs)
		for i, playlistID := range ids {
			if err := e.wait(ctx); err != nil {
				return
			}

			playlist, err := e.provider.Playlist(ctx, playlistID)
			if err != nil {
				results <- PlaylistExportResult{
					PlaylistID:   playlistID,
					PlaylistName: fmt.Sprintf("Unknown (%s)", playlistID),
					Error:        fmt.Errorf("failed to fetch playlist: %w", err),
				}
				continue
			}

			sendProgress(prog, exportingPlaylistUpdate(i+1, len(ids), playlist.Name))
			jobs <- playlistExportJob{Playlist: *playlist}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		if res.Error != nil {
			res.Message = res.Error.Error()
			result.FailedExports++
			sendProgress(prog, exportFailedUpdate(completed, len(ids), res.PlaylistName, res.Error))
		} else {
			result.SuccessfulExports++
			sendProgress(prog, exportCompletedUpdate(completed, len(ids), res.PlaylistName, len(res.Files)))
		}
		result.Results = append(result.Results, res)
	}

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("%w: bulk export interrupted: %v", shared.ErrTimeout, err)
	}

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	if err := formatter.WriteManifest(result, manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	return result, nil
}

// exportWorker is a worker goroutine that exports playlists from the jobs channel.
func (e *Engine) exportWorker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan playlistExportJob, results chan<- PlaylistExportResult, opts BulkExportOpts) {
	defer wg.Done()

	for job := range jobs {
		if ctx.Err() != nil {
			return
		}
		results <- e.exportSinglePlaylist(ctx, job, opts)
	}
}

// exportSinglePlaylist loads one playlist and writes it in the requested format.
func (e *Engine) exportSinglePlaylist(ctx context.Context, j playlistExportJob, opts BulkExportOpts) PlaylistExportResult {
	result := PlaylistExportResult{
		PlaylistID:   j.Playlist.ID,
		PlaylistName: j.Playlist.Name,
		Files:        []string{},
	}

	logger := e.logger.With("playlist", j.Playlist.ID)
	entries, index, chords, err := e.load(ctx, j.Playlist, logger, nil)
	if err != nil {
		result.Error = err
		return result
	}

	export := exportFrom(j.Playlist, entries, index, chords, opts.Wheel, opts.Sorted)

	imageURL := ""
	if opts.Covers {
		imageURL = j.Playlist.ImageURL
	}

	files, err := WriteExport(export, opts.Format, opts.OutputDir, imageURL, logger.Warn)
	if err != nil {
		result.Error = err
		return result
	}

	result.Files = files
	result.Success = true
	return result
}

func exportFrom(pl models.Playlist, entries []models.PlaylistEntry, ix *features.Index, chords map[string]string, w keys.Wheel, sorted bool) *formatter.Export {
	return &formatter.Export{
		Playlist:   pl,
		Wheel:      w,
		Rows:       library.View(entries, ix, library.Criteria{Wheel: w}, sorted, chords),
		ExportedAt: time.Now().UTC(),
	}
}

// WriteExport writes export into dir in the given format and returns the created files.
func WriteExport(export *formatter.Export, format, dir, imageURL string, warn func(msg any, kv ...any)) ([]string, error) {
	base := filepath.Join(dir, export.Playlist.ID)

	switch format {
	case "csv":
		res, err := formatter.WriteCSVExport(export, base)
		if err != nil {
			return nil, fmt.Errorf("CSV export failed: %w", err)
		}
		return []string{res.TracksFile, res.MetadataFile}, nil
	case "markdown":
		var warnf func(string, ...any)
		if warn != nil {
			warnf = func(msg string, kv ...any) { warn(msg, kv...) }
		}
		res, err := formatter.WriteMarkdownExport(export, base, imageURL, warnf)
		if err != nil {
			return nil, fmt.Errorf("markdown export failed: %w", err)
		}
		return res.Files, nil
	case "txt":
		path, err := formatter.WriteTextExport(export, base+"_tracks.txt")
		if err != nil {
			return nil, fmt.Errorf("text export failed: %w", err)
		}
		return []string{path}, nil
	case "json":
		path, err := formatter.WriteJSONExport(export, base+".json")
		if err != nil {
			return nil, err
		}
		return []string{path}, nil
	default:
		return nil, fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, format)
	}
}
