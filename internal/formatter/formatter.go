// package formatter renders annotated playlists to CSV, Markdown, plain text, JSON and terminal tables
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/desertthunder/keytrack/internal/keys"
	"github.com/desertthunder/keytrack/internal/library"
	"github.com/desertthunder/keytrack/internal/models"
	"github.com/desertthunder/keytrack/internal/shared"
)

// Export is a playlist with every row resolved in one wheel.
type Export struct {
	Playlist   models.Playlist `json:"playlist"`
	Wheel      keys.Wheel      `json:"-"`
	Rows       []library.Row   `json:"tracks"`
	ExportedAt time.Time       `json:"exported_at"`
}

// Formats lists the accepted export formats.
func Formats() []string {
	return []string{"json", "csv", "markdown", "txt"}
}

// ValidFormat reports whether f is one of [Formats].
func ValidFormat(f string) bool {
	for _, v := range Formats() {
		if v == f {
			return true
		}
	}
	return false
}

var csvHeaders = []string{"#", "ID", "Title", "Artists", "Album", "Key", "Quality", "Camelot", "Open Key", "BPM", "Chords", "Added At"}

func record(i int, row library.Row) []string {
	addedAt := ""
	if !row.AddedAt.IsZero() {
		addedAt = row.AddedAt.UTC().Format(time.RFC3339)
	}

	bpm := ""
	if v, ok := row.Attributes.BPM(); ok {
		bpm = strconv.Itoa(v)
	}

	return []string{
		strconv.Itoa(i + 1),
		row.Track.ID,
		row.Track.Name,
		row.Track.ArtistNames(),
		row.Track.Album,
		row.Attributes.DisplayMusicalKey(),
		row.Attributes.DisplayQuality(),
		row.Attributes.DisplayCamelot(),
		row.Attributes.DisplayOpenKey(),
		bpm,
		row.Chords,
		addedAt,
	}
}

// ExportToCSV converts an Export to CSV with one column per notation. Unknown BPM is an empty cell.
func ExportToCSV(export *Export) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(csvHeaders); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, row := range export.Rows {
		if err := writer.Write(record(i, row)); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts an Export to a Markdown document with a track table and optional cover image
func ExportToMarkdown(export *Export, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", export.Playlist.Name)

	if imageFilename != "" {
		fmt.Fprintf(&buf, "![Cover](%s)\n\n", imageFilename)
	}

	if export.Playlist.Description != "" {
		fmt.Fprintf(&buf, "**Description**: %s\n\n", export.Playlist.Description)
	}

	fmt.Fprintf(&buf, "**Tracks**: %d\n", len(export.Rows))
	fmt.Fprintf(&buf, "**Visibility**: %s\n\n", visibility(export.Playlist.Public))

	buf.WriteString("## Tracks\n\n")
	buf.WriteString("| # | Title | Artists | Key | Camelot | Open Key | BPM |\n")
	buf.WriteString("|---|---|---|---|---|---|---|\n")
	for i, row := range export.Rows {
		key := row.Attributes.DisplayMusicalKey()
		if q, ok := row.Attributes.Quality(); ok {
			key += " " + q
		}
		fmt.Fprintf(&buf, "| %d | %s | %s | %s | %s | %s | %s |\n",
			i+1,
			escapeCell(row.Track.Name),
			escapeCell(row.Track.ArtistNames()),
			key,
			row.Attributes.DisplayCamelot(),
			row.Attributes.DisplayOpenKey(),
			row.Attributes.DisplayBPM(),
		)
	}

	return buf.Bytes(), nil
}

// ExportToText converts an Export to plain text, one track per line.
func ExportToText(export *Export) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", export.Playlist.Name)
	if export.Playlist.Description != "" {
		fmt.Fprintf(&buf, "Description: %s\n", export.Playlist.Description)
	}
	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(export.Rows))

	for i, row := range export.Rows {
		attrs := row.Attributes.InWheel(export.Wheel)
		fmt.Fprintf(&buf, "%d. %s - %s [%s, %s BPM]\n", i+1, row.Track.ArtistNames(), row.Track.Name, attrs.DisplayKey(), attrs.DisplayBPM())
	}

	return buf.Bytes(), nil
}

// ExportToJSON encodes the export with attributes as nullable fields.
func ExportToJSON(export *Export, pretty bool) ([]byte, error) {
	return shared.MarshalJSON(export, pretty)
}

// RenderTable draws rows as a bordered terminal table, keys rendered in w.
func RenderTable(rows []library.Row, w keys.Wheel) string {
	headerStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "Title", "Artists", keyHeader(w), "BPM").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	for i, row := range rows {
		attrs := row.Attributes.InWheel(w)
		t.Row(strconv.Itoa(i+1), row.Track.Name, row.Track.ArtistNames(), attrs.DisplayKey(), attrs.DisplayBPM())
	}
	return t.String()
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	TracksFile   string
	MetadataFile string
}

// WriteCSVExport writes {base}_tracks.csv and {base}_metadata.json. base defaults to the playlist ID.
func WriteCSVExport(export *Export, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = export.Playlist.ID
	}

	csvData, err := ExportToCSV(export)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	tracksFile := baseFilepath + "_tracks.csv"
	if err := os.WriteFile(tracksFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	metadataJSON, err := shared.MarshalJSON(export.Playlist, true)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := baseFilepath + "_metadata.json"
	if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{TracksFile: tracksFile, MetadataFile: metadataFile}, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory  string
	Files      []string
	CoverImage string
}

// WriteMarkdownExport writes {dir}/README.md and, when imageURL is set and downloads, {dir}/cover.jpg.
//
// A failed cover download is reported through warn and does not fail the export.
func WriteMarkdownExport(export *Export, outputDir, imageURL string, warn func(msg string, kv ...any)) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = export.Playlist.ID
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{Directory: outputDir, Files: []string{}}

	var coverImageFilename string
	if imageURL != "" {
		imageData, err := DownloadImage(imageURL)
		if err != nil {
			if warn != nil {
				warn("failed to download cover image", "playlist", export.Playlist.ID, "error", err)
			}
		} else {
			coverImageFilename = "cover.jpg"
			coverImagePath := filepath.Join(outputDir, coverImageFilename)
			if err := os.WriteFile(coverImagePath, imageData, 0644); err != nil {
				if warn != nil {
					warn("failed to save cover image", "path", coverImagePath, "error", err)
				}
				coverImageFilename = ""
			} else {
				result.CoverImage = coverImagePath
				result.Files = append(result.Files, coverImagePath)
			}
		}
	}

	mdData, err := ExportToMarkdown(export, coverImageFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}

	result.Files = append(result.Files, mdFile)
	return result, nil
}

// WriteTextExport writes the plain text rendering. path defaults to {playlist.ID}_tracks.txt.
func WriteTextExport(export *Export, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("%s_tracks.txt", export.Playlist.ID)
	}

	textData, err := ExportToText(export)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(path, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}

	return path, nil
}

// WriteJSONExport writes the JSON rendering. path defaults to {playlist.ID}.json.
func WriteJSONExport(export *Export, path string) (string, error) {
	if path == "" {
		path = export.Playlist.ID + ".json"
	}

	data, err := ExportToJSON(export, true)
	if err != nil {
		return "", fmt.Errorf("JSON marshal failed: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("JSON write failed: %w", err)
	}
	return path, nil
}

// WriteManifest writes v as indented JSON to path.
func WriteManifest(v any, path string) error {
	data, err := shared.MarshalJSON(v, true)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
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

func visibility(public bool) string {
	if public {
		return "Public"
	}
	return "Private"
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
