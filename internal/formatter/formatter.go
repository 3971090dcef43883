// package formatter exports reconciliation history to various formats (JSON, CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/desertthunder/beatporter/internal/models"
	"github.com/desertthunder/beatporter/internal/shared"
)

// Format names an export encoding.
type Format string

const (
	JSON     Format = "json"
	CSV      Format = "csv"
	Markdown Format = "md"
	Text     Format = "txt"
)

// ParseFormat accepts the format names used on the command line.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "json":
		return JSON, nil
	case "csv":
		return CSV, nil
	case "md", "markdown":
		return Markdown, nil
	case "txt", "text":
		return Text, nil
	default:
		return "", fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, s)
	}
}

// Export encodes records in the given format.
func Export(records []models.HistoryRecord, format Format) ([]byte, error) {
	switch format {
	case JSON:
		return ExportToJSON(records)
	case CSV:
		return ExportToCSV(records)
	case Markdown:
		return ExportToMarkdown(records)
	case Text:
		return ExportToText(records)
	default:
		return nil, fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, format)
	}
}

// ExportToJSON encodes records as an indented JSON array.
func ExportToJSON(records []models.HistoryRecord) ([]byte, error) {
	if records == nil {
		records = []models.HistoryRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal history: %w", err)
	}
	return append(data, '\n'), nil
}

// ExportToCSV converts records to CSV with the history table's column names as headers.
func ExportToCSV(records []models.HistoryRecord) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"playlist_id", "playlist_name", "track_id", "datetime_added", "artist_name"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, rec := range records {
		row := []string{
			rec.PlaylistID,
			rec.PlaylistName,
			rec.TrackID,
			rec.AddedAt.UTC().Format(time.RFC3339),
			rec.ArtistName,
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// group splits records by playlist, keeping first-seen playlist order.
func group(records []models.HistoryRecord) ([]string, map[string][]models.HistoryRecord) {
	var order []string
	byPlaylist := map[string][]models.HistoryRecord{}
	for _, rec := range records {
		if _, ok := byPlaylist[rec.PlaylistID]; !ok {
			order = append(order, rec.PlaylistID)
		}
		byPlaylist[rec.PlaylistID] = append(byPlaylist[rec.PlaylistID], rec)
	}
	return order, byPlaylist
}

// ExportToMarkdown renders one section per playlist, tracks newest first.
func ExportToMarkdown(records []models.HistoryRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Playlist History\n\n")
	fmt.Fprintf(&buf, "**Tracks**: %d\n\n", len(records))

	order, byPlaylist := group(records)
	for _, id := range order {
		rows := byPlaylist[id]
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].AddedAt.After(rows[j].AddedAt) })

		fmt.Fprintf(&buf, "## %s\n\n", rows[0].PlaylistName)
		fmt.Fprintf(&buf, "**ID**: %s\n\n", id)
		for i, rec := range rows {
			fmt.Fprintf(&buf, "%d. %s [%s]\n", i+1, rec.ArtistName, rec.AddedAt.UTC().Format(time.DateOnly))
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// ExportToText converts records to plain text grouped by playlist.
func ExportToText(records []models.HistoryRecord) ([]byte, error) {
	var buf bytes.Buffer

	order, byPlaylist := group(records)
	for _, id := range order {
		rows := byPlaylist[id]
		fmt.Fprintf(&buf, "Playlist: %s\n", rows[0].PlaylistName)
		fmt.Fprintf(&buf, "Tracks: %d\n\n", len(rows))
		for i, rec := range rows {
			fmt.Fprintf(&buf, "%d. %s\n", i+1, rec.ArtistName)
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// Extension is the file extension written for format.
func Extension(format Format) string {
	return "." + string(format)
}

// WriteExport encodes records and writes them to path, creating parent directories.
// An empty path defaults to "history" plus the format's extension.
func WriteExport(records []models.HistoryRecord, format Format, path string) (string, error) {
	if path == "" {
		path = "history" + Extension(format)
	}

	data, err := Export(records, format)
	if err != nil {
		return "", err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}
