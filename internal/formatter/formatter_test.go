package formatter

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/beatporter/internal/models"
	"github.com/desertthunder/beatporter/internal/shared"
	th "github.com/desertthunder/beatporter/internal/testing"
)

func sampleHistory() []models.HistoryRecord {
	return []models.HistoryRecord{
		{
			PlaylistID:   "pl1",
			PlaylistName: "Beatport: Afterlife",
			TrackID:      "track1",
			AddedAt:      time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
			ArtistName:   "Tale Of Us - Nova",
		},
		{
			PlaylistID:   "pl2",
			PlaylistName: "Beatporter: Techno - Top 100",
			TrackID:      "track2",
			AddedAt:      time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC),
			ArtistName:   "Kolter - Sete",
		},
		{
			PlaylistID:   "pl1",
			PlaylistName: "Beatport: Afterlife",
			TrackID:      "track3",
			AddedAt:      time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC),
			ArtistName:   "Anyma, Chris Avantgarde - Eternity",
		},
	}
}

func TestExporters(t *testing.T) {
	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(sampleHistory())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		output := string(data)
		if !strings.HasPrefix(output, "playlist_id,playlist_name,track_id,datetime_added,artist_name\n") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "pl1,Beatport: Afterlife,track1,2024-03-01T10:00:00Z,Tale Of Us - Nova") {
			t.Errorf("CSV missing first row, got: %s", output)
		}
		if !strings.Contains(output, `"Anyma, Chris Avantgarde - Eternity"`) {
			t.Errorf("CSV should quote fields with commas, got: %s", output)
		}
		if lines := strings.Count(output, "\n"); lines != 4 {
			t.Errorf("expected 4 lines, got %d", lines)
		}
	})

	t.Run("ExportToJSON", func(t *testing.T) {
		data, err := ExportToJSON(sampleHistory())
		if err != nil {
			t.Fatalf("ExportToJSON failed: %v", err)
		}

		var decoded []map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if len(decoded) != 3 {
			t.Fatalf("expected 3 records, got %d", len(decoded))
		}
		if decoded[0]["track_id"] != "track1" || decoded[0]["datetime_added"] != "2024-03-01T10:00:00Z" {
			t.Errorf("unexpected first record: %v", decoded[0])
		}
	})

	t.Run("ExportToJSON empty", func(t *testing.T) {
		data, err := ExportToJSON(nil)
		if err != nil {
			t.Fatalf("ExportToJSON failed: %v", err)
		}
		if strings.TrimSpace(string(data)) != "[]" {
			t.Errorf("expected empty array, got %q", data)
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		data, err := ExportToMarkdown(sampleHistory())
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "# Playlist History") {
			t.Errorf("Markdown missing title")
		}
		if !strings.Contains(output, "**Tracks**: 3") {
			t.Errorf("Markdown missing track count")
		}

		afterlife := strings.Index(output, "## Beatport: Afterlife")
		techno := strings.Index(output, "## Beatporter: Techno - Top 100")
		if afterlife < 0 || techno < 0 || afterlife > techno {
			t.Errorf("expected sections in first-seen order, got: %s", output)
		}
		if !strings.Contains(output, "1. Anyma, Chris Avantgarde - Eternity [2024-03-05]\n2. Tale Of Us - Nova [2024-03-01]") {
			t.Errorf("expected newest first within a playlist, got: %s", output)
		}
	})

	t.Run("ExportToText", func(t *testing.T) {
		data, err := ExportToText(sampleHistory())
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "Playlist: Beatport: Afterlife\nTracks: 2") {
			t.Errorf("Text missing playlist header, got: %s", output)
		}
		if !strings.Contains(output, "1. Tale Of Us - Nova") {
			t.Errorf("Text missing track1")
		}
	})
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"json", JSON},
		{"csv", CSV},
		{"md", Markdown},
		{"markdown", Markdown},
		{"txt", Text},
		{"text", Text},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if err != nil || got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
			}
		})
	}

	t.Run("unknown", func(t *testing.T) {
		if _, err := ParseFormat("xml"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		if _, err := Export(nil, Format("xml")); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestWriteExport(t *testing.T) {
	t.Run("writes nested path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out", "history.csv")

		written, err := WriteExport(sampleHistory(), CSV, path)
		if err != nil {
			t.Fatalf("WriteExport failed: %v", err)
		}
		if written != path {
			t.Errorf("expected %s, got %s", path, written)
		}

		th.AssertFileExists(t, path)
		if content := th.MustReadFile(t, path); !strings.Contains(content, "track2") {
			t.Errorf("file missing rows: %s", content)
		}
	})

	t.Run("default name", func(t *testing.T) {
		t.Chdir(t.TempDir())

		written, err := WriteExport(sampleHistory(), Markdown, "")
		if err != nil {
			t.Fatalf("WriteExport failed: %v", err)
		}
		if written != "history.md" {
			t.Errorf("expected history.md, got %s", written)
		}
		th.AssertFileExists(t, written)
	})
}
