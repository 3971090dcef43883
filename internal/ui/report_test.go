package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/beatporter/internal/models"
	"github.com/desertthunder/beatporter/internal/tasks"
)

func TestProgressLine(t *testing.T) {
	tests := []struct {
		name    string
		update  tasks.ProgressUpdate
		verbose bool
		shown   bool
	}{
		{"added track", tasks.ProgressUpdate{Phase: tasks.MatchTracks, Message: "[1/2] A - B", Data: tasks.Added}, false, true},
		{"known track hidden", tasks.ProgressUpdate{Phase: tasks.MatchTracks, Message: "[1/2] A - B", Data: tasks.Known}, false, false},
		{"duplicate hidden", tasks.ProgressUpdate{Phase: tasks.MatchTracks, Message: "[1/2] A - B", Data: tasks.Duplicate}, false, false},
		{"known track verbose", tasks.ProgressUpdate{Phase: tasks.MatchTracks, Message: "[1/2] A - B", Data: tasks.Known}, true, true},
		{"unmatched shown", tasks.ProgressUpdate{Phase: tasks.MatchTracks, Message: "[1/2] A - B", Data: tasks.Unmatched}, false, true},
		{"batch", tasks.ProgressUpdate{Phase: tasks.WriteBatch, Message: "Adding 3 new tracks"}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, ok := ProgressLine(tt.update, tt.verbose)
			if ok != tt.shown {
				t.Fatalf("expected shown=%v, got %v", tt.shown, ok)
			}
			if ok && !strings.Contains(line, tt.update.Message) {
				t.Errorf("expected %q in %q", tt.update.Message, line)
			}
		})
	}
}

func TestProgress(t *testing.T) {
	updates := make(chan tasks.ProgressUpdate, 3)
	updates <- tasks.ProgressUpdate{Phase: tasks.FetchCatalog, Message: "Fetching genre"}
	updates <- tasks.ProgressUpdate{Phase: tasks.MatchTracks, Message: "skip me", Data: tasks.Known}
	updates <- tasks.ProgressUpdate{Phase: tasks.MatchTracks, Message: "keep me", Data: tasks.Added}
	close(updates)

	var buf bytes.Buffer
	Progress(&buf, updates, false)

	out := buf.String()
	if !strings.Contains(out, "Fetching genre") || !strings.Contains(out, "keep me") || strings.Contains(out, "skip me") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestSummary(t *testing.T) {
	t.Run("sync with misses", func(t *testing.T) {
		res := &tasks.SyncResult{
			Playlist: models.Playlist{Name: "Beatport: Afterlife"},
			Run:      models.Run{Kind: models.LabelJob, Total: 4, Matched: 3, Added: 2, Suppressed: 1, Unmatched: 1},
			Tracks: []tasks.TrackResult{
				{Track: models.SourceTrack{Name: "Eternity", Mix: "Extended Mix", Artists: []string{"Anyma"}}, Outcome: tasks.Unmatched},
				{Track: models.SourceTrack{Name: "Sete", Artists: []string{"Kolter"}}, Outcome: tasks.Added},
			},
			Daily: &tasks.DailyResult{Playlist: models.Playlist{Name: "Beatporter: Techno - Daily Top"}, Added: []string{"a", "b"}, ToppedUp: 1},
		}

		out := Summary(res)
		for _, want := range []string{"Beatport: Afterlife", "2 added", "3/4 matched (75.0%)", "1 not found", "• Anyma - Eternity", "Daily Top 2 added (1 from the main playlist)"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in\n%s", want, out)
			}
		}
		if strings.Contains(out, "Kolter") {
			t.Errorf("added tracks should not be listed:\n%s", out)
		}
		if !strings.Contains(out, markWarn) {
			t.Errorf("expected warning mark:\n%s", out)
		}
	})

	t.Run("backup", func(t *testing.T) {
		res := &tasks.SyncResult{Run: models.Run{Kind: models.BackupJob, Title: "Liked Backup", Added: 3, Suppressed: 1}}
		out := Summary(res)
		if !strings.Contains(out, "Liked Backup") || !strings.Contains(out, "3 added, 1 already present") {
			t.Errorf("unexpected backup summary\n%s", out)
		}
	})

	t.Run("failed run", func(t *testing.T) {
		res := &tasks.SyncResult{Run: models.Run{Kind: models.GenreJob, Title: "Techno", Error: "write failed"}}
		out := Summary(res)
		if !strings.Contains(out, markFail) || !strings.Contains(out, "write failed") {
			t.Errorf("unexpected failure summary\n%s", out)
		}
	})
}

func TestRuns(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		if out := Runs(nil); !strings.Contains(out, "No runs recorded") {
			t.Errorf("unexpected output %q", out)
		}
	})

	t.Run("table", func(t *testing.T) {
		done := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
		out := Runs([]models.Run{
			{Sequence: 2, Kind: models.GenreJob, Title: "Techno", Added: 5, Matched: 8, Total: 10, StartedAt: done, CompletedAt: &done},
			{Sequence: 1, Kind: models.LabelJob, Title: "Afterlife", Error: "boom", StartedAt: done, CompletedAt: &done},
		})
		for _, want := range []string{"KIND", "Techno", "8/10", "Afterlife", markFail} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in\n%s", want, out)
			}
		}
	})
}
