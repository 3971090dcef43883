package repositories

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/beatporter/internal/models"
	"github.com/desertthunder/beatporter/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func record(playlist, track, artistName string, added time.Time) models.HistoryRecord {
	return models.HistoryRecord{
		PlaylistID:   playlist,
		PlaylistName: "Beatport: " + playlist,
		TrackID:      track,
		AddedAt:      added,
		ArtistName:   artistName,
	}
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	for want := 1; want <= 3; want++ {
		got, err := NextSequence(db, "runs")
		if err != nil {
			t.Fatalf("NextSequence failed: %v", err)
		}
		if got != want {
			t.Errorf("expected sequence %d, got %d", want, got)
		}
	}

	if _, err := NextSequence(db, "missing"); err == nil {
		t.Error("expected error for unknown sequence table")
	}
}

func TestHistoryRepository(t *testing.T) {
	day := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Append ignores full-row duplicates", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewHistoryRepository(db)
		rows := []models.HistoryRecord{
			record("p1", "t1", "Kolter - Sete", day),
			record("p1", "t2", "Kolter - Other", day),
		}

		n, err := repo.Append(rows)
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		if n != 2 {
			t.Errorf("expected 2 inserted, got %d", n)
		}

		n, err = repo.Append(append(rows, record("p1", "t3", "Kolter - Third", day)))
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		if n != 1 {
			t.Errorf("expected 1 inserted on second append, got %d", n)
		}

		count, err := repo.Count()
		if err != nil {
			t.Fatalf("Count failed: %v", err)
		}
		if count != 3 {
			t.Errorf("expected 3 rows, got %d", count)
		}
	})

	t.Run("Append keeps rows differing in one field", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewHistoryRepository(db)
		n, err := repo.Append([]models.HistoryRecord{
			record("p1", "t1", "Kolter - Sete", day),
			record("p1", "t1", "Kolter - Sete", day.Add(time.Hour)),
		})
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		if n != 2 {
			t.Errorf("expected 2 inserted, got %d", n)
		}
	})

	t.Run("Append empty", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		n, err := NewHistoryRepository(db).Append(nil)
		if err != nil || n != 0 {
			t.Errorf("expected 0, nil; got %d, %v", n, err)
		}
	})

	t.Run("ListByPlaylist", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewHistoryRepository(db)
		if _, err := repo.Append([]models.HistoryRecord{
			record("p1", "t1", "A - One", day),
			record("p2", "t2", "B - Two", day),
			record("p1", "t3", "C - Three", day),
		}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}

		got, err := repo.ListByPlaylist("p1")
		if err != nil {
			t.Fatalf("ListByPlaylist failed: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 rows, got %d", len(got))
		}
		if got[0].TrackID != "t1" || got[1].TrackID != "t3" {
			t.Errorf("unexpected order: %+v", got)
		}
		if !got[0].AddedAt.Equal(day) {
			t.Errorf("expected added_at %v, got %v", day, got[0].AddedAt)
		}

		all, err := repo.List()
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(all) != 3 {
			t.Errorf("expected 3 rows, got %d", len(all))
		}

		none, err := repo.ListByPlaylist("missing")
		if err != nil {
			t.Fatalf("ListByPlaylist failed: %v", err)
		}
		if none == nil || len(none) != 0 {
			t.Errorf("expected empty non-nil slice, got %#v", none)
		}
	})

	t.Run("LastAdded", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewHistoryRepository(db)
		last, err := repo.LastAdded("p1")
		if err != nil {
			t.Fatalf("LastAdded failed: %v", err)
		}
		if !last.IsZero() {
			t.Errorf("expected zero time for empty history, got %v", last)
		}

		if _, err := repo.Append([]models.HistoryRecord{
			record("p1", "t1", "A - One", day.AddDate(0, 0, 2)),
			record("p1", "t2", "A - Two", day),
			record("p2", "t3", "A - Three", day.AddDate(0, 1, 0)),
		}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}

		last, err = repo.LastAdded("p1")
		if err != nil {
			t.Fatalf("LastAdded failed: %v", err)
		}
		if want := day.AddDate(0, 0, 2); !last.Equal(want) {
			t.Errorf("expected %v, got %v", want, last)
		}
	})

	t.Run("Dedup", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewHistoryRepository(db)
		if _, err := repo.Append([]models.HistoryRecord{
			record("p1", "t1", "A - One", day),
			{PlaylistID: "p1", PlaylistName: "Renamed", TrackID: "t1", AddedAt: day, ArtistName: "A - One"},
			record("p1", "t2", "A - Two", day),
		}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}

		removed, err := repo.Dedup()
		if err != nil {
			t.Fatalf("Dedup failed: %v", err)
		}
		if removed != 1 {
			t.Errorf("expected 1 removed, got %d", removed)
		}

		rows, _ := repo.ListByPlaylist("p1")
		if len(rows) != 2 || rows[0].PlaylistName != "Beatport: p1" {
			t.Errorf("expected earliest row kept, got %+v", rows)
		}
	})
}

func TestRunRepository(t *testing.T) {
	t.Run("Create & Get", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewRunRepository(db)
		run := &models.Run{Kind: models.GenreJob, Title: "Techno", Total: 100}
		if err := repo.Create(run); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if run.ID == "" || run.Sequence != 1 {
			t.Errorf("expected id and sequence 1, got %q %d", run.ID, run.Sequence)
		}
		if run.StartedAt.IsZero() {
			t.Error("expected started_at to be set")
		}

		got, err := repo.Get(run.ID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Title != "Techno" || got.Kind != models.GenreJob || got.Total != 100 {
			t.Errorf("unexpected run: %+v", got)
		}
		if got.CompletedAt != nil || got.PlaylistID != "" || got.Error != "" {
			t.Errorf("expected empty optional fields, got %+v", got)
		}
	})

	t.Run("Create validates", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		err := NewRunRepository(db).Create(&models.Run{Kind: models.LabelJob})
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Update", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewRunRepository(db)
		run := &models.Run{Kind: models.ChartJob, Title: "Weekly"}
		if err := repo.Create(run); err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		done := time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC)
		run.PlaylistID = "pl1"
		run.Matched, run.Added, run.Unmatched = 8, 6, 2
		run.Error = "partial"
		run.CompletedAt = &done
		if err := repo.Update(run); err != nil {
			t.Fatalf("Update failed: %v", err)
		}

		got, err := repo.Get(run.ID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.PlaylistID != "pl1" || got.Added != 6 || got.Error != "partial" {
			t.Errorf("unexpected run: %+v", got)
		}
		if got.CompletedAt == nil || !got.CompletedAt.Equal(done) {
			t.Errorf("expected completed_at %v, got %v", done, got.CompletedAt)
		}
	})

	t.Run("Update missing", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		if err := NewRunRepository(db).Update(&models.Run{ID: "nope"}); err == nil {
			t.Error("expected error for unknown run")
		}
	})

	t.Run("List", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewRunRepository(db)
		for _, r := range []*models.Run{
			{Kind: models.GenreJob, Title: "Techno"},
			{Kind: models.LabelJob, Title: "Drumcode"},
			{Kind: models.GenreJob, Title: "House"},
		} {
			if err := repo.Create(r); err != nil {
				t.Fatalf("Create failed: %v", err)
			}
		}

		all, err := repo.List("", 0)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(all) != 3 || all[0].Title != "House" {
			t.Errorf("expected newest first, got %d runs", len(all))
		}

		genres, err := repo.List(models.GenreJob, 1)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(genres) != 1 || genres[0].Title != "House" {
			t.Errorf("unexpected filtered list: %+v", genres)
		}
	})
}

func TestLedger(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := []models.HistoryRecord{
		record("p1", "t1", "Kolter - Sete", day),
		record("p2", "t2", "BLOND:ISH - Other", day),
	}

	tests := []struct {
		name string
		mode models.DiggingMode
		key  string
		want bool
	}{
		{"none ignores own playlist", models.DigNone, "t1", false},
		{"playlist knows own id", models.DigPlaylist, "t1", true},
		{"playlist knows own artist name", models.DigPlaylist, "Kolter - Sete", true},
		{"playlist ignores other playlists", models.DigPlaylist, "t2", false},
		{"all knows other playlists", models.DigAll, "t2", true},
		{"all knows other artist names", models.DigAll, "BLOND:ISH - Other", true},
		{"unknown key", models.DigAll, "t9", false},
		{"empty key", models.DigAll, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLedger(rows, tt.mode, "p1")
			if got := l.IsKnown(tt.key); got != tt.want {
				t.Errorf("IsKnown(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}

	t.Run("InPlaylist ignores mode", func(t *testing.T) {
		l := NewLedger(rows, models.DigNone, "p1")
		if !l.InPlaylist("t1") || !l.Seen("Kolter - Sete") {
			t.Error("expected own playlist rows to be visible")
		}
		if l.InPlaylist("t2") || l.Seen("t2") {
			t.Error("expected other playlist rows to be hidden")
		}
		if l.Mode() != models.DigNone {
			t.Errorf("unexpected mode %v", l.Mode())
		}
	})
}
