package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/beatporter/internal/models"
)

const historyColumns = "playlist_id, playlist_name, track_id, datetime_added, artist_name"

// HistoryRepository stores [models.HistoryRecord] rows.
type HistoryRepository struct {
	db *sql.DB
}

// NewHistoryRepository creates a new HistoryRepository with the given database connection
func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Append inserts records in one transaction and returns how many were new.
// Rows equal to an existing row in every column are ignored.
func (r *HistoryRepository) Append(records []models.HistoryRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT OR IGNORE INTO history (" + historyColumns + ") VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, rec := range records {
		result, err := stmt.Exec(rec.PlaylistID, rec.PlaylistName, rec.TrackID, rec.AddedAt.UTC(), rec.ArtistName)
		if err != nil {
			return 0, fmt.Errorf("failed to insert history row: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to get affected rows: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit history: %w", err)
	}
	return inserted, nil
}

// ListByPlaylist returns the rows for one playlist, oldest first.
func (r *HistoryRepository) ListByPlaylist(playlistID string) ([]models.HistoryRecord, error) {
	return r.query("SELECT "+historyColumns+" FROM history WHERE playlist_id = ? ORDER BY id", playlistID)
}

// List returns every row in insertion order.
func (r *HistoryRepository) List() ([]models.HistoryRecord, error) {
	return r.query("SELECT " + historyColumns + " FROM history ORDER BY id")
}

// LastAdded returns the most recent datetime_added for a playlist, or the zero time when
// the playlist has no history.
func (r *HistoryRepository) LastAdded(playlistID string) (time.Time, error) {
	var last time.Time
	err := r.db.QueryRow(
		"SELECT datetime_added FROM history WHERE playlist_id = ? ORDER BY datetime_added DESC LIMIT 1",
		playlistID,
	).Scan(&last)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get last added: %w", err)
	}
	return last.UTC(), nil
}

// Dedup removes rows recording the same track added to the same playlist at the same
// instant, keeping the earliest row. These appear when a playlist or artist is renamed
// between refreshes. It returns the number of rows removed.
func (r *HistoryRepository) Dedup() (int, error) {
	result, err := r.db.Exec(`
		DELETE FROM history
		WHERE id NOT IN (
			SELECT MIN(id) FROM history
			GROUP BY playlist_id, track_id, datetime_added
		)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to dedup history: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return int(n), nil
}

// Count returns the number of rows.
func (r *HistoryRepository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM history").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count history: %w", err)
	}
	return n, nil
}

func (r *HistoryRepository) query(query string, args ...any) ([]models.HistoryRecord, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	records := []models.HistoryRecord{}
	for rows.Next() {
		var rec models.HistoryRecord
		if err := rows.Scan(&rec.PlaylistID, &rec.PlaylistName, &rec.TrackID, &rec.AddedAt, &rec.ArtistName); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		rec.AddedAt = rec.AddedAt.UTC()
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return records, nil
}
