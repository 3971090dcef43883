package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/beatporter/internal/models"
	"github.com/desertthunder/beatporter/internal/shared"
)

const runColumns = `
	id, sequence, kind, title, playlist_id, tracks_total, tracks_matched,
	tracks_added, tracks_suppressed, tracks_unmatched, tracks_failed,
	error_message, started_at, completed_at`

// rowScanner is satisfied by both [sql.Row] and [sql.Rows].
type rowScanner interface {
	Scan(dest ...any) error
}

// RunRepository persists [models.Run] summaries.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a run, assigning its ID and sequence.
func (r *RunRepository) Create(run *models.Run) error {
	if run.Kind == "" || run.Title == "" {
		return fmt.Errorf("%w: run needs a kind and title", shared.ErrInvalidInput)
	}

	sequence, err := NextSequence(r.db, "runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	run.ID = shared.GenerateID()
	run.Sequence = sequence
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	_, err = r.db.Exec(
		"INSERT INTO runs ("+runColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		run.ID, run.Sequence, string(run.Kind), run.Title, nullable(run.PlaylistID),
		run.Total, run.Matched, run.Added, run.Suppressed, run.Unmatched, run.Failed,
		nullable(run.Error), run.StartedAt, run.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// Update writes the counters, error and completion time of an existing run.
func (r *RunRepository) Update(run *models.Run) error {
	result, err := r.db.Exec(`
		UPDATE runs
		SET playlist_id = ?, tracks_total = ?, tracks_matched = ?, tracks_added = ?,
			tracks_suppressed = ?, tracks_unmatched = ?, tracks_failed = ?,
			error_message = ?, completed_at = ?
		WHERE id = ?`,
		nullable(run.PlaylistID), run.Total, run.Matched, run.Added,
		run.Suppressed, run.Unmatched, run.Failed,
		nullable(run.Error), run.CompletedAt, run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run not found: %s", run.ID)
	}
	return nil
}

// Get retrieves a run by ID.
func (r *RunRepository) Get(id string) (*models.Run, error) {
	return scanRun(r.db.QueryRow("SELECT "+runColumns+" FROM runs WHERE id = ?", id))
}

// List returns runs newest first. An empty kind lists every kind; limit <= 0 is unbounded.
func (r *RunRepository) List(kind models.JobKind, limit int) ([]*models.Run, error) {
	query := "SELECT " + runColumns + " FROM runs"
	args := []any{}

	if kind != "" {
		query += " WHERE kind = ?"
		args = append(args, string(kind))
	}
	query += " ORDER BY sequence DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

func scanRun(row rowScanner) (*models.Run, error) {
	var (
		run          models.Run
		kind         string
		playlistID   sql.NullString
		errorMessage sql.NullString
		completedAt  sql.NullTime
	)

	err := row.Scan(
		&run.ID, &run.Sequence, &kind, &run.Title, &playlistID,
		&run.Total, &run.Matched, &run.Added, &run.Suppressed, &run.Unmatched, &run.Failed,
		&errorMessage, &run.StartedAt, &completedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.Kind = models.JobKind(kind)
	run.PlaylistID = playlistID.String
	run.Error = errorMessage.String
	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	return &run, nil
}
