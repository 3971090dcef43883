package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/beatporter/internal/formatter"
	"github.com/desertthunder/beatporter/internal/models"
	"github.com/desertthunder/beatporter/internal/repositories"
	"github.com/desertthunder/beatporter/internal/shared"
	"github.com/desertthunder/beatporter/internal/tasks"
	"github.com/desertthunder/beatporter/internal/ui"
	"github.com/urfave/cli/v3"
)

type userIdentifier interface {
	UserID(ctx context.Context) (string, error)
}

// owner resolves whose playlists a history refresh reads: the flag, then the configured
// username, then the authenticated user.
func (r *Runner) owner(ctx context.Context, flag string) string {
	if flag != "" {
		return flag
	}
	if name := r.config.Credentials.Spotify.Username; name != "" {
		return name
	}
	if u, ok := r.spotify.(userIdentifier); ok {
		id, err := u.UserID(ctx)
		if err == nil {
			return id
		}
		r.logger.Warn("failed to look up the current user, refreshing every playlist", "error", err)
	}
	return ""
}

// HistoryRefresh merges the items of every owned playlist into the history.
func (r *Runner) HistoryRefresh(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.engine(ctx)
	if err != nil {
		return err
	}
	owner := r.owner(ctx, cmd.String("owner"))

	progress := make(chan tasks.ProgressUpdate, 100)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ui.Progress(r.output, progress, cmd.Bool("verbose"))
	}()

	added, err := engine.RefreshHistory(ctx, progress, owner)
	close(progress)
	wg.Wait()
	if err != nil {
		return err
	}

	r.writePlain("✓ History refreshed: %d new rows\n", added)
	return nil
}

// HistoryDedup drops rows that differ only by playlist or artist name.
func (r *Runner) HistoryDedup(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database()
	if err != nil {
		return err
	}
	history := repositories.NewHistoryRepository(db)

	removed, err := history.Dedup()
	if err != nil {
		return err
	}
	remaining, err := history.Count()
	if err != nil {
		return err
	}

	r.writePlain("✓ Removed %d duplicate rows, %d remain\n", removed, remaining)
	return nil
}

// HistoryExport writes the history, or one playlist's part of it, to a file.
func (r *Runner) HistoryExport(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	db, err := r.database()
	if err != nil {
		return err
	}
	history := repositories.NewHistoryRepository(db)

	var records []models.HistoryRecord
	if id := cmd.String("playlist"); id != "" {
		records, err = history.ListByPlaylist(id)
	} else {
		records, err = history.List()
	}
	if err != nil {
		return err
	}

	path, err := formatter.WriteExport(records, format, cmd.String("output"))
	if err != nil {
		return err
	}

	r.logger.Info("history exported", "path", path, "records", len(records))
	r.writePlain("✓ Exported %d rows to %s\n", len(records), path)
	return nil
}

// Runs lists recorded runs, newest first.
func (r *Runner) Runs(ctx context.Context, cmd *cli.Command) error {
	kind := models.JobKind(cmd.String("kind"))
	switch kind {
	case "", models.GenreJob, models.ChartJob, models.LabelJob, models.BackupJob:
	default:
		return fmt.Errorf("%w: unknown run kind %q", shared.ErrInvalidArgument, kind)
	}

	db, err := r.database()
	if err != nil {
		return err
	}

	runs, err := repositories.NewRunRepository(db).List(kind, cmd.Int("limit"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		if runs == nil {
			runs = []*models.Run{}
		}
		return r.writeJSON(runs, true)
	}

	list := make([]models.Run, 0, len(runs))
	for _, run := range runs {
		list = append(list, *run)
	}
	return r.writePlain("%s", ui.Runs(list))
}
