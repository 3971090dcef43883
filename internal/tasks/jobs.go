package tasks

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/desertthunder/beatporter/internal/models"
	"github.com/desertthunder/beatporter/internal/services"
	"github.com/desertthunder/beatporter/internal/shared"
)

// Jobs lists the configured jobs of one kind, sorted by title. Chart names and codes
// have their date directives expanded against now.
func Jobs(cfg *shared.Config, kind models.JobKind, now time.Time) []models.Job {
	var table map[string]string
	switch kind {
	case models.GenreJob:
		table = cfg.Genres
	case models.ChartJob:
		table = cfg.Charts
	case models.LabelJob:
		table = cfg.Labels
	case models.BackupJob:
		table = cfg.Backups
	}

	jobs := make([]models.Job, 0, len(table))
	for title, code := range table {
		if kind == models.ChartJob {
			title, code = services.ExpandChartDate(title, now), services.ExpandChartDate(code, now)
		}
		jobs = append(jobs, models.Job{Kind: kind, Title: title, Code: code})
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Title < jobs[j].Title })
	return jobs
}

// CatalogTracks fetches the listing behind job.
//
// Label jobs only page back to the last update of their playlist unless overwrite_label
// is set, and are shuffled when shuffle_label is set.
func (e *SyncEngine) CatalogTracks(ctx context.Context, catalog services.CatalogSource, job models.Job) ([]models.SourceTrack, error) {
	switch job.Kind {
	case models.GenreJob:
		return catalog.GenreTracks(ctx, job.Code)
	case models.ChartJob:
		url, err := catalog.FindChart(ctx, job.Title, job.Code)
		if err != nil {
			return nil, err
		}
		return catalog.ChartTracks(ctx, url)
	case models.LabelJob:
		since := time.Time{}
		if !e.cfg.OverwriteLabel {
			last, err := e.LastAdded(ctx, job.PlaylistName(e.cfg.PlaylistPrefix))
			if err != nil {
				return nil, err
			}
			since = last
		}
		tracks, err := catalog.LabelTracks(ctx, job.Code, since, e.cfg.OverwriteLabel)
		if err != nil {
			return nil, err
		}
		if e.cfg.ShuffleLabel {
			rand.Shuffle(len(tracks), func(i, j int) { tracks[i], tracks[j] = tracks[j], tracks[i] })
		}
		return tracks, nil
	default:
		return nil, fmt.Errorf("%w: job kind %q", shared.ErrInvalidArgument, job.Kind)
	}
}

// RunJobs fetches and syncs each job in turn. A failing job is logged and does not stop
// the others; the failures are returned joined. Charts that cannot be found are skipped.
func (e *SyncEngine) RunJobs(ctx context.Context, progress chan<- ProgressUpdate, catalog services.CatalogSource, jobs []models.Job) ([]*SyncResult, error) {
	var (
		results []*SyncResult
		errs    []error
	)

	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		logger := e.logger.With("kind", job.Kind, "title", job.Title)
		sendProgress(progress, fetchCatalogUpdate(job))

		var (
			res *SyncResult
			err error
		)
		if job.Kind == models.BackupJob {
			res, err = e.Backup(ctx, progress, job.Title, job.Code)
		} else {
			var tracks []models.SourceTrack
			tracks, err = e.CatalogTracks(ctx, catalog, job)
			if errors.Is(err, shared.ErrChartNotFound) {
				logger.Info("chart not found", "code", job.Code)
				continue
			}
			if err == nil {
				logger.Info("found tracks", "count", len(tracks))
				res, err = e.Sync(ctx, progress, job, tracks)
			}
		}

		if res != nil {
			results = append(results, res)
		}
		if err != nil {
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			logger.Warn("job failed", "error", err)
			errs = append(errs, fmt.Errorf("%s %q: %w", job.Kind, job.Title, err))
		}
	}
	return results, errors.Join(errs...)
}
