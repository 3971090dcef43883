package main

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/desertthunder/beatporter/internal/models"
	"github.com/desertthunder/beatporter/internal/shared"
	"github.com/desertthunder/beatporter/internal/tasks"
	"github.com/desertthunder/beatporter/internal/ui"
	"github.com/urfave/cli/v3"
)

// selectJobs lists the configured jobs of kinds, keeping only the titles in only when given.
func (r *Runner) selectJobs(kinds []models.JobKind, only []string) []models.Job {
	var jobs []models.Job
	for _, kind := range kinds {
		for _, job := range tasks.Jobs(r.config, kind, r.now()) {
			if len(only) == 0 || slices.Contains(only, job.Title) {
				jobs = append(jobs, job)
			}
		}
	}
	return jobs
}

// Sync returns the action running every configured job of kinds.
func (r *Runner) Sync(kinds ...models.JobKind) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		jobs := r.selectJobs(kinds, cmd.StringSlice("only"))
		if len(jobs) == 0 {
			return fmt.Errorf("%w: no %v jobs configured in %s", shared.ErrMissingConfig, kinds, r.configPath)
		}
		if err := r.config.Validate(); err != nil {
			return err
		}

		engine, err := r.engine(ctx)
		if err != nil {
			return err
		}

		r.logger.Info("running jobs", "count", len(jobs))
		results, err := r.runJobs(ctx, engine, jobs, cmd.Bool("verbose"))

		for _, res := range results {
			r.writePlain("\n%s", ui.Summary(res))
		}
		return err
	}
}

// runJobs runs jobs while a goroutine prints progress. Printing stops before results are written.
func (r *Runner) runJobs(ctx context.Context, engine *tasks.SyncEngine, jobs []models.Job, verbose bool) ([]*tasks.SyncResult, error) {
	progress := make(chan tasks.ProgressUpdate, 100)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ui.Progress(r.output, progress, verbose)
	}()

	results, err := engine.RunJobs(ctx, progress, r.beatport(), jobs)
	close(progress)
	wg.Wait()
	return results, err
}
