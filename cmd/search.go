package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/beatporter/internal/matching"
	"github.com/desertthunder/beatporter/internal/models"
	"github.com/desertthunder/beatporter/internal/shared"
	"github.com/urfave/cli/v3"
)

// searchStep is one issued query with the selector's verdict.
type searchStep struct {
	Query    matching.Query    `json:"query"`
	Decision matching.Decision `json:"decision"`
}

// searchReport is the --json output of [Runner.Search].
type searchReport struct {
	Track  models.SourceTrack `json:"track"`
	Result matching.Result    `json:"result"`
	Steps  []searchStep       `json:"steps"`
}

// Search runs the full strategy for one track and prints every query it issued.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	track := models.SourceTrack{
		Name:       cmd.String("name"),
		Mix:        cmd.String("mix"),
		Artists:    cmd.StringSlice("artist"),
		Remixers:   cmd.StringSlice("remixer"),
		Release:    cmd.String("release"),
		Label:      cmd.String("label"),
		DurationMS: int(cmd.Duration("duration").Milliseconds()),
	}
	if !track.Searchable() {
		return fmt.Errorf("%w: --name and a first --artist must not be blank", shared.ErrMissingArgument)
	}

	var steps []searchStep
	strategy, err := r.strategy(ctx, func(q matching.Query, d matching.Decision) {
		steps = append(steps, searchStep{Query: q, Decision: d})
	})
	if err != nil {
		return err
	}

	res, err := strategy.FindTrackID(ctx, track)
	if cmd.Bool("json") {
		if jsonErr := r.writeJSON(searchReport{Track: track, Result: res, Steps: steps}, true); jsonErr != nil {
			return jsonErr
		}
		return err
	}

	r.writePlain("Searching %s - %s\n\n", track.PrimaryArtist(), track.NameMix())
	for i, s := range steps {
		r.writePlain("%d. %s\n", i+1, s.Query.Text)
		r.writePlain("   artist=%q variant=%d shape=%s -> %s %v\n", s.Query.Artist, s.Query.Variant, s.Query.Shape, s.Decision.State, s.Decision.Scores)
	}
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	r.writePlain("\n")
	if !res.Found {
		r.writePlain("✗ No match after %d queries (%d planned)\n", res.Stats.Queries, res.Planned)
		return nil
	}
	r.writePlain("✓ Matched spotify:track:%s\n", res.ID)
	r.writePlain("  %d queries, %d calls, %d retries\n", res.Stats.Queries, res.Stats.Calls, res.Stats.Retries)
	return nil
}
