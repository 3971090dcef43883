package matching

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/beatporter/internal/models"
	"github.com/desertthunder/beatporter/internal/shared"
)

// Searcher runs one free-text or structured query against the remote catalog.
//
// Implementations return an empty slice, not an error, for queries the backend rejects as
// malformed or finds nothing for.
type Searcher interface {
	Search(ctx context.Context, query string) ([]models.Candidate, error)
}

// SearchFunc adapts a function to [Searcher].
type SearchFunc func(ctx context.Context, query string) ([]models.Candidate, error)

func (f SearchFunc) Search(ctx context.Context, query string) ([]models.Candidate, error) {
	return f(ctx, query)
}

// Stats counts the remote work done for one track.
type Stats struct {
	Queries int `json:"queries"` // distinct queries issued
	Calls   int `json:"calls"`   // backend invocations, retries included
	Retries int `json:"retries"`
}

// Result is the outcome of [Strategy.FindTrackID].
type Result struct {
	ID       string   `json:"id,omitempty"`
	Found    bool     `json:"found"`
	Query    *Query   `json:"query,omitempty"`
	Decision Decision `json:"decision"`
	Stats    Stats    `json:"stats"`
	Planned  int      `json:"planned"`
}

// StrategyOpts configures a [Strategy].
type StrategyOpts struct {
	Searcher Searcher
	Selector *Selector
	Retrier  *shared.Retrier
	Logger   *log.Logger
	// Parse enables name, mix and artist rewrites. Without it only the literal track is searched.
	Parse bool
	// Silent drops per-query logging.
	Silent bool
	// Trace, when set, receives every query with its decision.
	Trace func(q Query, d Decision)
}

// Strategy issues planned queries one at a time until the selector accepts a candidate.
type Strategy struct {
	searcher Searcher
	selector *Selector
	retrier  shared.Retrier
	logger   *log.Logger
	parse    bool
	silent   bool
	trace    func(Query, Decision)
}

// NewStrategy creates a Strategy. A nil selector scores with [Ratio] and a nil retrier
// retries each call once.
func NewStrategy(opts StrategyOpts) *Strategy {
	if opts.Selector == nil {
		opts.Selector = NewSelector(nil)
	}
	if opts.Retrier == nil {
		opts.Retrier = &shared.DefaultRetrier
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &Strategy{
		searcher: opts.Searcher,
		selector: opts.Selector,
		retrier:  *opts.Retrier,
		logger:   opts.Logger,
		parse:    opts.Parse,
		silent:   opts.Silent,
		trace:    opts.Trace,
	}
}

// FindTrackID searches for t and returns the first accepted candidate.
//
// A track with no match returns a Result with Found false and a nil error. An error means a
// query failed twice in a row; the search stops at that query.
func (s *Strategy) FindTrackID(ctx context.Context, t models.SourceTrack) (Result, error) {
	plan := Plan(t, s.parse)
	res := Result{Planned: len(plan), Decision: Decision{State: NoResults, Index: -1, MostPopular: -1}}

	for _, q := range plan {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		res.Stats.Queries++
		retrier := s.retrier
		retrier.OnRetry = func(attempt int, err error) {
			res.Stats.Retries++
			s.logger.Warn("retrying search", "query", q.Text, "attempt", attempt, "error", err)
		}
		candidates, err := shared.RetryValue(ctx, retrier, func(ctx context.Context) ([]models.Candidate, error) {
			res.Stats.Calls++
			return s.searcher.Search(ctx, q.Text)
		})
		if err != nil {
			return res, fmt.Errorf("search %q: %w", q.Text, err)
		}

		d := s.selector.Explain(q.Track, candidates)
		if s.trace != nil {
			s.trace(q, d)
		}
		if !s.silent {
			s.logger.Debug("search", "query", q.Text, "results", len(candidates), "state", d.State)
		}

		if d.State.Accepted() {
			query := q
			res.ID, res.Found, res.Query, res.Decision = d.ID, true, &query, d
			if !s.silent {
				s.logger.Info("match found", "track", t.NameMix(), "artist", t.PrimaryArtist(), "id", d.ID, "shape", q.Shape, "variant", q.Variant)
			}
			return res, nil
		}
		if d.State != NoResults {
			res.Decision = d
		}
	}

	s.logger.Info("no match", "track", t.NameMix(), "artist", t.PrimaryArtist(), "queries", res.Stats.Queries)
	return res, nil
}
