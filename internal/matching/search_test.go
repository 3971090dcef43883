package matching

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"testing"

	"github.com/desertthunder/beatporter/internal/models"
	"github.com/desertthunder/beatporter/internal/shared"
)

type recordingSearcher struct {
	queries []string
	respond func(call int, query string) ([]models.Candidate, error)
}

func (s *recordingSearcher) Search(_ context.Context, query string) ([]models.Candidate, error) {
	s.queries = append(s.queries, query)
	if s.respond == nil {
		return nil, nil
	}
	return s.respond(len(s.queries), query)
}

func newTestStrategy(s Searcher, parse bool) *Strategy {
	return NewStrategy(StrategyOpts{Searcher: s, Parse: parse, Logger: shared.NewLogger(io.Discard)})
}

func TestPlan(t *testing.T) {
	sete := models.SourceTrack{
		Name:    "Sete",
		Mix:     "Original Mix",
		Artists: []string{"BLOND:ISH"},
		Release: "Sete",
		Label:   "Insomniac Records",
	}

	t.Run("most specific shape first", func(t *testing.T) {
		plan := Plan(sete, true)
		want := `track:"Sete - Original Mix" artist:"BLOND:ISH" album:"Sete" label:"Insomniac Records"`
		if plan[0].Text != want {
			t.Errorf("expected %s, got %s", want, plan[0].Text)
		}
		if plan[3].Text != `track:"Sete - Original Mix" artist:"BLOND:ISH"` {
			t.Errorf("expected bare track query fourth, got %s", plan[3].Text)
		}
	})

	t.Run("bounded and unique", func(t *testing.T) {
		plan := Plan(sete, true)
		limit := len(ArtistVariants(sete.Artists, true)) * VariantCount * len(Shapes)
		if len(plan) == 0 || len(plan) > limit {
			t.Fatalf("expected between 1 and %d queries, got %d", limit, len(plan))
		}
		seen := make(map[string]bool)
		for _, q := range plan {
			if seen[q.Text] {
				t.Errorf("duplicate query %s", q.Text)
			}
			seen[q.Text] = true
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		if !reflect.DeepEqual(Plan(sete, true), Plan(sete, true)) {
			t.Error("expected identical plans")
		}
	})

	t.Run("without parsing", func(t *testing.T) {
		plan := Plan(sete, false)
		if len(plan) != len(Shapes) {
			t.Fatalf("expected %d queries, got %d", len(Shapes), len(plan))
		}
		for _, q := range plan {
			if q.Variant != 0 || q.Artist != "BLOND:ISH" {
				t.Errorf("expected the literal track only, got %+v", q)
			}
		}
	})

	t.Run("missing metadata skips shapes", func(t *testing.T) {
		bare := models.SourceTrack{Name: "Sete", Artists: []string{"BLOND:ISH"}}
		plan := Plan(bare, false)
		if len(plan) != 1 || plan[0].Shape != "track" {
			t.Errorf("expected only the bare shape, got %+v", plan)
		}
	})

	t.Run("quotes are stripped", func(t *testing.T) {
		quoted := models.SourceTrack{Name: `Say "Yes"`, Artists: []string{"A"}}
		plan := Plan(quoted, false)
		if plan[0].Text != `track:"Say  Yes" artist:"A"` {
			t.Errorf("unexpected query %s", plan[0].Text)
		}
	})

	t.Run("no artists", func(t *testing.T) {
		if plan := Plan(models.SourceTrack{Name: "Sete"}, true); len(plan) != 0 {
			t.Errorf("expected no queries, got %d", len(plan))
		}
	})
}

func TestStrategy(t *testing.T) {
	ctx := context.Background()
	sete := models.SourceTrack{
		Name:    "Sete",
		Mix:     "Original Mix",
		Artists: []string{"BLOND:ISH", "Francis Mercier"},
		Release: "Sete",
		Label:   "Insomniac Records",
	}

	t.Run("exact title accepted on first query", func(t *testing.T) {
		searcher := &recordingSearcher{respond: func(int, string) ([]models.Candidate, error) {
			return []models.Candidate{{ID: "4u3XiAwJ2U9Kxgy57gcAPB", Name: "Sete - Original Mix", Artists: []string{"BLOND:ISH"}}}, nil
		}}

		res, err := newTestStrategy(searcher, true).FindTrackID(ctx, sete)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !res.Found || res.ID != "4u3XiAwJ2U9Kxgy57gcAPB" {
			t.Fatalf("expected match, got %+v", res)
		}
		if len(searcher.queries) != 1 {
			t.Errorf("expected 1 call, got %d", len(searcher.queries))
		}
		if res.Decision.State != SingleAccepted {
			t.Errorf("expected single accepted, got %v", res.Decision.State)
		}
	})

	t.Run("bare title accepted once the default mix is dropped", func(t *testing.T) {
		searcher := &recordingSearcher{respond: func(int, string) ([]models.Candidate, error) {
			return []models.Candidate{{ID: "sete", Name: "Sete", Artists: []string{"BLOND:ISH"}}}, nil
		}}

		res, err := newTestStrategy(searcher, true).FindTrackID(ctx, sete)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !res.Found || res.Query == nil {
			t.Fatalf("expected match, got %+v", res)
		}
		if res.Query.Variant != 2 {
			t.Errorf("expected variant 2, got %d", res.Query.Variant)
		}
		if len(searcher.queries) != 5 {
			t.Errorf("expected 5 calls, got %d: %q", len(searcher.queries), searcher.queries)
		}
	})

	t.Run("no candidates", func(t *testing.T) {
		searcher := &recordingSearcher{}
		res, err := newTestStrategy(searcher, true).FindTrackID(ctx, sete)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.Found || res.ID != "" {
			t.Errorf("expected no match, got %+v", res)
		}
		limit := len(ArtistVariants(sete.Artists, true)) * VariantCount * len(Shapes)
		if len(searcher.queries) > limit {
			t.Errorf("expected at most %d calls, got %d", limit, len(searcher.queries))
		}
		if len(searcher.queries) != res.Planned || res.Stats.Calls != res.Planned {
			t.Errorf("expected every planned query to run once, got %d of %d", len(searcher.queries), res.Planned)
		}
	})

	t.Run("three artists with duration", func(t *testing.T) {
		full := models.SourceTrack{
			Name:       "Sete",
			Mix:        "Original Mix",
			Artists:    []string{"BLOND:ISH", "Amadou & Mariam", "Francis Mercier"},
			Release:    "Sete",
			Label:      "Insomniac Records",
			DurationMS: 395040,
		}
		answer := func(name string) func(int, string) ([]models.Candidate, error) {
			return func(int, string) ([]models.Candidate, error) {
				return []models.Candidate{{ID: "sete", Name: name, DurationMS: 395040, Artists: []string{"BLOND:ISH"}}}, nil
			}
		}

		tests := []struct {
			name      string
			candidate string
			calls     int
		}{
			{"full title", "Sete - Original Mix", 1},
			{"bare title", "Sete", 5},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				searcher := &recordingSearcher{respond: answer(tt.candidate)}
				res, err := newTestStrategy(searcher, true).FindTrackID(ctx, full)
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				if !res.Found || res.ID != "sete" || res.Decision.State != SingleAccepted {
					t.Fatalf("expected a single accepted match, got %+v", res)
				}
				if len(searcher.queries) != tt.calls {
					t.Errorf("expected %d calls, got %d: %q", tt.calls, len(searcher.queries), searcher.queries)
				}
			})
		}

		t.Run("empty backend", func(t *testing.T) {
			artists := ArtistVariants(full.Artists, true)
			if len(artists) != 9 {
				t.Fatalf("expected 9 artist strings, got %d: %q", len(artists), artists)
			}
			limit := len(artists) * VariantCount * len(Shapes)
			if limit != 288 {
				t.Fatalf("expected a bound of 288, got %d", limit)
			}

			searcher := &recordingSearcher{}
			res, err := newTestStrategy(searcher, true).FindTrackID(ctx, full)
			if err != nil || res.Found {
				t.Fatalf("expected no match, got %+v, %v", res, err)
			}
			if len(searcher.queries) != 180 || res.Planned != 180 {
				t.Errorf("expected 180 calls, got %d (planned %d)", len(searcher.queries), res.Planned)
			}
		})
	})

	t.Run("deterministic", func(t *testing.T) {
		a, b := &recordingSearcher{}, &recordingSearcher{}
		_, _ = newTestStrategy(a, true).FindTrackID(ctx, sete)
		_, _ = newTestStrategy(b, true).FindTrackID(ctx, sete)
		if !reflect.DeepEqual(a.queries, b.queries) {
			t.Error("expected identical query sequences")
		}
	})

	t.Run("without parsing", func(t *testing.T) {
		searcher := &recordingSearcher{}
		_, _ = newTestStrategy(searcher, false).FindTrackID(ctx, sete)
		if len(searcher.queries) != 2*len(Shapes) {
			t.Errorf("expected %d calls, got %d", 2*len(Shapes), len(searcher.queries))
		}
	})

	t.Run("transient failure is retried", func(t *testing.T) {
		searcher := &recordingSearcher{respond: func(call int, _ string) ([]models.Candidate, error) {
			if call == 1 {
				return nil, fmt.Errorf("%w: connection reset", shared.ErrTransient)
			}
			return []models.Candidate{{ID: "x", Name: "Sete - Original Mix", Artists: []string{"BLOND:ISH"}}}, nil
		}}

		res, err := newTestStrategy(searcher, true).FindTrackID(ctx, sete)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !res.Found || res.Stats.Retries != 1 || res.Stats.Calls != 2 {
			t.Errorf("expected match after one retry, got %+v", res)
		}
	})

	t.Run("second failure is returned", func(t *testing.T) {
		searcher := &recordingSearcher{respond: func(int, string) ([]models.Candidate, error) {
			return nil, fmt.Errorf("%w: connection reset", shared.ErrTransient)
		}}

		res, err := newTestStrategy(searcher, true).FindTrackID(ctx, sete)
		if !errors.Is(err, shared.ErrTransient) {
			t.Fatalf("expected transient error, got %v", err)
		}
		if res.Found || len(searcher.queries) != 2 {
			t.Errorf("expected 2 calls and no match, got %d", len(searcher.queries))
		}
	})

	t.Run("expired token is not retried", func(t *testing.T) {
		searcher := &recordingSearcher{respond: func(int, string) ([]models.Candidate, error) {
			return nil, shared.ErrTokenExpired
		}}

		_, err := newTestStrategy(searcher, true).FindTrackID(ctx, sete)
		if !errors.Is(err, shared.ErrTokenExpired) {
			t.Fatalf("expected token error, got %v", err)
		}
		if len(searcher.queries) != 1 {
			t.Errorf("expected 1 call, got %d", len(searcher.queries))
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		searcher := &recordingSearcher{}
		_, err := newTestStrategy(searcher, true).FindTrackID(cancelled, sete)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected cancellation, got %v", err)
		}
		if len(searcher.queries) != 0 {
			t.Errorf("expected no calls, got %d", len(searcher.queries))
		}
	})

	t.Run("track without artists", func(t *testing.T) {
		searcher := &recordingSearcher{}
		res, err := newTestStrategy(searcher, true).FindTrackID(ctx, models.SourceTrack{Name: "Sete"})
		if err != nil || res.Found || len(searcher.queries) != 0 {
			t.Errorf("expected a silent miss, got %+v %v", res, err)
		}
	})

	t.Run("trace sees every query", func(t *testing.T) {
		var traced []Query
		s := NewStrategy(StrategyOpts{
			Searcher: &recordingSearcher{},
			Logger:   shared.NewLogger(io.Discard),
			Trace:    func(q Query, _ Decision) { traced = append(traced, q) },
		})
		res, _ := s.FindTrackID(ctx, sete)
		if len(traced) != res.Planned {
			t.Errorf("expected %d traced queries, got %d", res.Planned, len(traced))
		}
	})
}
