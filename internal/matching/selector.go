package matching

import (
	"github.com/desertthunder/beatporter/internal/models"
)

// State is the selector outcome for one search response.
type State int

const (
	NoResults State = iota
	SingleAccepted
	SingleRejected
	MultiAccepted
	MultiRejected
)

func (s State) String() string {
	switch s {
	case NoResults:
		return "no_results"
	case SingleAccepted:
		return "single_accepted"
	case SingleRejected:
		return "single_rejected"
	case MultiAccepted:
		return "multi_accepted"
	case MultiRejected:
		return "multi_rejected"
	default:
		return ""
	}
}

// Accepted reports whether the state carries a match.
func (s State) Accepted() bool {
	return s == SingleAccepted || s == MultiAccepted
}

// Decision explains how the selector treated one search response.
type Decision struct {
	State  State     `json:"state"`
	Scores []float64 `json:"scores"`
	// Index of the chosen (or best rejected) candidate, -1 when there are none.
	Index int    `json:"index"`
	ID    string `json:"id,omitempty"`
	// DurationMatches counts candidates whose duration equals the source's.
	DurationMatches int `json:"duration_matches"`
	// MostPopular is the index of the most popular candidate, reported for diagnostics only.
	MostPopular int `json:"most_popular"`
}

// Selector decides whether a search response contains the source track.
type Selector struct {
	scorer *Scorer
}

// NewSelector returns a Selector backed by scorer, or a ratio [Scorer] when nil.
func NewSelector(scorer *Scorer) *Selector {
	if scorer == nil {
		scorer = NewScorer(nil)
	}
	return &Selector{scorer: scorer}
}

// Select returns the id of the accepted candidate.
//
// A single candidate is accepted when its score is strictly above [models.SingleResultThreshold].
// With several candidates, the first one holding the highest score is accepted when that score
// is at least [models.MultiResultThreshold].
func (s *Selector) Select(source models.SourceTrack, candidates []models.Candidate) (string, bool) {
	d := s.Explain(source, candidates)
	return d.ID, d.State.Accepted()
}

// Explain runs the selection and returns the full decision.
func (s *Selector) Explain(source models.SourceTrack, candidates []models.Candidate) Decision {
	d := Decision{State: NoResults, Index: -1, MostPopular: -1, Scores: s.scorer.Score(source, candidates)}
	if len(candidates) == 0 {
		return d
	}

	for i, c := range candidates {
		if source.DurationMS > 0 && c.DurationMS == source.DurationMS {
			d.DurationMatches++
		}
		if d.MostPopular < 0 || c.Popularity > candidates[d.MostPopular].Popularity {
			d.MostPopular = i
		}
	}

	if len(candidates) == 1 {
		d.Index = 0
		if d.Scores[0] > models.SingleResultThreshold {
			d.State, d.ID = SingleAccepted, candidates[0].ID
		} else {
			d.State = SingleRejected
		}
		return d
	}

	best := 0
	for i, score := range d.Scores {
		if score > d.Scores[best] {
			best = i
		}
	}
	d.Index = best
	if d.Scores[best] >= models.MultiResultThreshold {
		d.State, d.ID = MultiAccepted, candidates[best].ID
	} else {
		d.State = MultiRejected
	}
	return d
}
