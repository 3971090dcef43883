package models

import (
	"fmt"
	"time"

	"github.com/desertthunder/beatporter/internal/shared"
)

// DiggingMode is the suppression scope for "already added" checks.
type DiggingMode string

const (
	DigNone     DiggingMode = ""
	DigPlaylist DiggingMode = "playlist"
	DigAll      DiggingMode = "all"
)

// ParseDiggingMode validates a configured digging mode.
func ParseDiggingMode(s string) (DiggingMode, error) {
	switch m := DiggingMode(s); m {
	case DigNone, DigPlaylist, DigAll:
		return m, nil
	default:
		return DigNone, fmt.Errorf("%w: unknown digging mode %q", shared.ErrInvalidConfig, s)
	}
}

func (m DiggingMode) String() string {
	if m == DigNone {
		return "none"
	}
	return string(m)
}

// JobKind selects which catalog listing a [Job] reads.
type JobKind string

const (
	GenreJob JobKind = "genre"
	ChartJob JobKind = "chart"
	LabelJob JobKind = "label"

	// BackupJob copies a streaming-service playlist; its title is the destination name.
	BackupJob JobKind = "backup"
)

// Job is one catalog listing synced into one playlist.
type Job struct {
	Kind  JobKind `json:"kind"`
	Title string  `json:"title"`
	Code  string  `json:"code"`
}

// PlaylistName derives the target playlist name.
func (j Job) PlaylistName(prefix string) string {
	switch j.Kind {
	case GenreJob:
		return fmt.Sprintf("Beatporter: %s - Top 100", j.Title)
	case BackupJob:
		return j.Title
	}
	return prefix + j.Title
}

// DailyPlaylistName is the playlist that receives the head of a genre chart in daily mode.
func (j Job) DailyPlaylistName(prefix string) string {
	if j.Kind == GenreJob {
		return fmt.Sprintf("Beatporter: %s - Daily Top", j.Title)
	}
	return j.PlaylistName(prefix) + " - Daily Top"
}

// Run summarizes one sync run.
type Run struct {
	ID          string     `json:"id"`
	Sequence    int        `json:"sequence"`
	Kind        JobKind    `json:"kind"`
	Title       string     `json:"title"`
	PlaylistID  string     `json:"playlist_id,omitempty"`
	Total       int        `json:"total"`
	Matched     int        `json:"matched"`
	Added       int        `json:"added"`
	Suppressed  int        `json:"suppressed"`
	Unmatched   int        `json:"unmatched"`
	Failed      int        `json:"failed"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// MatchRate is the share of processed tracks that resolved to an id, as a percentage.
func (r Run) MatchRate() float64 {
	searched := r.Matched + r.Unmatched + r.Failed
	if searched == 0 {
		return 0
	}
	return float64(r.Matched) / float64(searched) * 100
}
