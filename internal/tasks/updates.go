package tasks

import (
	"fmt"

	"github.com/desertthunder/beatporter/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	FetchCatalog Phase = iota
	PreparePlaylist
	MatchTracks
	WriteBatch
	UpdateDaily
	RefreshHistory
	BackupPlaylist
)

func (p Phase) String() string {
	switch p {
	case FetchCatalog:
		return "fetch_catalog"
	case PreparePlaylist:
		return "prepare_playlist"
	case MatchTracks:
		return "match_tracks"
	case WriteBatch:
		return "write_batch"
	case UpdateDaily:
		return "update_daily"
	case RefreshHistory:
		return "refresh_history"
	case BackupPlaylist:
		return "backup_playlist"
	default:
		return ""
	}
}

// sendProgress sends an update without blocking. A nil or full channel drops it.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func fetchCatalogUpdate(job models.Job) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchCatalog,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching %s %q from Beatport...", job.Kind, job.Title),
	}
}

func preparePlaylistUpdate(pl models.Playlist, created bool) ProgressUpdate {
	msg := fmt.Sprintf("Using playlist %s (%d tracks)", pl.Name, pl.TrackCount)
	if created {
		msg = fmt.Sprintf("Playlist created: %s (ID: %s)", pl.Name, pl.ID)
	}
	return ProgressUpdate{
		Phase:   PreparePlaylist,
		Step:    1,
		Total:   1,
		Message: msg,
		Data:    pl,
	}
}

func matchTrackUpdate(step, total int, t models.SourceTrack, outcome Outcome) ProgressUpdate {
	return ProgressUpdate{
		Phase:   MatchTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s - %s: %s", step, total, t.PrimaryArtist(), t.NameMix(), outcome),
		Data:    outcome,
	}
}

func writeBatchUpdate(pl models.Playlist, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteBatch,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Adding %d new tracks to %q", count, pl.Name),
		Data:    count,
	}
}

func dailyUpdate(pl models.Playlist, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   UpdateDaily,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Adding %d tracks to %q", count, pl.Name),
		Data:    count,
	}
}

func refreshHistoryUpdate(step, total int, pl models.Playlist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RefreshHistory,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Refreshing history for %s", step, total, pl.Name),
	}
}

func backupUpdate(src string, pl models.Playlist, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   BackupPlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Backing up %d tracks of %s into %q", total, src, pl.Name),
		Data:    total,
	}
}
