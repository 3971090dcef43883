package tasks

import (
	"context"
	"fmt"
	"slices"

	"github.com/desertthunder/beatporter/internal/models"
	"github.com/desertthunder/beatporter/internal/repositories"
)

// dailyTarget collects ids for the "Daily Top" playlist of a genre job.
type dailyTarget struct {
	*target
	limit   int
	count   int
	pending []string
	queued  map[string]struct{}
}

// openDaily prepares the daily playlist. Without a digging mode the playlist is cleared,
// since otherwise history decides which tracks are still unheard.
func (e *SyncEngine) openDaily(ctx context.Context, job models.Job) (*dailyTarget, error) {
	t, _, err := e.open(ctx, job.DailyPlaylistName(e.cfg.PlaylistPrefix))
	if err != nil {
		return nil, err
	}

	if e.mode == models.DigNone {
		if err := e.store.Clear(ctx, t.playlist.ID); err != nil {
			return nil, fmt.Errorf("failed to clear %q: %w", t.playlist.Name, err)
		}
		if err := e.refresh(ctx, t); err != nil {
			return nil, err
		}
		t.ledger = emptyLedger(t.playlist.ID)
	}

	return &dailyTarget{
		target: t,
		limit:  e.cfg.DailyNTrack,
		count:  len(t.items),
		queued: map[string]struct{}{},
	}, nil
}

// offer queues id when the daily playlist still has room and has not seen it.
func (d *dailyTarget) offer(id string) bool {
	if d.count >= d.limit || d.has(id) {
		return false
	}
	if _, ok := d.queued[id]; ok {
		return false
	}
	d.pending = append(d.pending, id)
	d.queued[id] = struct{}{}
	d.count++
	return true
}

// finishDaily writes the queued ids, then tops the playlist up from the main playlist,
// freshest first.
func (e *SyncEngine) finishDaily(ctx context.Context, progress chan<- ProgressUpdate, primary *target, d *dailyTarget) (*DailyResult, error) {
	res := &DailyResult{Playlist: d.playlist}

	if d.count < d.limit {
		for _, item := range slices.Backward(primary.items) {
			if d.count >= d.limit {
				break
			}
			if d.offer(item.TrackID) {
				res.ToppedUp++
			}
		}
	}
	res.Added = slices.Clone(d.pending)

	if len(d.pending) == 0 {
		e.logger.Info("no new tracks to add", "playlist", d.playlist.Name)
		return res, nil
	}

	sendProgress(progress, dailyUpdate(d.playlist, len(d.pending)))
	if err := e.write(ctx, progress, d.target, d.pending); err != nil {
		return res, err
	}
	res.Playlist = d.playlist
	return res, nil
}

func emptyLedger(playlistID string) *repositories.Ledger {
	return repositories.NewLedger(nil, models.DigNone, playlistID)
}
