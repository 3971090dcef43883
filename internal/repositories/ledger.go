package repositories

import "github.com/desertthunder/beatporter/internal/models"

// Ledger is a read-only view over history rows used for "already added" checks.
//
// Keys are matched against both track ids and artist-name values. The digging mode decides
// which rows count: none ignores history, playlist uses the target playlist's rows only,
// and all uses every row. Rows of the target playlist are always available through
// [Ledger.InPlaylist] regardless of mode.
type Ledger struct {
	mode     models.DiggingMode
	scoped   map[string]struct{}
	playlist map[string]struct{}
}

// NewLedger builds a snapshot from records for the given playlist.
func NewLedger(records []models.HistoryRecord, mode models.DiggingMode, playlistID string) *Ledger {
	l := &Ledger{
		mode:     mode,
		scoped:   map[string]struct{}{},
		playlist: map[string]struct{}{},
	}
	for _, rec := range records {
		local := rec.PlaylistID == playlistID
		if local {
			l.add(l.playlist, rec)
		}
		switch mode {
		case models.DigAll:
			l.add(l.scoped, rec)
		case models.DigPlaylist:
			if local {
				l.add(l.scoped, rec)
			}
		}
	}
	return l
}

func (l *Ledger) add(set map[string]struct{}, rec models.HistoryRecord) {
	if rec.TrackID != "" {
		set[rec.TrackID] = struct{}{}
	}
	if rec.ArtistName != "" {
		set[rec.ArtistName] = struct{}{}
	}
}

// Mode reports the digging mode the snapshot was built with.
func (l *Ledger) Mode() models.DiggingMode {
	return l.mode
}

// IsKnown reports whether key is a track id or artist-name value within the ledger's scope.
func (l *Ledger) IsKnown(key string) bool {
	if key == "" {
		return false
	}
	_, ok := l.scoped[key]
	return ok
}

// InPlaylist reports whether key appears in the target playlist's own rows.
func (l *Ledger) InPlaylist(key string) bool {
	if key == "" {
		return false
	}
	_, ok := l.playlist[key]
	return ok
}

// Seen combines [Ledger.IsKnown] and [Ledger.InPlaylist].
func (l *Ledger) Seen(key string) bool {
	return l.IsKnown(key) || l.InPlaylist(key)
}
