// package tasks reconciles catalog listings against streaming-service playlists.
//
// The core abstraction is SyncEngine, which matches tracks, writes batches, and keeps the history current.
// Operations emit progress updates via channels for non-blocking status reporting to the CLI layer.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/beatporter/internal/matching"
	"github.com/desertthunder/beatporter/internal/models"
	"github.com/desertthunder/beatporter/internal/repositories"
	"github.com/desertthunder/beatporter/internal/services"
	"github.com/desertthunder/beatporter/internal/shared"
)

// Finder resolves a catalog track to a streaming-service track id.
type Finder interface {
	FindTrackID(ctx context.Context, t models.SourceTrack) (matching.Result, error)
}

// HistoryStore is the persistence the engine needs from [repositories.HistoryRepository].
type HistoryStore interface {
	Append(records []models.HistoryRecord) (int, error)
	ListByPlaylist(playlistID string) ([]models.HistoryRecord, error)
	List() ([]models.HistoryRecord, error)
	LastAdded(playlistID string) (time.Time, error)
	Dedup() (int, error)
}

// RunStore persists run summaries.
type RunStore interface {
	Create(run *models.Run) error
	Update(run *models.Run) error
}

// Outcome is what happened to one catalog track.
type Outcome int

const (
	Added      Outcome = iota // queued for the playlist
	Known                     // text key already in the ledger, search skipped
	Duplicate                 // resolved id already in the playlist, ledger or batch
	Unmatched                 // no candidate accepted
	Failed                    // search error after retry
	Skipped                   // missing name or primary artist
)

func (o Outcome) String() string {
	switch o {
	case Added:
		return "added"
	case Known:
		return "already known"
	case Duplicate:
		return "duplicate"
	case Unmatched:
		return "not found"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	default:
		return ""
	}
}

// TrackResult records the outcome for one catalog track.
type TrackResult struct {
	Track   models.SourceTrack
	TrackID string
	Outcome Outcome
	Error   error
}

// SyncResult contains everything one sync or backup did.
type SyncResult struct {
	Playlist models.Playlist
	Created  bool
	Added    []string
	Tracks   []TrackResult
	Daily    *DailyResult
	Run      models.Run
}

// DailyResult describes the daily playlist of a genre job.
type DailyResult struct {
	Playlist models.Playlist
	Added    []string
	ToppedUp int
}

// EngineOpts wires a [SyncEngine].
type EngineOpts struct {
	Store   services.PlaylistStore
	Session services.Session
	Finder  Finder
	History HistoryStore
	Runs    RunStore // optional
	Config  shared.SyncConfig
	Logger  *log.Logger
	Now     func() time.Time
}

// SyncEngine implements playlist reconciliation for catalog jobs and backups.
type SyncEngine struct {
	store   services.PlaylistStore
	session services.Session
	finder  Finder
	history HistoryStore
	runs    RunStore
	cfg     shared.SyncConfig
	mode    models.DiggingMode
	logger  *log.Logger
	now     func() time.Time
}

// NewSyncEngine validates opts and fills in defaults.
func NewSyncEngine(opts EngineOpts) (*SyncEngine, error) {
	if opts.Store == nil || opts.History == nil {
		return nil, fmt.Errorf("%w: playlist store and history are required", shared.ErrServiceUnavailable)
	}

	mode, err := models.ParseDiggingMode(opts.Config.DiggingMode)
	if err != nil {
		return nil, err
	}

	cfg := opts.Config
	if cfg.BatchSize <= 0 || cfg.BatchSize > 100 {
		cfg.BatchSize = 99
	}
	if cfg.RefreshEvery <= 0 {
		cfg.RefreshEvery = 100
	}
	if cfg.DailyNTrack <= 0 {
		cfg.DailyNTrack = 15
	}

	e := &SyncEngine{
		store:   opts.Store,
		session: opts.Session,
		finder:  opts.Finder,
		history: opts.History,
		runs:    opts.Runs,
		cfg:     cfg,
		mode:    mode,
		logger:  opts.Logger,
		now:     opts.Now,
	}
	if e.logger == nil {
		e.logger = shared.NewLogger(nil)
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e, nil
}

var updatedOn = regexp.MustCompile(`\s*Updated on \d{4}-\d{2}-\d{2}\.*`)

// UpdatedDescription strips any previous "Updated on" stamp and appends today's.
func UpdatedDescription(description string, now time.Time) string {
	description = updatedOn.ReplaceAllString(description, "")
	description = strings.ReplaceAll(description, "&#x2F;", "/")
	return description + " Updated on " + now.Format(time.DateOnly) + "."
}

// target is a playlist under reconciliation together with its view of the history.
type target struct {
	playlist models.Playlist
	ledger   *repositories.Ledger
	items    []models.PlaylistItem
	current  map[string]struct{}
}

func (t *target) has(id string) bool {
	_, ok := t.current[id]
	return ok || t.ledger.Seen(id)
}

// open gets or creates a playlist, merges its items into the history and builds the ledger.
func (e *SyncEngine) open(ctx context.Context, name string) (*target, bool, error) {
	pl, created, err := e.store.GetOrCreate(ctx, name, e.cfg.PlaylistDescription)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get playlist %q: %w", name, err)
	}
	if created {
		e.logger.Warn("playlist does not exist, created it", "playlist", name)
	}

	t := &target{playlist: pl}
	if err := e.refresh(ctx, t); err != nil {
		return nil, created, err
	}
	if err := e.buildLedger(t, e.mode); err != nil {
		return nil, created, err
	}
	return t, created, nil
}

func (e *SyncEngine) buildLedger(t *target, mode models.DiggingMode) error {
	var (
		records []models.HistoryRecord
		err     error
	)
	if mode == models.DigAll {
		records, err = e.history.List()
	} else {
		records, err = e.history.ListByPlaylist(t.playlist.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	t.ledger = repositories.NewLedger(records, mode, t.playlist.ID)
	return nil
}

// refresh re-reads the playlist and appends its items to the history.
func (e *SyncEngine) refresh(ctx context.Context, t *target) error {
	items, err := e.store.ListTracks(ctx, t.playlist.ID)
	if err != nil {
		return fmt.Errorf("failed to list tracks of %q: %w", t.playlist.Name, err)
	}

	t.items = items
	t.current = make(map[string]struct{}, len(items))
	for _, item := range items {
		t.current[item.TrackID] = struct{}{}
	}
	t.playlist.TrackCount = len(items)

	inserted, err := e.history.Append(models.NewHistoryRecords(t.playlist, items))
	if err != nil {
		return fmt.Errorf("failed to update history: %w", err)
	}
	if inserted > 0 {
		e.logger.Debug("history updated", "playlist", t.playlist.Name, "rows", inserted)
	}
	return nil
}

// write appends ids to the playlist, then refreshes the history and the description.
func (e *SyncEngine) write(ctx context.Context, progress chan<- ProgressUpdate, t *target, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	position := -1
	if e.cfg.AddAtTop {
		position = 0
	}

	e.logger.Info("adding new tracks", "playlist", t.playlist.Name, "count", len(ids))
	sendProgress(progress, writeBatchUpdate(t.playlist, len(ids)))

	if err := e.store.AppendTracks(ctx, t.playlist.ID, ids, position); err != nil {
		return fmt.Errorf("failed to add tracks to %q: %w", t.playlist.Name, err)
	}
	if err := e.refresh(ctx, t); err != nil {
		return err
	}
	return e.stamp(ctx, t.playlist.ID)
}

func (e *SyncEngine) stamp(ctx context.Context, id string) error {
	pl, err := e.store.Playlist(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to read playlist description: %w", err)
	}
	if err := e.store.SetDescription(ctx, id, UpdatedDescription(pl.Description, e.now())); err != nil {
		return fmt.Errorf("failed to update playlist description: %w", err)
	}
	return nil
}

// find runs the search strategy, refreshing the session once when the token expired.
func (e *SyncEngine) find(ctx context.Context, t models.SourceTrack) (matching.Result, error) {
	res, err := e.finder.FindTrackID(ctx, t)
	if errors.Is(err, shared.ErrTokenExpired) && e.session != nil {
		e.logger.Warn("token expired, refreshing")
		if rerr := e.session.Refresh(ctx); rerr != nil {
			return res, fmt.Errorf("%w: %w", shared.ErrRefreshFailed, rerr)
		}
		res, err = e.finder.FindTrackID(ctx, t)
	}
	return res, err
}

func (e *SyncEngine) refreshSession(ctx context.Context) {
	if e.session == nil {
		return
	}
	if err := e.session.Refresh(ctx); err != nil {
		e.logger.Warn("session refresh failed", "error", err)
	}
}

func (e *SyncEngine) startRun(run *models.Run) {
	if e.runs == nil {
		return
	}
	if err := e.runs.Create(run); err != nil {
		e.logger.Warn("failed to record run", "title", run.Title, "error", err)
	}
}

func (e *SyncEngine) finishRun(run *models.Run, err error) {
	done := e.now().UTC()
	run.CompletedAt = &done
	if err != nil {
		run.Error = err.Error()
	}
	if e.runs == nil || run.ID == "" {
		return
	}
	if uerr := e.runs.Update(run); uerr != nil {
		e.logger.Warn("failed to record run", "title", run.Title, "error", uerr)
	}
}

// Sync adds the tracks it can match to the job's playlist.
//
// Tracks are processed in order. Search failures are counted against the track and never
// abort the run; playlist write failures and cancellation do.
func (e *SyncEngine) Sync(ctx context.Context, progress chan<- ProgressUpdate, job models.Job, tracks []models.SourceTrack) (*SyncResult, error) {
	if e.finder == nil {
		return nil, fmt.Errorf("%w: search strategy not initialized", shared.ErrServiceUnavailable)
	}

	result := &SyncResult{
		Run: models.Run{Kind: job.Kind, Title: job.Title, Total: len(tracks), StartedAt: e.now().UTC()},
	}
	e.startRun(&result.Run)

	err := e.sync(ctx, progress, job, tracks, result)
	e.finishRun(&result.Run, err)
	return result, err
}

func (e *SyncEngine) sync(ctx context.Context, progress chan<- ProgressUpdate, job models.Job, tracks []models.SourceTrack, result *SyncResult) error {
	name := job.PlaylistName(e.cfg.PlaylistPrefix)
	e.logger.Info("identifying new tracks", "playlist", name, "tracks", len(tracks))

	primary, created, err := e.open(ctx, name)
	if err != nil {
		return err
	}
	result.Playlist, result.Created = primary.playlist, created
	result.Run.PlaylistID = primary.playlist.ID
	sendProgress(progress, preparePlaylistUpdate(primary.playlist, created))

	var daily *dailyTarget
	if job.Kind == models.GenreJob && e.cfg.DailyMode {
		if daily, err = e.openDaily(ctx, job); err != nil {
			return err
		}
	}

	run := &result.Run
	pending := []string{}
	queued := map[string]struct{}{}

	for i, t := range tracks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i > 0 && i%e.cfg.RefreshEvery == 0 {
			e.refreshSession(ctx)
		}

		tr := TrackResult{Track: t}
		switch {
		case !t.Searchable():
			tr.Outcome = Skipped
			run.Unmatched++
		case primary.ledger.Seen(t.HistoryKey()):
			tr.Outcome = Known
			run.Suppressed++
		default:
			res, err := e.find(ctx, t)
			switch {
			case ctx.Err() != nil:
				return ctx.Err()
			case err != nil:
				e.logger.Warn("track failed", "track", t.HistoryKey(), "error", err)
				tr.Outcome, tr.Error = Failed, err
				run.Failed++
			case !res.Found:
				tr.Outcome = Unmatched
				run.Unmatched++
			default:
				run.Matched++
				tr.TrackID = res.ID
				_, dup := queued[res.ID]
				if dup || primary.has(res.ID) {
					tr.Outcome = Duplicate
					run.Suppressed++
				} else {
					tr.Outcome = Added
					pending = append(pending, res.ID)
					queued[res.ID] = struct{}{}
					result.Added = append(result.Added, res.ID)
				}
				if daily != nil {
					daily.offer(res.ID)
				}
			}
		}

		result.Tracks = append(result.Tracks, tr)
		sendProgress(progress, matchTrackUpdate(i+1, len(tracks), t, tr.Outcome))

		if len(pending) >= e.cfg.BatchSize {
			if err := e.write(ctx, progress, primary, pending); err != nil {
				return err
			}
			run.Added += len(pending)
			pending = []string{}
		}
	}

	if len(pending) > 0 {
		if err := e.write(ctx, progress, primary, pending); err != nil {
			return err
		}
		run.Added += len(pending)
	} else if run.Added == 0 {
		e.logger.Info("no new tracks to add", "playlist", name)
	}

	if daily != nil {
		res, err := e.finishDaily(ctx, progress, primary, daily)
		if err != nil {
			return err
		}
		result.Daily = res
	}

	result.Playlist = primary.playlist
	return nil
}

// Backup copies every track of the playlist srcID into the playlist named name.
// Ids already in the destination or in its scoped history are skipped.
func (e *SyncEngine) Backup(ctx context.Context, progress chan<- ProgressUpdate, name, srcID string) (*SyncResult, error) {
	result := &SyncResult{
		Run: models.Run{Kind: models.BackupJob, Title: name, StartedAt: e.now().UTC()},
	}
	e.startRun(&result.Run)

	err := e.backup(ctx, progress, name, srcID, result)
	e.finishRun(&result.Run, err)
	return result, err
}

func (e *SyncEngine) backup(ctx context.Context, progress chan<- ProgressUpdate, name, srcID string, result *SyncResult) error {
	items, err := e.store.ListTracks(ctx, srcID)
	if err != nil {
		return fmt.Errorf("failed to list source playlist %s: %w", srcID, err)
	}

	dst, created, err := e.open(ctx, name)
	if err != nil {
		return err
	}
	result.Playlist, result.Created = dst.playlist, created
	result.Run.PlaylistID = dst.playlist.ID
	result.Run.Total = len(items)
	sendProgress(progress, backupUpdate(srcID, dst.playlist, len(items)))

	queued := map[string]struct{}{}
	pending := []string{}
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i > 0 && i%e.cfg.RefreshEvery == 0 {
			e.refreshSession(ctx)
		}

		_, dup := queued[item.TrackID]
		if dup || dst.has(item.TrackID) {
			result.Run.Suppressed++
			continue
		}
		queued[item.TrackID] = struct{}{}
		pending = append(pending, item.TrackID)
		result.Added = append(result.Added, item.TrackID)
		result.Run.Matched++

		if len(pending) >= e.cfg.BatchSize {
			if err := e.write(ctx, progress, dst, pending); err != nil {
				return err
			}
			result.Run.Added += len(pending)
			pending = []string{}
		}
	}

	if err := e.write(ctx, progress, dst, pending); err != nil {
		return err
	}
	result.Run.Added += len(pending)
	result.Playlist = dst.playlist
	return nil
}

// RefreshHistory merges the items of every playlist owned by owner into the history.
// An empty owner refreshes every listed playlist. It returns the number of new rows.
func (e *SyncEngine) RefreshHistory(ctx context.Context, progress chan<- ProgressUpdate, owner string) (int, error) {
	playlists, err := e.store.Playlists(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list playlists: %w", err)
	}

	owned := playlists[:0:0]
	for _, pl := range playlists {
		if owner == "" || pl.Owner == owner {
			owned = append(owned, pl)
		}
	}

	total := 0
	for i, pl := range owned {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		sendProgress(progress, refreshHistoryUpdate(i+1, len(owned), pl))

		items, err := e.store.ListTracks(ctx, pl.ID)
		if err != nil {
			e.logger.Warn("failed to refresh playlist", "playlist", pl.Name, "error", err)
			continue
		}
		n, err := e.history.Append(models.NewHistoryRecords(pl, items))
		if err != nil {
			return total, fmt.Errorf("failed to update history: %w", err)
		}
		total += n
	}
	return total, nil
}

// Dedup removes duplicate history rows.
func (e *SyncEngine) Dedup() (int, error) {
	return e.history.Dedup()
}

// LastAdded reports when the named playlist last received a track, or the zero time when
// the playlist does not exist yet.
func (e *SyncEngine) LastAdded(ctx context.Context, name string) (time.Time, error) {
	pl, ok, err := e.store.FindPlaylist(ctx, name)
	if err != nil || !ok {
		return time.Time{}, err
	}
	t := &target{playlist: pl}
	if err := e.refresh(ctx, t); err != nil {
		return time.Time{}, err
	}
	return e.history.LastAdded(pl.ID)
}
