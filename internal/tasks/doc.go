// Package tasks reconciles Beatport listings against Spotify playlists with real-time progress reporting.
//
// # Core Operations
//
// [SyncEngine] exposes four operations:
//
//  1. [SyncEngine.Sync] : add the matchable tracks of one catalog listing to its playlist
//     - gets or creates the playlist and merges its items into the history
//     - skips tracks whose "artist - name - mix" key is already known, without searching
//     - resolves the rest through the search strategy, one track at a time
//     - drops ids already in the playlist, the scoped history, or the current batch
//     - writes batches of 99, refreshing history and the "Updated on" stamp after each
//
//  2. [SyncEngine.Backup] : copy a playlist into another, skipping known ids
//
//  3. [SyncEngine.RefreshHistory] : merge every owned playlist into the history
//
//  4. [SyncEngine.RunJobs] : fetch and sync a list of configured jobs, isolating failures
//
// # Digging Mode
//
// The digging mode scopes the history used for suppression: none uses only the playlist's
// current tracks, playlist adds the playlist's own history, all adds every playlist's.
//
// # Daily Playlist
//
// Genre jobs in daily mode also fill a "Daily Top" playlist with the first daily_n_track
// resolved ids, topping it up from the main playlist freshest first.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data.
// Updates use select with default to prevent blocking.
package tasks
