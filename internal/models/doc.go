// Package models defines the value types shared by the matcher, the ledger and the sync driver.
//
// 1. Catalog values, produced by a catalog source and consumed by the matcher:
//   - [SourceTrack] : a Beatport listing with name, mix, artists, release and label
//   - [Job] : one genre chart, curated chart or label to sync
//
// 2. Streaming service values:
//   - [Candidate] : one search result from the remote catalog
//   - [Playlist] and [PlaylistItem] : playlist metadata and its current tracks
//
// 3. Persisted values:
//   - [HistoryRecord] : append-only row of a track placed in a playlist
//   - [Run] : summary of one sync run
//
// SourceTrack is passed and returned by value. Its slices are shared until [SourceTrack.Clone]
// is called, so transforms that rewrite artists must clone first.
package models
