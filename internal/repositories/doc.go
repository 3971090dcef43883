// Package repositories implements SQLite persistence for the reconciliation history and run summaries.
//
//   - [HistoryRepository] : append-only record of every track placed in a playlist
//   - [RunRepository] : one summary row per sync run
//   - [Ledger] : read-only snapshot of the history, scoped by digging mode
//
// History rows are never updated. Two rows are duplicates when all five columns are equal, and
// the UNIQUE index over those columns makes appends idempotent.
package repositories
