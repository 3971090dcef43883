// Package ui renders sync progress and results for the terminal with lipgloss styles.
//
// [Progress] drains a [tasks.ProgressUpdate] channel, coloring track lines by outcome.
// [Summary] prints the counts of one run and the tracks Spotify had no match for, and
// [Runs] lays recorded runs out as a table.
package ui
