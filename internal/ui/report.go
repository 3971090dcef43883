package ui

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/desertthunder/beatporter/internal/models"
	"github.com/desertthunder/beatporter/internal/tasks"
)

const (
	markOK   = "✓"
	markWarn = "⚠"
	markFail = "✗"
)

// Progress prints updates until the channel is closed.
func Progress(w io.Writer, updates <-chan tasks.ProgressUpdate, verbose bool) {
	for u := range updates {
		if line, ok := ProgressLine(u, verbose); ok {
			fmt.Fprintln(w, line)
		}
	}
}

// ProgressLine renders one update. Known and duplicate tracks are only shown when verbose.
func ProgressLine(u tasks.ProgressUpdate, verbose bool) (string, bool) {
	switch u.Phase {
	case tasks.MatchTracks:
		outcome, _ := u.Data.(tasks.Outcome)
		if !verbose && (outcome == tasks.Known || outcome == tasks.Duplicate) {
			return "", false
		}
		return styles.Outcome(outcome).Render(u.Message), true
	case tasks.FetchCatalog:
		return styles.title.Render(u.Message), true
	case tasks.WriteBatch, tasks.UpdateDaily:
		return styles.ok.Render("→ " + u.Message), true
	default:
		return u.Message, true
	}
}

// Summary renders the counts of one sync or backup along with the tracks that did not match.
func Summary(res *tasks.SyncResult) string {
	var b strings.Builder
	run := res.Run

	mark, style := markOK, styles.ok
	switch {
	case run.Error != "":
		mark, style = markFail, styles.err
	case run.Unmatched+run.Failed > 0:
		mark, style = markWarn, styles.warn
	}

	name := res.Playlist.Name
	if name == "" {
		name = run.Title
	}
	fmt.Fprintf(&b, "%s %s\n", style.Render(mark), styles.title.Render(name))
	if run.Kind == models.BackupJob {
		fmt.Fprintf(&b, "  %d added, %d already present\n", run.Added, run.Suppressed)
	} else {
		fmt.Fprintf(&b, "  %d added | %d/%d matched (%.1f%%) | %d known | %d not found | %d failed\n",
			run.Added, run.Matched, run.Total, run.MatchRate(), run.Suppressed, run.Unmatched, run.Failed)
	}

	if res.Daily != nil {
		fmt.Fprintf(&b, "  %s %d added", res.Daily.Playlist.Name, len(res.Daily.Added))
		if res.Daily.ToppedUp > 0 {
			fmt.Fprintf(&b, " (%d from the main playlist)", res.Daily.ToppedUp)
		}
		b.WriteString("\n")
	}

	var missing []string
	for _, tr := range res.Tracks {
		if tr.Outcome == tasks.Unmatched || tr.Outcome == tasks.Failed {
			missing = append(missing, fmt.Sprintf("    • %s - %s", tr.Track.PrimaryArtist(), tr.Track.NameMix()))
		}
	}
	if len(missing) > 0 {
		b.WriteString(styles.warn.Render("  Not found on Spotify:") + "\n")
		b.WriteString(strings.Join(missing, "\n") + "\n")
	}
	if run.Error != "" {
		b.WriteString(styles.err.Render("  "+run.Error) + "\n")
	}
	return b.String()
}

// Runs renders recorded runs as a table, newest first as given.
func Runs(runs []models.Run) string {
	if len(runs) == 0 {
		return styles.muted.Render("No runs recorded") + "\n"
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		status := markOK
		if r.Error != "" {
			status = markFail
		} else if r.CompletedAt == nil {
			status = "…"
		}
		rows = append(rows, []string{
			strconv.Itoa(r.Sequence),
			string(r.Kind),
			r.Title,
			strconv.Itoa(r.Added),
			fmt.Sprintf("%d/%d", r.Matched, r.Total),
			r.StartedAt.Local().Format(time.DateTime),
			status,
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(styles.muted).
		Headers("#", "KIND", "TITLE", "ADDED", "MATCHED", "STARTED", "").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styles.title.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	return t.Render() + "\n"
}
