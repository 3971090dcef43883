// submodule cmd contains command definitions
package main

import (
	"github.com/desertthunder/beatporter/internal/models"
	"github.com/urfave/cli/v3"
)

// rootFlags are read by [Runner.before] for every command.
func rootFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   "config.toml",
		},
		&cli.StringFlag{
			Name:  "env",
			Usage: "Path to a dotenv file with credential overrides",
			Value: ".env",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable debug logging",
		},
	}
}

// setupCommand creates the config file and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create config.toml from the template and run database migrations",
		Action: r.Setup,
	}
}

// authCommand runs the Spotify authorization code flow.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with Spotify using OAuth2",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "no-browser",
				Usage: "Print the authorization URL instead of opening a browser",
			},
		},
		Action: r.Auth,
	}
}

func onlyFlag() cli.Flag {
	return &cli.StringSliceFlag{
		Name:  "only",
		Usage: "Run only the jobs with these titles",
	}
}

// syncCommand runs the configured genre, chart and label jobs.
func syncCommand(r *Runner) *cli.Command {
	sub := func(name, usage string, kinds ...models.JobKind) *cli.Command {
		return &cli.Command{
			Name:   name,
			Usage:  usage,
			Flags:  []cli.Flag{onlyFlag()},
			Action: r.Sync(kinds...),
		}
	}

	return &cli.Command{
		Name:  "sync",
		Usage: "Add Beatport listings to Spotify playlists",
		Commands: []*cli.Command{
			sub("genres", "Sync the [genres] top 100 lists", models.GenreJob),
			sub("charts", "Sync the [charts] tables", models.ChartJob),
			sub("labels", "Sync the [labels] catalogs", models.LabelJob),
			sub("all", "Sync genres, charts and labels", models.GenreJob, models.ChartJob, models.LabelJob),
		},
	}
}

// backupCommand copies the [backups] playlists.
func backupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "backup",
		Usage:  "Copy the [backups] playlists into their backup playlists",
		Flags:  []cli.Flag{onlyFlag()},
		Action: r.Sync(models.BackupJob),
	}
}

// searchCommand runs the matching strategy for one track.
func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Search Spotify for a single Beatport track and explain the decision",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Usage: "Track name", Required: true},
			&cli.StringFlag{Name: "mix", Usage: "Mix name, e.g. Original Mix"},
			&cli.StringSliceFlag{Name: "artist", Usage: "Artist (repeatable, first is primary)", Required: true},
			&cli.StringSliceFlag{Name: "remixer", Usage: "Remixer (repeatable)"},
			&cli.StringFlag{Name: "release", Usage: "Release name"},
			&cli.StringFlag{Name: "label", Usage: "Label name"},
			&cli.DurationFlag{Name: "duration", Usage: "Track length, e.g. 6m20s"},
			&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
		},
		Action: r.Search,
	}
}

// historyCommand manages the local playlist history.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Manage the playlist history",
		Commands: []*cli.Command{
			{
				Name:  "refresh",
				Usage: "Merge the tracks of every owned playlist into the history",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "owner",
						Usage: "Only playlists owned by this user id (default: the authenticated user)",
					},
				},
				Action: r.HistoryRefresh,
			},
			{
				Name:   "dedup",
				Usage:  "Drop history rows that differ only by playlist or artist name",
				Action: r.HistoryDedup,
			},
			{
				Name:  "export",
				Usage: "Export the history",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "json, csv, md or txt",
						Value:   "csv",
					},
					&cli.StringFlag{
						Name:  "playlist",
						Usage: "Only this playlist id",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path (default: history.<format>)",
					},
				},
				Action: r.HistoryExport,
			},
		},
	}
}

// runsCommand lists recorded sync runs.
func runsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "List recorded sync runs",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "kind", Usage: "genre, chart, label or backup"},
			&cli.IntFlag{Name: "limit", Usage: "Maximum number of runs", Value: 20},
			&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
		},
		Action: r.Runs,
	}
}

// cacheCommand manages the redis search cache.
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Manage the search cache",
		Commands: []*cli.Command{
			{
				Name:   "flush",
				Usage:  "Delete every cached search",
				Action: r.CacheFlush,
			},
		},
	}
}
