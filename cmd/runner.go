package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/beatporter/internal/matching"
	"github.com/desertthunder/beatporter/internal/repositories"
	"github.com/desertthunder/beatporter/internal/services"
	"github.com/desertthunder/beatporter/internal/shared"
	"github.com/desertthunder/beatporter/internal/tasks"
	"github.com/go-redis/redis/v8"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Collaborators that are not injected are built from the config on first use.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
	now        func() time.Time

	db      *sql.DB
	spotify services.Spotify
	catalog services.CatalogSource
	cache   *redis.Client
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	Now        func() time.Time

	DB      *sql.DB
	Spotify services.Spotify
	Catalog services.CatalogSource
	Cache   *redis.Client
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		now:        opts.Now,
		db:         opts.DB,
		spotify:    opts.Spotify,
		catalog:    opts.Catalog,
		cache:      opts.Cache,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, syncCommand, backupCommand, searchCommand, historyCommand, runsCommand, cacheCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// before loads the config named by --config and applies .env overrides and --verbose.
func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}
	if err := shared.LoadEnv(cmd.String("env")); err != nil {
		r.logger.Warn("failed to load env file", "error", err)
	}

	r.configPath = cmd.String("config")
	if _, err := os.Stat(r.configPath); err == nil {
		config, err := shared.LoadConfig(r.configPath)
		if err != nil {
			return ctx, err
		}
		r.config = config
	} else {
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
	}
	r.config.ApplyEnv()
	return ctx, nil
}

// Close releases the database and cache connections.
func (r *Runner) Close() {
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			r.logger.Warn("failed to close database", "error", err)
		}
	}
	if r.cache != nil {
		_ = r.cache.Close()
	}
}

func (r *Runner) database() (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, err
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	r.db = db
	return db, nil
}

func (r *Runner) streaming(ctx context.Context) (services.Spotify, error) {
	if r.spotify != nil {
		return r.spotify, nil
	}

	svc, err := services.NewSpotifyService(ctx, services.SpotifyOpts{
		Credentials: r.config.Credentials.Spotify,
		RateLimit:   r.config.Matching.RateLimit,
		SearchLimit: r.config.Matching.SearchLimit,
		Logger:      shared.WithLogger(r.logger, "service", "spotify"),
		OnToken:     r.saveTokens,
	})
	if err != nil {
		return nil, err
	}
	r.spotify = svc
	return svc, nil
}

func (r *Runner) beatport() services.CatalogSource {
	if r.catalog == nil {
		r.catalog = services.NewBeatportService(services.BeatportOpts{
			RateLimit: r.config.Matching.RateLimit,
			Logger:    shared.WithLogger(r.logger, "service", "beatport"),
		})
	}
	return r.catalog
}

func (r *Runner) cacheClient() *redis.Client {
	if r.cache == nil {
		r.cache = services.NewRedisClient(r.config.Cache)
	}
	return r.cache
}

// strategy builds the search strategy over the (optionally cached) streaming service.
func (r *Runner) strategy(ctx context.Context, trace func(matching.Query, matching.Decision)) (*matching.Strategy, error) {
	sp, err := r.streaming(ctx)
	if err != nil {
		return nil, err
	}

	metric, err := matching.NewMetric(r.config.Matching.Metric)
	if err != nil {
		return nil, err
	}

	search := services.NewCachedSearch(sp, r.cacheClient(), r.config.Cache.TTLDuration(), r.logger)
	return matching.NewStrategy(matching.StrategyOpts{
		Searcher: search,
		Selector: matching.NewSelector(matching.NewScorer(metric)),
		Logger:   shared.WithLogger(r.logger, "component", "search"),
		Parse:    r.config.Matching.ParseTrack,
		Silent:   r.config.Matching.SilentSearch,
		Trace:    trace,
	}), nil
}

// engine wires the sync engine to the streaming service, the strategy and the history.
func (r *Runner) engine(ctx context.Context) (*tasks.SyncEngine, error) {
	sp, err := r.streaming(ctx)
	if err != nil {
		return nil, err
	}
	strategy, err := r.strategy(ctx, nil)
	if err != nil {
		return nil, err
	}
	db, err := r.database()
	if err != nil {
		return nil, err
	}

	return tasks.NewSyncEngine(tasks.EngineOpts{
		Store:   sp,
		Session: sp,
		Finder:  strategy,
		History: repositories.NewHistoryRepository(db),
		Runs:    repositories.NewRunRepository(db),
		Config:  r.config.Sync,
		Logger:  shared.WithLogger(r.logger, "component", "sync"),
		Now:     r.now,
	})
}

// saveTokens stores token in the config and writes it back to the config file, when there is one.
func (r *Runner) saveTokens(token *oauth2.Token) error {
	if r.config == nil {
		return fmt.Errorf("%w: config is nil", shared.ErrMissingConfig)
	}
	if err := r.config.Credentials.Spotify.Update(token); err != nil {
		return fmt.Errorf("failed to update spotify configuration: %w", err)
	}
	if r.configPath == "" {
		return nil
	}
	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	r.logger.Debug("saved spotify token", "path", r.configPath)
	return nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
