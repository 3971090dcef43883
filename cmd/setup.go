package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/beatporter/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file when missing and runs the database migrations.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	if r.configPath != "" {
		if _, err := os.Stat(r.configPath); err != nil {
			r.logger.Info("config file not found, creating from template", "path", r.configPath)
			if err := shared.CreateConfigFile(r.configPath); err != nil {
				return err
			}
			config, err := shared.LoadConfig(r.configPath)
			if err != nil {
				return err
			}
			config.ApplyEnv()
			r.config = config
			r.writePlain("✓ Config created at %s\n", r.configPath)
		}
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)
	db, err := r.database()
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}

	versions, err := shared.AppliedVersions(db)
	if err != nil {
		return err
	}
	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)

	r.writePlain("✓ Database ready at %s (%d migrations applied)\n", r.config.Database.Path, len(versions))
	if err := r.config.Validate(); err != nil {
		r.writePlain("⚠ %v\n", err)
		r.writePlain("Fill in credentials.spotify in %s, then run: beatporter auth\n", r.configPath)
	}
	return nil
}
