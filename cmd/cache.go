package main

import (
	"context"

	"github.com/desertthunder/beatporter/internal/services"
	"github.com/urfave/cli/v3"
)

// CacheFlush deletes every cached search from redis.
func (r *Runner) CacheFlush(ctx context.Context, cmd *cli.Command) error {
	removed, err := services.FlushCache(ctx, r.cacheClient())
	if err != nil {
		return err
	}

	r.logger.Info("search cache flushed", "keys", removed)
	return r.writePlain("✓ Removed %d cached searches\n", removed)
}
