package session

import (
	"context"
	"log/slog"
	"time"
)

const sweepInterval = time.Minute

// UserCleaner removes long-inactive device users from persistent storage.
type UserCleaner interface {
	CleanupInactiveUsers(ctx context.Context, ttl time.Duration) (int64, error)
}

// SweeperConfig configures StartSweeper.
type SweeperConfig struct {
	IdleTTL  time.Duration
	Interval time.Duration // zero uses one minute
	// Users and UserTTL enable pruning of stored device profiles.
	Users   UserCleaner
	UserTTL time.Duration
}

// StartSweeper runs a background goroutine that periodically evicts idle
// instances. The returned channel is closed once the goroutine exits.
func StartSweeper(ctx context.Context, mgr *Manager, cfg SweeperConfig) <-chan struct{} {
	interval := cfg.Interval
	if interval <= 0 {
		interval = sweepInterval
	}

	done := make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		slog.Info("Session sweeper started", "interval", interval, "idle_ttl", cfg.IdleTTL)

		for {
			select {
			case <-ticker.C:
				sweep(ctx, mgr, cfg)
			case <-ctx.Done():
				slog.Info("Session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
	return done
}

func sweep(ctx context.Context, mgr *Manager, cfg SweeperConfig) {
	if evicted := mgr.Sweep(cfg.IdleTTL); len(evicted) > 0 {
		slog.Info("Session sweeper evicted idle instances", "count", len(evicted))
	}

	if cfg.Users == nil || cfg.UserTTL <= 0 {
		return
	}
	deleted, err := cfg.Users.CleanupInactiveUsers(ctx, cfg.UserTTL)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Error("Session sweeper failed to clean up inactive users", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("Session sweeper removed inactive users", "count", deleted)
	}
}
