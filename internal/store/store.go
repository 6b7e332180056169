// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/growthdesk/internal/domain"
)

// Repository defines the interface for persisting device identities and
// business profiles.
type Repository interface {
	// GetUser retrieves a user by their user ID. A missing user is (nil, nil).
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates or updates a user record.
	UpsertUser(ctx context.Context, user *domain.User) error

	// UpdateLastSeen updates the last_seen_at timestamp for a user.
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error

	// GetProfile returns the stored profile entries for a user.
	GetProfile(ctx context.Context, userID string) (map[string]string, error)

	// PutProfile writes profile entries for a user. Keys not in values are
	// left untouched.
	PutProfile(ctx context.Context, userID string, values map[string]string) error

	// DeleteProfile removes every profile entry for a user.
	DeleteProfile(ctx context.Context, userID string) error

	// CleanupInactiveUsers removes users, and their profiles, idle longer than ttl.
	CleanupInactiveUsers(ctx context.Context, ttl time.Duration) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
