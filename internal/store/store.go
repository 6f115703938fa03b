// Package store provides progress persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/kodlidy/quest-server/internal/domain"
)

// Repository persists one progress record per anonymous player.
type Repository interface {
	// GetProgress retrieves the progress record for a player. It returns
	// (nil, nil) when no record exists or the stored document cannot be
	// parsed — both cases read back as empty progress.
	GetProgress(ctx context.Context, playerID string) (*domain.Progress, error)

	// SaveProgress creates or replaces the player's progress record.
	SaveProgress(ctx context.Context, playerID string, p *domain.Progress) error

	// DeleteProgress removes the player's progress record. Deleting a
	// missing record is not an error.
	DeleteProgress(ctx context.Context, playerID string) error

	// CleanupStaleProgress removes records not updated within ttl and
	// returns how many were deleted.
	CleanupStaleProgress(ctx context.Context, ttl time.Duration) (int64, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
