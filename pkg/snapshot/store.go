package snapshot

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned for operations on a closed store.
var ErrClosed = errors.New("snapshot: store closed")

// Store persists snapshots. Implementations must be safe for concurrent
// use; the server saves from per-session goroutines.
type Store interface {
	// Save persists the snapshot, overwriting any previous one for the
	// same session. The snapshot expires at expiresAt.
	Save(ctx context.Context, snap *Snapshot, expiresAt time.Time) error

	// Load retrieves a snapshot by session ID. Returns (nil, nil) when the
	// snapshot does not exist or has expired.
	Load(ctx context.Context, sessionID string) (*Snapshot, error)

	// Delete removes a snapshot. Deleting a missing snapshot is not an
	// error.
	Delete(ctx context.Context, sessionID string) error

	// Touch extends the expiration without rewriting the snapshot data.
	// Touching a missing snapshot is not an error.
	Touch(ctx context.Context, sessionID string, expiresAt time.Time) error

	// Close releases the store's resources.
	Close() error
}
