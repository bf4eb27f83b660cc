package presence

import (
	"context"

	"github.com/google/uuid"
)

// Store is the connection registry: user -> set of live connection IDs.
// It is mutated only by the gateway. Queries are approximate; a connection
// drop without a clean close is observed only once the socket's read
// deadline fires.
type Store interface {
	// Connect registers a connection for a user. Re-registering the same
	// connection is a no-op.
	Connect(ctx context.Context, userID uuid.UUID, connID string) error
	// Disconnect removes a connection and reports whether the user's set
	// became empty, i.e. the user went offline.
	Disconnect(ctx context.Context, userID uuid.UUID, connID string) (offline bool, err error)
	IsOnline(ctx context.Context, userID uuid.UUID) (bool, error)
	// OnlineCount returns the number of users with at least one connection.
	OnlineCount(ctx context.Context) (int64, error)
	// Touch refreshes liveness for a user's registrations. A no-op for
	// in-process stores; shared stores use it to keep TTLs from expiring
	// entries of healthy connections.
	Touch(ctx context.Context, userID uuid.UUID) error
}
