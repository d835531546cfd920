package port

import "context"

type IdempotencyStore interface {
	// SetIdempotency claims a key for a short lease, returns false if already held
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ConfirmIdempotency keeps the key for the full retention once the event is committed
	ConfirmIdempotency(ctx context.Context, key string) error

	// ReleaseIdempotency removes the key so that a failed event can be retried
	ReleaseIdempotency(ctx context.Context, key string) error
}
