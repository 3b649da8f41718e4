package archive

import "context"

// Store is the object-storage capability the core calls through.
type Store interface {
	// Get returns an archived ping body, or (nil, nil) when absent.
	Get(ctx context.Context, code string, n int) ([]byte, error)
	// Put uploads a ping body. Implementations retry retryable storage
	// errors until success or a non-retryable error.
	Put(ctx context.Context, code string, n int, data []byte) error
	// RemoveUpTo deletes every archived body of the check with a sequence
	// number <= uptoN. Individual deletion failures are logged, not
	// escalated.
	RemoveUpTo(ctx context.Context, code string, uptoN int) error
}
