package store

import (
	"context"
	"errors"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// CheckStore is the persistence port for checks. UpdateFields writes only
// the named columns; IncrementPingCount must be atomic (no read-modify-write
// on a cached value) and returns the post-increment counter.
type CheckStore interface {
	CheckByID(ctx context.Context, id uint) (*models.Check, error)
	CheckByCode(ctx context.Context, code string) (*models.Check, error)
	CreateCheck(ctx context.Context, check *models.Check) error
	UpdateCheckFields(ctx context.Context, id uint, fields map[string]any) error
	IncrementPingCount(ctx context.Context, id uint) (int, error)
	// ChecksDue returns checks whose alert_after deadline has passed and
	// whose stored status is still "up".
	ChecksDue(ctx context.Context, now time.Time) ([]*models.Check, error)
}

type PingStore interface {
	CreatePing(ctx context.Context, ping *models.Ping) error
	DeletePingsUpTo(ctx context.Context, checkID uint, n int) error
	// OldestPing returns the surviving ping with the lowest id, or
	// ErrNotFound when the check has none.
	OldestPing(ctx context.Context, checkID uint) (*models.Ping, error)
}

type FlipStore interface {
	CreateFlip(ctx context.Context, flip *models.Flip) error
	UnprocessedFlips(ctx context.Context, limit int) ([]*models.Flip, error)
	// ClaimFlip sets processed, but only if it is still null. It reports
	// whether this caller won the claim.
	ClaimFlip(ctx context.Context, id uint, at time.Time) (bool, error)
}

type ChannelStore interface {
	ChannelsForCheck(ctx context.Context, checkID uint) ([]*models.Channel, error)
	AssignChannel(ctx context.Context, checkID, channelID uint) error
	CreateChannel(ctx context.Context, ch *models.Channel) error
	UpdateChannelFields(ctx context.Context, id uint, fields map[string]any) error
}

type NotificationStore interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	UpdateNotificationFields(ctx context.Context, id uint, fields map[string]any) error
	DeleteNotificationsBefore(ctx context.Context, checkID uint, t time.Time) error
}

type BucketStore interface {
	// GetOrCreateBucket returns the bucket for the key, creating it with a
	// full token on first use. The second result reports creation.
	GetOrCreateBucket(ctx context.Context, key string) (*models.TokenBucket, bool, error)
	SaveBucket(ctx context.Context, bucket *models.TokenBucket) error
	DeleteBucketsBefore(ctx context.Context, t time.Time) (int64, error)
}

// Store aggregates all persistence ports. Swap in any DB adapter.
type Store interface {
	CheckStore
	PingStore
	FlipStore
	ChannelStore
	NotificationStore
	BucketStore
}
