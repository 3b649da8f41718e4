// Package postgres is the GORM-backed Store adapter.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/pulsewatch/pulsewatch/internal/models"
	"github.com/pulsewatch/pulsewatch/internal/store"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

var _ store.Store = (*Store)(nil)

func (s *Store) CheckByID(ctx context.Context, id uint) (*models.Check, error) {
	var check models.Check
	err := s.db.WithContext(ctx).First(&check, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("check by id: %w", err)
	}
	return &check, nil
}

func (s *Store) CheckByCode(ctx context.Context, code string) (*models.Check, error) {
	var check models.Check
	err := s.db.WithContext(ctx).Where("code = ?", code).First(&check).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("check by code: %w", err)
	}
	return &check, nil
}

func (s *Store) CreateCheck(ctx context.Context, check *models.Check) error {
	return s.db.WithContext(ctx).Create(check).Error
}

func (s *Store) UpdateCheckFields(ctx context.Context, id uint, fields map[string]any) error {
	return s.db.WithContext(ctx).Model(&models.Check{}).Where("id = ?", id).Updates(fields).Error
}

func (s *Store) IncrementPingCount(ctx context.Context, id uint) (int, error) {
	var n int
	err := s.db.WithContext(ctx).
		Raw("UPDATE checks SET n_pings = n_pings + 1 WHERE id = ? RETURNING n_pings", id).
		Scan(&n).Error
	if err != nil {
		return 0, fmt.Errorf("increment ping count: %w", err)
	}
	return n, nil
}

func (s *Store) ChecksDue(ctx context.Context, now time.Time) ([]*models.Check, error) {
	var checks []*models.Check
	err := s.db.WithContext(ctx).
		Where("status = ? AND alert_after IS NOT NULL AND alert_after <= ?", models.StatusUp, now).
		Order("alert_after").
		Find(&checks).Error
	if err != nil {
		return nil, fmt.Errorf("checks due: %w", err)
	}
	return checks, nil
}

func (s *Store) CreatePing(ctx context.Context, ping *models.Ping) error {
	return s.db.WithContext(ctx).Create(ping).Error
}

func (s *Store) DeletePingsUpTo(ctx context.Context, checkID uint, n int) error {
	return s.db.WithContext(ctx).
		Where("owner_id = ? AND n <= ?", checkID, n).
		Delete(&models.Ping{}).Error
}

func (s *Store) OldestPing(ctx context.Context, checkID uint) (*models.Ping, error) {
	var ping models.Ping
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", checkID).
		Order("id").
		First(&ping).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("oldest ping: %w", err)
	}
	return &ping, nil
}

func (s *Store) CreateFlip(ctx context.Context, flip *models.Flip) error {
	return s.db.WithContext(ctx).Create(flip).Error
}

func (s *Store) UnprocessedFlips(ctx context.Context, limit int) ([]*models.Flip, error) {
	var flips []*models.Flip
	err := s.db.WithContext(ctx).
		Where("processed IS NULL").
		Order("id").
		Limit(limit).
		Find(&flips).Error
	if err != nil {
		return nil, fmt.Errorf("unprocessed flips: %w", err)
	}
	return flips, nil
}

func (s *Store) ClaimFlip(ctx context.Context, id uint, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Flip{}).
		Where("id = ? AND processed IS NULL", id).
		Update("processed", at)
	if res.Error != nil {
		return false, fmt.Errorf("claim flip: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) ChannelsForCheck(ctx context.Context, checkID uint) ([]*models.Channel, error) {
	var channels []*models.Channel
	err := s.db.WithContext(ctx).
		Joins("INNER JOIN check_channels cc ON cc.channel_id = channels.id").
		Where("cc.check_id = ?", checkID).
		Find(&channels).Error
	if err != nil {
		return nil, fmt.Errorf("channels for check: %w", err)
	}
	return channels, nil
}

func (s *Store) AssignChannel(ctx context.Context, checkID, channelID uint) error {
	return s.db.WithContext(ctx).
		Exec("INSERT INTO check_channels (check_id, channel_id) VALUES (?, ?) ON CONFLICT DO NOTHING", checkID, channelID).
		Error
}

func (s *Store) CreateChannel(ctx context.Context, ch *models.Channel) error {
	return s.db.WithContext(ctx).Create(ch).Error
}

func (s *Store) UpdateChannelFields(ctx context.Context, id uint, fields map[string]any) error {
	return s.db.WithContext(ctx).Model(&models.Channel{}).Where("id = ?", id).Updates(fields).Error
}

func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) error {
	return s.db.WithContext(ctx).Create(n).Error
}

func (s *Store) UpdateNotificationFields(ctx context.Context, id uint, fields map[string]any) error {
	return s.db.WithContext(ctx).Model(&models.Notification{}).Where("id = ?", id).Updates(fields).Error
}

func (s *Store) DeleteNotificationsBefore(ctx context.Context, checkID uint, t time.Time) error {
	return s.db.WithContext(ctx).
		Where("owner_id = ? AND created < ?", checkID, t).
		Delete(&models.Notification{}).Error
}

func (s *Store) GetOrCreateBucket(ctx context.Context, key string) (*models.TokenBucket, bool, error) {
	var bucket models.TokenBucket
	err := s.db.WithContext(ctx).Where("value = ?", key).First(&bucket).Error
	if err == nil {
		return &bucket, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("get bucket: %w", err)
	}

	bucket = models.TokenBucket{Value: key, Tokens: 1.0, Updated: time.Now().UTC()}
	err = s.db.WithContext(ctx).
		Exec("INSERT INTO token_buckets (value, tokens, updated) VALUES (?, ?, ?) ON CONFLICT (value) DO NOTHING",
			bucket.Value, bucket.Tokens, bucket.Updated).
		Error
	if err != nil {
		return nil, false, fmt.Errorf("create bucket: %w", err)
	}

	// Re-read to pick up the id (or the row a concurrent caller inserted).
	if err := s.db.WithContext(ctx).Where("value = ?", key).First(&bucket).Error; err != nil {
		return nil, false, fmt.Errorf("reload bucket: %w", err)
	}
	return &bucket, true, nil
}

func (s *Store) SaveBucket(ctx context.Context, bucket *models.TokenBucket) error {
	return s.db.WithContext(ctx).Model(&models.TokenBucket{}).
		Where("id = ?", bucket.ID).
		Updates(map[string]any{"tokens": bucket.Tokens, "updated": bucket.Updated}).Error
}

func (s *Store) DeleteBucketsBefore(ctx context.Context, t time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("updated < ?", t).Delete(&models.TokenBucket{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete buckets: %w", res.Error)
	}
	return res.RowsAffected, nil
}
