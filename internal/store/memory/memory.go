// Package memory is an in-memory Store adapter. It backs unit tests and
// small single-process deployments; the postgres adapter is the production
// one.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pulsewatch/pulsewatch/internal/models"
	"github.com/pulsewatch/pulsewatch/internal/store"
)

type Store struct {
	mu            sync.RWMutex
	checks        map[uint]*models.Check
	pings         []*models.Ping
	flips         map[uint]*models.Flip
	channels      map[uint]*models.Channel
	assignments   map[uint][]uint // check id -> channel ids
	notifications map[uint]*models.Notification
	buckets       map[string]*models.TokenBucket

	nextCheck, nextFlip, nextChannel, nextNotification, nextBucket uint
	nextPing                                                       uint64
}

func New() *Store {
	return &Store{
		checks:        make(map[uint]*models.Check),
		flips:         make(map[uint]*models.Flip),
		channels:      make(map[uint]*models.Channel),
		assignments:   make(map[uint][]uint),
		notifications: make(map[uint]*models.Notification),
		buckets:       make(map[string]*models.TokenBucket),
	}
}

var _ store.Store = (*Store)(nil)

func (m *Store) CheckByID(ctx context.Context, id uint) (*models.Check, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.checks[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *Store) CheckByCode(ctx context.Context, code string) (*models.Check, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.checks {
		if c.Code == code {
			cp := *c
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *Store) CreateCheck(ctx context.Context, check *models.Check) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextCheck++
	check.ID = m.nextCheck
	if check.Code == "" {
		check.Code = uuid.NewString()
	}
	if check.Status == "" {
		check.Status = models.StatusNew
	}
	if check.Kind == "" {
		check.Kind = models.KindSimple
	}
	if check.CreatedAt.IsZero() {
		check.CreatedAt = time.Now().UTC()
	}
	cp := *check
	m.checks[check.ID] = &cp
	return nil
}

func (m *Store) UpdateCheckFields(ctx context.Context, id uint, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.checks[id]
	if !ok {
		return store.ErrNotFound
	}
	for col, v := range fields {
		switch col {
		case "status":
			c.Status = v.(string)
		case "last_ping":
			c.LastPing = timePtr(v)
		case "last_start":
			c.LastStart = timePtr(v)
		case "last_duration":
			c.LastDuration = durationPtr(v)
		case "alert_after":
			c.AlertAfter = timePtr(v)
		case "n_pings":
			c.NPings = v.(int)
		case "manual_resume":
			c.ManualResume = v.(bool)
		}
	}
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Store) IncrementPingCount(ctx context.Context, id uint) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.checks[id]
	if !ok {
		return 0, store.ErrNotFound
	}
	c.NPings++
	return c.NPings, nil
}

func (m *Store) ChecksDue(ctx context.Context, now time.Time) ([]*models.Check, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Check
	for _, c := range m.checks {
		if c.Status == models.StatusUp && c.AlertAfter != nil && !c.AlertAfter.After(now) {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Store) CreatePing(ctx context.Context, ping *models.Ping) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextPing++
	ping.ID = m.nextPing
	cp := *ping
	m.pings = append(m.pings, &cp)
	return nil
}

func (m *Store) DeletePingsUpTo(ctx context.Context, checkID uint, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.pings[:0]
	for _, p := range m.pings {
		if p.OwnerID == checkID && p.N <= n {
			continue
		}
		kept = append(kept, p)
	}
	m.pings = kept
	return nil
}

func (m *Store) OldestPing(ctx context.Context, checkID uint) (*models.Ping, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var oldest *models.Ping
	for _, p := range m.pings {
		if p.OwnerID != checkID {
			continue
		}
		if oldest == nil || p.ID < oldest.ID {
			oldest = p
		}
	}
	if oldest == nil {
		return nil, store.ErrNotFound
	}
	cp := *oldest
	return &cp, nil
}

// Pings returns all pings for a check ordered by n. Test helper.
func (m *Store) Pings(checkID uint) []*models.Ping {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Ping
	for _, p := range m.pings {
		if p.OwnerID == checkID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].N < out[j].N })
	return out
}

func (m *Store) CreateFlip(ctx context.Context, flip *models.Flip) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextFlip++
	flip.ID = m.nextFlip
	cp := *flip
	m.flips[flip.ID] = &cp
	return nil
}

func (m *Store) UnprocessedFlips(ctx context.Context, limit int) ([]*models.Flip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Flip
	for _, f := range m.flips {
		if f.Processed == nil {
			cp := *f
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Store) ClaimFlip(ctx context.Context, id uint, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.flips[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if f.Processed != nil {
		return false, nil
	}
	f.Processed = &at
	return true, nil
}

func (m *Store) ChannelsForCheck(ctx context.Context, checkID uint) ([]*models.Channel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Channel
	for _, chID := range m.assignments[checkID] {
		if ch, ok := m.channels[chID]; ok {
			cp := *ch
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *Store) AssignChannel(ctx context.Context, checkID, channelID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignments[checkID] = append(m.assignments[checkID], channelID)
	return nil
}

func (m *Store) CreateChannel(ctx context.Context, ch *models.Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextChannel++
	ch.ID = m.nextChannel
	if ch.Code == "" {
		ch.Code = uuid.NewString()
	}
	cp := *ch
	m.channels[ch.ID] = &cp
	return nil
}

func (m *Store) UpdateChannelFields(ctx context.Context, id uint, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[id]
	if !ok {
		return store.ErrNotFound
	}
	for col, v := range fields {
		switch col {
		case "disabled":
			ch.Disabled = v.(bool)
		case "last_notify":
			ch.LastNotify = timePtr(v)
		case "last_error":
			ch.LastError = v.(string)
		}
	}
	ch.UpdatedAt = time.Now().UTC()
	return nil
}

// Channel returns a copy of the channel row. Test helper.
func (m *Store) Channel(id uint) *models.Channel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if ch, ok := m.channels[id]; ok {
		cp := *ch
		return &cp
	}
	return nil
}

func (m *Store) CreateNotification(ctx context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextNotification++
	n.ID = m.nextNotification
	if n.Code == "" {
		n.Code = uuid.NewString()
	}
	cp := *n
	m.notifications[n.ID] = &cp
	return nil
}

func (m *Store) UpdateNotificationFields(ctx context.Context, id uint, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok {
		return store.ErrNotFound
	}
	for col, v := range fields {
		switch col {
		case "error":
			n.Error = v.(string)
		}
	}
	return nil
}

func (m *Store) DeleteNotificationsBefore(ctx context.Context, checkID uint, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, n := range m.notifications {
		if n.OwnerID != nil && *n.OwnerID == checkID && n.Created.Before(t) {
			delete(m.notifications, id)
		}
	}
	return nil
}

// Notifications returns all notification rows for a check ordered by id.
// Test helper.
func (m *Store) Notifications(checkID uint) []*models.Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Notification
	for _, n := range m.notifications {
		if n.OwnerID != nil && *n.OwnerID == checkID {
			cp := *n
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Store) GetOrCreateBucket(ctx context.Context, key string) (*models.TokenBucket, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.buckets[key]; ok {
		cp := *b
		return &cp, false, nil
	}
	m.nextBucket++
	b := &models.TokenBucket{ID: m.nextBucket, Value: key, Tokens: 1.0, Updated: time.Now().UTC()}
	m.buckets[key] = b
	cp := *b
	return &cp, true, nil
}

func (m *Store) SaveBucket(ctx context.Context, bucket *models.TokenBucket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *bucket
	m.buckets[bucket.Value] = &cp
	return nil
}

func (m *Store) DeleteBucketsBefore(ctx context.Context, t time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for key, b := range m.buckets {
		if b.Updated.Before(t) {
			delete(m.buckets, key)
			n++
		}
	}
	return n, nil
}

func timePtr(v any) *time.Time {
	switch t := v.(type) {
	case nil:
		return nil
	case time.Time:
		return &t
	case *time.Time:
		return t
	}
	return nil
}

func durationPtr(v any) *time.Duration {
	switch d := v.(type) {
	case nil:
		return nil
	case time.Duration:
		return &d
	case *time.Duration:
		return d
	}
	return nil
}
