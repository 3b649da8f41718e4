package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// Check statuses. "grace" and "started" are computed, never stored.
const (
	StatusNew     = "new"
	StatusUp      = "up"
	StatusGrace   = "grace"
	StatusDown    = "down"
	StatusPaused  = "paused"
	StatusStarted = "started"
)

// Check kinds.
const (
	KindSimple = "simple"
	KindCron   = "cron"
)

const (
	DefaultTimeout = 24 * time.Hour
	DefaultGrace   = time.Hour
)

// Never is a far-future sentinel standing in for "no deadline".
// Using a concrete value instead of nil keeps the min() logic in
// GraceStart branchless. It never leaves this package.
var Never = time.Date(3000, 1, 1, 0, 0, 0, 0, time.UTC)

// Check represents a monitored job that is expected to ping us on schedule.
type Check struct {
	ID           uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	Code         string         `json:"code" gorm:"type:uuid;uniqueIndex;not null"`
	Name         string         `json:"name"`
	Kind         string         `json:"kind" gorm:"not null;default:simple"`
	Timeout      time.Duration  `json:"timeout" gorm:"default:86400000000000"`
	Grace        time.Duration  `json:"grace" gorm:"default:3600000000000"`
	Schedule     string         `json:"schedule" gorm:"default:* * * * *"`
	TZ           string         `json:"tz" gorm:"default:UTC"`
	ManualResume bool           `json:"manual_resume" gorm:"default:false"`
	NPings       int            `json:"n_pings" gorm:"default:0"`
	LastPing     *time.Time     `json:"last_ping"`
	LastStart    *time.Time     `json:"last_start"`
	LastDuration *time.Duration `json:"last_duration"`
	AlertAfter   *time.Time     `json:"alert_after" gorm:"index"`
	Status       string         `json:"status" gorm:"not null;default:new"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`

	// Relationship (optional, for eager loading)
	Channels []*Channel `json:"-" gorm:"many2many:check_channels"`
}

// TableName specifies the table name for Check
func (Check) TableName() string {
	return "checks"
}

// BeforeCreate assigns a code if one was not set (GORM hook)
func (c *Check) BeforeCreate(tx *gorm.DB) error {
	if c.Code == "" {
		c.Code = uuid.NewString()
	}
	return nil
}

// GraceStart returns the time when the check's grace period starts, or nil
// if no deadline applies (the check is new, paused or already down, and has
// no run in flight).
func (c *Check) GraceStart(withStarted bool) *time.Time {
	result := Never

	if c.Kind == KindSimple && c.Status == StatusUp {
		result = c.LastPing.Add(c.Timeout)
	} else if c.Kind == KindCron && c.Status == StatusUp {
		// The next ping is expected per the cron schedule, evaluated in
		// the check's own timezone. Keep the time zone-aware the whole
		// way so DST transitions resolve correctly.
		if next, err := c.nextScheduled(*c.LastPing); err == nil {
			result = next
		}
	}

	if withStarted && c.LastStart != nil && c.Status != StatusDown {
		// A running execution can only make the deadline earlier.
		if c.LastStart.Before(result) {
			result = *c.LastStart
		}
	}

	if result.Equal(Never) {
		return nil
	}
	return &result
}

func (c *Check) nextScheduled(after time.Time) (time.Time, error) {
	loc, err := time.LoadLocation(c.TZ)
	if err != nil {
		return time.Time{}, err
	}
	sched, err := cron.ParseStandard(c.Schedule)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(after.In(loc)), nil
}

// GoingDownAfter returns the time when the check goes down, or nil if the
// check is new, paused or already down, and not currently running.
func (c *Check) GoingDownAfter() *time.Time {
	graceStart := c.GraceStart(true)
	if graceStart == nil {
		return nil
	}
	end := graceStart.Add(c.Grace)
	return &end
}

// CurrentStatus returns the check's status as of the given instant.
// A start event that did not complete within the grace period counts as
// a failure, regardless of the stored status.
func (c *Check) CurrentStatus(now time.Time, withStarted bool) string {
	if c.LastStart != nil {
		if !now.Before(c.LastStart.Add(c.Grace)) {
			return StatusDown
		}
		if withStarted {
			return StatusStarted
		}
	}

	if c.Status == StatusNew || c.Status == StatusPaused || c.Status == StatusDown {
		return c.Status
	}

	graceStart := c.GraceStart(withStarted)
	if graceStart == nil {
		return c.Status
	}
	graceEnd := graceStart.Add(c.Grace)
	if !now.Before(graceEnd) {
		return StatusDown
	}
	if !now.Before(*graceStart) {
		return StatusGrace
	}
	return StatusUp
}
