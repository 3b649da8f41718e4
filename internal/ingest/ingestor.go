// Package ingest records incoming pings and moves check state accordingly.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pulsewatch/pulsewatch/internal/archive"
	"github.com/pulsewatch/pulsewatch/internal/models"
	"github.com/pulsewatch/pulsewatch/internal/store"
)

// Ping actions.
const (
	ActionSuccess = "success"
	ActionStart   = "start"
	ActionFail    = "fail"
	ActionIgnore  = "ign"
)

// pruneEvery: every Nth ping triggers retention pruning for its check.
const pruneEvery = 100

// Config holds the ingestion knobs.
type Config struct {
	// InlineBodyLimit is the body size above which payloads go to the
	// archive instead of the pings table.
	InlineBodyLimit int
	// PingLogLimit is how many most-recent pings are retained per check.
	PingLogLimit int
}

// Options describes one received ping.
type Options struct {
	Action     string
	When       time.Time // zero means "now"
	RemoteAddr string
	Scheme     string
	Method     string
	UserAgent  string
	ExitStatus *int
	Body       []byte
}

// Ingestor applies pings to checks: it updates status and bookkeeping,
// records a Flip on status change, stores the ping row and occasionally
// prunes old history. All of it behaves as if serialized per check.
type Ingestor struct {
	store   store.Store
	archive archive.Store // nil when object storage is not configured
	pruner  *archive.Pruner
	cfg     Config
	locks   keyedMutex
	log     *zap.Logger
	now     func() time.Time
}

func New(s store.Store, arc archive.Store, pruner *archive.Pruner, cfg Config, log *zap.Logger) *Ingestor {
	return &Ingestor{
		store:   s,
		archive: arc,
		pruner:  pruner,
		cfg:     cfg,
		log:     log,
		now:     time.Now,
	}
}

// Ingest records one ping against the check. The caller's snapshot may be
// stale; the row is re-read under the per-check lock and the passed struct
// is overwritten with the resulting state.
func (i *Ingestor) Ingest(ctx context.Context, check *models.Check, opts Options) error {
	unlock := i.locks.lock(check.ID)
	defer unlock()

	// A concurrent ping may have advanced the check between the caller's
	// load and this lock. The transition must be computed from the
	// current row, or two racing pings both see the old status and each
	// records a flip.
	fresh, err := i.store.CheckByID(ctx, check.ID)
	if err != nil {
		return fmt.Errorf("reload check: %w", err)
	}
	*check = *fresh

	when := opts.When
	if when.IsZero() {
		when = i.now()
	}
	when = when.UTC()

	action := opts.Action
	if check.Status == models.StatusPaused && check.ManualResume {
		// Paused with manual resume: pings must not wake the check up.
		action = ActionIgnore
	}

	switch action {
	case ActionStart:
		check.LastStart = &when
		// last_ping and last_duration stay untouched.
	case ActionIgnore:
	default:
		check.LastPing = &when
		if check.LastStart != nil {
			duration := when.Sub(*check.LastStart)
			check.LastDuration = &duration
			check.LastStart = nil
		} else {
			check.LastDuration = nil
		}

		newStatus := models.StatusUp
		if action == ActionFail {
			newStatus = models.StatusDown
		}
		if check.Status != newStatus {
			// The flip must carry the event's timestamp and the
			// pre-transition status, so it is persisted before the
			// check row changes.
			flip := &models.Flip{
				OwnerID:   check.ID,
				Created:   *check.LastPing,
				OldStatus: check.Status,
				NewStatus: newStatus,
			}
			if err := i.store.CreateFlip(ctx, flip); err != nil {
				return fmt.Errorf("create flip: %w", err)
			}
			check.Status = newStatus
		}
	}

	check.AlertAfter = check.GoingDownAfter()

	n, err := i.store.IncrementPingCount(ctx, check.ID)
	if err != nil {
		return fmt.Errorf("increment ping count: %w", err)
	}
	check.NPings = n

	err = i.store.UpdateCheckFields(ctx, check.ID, map[string]any{
		"status":        check.Status,
		"last_ping":     check.LastPing,
		"last_start":    check.LastStart,
		"last_duration": check.LastDuration,
		"alert_after":   check.AlertAfter,
	})
	if err != nil {
		return fmt.Errorf("update check: %w", err)
	}

	ping := &models.Ping{
		OwnerID:    check.ID,
		N:          n,
		Created:    when,
		RemoteAddr: opts.RemoteAddr,
		Scheme:     opts.Scheme,
		Method:     opts.Method,
		UA:         truncate(opts.UserAgent, 200),
		ExitStatus: opts.ExitStatus,
	}
	if action == ActionStart || action == ActionFail || action == ActionIgnore {
		ping.Kind = action
	}
	if len(opts.Body) > i.cfg.InlineBodyLimit && i.archive != nil {
		ping.ObjectSize = len(opts.Body)
		if err := i.archive.Put(ctx, check.Code, n, opts.Body); err != nil {
			return fmt.Errorf("archive ping body: %w", err)
		}
	} else {
		ping.Body = opts.Body
	}
	if err := i.store.CreatePing(ctx, ping); err != nil {
		return fmt.Errorf("create ping: %w", err)
	}

	if n%pruneEvery == 0 {
		if err := i.prune(ctx, check); err != nil {
			return fmt.Errorf("prune: %w", err)
		}
	}
	return nil
}

// PingBody returns a ping's payload, fetching archived bodies on demand.
func (i *Ingestor) PingBody(ctx context.Context, check *models.Check, ping *models.Ping) ([]byte, error) {
	if len(ping.Body) > 0 {
		return ping.Body, nil
	}
	if ping.ObjectSize > 0 && i.archive != nil {
		return i.archive.Get(ctx, check.Code, ping.N)
	}
	return nil, nil
}

// prune removes old pings and the notifications that predate the oldest
// surviving ping. Archive deletes are asynchronous and best-effort; local
// deletes are synchronous and their failures propagate.
func (i *Ingestor) prune(ctx context.Context, check *models.Check) error {
	threshold := check.NPings - i.cfg.PingLogLimit

	if i.pruner != nil {
		i.pruner.Enqueue(check.Code, threshold)
	}

	if err := i.store.DeletePingsUpTo(ctx, check.ID, threshold); err != nil {
		return fmt.Errorf("delete pings: %w", err)
	}

	oldest, err := i.store.OldestPing(ctx, check.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("oldest ping: %w", err)
	}
	if err := i.store.DeleteNotificationsBefore(ctx, check.ID, oldest.Created); err != nil {
		return fmt.Errorf("delete notifications: %w", err)
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
