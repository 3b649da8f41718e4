// Package alert turns status transitions into notifications across a
// check's assigned channels.
package alert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pulsewatch/pulsewatch/internal/models"
	"github.com/pulsewatch/pulsewatch/internal/store"
	"github.com/pulsewatch/pulsewatch/internal/transport"
)

// ErrBadTransition reports a flip whose new status is neither up nor down.
// Such a flip can only be produced by a programming error; it is never
// silently ignored.
var ErrBadTransition = errors.New("unexpected flip status")

// Outcome is the per-channel result of dispatching one flip. Error is empty
// on success.
type Outcome struct {
	Channel *models.Channel
	Error   string
	Elapsed time.Duration
}

type factory func(*models.Channel, transport.Deps) (transport.Transport, error)

// Alerter dispatches flip notifications.
type Alerter struct {
	store   store.Store
	deps    transport.Deps
	factory factory
	log     *zap.Logger
	now     func() time.Time
}

func New(s store.Store, deps transport.Deps, log *zap.Logger) *Alerter {
	return &Alerter{
		store:   s,
		deps:    deps,
		factory: transport.ForChannel,
		log:     log,
		now:     time.Now,
	}
}

// Dispatch sends the flip to every enabled, non-no-op channel of the owning
// check and returns the per-channel outcomes. Transitions into "up" from
// "new" or "paused" are not alert-worthy and produce no outcomes.
func (a *Alerter) Dispatch(ctx context.Context, flip *models.Flip) ([]Outcome, error) {
	if flip.NewStatus == models.StatusUp &&
		(flip.OldStatus == models.StatusNew || flip.OldStatus == models.StatusPaused) {
		return nil, nil
	}
	if flip.NewStatus != models.StatusUp && flip.NewStatus != models.StatusDown {
		return nil, fmt.Errorf("%w: %q", ErrBadTransition, flip.NewStatus)
	}

	check, err := a.store.CheckByID(ctx, flip.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("load check: %w", err)
	}
	channels, err := a.store.ChannelsForCheck(ctx, check.ID)
	if err != nil {
		return nil, fmt.Errorf("load channels: %w", err)
	}

	var outcomes []Outcome
	for _, ch := range channels {
		if ch.Disabled {
			continue
		}
		outcome, skipped, err := a.notify(ctx, ch, check)
		if err != nil {
			return outcomes, err
		}
		if skipped {
			continue
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

// notify runs one delivery attempt. The returned error covers storage
// failures only; delivery failures land in the outcome, and permanent ones
// disable the channel. Errors from constructing the transport (bad config)
// count as permanent delivery failures.
func (a *Alerter) notify(ctx context.Context, ch *models.Channel, check *models.Check) (Outcome, bool, error) {
	var tErr *transport.Error

	tr, err := a.factory(ch, a.deps)
	if err != nil {
		tErr = &transport.Error{Message: err.Error(), Permanent: true}
	} else if tr.IsNoOp(check) {
		return Outcome{}, true, nil
	}

	n := &models.Notification{
		OwnerID:     &check.ID,
		ChannelID:   ch.ID,
		CheckStatus: check.Status,
		Created:     a.now().UTC(),
		Error:       models.SendingError,
	}
	if err := a.store.CreateNotification(ctx, n); err != nil {
		return Outcome{}, false, fmt.Errorf("create notification: %w", err)
	}

	start := time.Now()
	if tErr == nil {
		if err := tr.Notify(ctx, check, n); err != nil {
			if !errors.As(err, &tErr) {
				tErr = &transport.Error{Message: err.Error()}
			}
		}
	}
	elapsed := time.Since(start)

	errText := ""
	disabled := ch.Disabled
	if tErr != nil {
		errText = tErr.Message
		if tErr.Permanent {
			disabled = true
		}
	}

	// Update only the fields this operation owns; the rows may be written
	// elsewhere concurrently.
	if err := a.store.UpdateNotificationFields(ctx, n.ID, map[string]any{"error": errText}); err != nil {
		return Outcome{}, false, fmt.Errorf("update notification: %w", err)
	}
	err = a.store.UpdateChannelFields(ctx, ch.ID, map[string]any{
		"last_notify": a.now().UTC(),
		"last_error":  errText,
		"disabled":    disabled,
	})
	if err != nil {
		return Outcome{}, false, fmt.Errorf("update channel: %w", err)
	}
	ch.LastError = errText
	ch.Disabled = disabled

	return Outcome{Channel: ch, Error: errText, Elapsed: elapsed}, false, nil
}
