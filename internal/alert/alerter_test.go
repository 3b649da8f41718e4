package alert

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/pulsewatch/pulsewatch/internal/models"
	"github.com/pulsewatch/pulsewatch/internal/store/memory"
	"github.com/pulsewatch/pulsewatch/internal/transport"
)

// fakeTransport lets a test script delivery outcomes per channel.
type fakeTransport struct {
	noop  bool
	err   error
	calls int
}

func (f *fakeTransport) IsNoOp(*models.Check) bool { return f.noop }

func (f *fakeTransport) Notify(ctx context.Context, check *models.Check, n *models.Notification) error {
	f.calls++
	return f.err
}

type fixture struct {
	store    *memory.Store
	alerter  *Alerter
	check    *models.Check
	fakes    map[uint]*fakeTransport
	flipDown *models.Flip
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.New()
	ctx := context.Background()

	check := &models.Check{
		Code:    "11111111-1111-4111-8111-111111111111",
		Name:    "db-backup",
		Kind:    models.KindSimple,
		Timeout: time.Minute,
		Grace:   time.Minute,
		Status:  models.StatusDown,
	}
	if err := st.CreateCheck(ctx, check); err != nil {
		t.Fatal(err)
	}

	f := &fixture{store: st, check: check, fakes: make(map[uint]*fakeTransport)}
	f.alerter = New(st, transport.Deps{}, zap.NewNop())
	f.alerter.factory = func(ch *models.Channel, _ transport.Deps) (transport.Transport, error) {
		tr, ok := f.fakes[ch.ID]
		if !ok {
			return nil, errors.New("no transport for kind " + ch.Kind)
		}
		return tr, nil
	}
	f.flipDown = &models.Flip{
		OwnerID:   check.ID,
		Created:   time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		OldStatus: models.StatusUp,
		NewStatus: models.StatusDown,
	}
	return f
}

// addChannel registers a channel with a scripted transport attached to the
// fixture check.
func (f *fixture) addChannel(t *testing.T, tr *fakeTransport) *models.Channel {
	t.Helper()
	ctx := context.Background()
	ch := &models.Channel{Kind: models.KindWebhook, Value: "{}"}
	if err := f.store.CreateChannel(ctx, ch); err != nil {
		t.Fatal(err)
	}
	if err := f.store.AssignChannel(ctx, f.check.ID, ch.ID); err != nil {
		t.Fatal(err)
	}
	if tr != nil {
		f.fakes[ch.ID] = tr
	}
	return ch
}

func TestDispatchSkipsQuietTransitions(t *testing.T) {
	f := newFixture(t)
	tr := &fakeTransport{}
	f.addChannel(t, tr)

	for _, old := range []string{models.StatusNew, models.StatusPaused} {
		flip := &models.Flip{OwnerID: f.check.ID, OldStatus: old, NewStatus: models.StatusUp}
		outcomes, err := f.alerter.Dispatch(context.Background(), flip)
		if err != nil {
			t.Fatalf("%s -> up: %v", old, err)
		}
		if len(outcomes) != 0 {
			t.Fatalf("%s -> up produced %d outcomes, want 0", old, len(outcomes))
		}
	}
	if tr.calls != 0 {
		t.Fatalf("transport invoked %d times for quiet transitions", tr.calls)
	}
	if rows := f.store.Notifications(f.check.ID); len(rows) != 0 {
		t.Fatalf("notification rows = %d, want 0", len(rows))
	}
}

func TestDispatchRejectsBadTransition(t *testing.T) {
	f := newFixture(t)

	flip := &models.Flip{OwnerID: f.check.ID, OldStatus: models.StatusUp, NewStatus: models.StatusPaused}
	_, err := f.alerter.Dispatch(context.Background(), flip)
	if !errors.Is(err, ErrBadTransition) {
		t.Fatalf("err = %v, want ErrBadTransition", err)
	}
}

func TestDispatchSuccess(t *testing.T) {
	f := newFixture(t)
	tr := &fakeTransport{}
	ch := f.addChannel(t, tr)

	outcomes, err := f.alerter.Dispatch(context.Background(), f.flipDown)
	if err != nil {
		t.Fatal(err)
	}
	if len(outcomes) != 1 {
		t.Fatalf("outcomes = %d, want 1", len(outcomes))
	}
	if outcomes[0].Error != "" || outcomes[0].Channel.ID != ch.ID {
		t.Fatalf("outcome = %+v", outcomes[0])
	}
	if tr.calls != 1 {
		t.Fatalf("transport calls = %d, want 1", tr.calls)
	}

	rows := f.store.Notifications(f.check.ID)
	if len(rows) != 1 {
		t.Fatalf("notification rows = %d, want 1", len(rows))
	}
	if rows[0].Error != "" || rows[0].CheckStatus != models.StatusDown || rows[0].ChannelID != ch.ID {
		t.Fatalf("notification = %+v", rows[0])
	}

	stored := f.store.Channel(ch.ID)
	if stored.Disabled || stored.LastError != "" || stored.LastNotify == nil {
		t.Fatalf("channel after success = %+v", stored)
	}
}

func TestDispatchSkipsDisabledChannel(t *testing.T) {
	f := newFixture(t)
	active := &fakeTransport{}
	f.addChannel(t, active)

	dead := &fakeTransport{}
	deadCh := f.addChannel(t, dead)
	if err := f.store.UpdateChannelFields(context.Background(), deadCh.ID, map[string]any{"disabled": true}); err != nil {
		t.Fatal(err)
	}

	outcomes, err := f.alerter.Dispatch(context.Background(), f.flipDown)
	if err != nil {
		t.Fatal(err)
	}
	if len(outcomes) != 1 {
		t.Fatalf("outcomes = %d, want 1", len(outcomes))
	}
	if dead.calls != 0 {
		t.Fatal("disabled channel's transport was invoked")
	}
}

func TestDispatchTransientFailure(t *testing.T) {
	f := newFixture(t)
	tr := &fakeTransport{err: &transport.Error{Message: "connection timed out"}}
	ch := f.addChannel(t, tr)

	outcomes, err := f.alerter.Dispatch(context.Background(), f.flipDown)
	if err != nil {
		t.Fatal(err)
	}
	if len(outcomes) != 1 || outcomes[0].Error != "connection timed out" {
		t.Fatalf("outcomes = %+v", outcomes)
	}

	stored := f.store.Channel(ch.ID)
	if stored.Disabled {
		t.Fatal("transient failure disabled the channel")
	}
	if stored.LastError != "connection timed out" {
		t.Fatalf("last_error = %q", stored.LastError)
	}
	rows := f.store.Notifications(f.check.ID)
	if len(rows) != 1 || rows[0].Error != "connection timed out" {
		t.Fatalf("notification = %+v", rows)
	}
}

func TestDispatchPermanentFailureDisablesChannel(t *testing.T) {
	f := newFixture(t)
	tr := &fakeTransport{err: &transport.Error{Message: "invalid webhook url", Permanent: true}}
	ch := f.addChannel(t, tr)

	outcomes, err := f.alerter.Dispatch(context.Background(), f.flipDown)
	if err != nil {
		t.Fatal(err)
	}
	if len(outcomes) != 1 || outcomes[0].Error != "invalid webhook url" {
		t.Fatalf("outcomes = %+v", outcomes)
	}

	stored := f.store.Channel(ch.ID)
	if !stored.Disabled {
		t.Fatal("permanent failure did not disable the channel")
	}
}

func TestDispatchPlainErrorIsTransient(t *testing.T) {
	f := newFixture(t)
	tr := &fakeTransport{err: errors.New("dial tcp: i/o timeout")}
	ch := f.addChannel(t, tr)

	outcomes, err := f.alerter.Dispatch(context.Background(), f.flipDown)
	if err != nil {
		t.Fatal(err)
	}
	if len(outcomes) != 1 || outcomes[0].Error != "dial tcp: i/o timeout" {
		t.Fatalf("outcomes = %+v", outcomes)
	}
	if f.store.Channel(ch.ID).Disabled {
		t.Fatal("unclassified error disabled the channel")
	}
}

func TestDispatchSkipsNoOpWithoutRecord(t *testing.T) {
	f := newFixture(t)
	tr := &fakeTransport{noop: true}
	f.addChannel(t, tr)

	outcomes, err := f.alerter.Dispatch(context.Background(), f.flipDown)
	if err != nil {
		t.Fatal(err)
	}
	if len(outcomes) != 0 {
		t.Fatalf("outcomes = %d, want 0", len(outcomes))
	}
	if tr.calls != 0 {
		t.Fatal("no-op transport was invoked")
	}
	if rows := f.store.Notifications(f.check.ID); len(rows) != 0 {
		t.Fatalf("notification rows = %d, want 0", len(rows))
	}
}

func TestDispatchBadConfigCountsAsPermanent(t *testing.T) {
	f := newFixture(t)
	// No fake registered: the factory fails as it would for an
	// unconfigurable channel.
	ch := f.addChannel(t, nil)

	outcomes, err := f.alerter.Dispatch(context.Background(), f.flipDown)
	if err != nil {
		t.Fatal(err)
	}
	if len(outcomes) != 1 || outcomes[0].Error == "" {
		t.Fatalf("outcomes = %+v", outcomes)
	}
	if !f.store.Channel(ch.ID).Disabled {
		t.Fatal("factory failure did not disable the channel")
	}
	// The attempt is still recorded.
	if rows := f.store.Notifications(f.check.ID); len(rows) != 1 {
		t.Fatalf("notification rows = %d, want 1", len(rows))
	}
}
