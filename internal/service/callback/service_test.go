package callback_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"
	"time"

	"callback-queue-service/internal/domain/callback"
	"callback-queue-service/internal/pkg/clock"
	xerrors "callback-queue-service/internal/pkg/errors"
	"callback-queue-service/internal/repository/memory"
	svc "callback-queue-service/internal/service/callback"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type recordingSink struct {
	mu     sync.Mutex
	events []callback.Event
	slow   map[callback.EventType]time.Duration
}

func (r *recordingSink) Publish(_ context.Context, ev callback.Event) error {
	r.mu.Lock()
	delay := r.slow[ev.Type]
	r.mu.Unlock()
	time.Sleep(delay)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingSink) slowDown(t callback.EventType, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.slow == nil {
		r.slow = make(map[callback.EventType]time.Duration)
	}
	r.slow[t] = d
}

func (r *recordingSink) types() []callback.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]callback.EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

// await blocks until at least n events were delivered.
func (r *recordingSink) await(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return len(r.events) >= n
	}, 2*time.Second, 5*time.Millisecond)
}

func (r *recordingSink) last() callback.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type harness struct {
	svc    *svc.Service
	store  *memory.RecordCallbackStore
	clock  *clock.Fake
	agents *memory.AgentDirectory
	sink   *recordingSink
	cancel context.CancelFunc
}

type harnessOption func(*svc.Options)

func newHarness(t *testing.T, seed []*callback.CallbackRequest, opts ...harnessOption) *harness {
	t.Helper()

	o := svc.DefaultOptions()
	o.WriteBackoff = time.Millisecond
	for _, fn := range opts {
		fn(&o)
	}

	h := &harness{
		store: memory.NewRecordCallbackStore(seed...),
		clock: clock.NewFake(epoch),
		agents: memory.NewAgentDirectory(
			memory.Agent{ID: "agent-1", Name: "Alice", Available: true},
			memory.Agent{ID: "agent-2", Name: "Bob", Available: false},
		),
		sink: &recordingSink{},
	}
	h.svc = svc.NewService(h.store, h.sink, h.agents, svc.StaticPolicy(callback.DefaultRetryPolicy()), h.clock, nil, o)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	errCh := make(chan error, 1)
	go func() { errCh <- h.svc.Run(ctx) }()

	select {
	case <-h.svc.Ready():
	case err := <-errCh:
		t.Fatalf("queue failed to start: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("queue did not start")
	}

	t.Cleanup(func() {
		cancel()
		<-h.svc.Done()
	})
	return h
}

func (h *harness) create(t *testing.T, name string, p callback.Priority) *callback.CallbackRequest {
	t.Helper()
	req, err := h.svc.CreateCallback(context.Background(), callback.CreateCallbackRequest{
		CustomerName:  name,
		CustomerPhone: "+254700000000",
		Reason:        "billing question",
		Priority:      p,
	})
	require.NoError(t, err)
	h.clock.Advance(time.Second)
	return req
}

func (h *harness) get(t *testing.T, id string) *callback.CallbackRequest {
	t.Helper()
	req, err := h.svc.GetCallback(id)
	require.NoError(t, err)
	return req
}

func intPtr(v int) *int { return &v }

func assertDensePositions(t *testing.T, pending []*callback.CallbackRequest) {
	t.Helper()
	for i, r := range pending {
		assert.Equal(t, i+1, r.QueuePosition, "request %s", r.ID)
	}
}

func TestCreateCallback(t *testing.T) {
	h := newHarness(t, nil)

	req := h.create(t, "Jane", callback.PriorityHigh)

	assert.NotEmpty(t, req.ID)
	assert.Equal(t, callback.StatusPending, req.Status)
	assert.Equal(t, 1, req.QueuePosition)
	assert.Equal(t, 5, req.EstimatedWaitTime)
	assert.Equal(t, 3, req.MaxRetries)
	assert.Equal(t, 5, req.RetryInterval)
	assert.Equal(t, callback.ChannelVoice, req.Channel)
	require.Len(t, req.Notes, 1)
	assert.Equal(t, callback.NoteTypeSystem, req.Notes[0].Type)

	stored, ok := h.store.Get(req.ID)
	require.True(t, ok)
	assert.Equal(t, req.QueuePosition, stored.QueuePosition)
	h.sink.await(t, 1)
	assert.Equal(t, []callback.EventType{callback.EventCreated}, h.sink.types())
}

func TestCreateCallbackValidation(t *testing.T) {
	h := newHarness(t, nil)
	later := epoch.Add(time.Hour)
	earlier := epoch.Add(30 * time.Minute)

	tests := []struct {
		name string
		in   callback.CreateCallbackRequest
	}{
		{"missing name", callback.CreateCallbackRequest{CustomerPhone: "1", Reason: "r"}},
		{"missing phone", callback.CreateCallbackRequest{CustomerName: "n", Reason: "r"}},
		{"missing reason", callback.CreateCallbackRequest{CustomerName: "n", CustomerPhone: "1"}},
		{"unknown priority", callback.CreateCallbackRequest{CustomerName: "n", CustomerPhone: "1", Reason: "r", Priority: "critical"}},
		{"end before start", callback.CreateCallbackRequest{CustomerName: "n", CustomerPhone: "1", Reason: "r", ScheduledTime: &later, ScheduledEndTime: &earlier}},
		{"negative retries", callback.CreateCallbackRequest{CustomerName: "n", CustomerPhone: "1", Reason: "r", MaxRetries: intPtr(-1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.CreateCallback(context.Background(), tt.in)
			assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
		})
	}
	assert.Equal(t, 0, h.store.Len())
}

func TestPriorityOrdering(t *testing.T) {
	h := newHarness(t, nil)

	normal := h.create(t, "Normal", callback.PriorityNormal)
	urgent := h.create(t, "Urgent", callback.PriorityUrgent)
	high := h.create(t, "High", callback.PriorityHigh)

	assert.Equal(t, 1, h.get(t, urgent.ID).QueuePosition)
	assert.Equal(t, 2, h.get(t, high.ID).QueuePosition)
	assert.Equal(t, 3, h.get(t, normal.ID).QueuePosition)

	queue := h.svc.GetPendingQueue()
	require.Len(t, queue, 3)
	assert.Equal(t, []string{urgent.ID, high.ID, normal.ID}, []string{queue[0].ID, queue[1].ID, queue[2].ID})
}

func TestRetryBound(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	req, err := h.svc.CreateCallback(ctx, callback.CreateCallbackRequest{
		CustomerName:  "Jane",
		CustomerPhone: "+254700000001",
		Reason:        "refund",
		MaxRetries:    intPtr(2),
	})
	require.NoError(t, err)

	for want := 1; want <= 2; want++ {
		h.clock.Advance(time.Minute)
		got, err := h.svc.RetryCallback(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, want, got.RetryCount)
		assert.Equal(t, callback.StatusPending, got.Status)
		require.NotNil(t, got.NextRetryAt)
		assert.Equal(t, h.clock.Now().Add(5*time.Minute), *got.NextRetryAt)
		assert.Equal(t, callback.NoteTypeRetry, got.Notes[len(got.Notes)-1].Type)
	}

	_, err = h.svc.RetryCallback(ctx, req.ID)
	assert.ErrorIs(t, err, xerrors.ErrRetryExhausted)
	assert.Equal(t, 2, h.get(t, req.ID).RetryCount)
	h.sink.await(t, 4)
	assert.Contains(t, h.sink.types(), callback.EventRetryExhausted)

	failed, err := h.svc.FailCallback(ctx, req.ID, "no answer")
	require.NoError(t, err)
	assert.Equal(t, callback.StatusFailed, failed.Status)
	assert.Equal(t, 0, failed.QueuePosition)

	_, err = h.svc.RetryCallback(ctx, req.ID)
	assert.ErrorIs(t, err, xerrors.ErrRetryExhausted)
	assert.Equal(t, callback.StatusFailed, h.get(t, req.ID).Status)
}

func TestFailRequiresExhaustedRetries(t *testing.T) {
	h := newHarness(t, nil)
	req := h.create(t, "Jane", callback.PriorityNormal)

	_, err := h.svc.FailCallback(context.Background(), req.ID, "gave up")
	assert.ErrorIs(t, err, xerrors.ErrInvalidTransition)
	assert.Equal(t, callback.StatusPending, h.get(t, req.ID).Status)
}

func TestRejectRestoresQueuePosition(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	first := h.create(t, "First", callback.PriorityHigh)
	second := h.create(t, "Second", callback.PriorityHigh)
	third := h.create(t, "Third", callback.PriorityNormal)

	accepted, err := h.svc.AcceptCallback(ctx, first.ID, "agent-1", "Alice")
	require.NoError(t, err)
	assert.Equal(t, callback.StatusAccepted, accepted.Status)
	assert.Equal(t, "agent-1", accepted.AssignedAgentID)
	assert.Equal(t, 0, accepted.QueuePosition)
	assert.Equal(t, 1, h.get(t, second.ID).QueuePosition)
	assert.Equal(t, 2, h.get(t, third.ID).QueuePosition)

	rejected, err := h.svc.RejectCallback(ctx, first.ID, "agent-1", "Alice", "wrong department")
	require.NoError(t, err)
	assert.Equal(t, callback.StatusPending, rejected.Status)
	assert.Empty(t, rejected.AssignedAgentID)
	assert.Empty(t, rejected.AssignedAgentName)
	assert.Equal(t, 1, rejected.QueuePosition)
	assert.Equal(t, 2, h.get(t, second.ID).QueuePosition)
	assert.Equal(t, 3, h.get(t, third.ID).QueuePosition)
	assert.Equal(t, "Callback declined by Alice: wrong department", rejected.Notes[len(rejected.Notes)-1].Content)
}

func TestCancelNotifiedThenAccept(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	req := h.create(t, "Jane", callback.PriorityUrgent)

	notified, err := h.svc.NotifyNextAgent(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, callback.StatusNotified, notified.Status)

	cancelled, err := h.svc.CancelCallback(ctx, req.ID, "customer called back")
	require.NoError(t, err)
	assert.Equal(t, callback.StatusCancelled, cancelled.Status)

	_, err = h.svc.AcceptCallback(ctx, req.ID, "agent-1", "Alice")
	assert.ErrorIs(t, err, xerrors.ErrInvalidTransition)
	assert.Equal(t, callback.StatusCancelled, h.get(t, req.ID).Status)
	assert.Empty(t, h.svc.GetNotifications(h.clock.Now()))
}

func TestTickDecaysPendingOnly(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	a := h.create(t, "A", callback.PriorityNormal) // wait 5
	b := h.create(t, "B", callback.PriorityNormal) // wait 10
	c := h.create(t, "C", callback.PriorityNormal)
	_, err := h.svc.AcceptCallback(ctx, c.ID, "agent-1", "Alice")
	require.NoError(t, err)

	before := h.get(t, c.ID)
	decayed, err := h.svc.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, decayed)
	assert.Equal(t, 4, h.get(t, a.ID).EstimatedWaitTime)
	assert.Equal(t, 9, h.get(t, b.ID).EstimatedWaitTime)
	assert.Equal(t, before, h.get(t, c.ID))

	for i := 0; i < 20; i++ {
		_, err := h.svc.Tick(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, 0, h.get(t, a.ID).EstimatedWaitTime)
	assert.Equal(t, 0, h.get(t, b.ID).EstimatedWaitTime)

	decayed, err = h.svc.Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, decayed)
}

func TestTerminalClosure(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	completed := h.create(t, "Done", callback.PriorityNormal)
	_, err := h.svc.CompleteCallback(ctx, completed.ID, "", "resolved")
	require.NoError(t, err)

	cancelled := h.create(t, "Gone", callback.PriorityNormal)
	_, err = h.svc.CancelCallback(ctx, cancelled.ID, "")
	require.NoError(t, err)

	ops := map[string]func(id string) error{
		"notify":   func(id string) error { _, err := h.svc.NotifyNextAgent(ctx, id); return err },
		"accept":   func(id string) error { _, err := h.svc.AcceptCallback(ctx, id, "agent-1", "Alice"); return err },
		"reject":   func(id string) error { _, err := h.svc.RejectCallback(ctx, id, "", "Alice", ""); return err },
		"start":    func(id string) error { _, err := h.svc.StartCallback(ctx, id, ""); return err },
		"complete": func(id string) error { _, err := h.svc.CompleteCallback(ctx, id, "", ""); return err },
		"retry":    func(id string) error { _, err := h.svc.RetryCallback(ctx, id); return err },
		"cancel":   func(id string) error { _, err := h.svc.CancelCallback(ctx, id, ""); return err },
		"fail":     func(id string) error { _, err := h.svc.FailCallback(ctx, id, ""); return err },
	}

	for _, id := range []string{completed.ID, cancelled.ID} {
		want := h.get(t, id).Status
		for name, op := range ops {
			err := op(id)
			assert.Error(t, err, "%s on %s", name, want)
			assert.Equal(t, want, h.get(t, id).Status, "%s on %s", name, want)
		}
	}
}

func TestFullLifecycle(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	req := h.create(t, "Jane", callback.PriorityNormal)

	_, err := h.svc.NotifyNextAgent(ctx, req.ID)
	require.NoError(t, err)
	_, err = h.svc.AcceptCallback(ctx, req.ID, "agent-1", "Alice")
	require.NoError(t, err)
	started, err := h.svc.StartCallback(ctx, req.ID, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, callback.StatusInProgress, started.Status)

	h.clock.Advance(3 * time.Minute)
	done, err := h.svc.CompleteCallback(ctx, req.ID, "agent-1", "explained the invoice")
	require.NoError(t, err)
	assert.Equal(t, callback.StatusCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, h.clock.Now(), *done.CompletedAt)
	assert.Equal(t, "Alice", done.Notes[len(done.Notes)-1].CreatedBy)

	h.sink.await(t, 5)
	assert.Equal(t, []callback.EventType{
		callback.EventCreated,
		callback.EventNotified,
		callback.EventAccepted,
		callback.EventStarted,
		callback.EventCompleted,
	}, h.sink.types())
}

func TestAcceptValidatesAgent(t *testing.T) {
	h := newHarness(t, nil)
	req := h.create(t, "Jane", callback.PriorityNormal)

	_, err := h.svc.AcceptCallback(context.Background(), req.ID, "agent-9", "Mallory")
	assert.ErrorIs(t, err, xerrors.ErrUnknownAgent)

	_, err = h.svc.AcceptCallback(context.Background(), req.ID, "agent-1", "")
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
	assert.Equal(t, callback.StatusPending, h.get(t, req.ID).Status)
}

func TestNotFound(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.svc.GetCallback("missing")
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
	_, err = h.svc.StartCallback(ctx, "missing", "")
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
	_, err = h.svc.RetryCallback(ctx, "missing")
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
	_, err = h.svc.AddAgentNote(ctx, "missing", "Alice", "hello")
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
}

func TestPersistenceFailureLeavesStateUntouched(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	first := h.create(t, "First", callback.PriorityNormal)
	h.store.FailNextWrites(3)

	_, err := h.svc.CreateCallback(ctx, callback.CreateCallbackRequest{
		CustomerName: "Second", CustomerPhone: "1", Reason: "r", Priority: callback.PriorityUrgent,
	})
	assert.ErrorIs(t, err, xerrors.ErrPersistence)
	assert.Len(t, h.svc.ListCallbacks(callback.CallbackListFilters{}), 1)
	assert.Equal(t, 1, h.get(t, first.ID).QueuePosition)

	h.store.FailNextWrites(3)
	_, err = h.svc.CancelCallback(ctx, first.ID, "")
	assert.ErrorIs(t, err, xerrors.ErrPersistence)
	got := h.get(t, first.ID)
	assert.Equal(t, callback.StatusPending, got.Status)
	assert.Len(t, got.Notes, 1)

	stored, ok := h.store.Get(first.ID)
	require.True(t, ok)
	assert.Equal(t, callback.StatusPending, stored.Status)
}

func TestTransientPersistenceFailureIsRetried(t *testing.T) {
	h := newHarness(t, nil)
	req := h.create(t, "Jane", callback.PriorityNormal)
	writes := h.store.Writes()

	h.store.FailNextWrites(2)
	got, err := h.svc.CancelCallback(context.Background(), req.ID, "duplicate")
	require.NoError(t, err)
	assert.Equal(t, callback.StatusCancelled, got.Status)
	assert.Equal(t, writes+3, h.store.Writes())
}

func TestAddAgentNote(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	req := h.create(t, "Jane", callback.PriorityNormal)
	_, err := h.svc.CompleteCallback(ctx, req.ID, "", "")
	require.NoError(t, err)

	got, err := h.svc.AddAgentNote(ctx, req.ID, "Alice", "customer satisfied")
	require.NoError(t, err)
	assert.Equal(t, callback.StatusCompleted, got.Status)
	last := got.Notes[len(got.Notes)-1]
	assert.Equal(t, callback.NoteTypeAgent, last.Type)
	assert.Equal(t, "Alice", last.CreatedBy)
	assert.Equal(t, "customer satisfied", last.Content)

	_, err = h.svc.AddAgentNote(ctx, req.ID, "Alice", "  ")
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestScheduledCallbacks(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	later := epoch.Add(2 * time.Hour)
	sooner := epoch.Add(time.Hour)
	for _, at := range []time.Time{later, sooner} {
		at := at
		req, err := h.svc.CreateCallback(ctx, callback.CreateCallbackRequest{
			CustomerName: "Jane", CustomerPhone: "1", Reason: "follow up", ScheduledTime: &at,
		})
		require.NoError(t, err)
		assert.Equal(t, callback.StatusScheduled, req.Status)
		assert.Zero(t, req.QueuePosition)
	}

	scheduled := h.svc.GetScheduledCallbacks()
	require.Len(t, scheduled, 2)
	assert.Equal(t, sooner, *scheduled[0].ScheduledTime)
	assert.Empty(t, h.svc.GetPendingQueue())

	// without auto promotion a due request stays scheduled
	h.clock.Advance(3 * time.Hour)
	_, err := h.svc.Tick(ctx)
	require.NoError(t, err)
	assert.Len(t, h.svc.GetScheduledCallbacks(), 2)

	_, err = h.svc.NotifyNextAgent(ctx, scheduled[0].ID)
	assert.ErrorIs(t, err, xerrors.ErrInvalidTransition)
}

func TestAutoPromoteScheduled(t *testing.T) {
	h := newHarness(t, nil, func(o *svc.Options) { o.AutoPromoteScheduled = true })
	ctx := context.Background()

	due := epoch.Add(10 * time.Minute)
	req, err := h.svc.CreateCallback(ctx, callback.CreateCallbackRequest{
		CustomerName: "Jane", CustomerPhone: "1", Reason: "follow up", ScheduledTime: &due,
	})
	require.NoError(t, err)
	h.clock.Advance(time.Second)
	waiting := h.create(t, "Walk-in", callback.PriorityNormal)

	_, err = h.svc.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, callback.StatusScheduled, h.get(t, req.ID).Status)

	h.clock.Advance(10 * time.Minute)
	decayed, err := h.svc.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, decayed)

	promoted := h.get(t, req.ID)
	assert.Equal(t, callback.StatusPending, promoted.Status)
	assert.Equal(t, 1, promoted.QueuePosition)
	assert.Equal(t, 5, promoted.EstimatedWaitTime)
	assert.Equal(t, 2, h.get(t, waiting.ID).QueuePosition)
	h.sink.await(t, 3)
	assert.Contains(t, h.sink.types(), callback.EventPromoted)
}

func TestNotificationsExpireWithoutTransition(t *testing.T) {
	h := newHarness(t, nil, func(o *svc.Options) { o.NotificationTTL = 2 * time.Minute })
	ctx := context.Background()
	req := h.create(t, "Jane", callback.PriorityHigh)

	_, err := h.svc.NotifyNextAgent(ctx, req.ID)
	require.NoError(t, err)

	notes := h.svc.GetNotifications(h.clock.Now())
	require.Len(t, notes, 1)
	assert.Equal(t, req.ID, notes[0].CallbackID)
	assert.Equal(t, callback.NotificationPending, notes[0].Status)
	assert.Equal(t, h.clock.Now().Add(2*time.Minute), notes[0].ExpiresAt)

	// unrelated commands must not extend the window
	h.clock.Advance(time.Minute)
	h.create(t, "Other", callback.PriorityNormal)
	require.Len(t, h.svc.GetNotifications(h.clock.Now()), 1)
	assert.Equal(t, notes[0].ExpiresAt, h.svc.GetNotifications(h.clock.Now())[0].ExpiresAt)

	h.clock.Advance(2 * time.Minute)
	assert.Empty(t, h.svc.GetNotifications(h.clock.Now()))
	assert.Equal(t, callback.StatusNotified, h.get(t, req.ID).Status)
}

func TestGetStats(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	a := h.create(t, "A", callback.PriorityNormal)
	h.create(t, "B", callback.PriorityNormal)
	c := h.create(t, "C", callback.PriorityNormal)
	d := h.create(t, "D", callback.PriorityNormal)
	at := epoch.Add(time.Hour)
	_, err := h.svc.CreateCallback(ctx, callback.CreateCallbackRequest{CustomerName: "E", CustomerPhone: "1", Reason: "r", ScheduledTime: &at})
	require.NoError(t, err)

	_, err = h.svc.AcceptCallback(ctx, c.ID, "agent-1", "Alice")
	require.NoError(t, err)
	_, err = h.svc.CompleteCallback(ctx, d.ID, "", "")
	require.NoError(t, err)
	h.clock.Advance(4 * time.Minute)

	stats := h.svc.GetStats(ctx)
	assert.Equal(t, 2, stats.TotalPending)
	assert.Equal(t, 1, stats.TotalScheduled)
	assert.Equal(t, 1, stats.TotalInProgress)
	assert.Equal(t, 1, stats.CompletedToday)
	assert.Equal(t, 0, stats.FailedToday)
	assert.Equal(t, 1, stats.AvailableAgentsForCallback)
	assert.Equal(t, int(h.clock.Now().Sub(a.CreatedAt)/time.Minute), stats.LongestWait)
	assert.InDelta(t, 7.5, stats.AverageWaitTime, 0.001)
}

func TestLoadHealsStalePositions(t *testing.T) {
	seed := []*callback.CallbackRequest{
		{ID: "b", Status: callback.StatusPending, Priority: callback.PriorityNormal, CreatedAt: epoch.Add(time.Second), QueuePosition: 7},
		{ID: "a", Status: callback.StatusPending, Priority: callback.PriorityNormal, CreatedAt: epoch, QueuePosition: 7},
		{ID: "c", Status: callback.StatusCompleted, Priority: callback.PriorityUrgent, CreatedAt: epoch, QueuePosition: 3},
	}
	h := newHarness(t, seed)

	assert.Equal(t, 1, h.get(t, "a").QueuePosition)
	assert.Equal(t, 2, h.get(t, "b").QueuePosition)
	assert.Equal(t, 0, h.get(t, "c").QueuePosition)

	stored, ok := h.store.Get("c")
	require.True(t, ok)
	assert.Equal(t, 0, stored.QueuePosition)
}

func TestRunFailsWhenStoreCannotLoad(t *testing.T) {
	store := memory.NewCallbackStore()
	store.FailNextLoads(1)
	s := svc.NewService(store, nil, nil, nil, clock.NewFake(epoch), nil, svc.DefaultOptions())

	err := s.Run(context.Background())
	assert.ErrorIs(t, err, xerrors.ErrPersistence)

	_, err = s.CreateCallback(context.Background(), callback.CreateCallbackRequest{CustomerName: "n", CustomerPhone: "1", Reason: "r"})
	assert.ErrorIs(t, err, xerrors.ErrQueueStopped)
}

func TestBlobStoreReceivesWholeSet(t *testing.T) {
	store := memory.NewCallbackStore()
	s := svc.NewService(store, nil, nil, nil, clock.NewFake(epoch), nil, svc.DefaultOptions())

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = s.Run(ctx) }()
	defer func() {
		cancel()
		<-s.Done()
	}()
	<-s.Ready()

	for i := 0; i < 3; i++ {
		_, err := s.CreateCallback(ctx, callback.CreateCallbackRequest{CustomerName: "n", CustomerPhone: "1", Reason: "r"})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, store.Len())
}

func TestStoppedQueueRejectsCommands(t *testing.T) {
	h := newHarness(t, nil)
	req := h.create(t, "Jane", callback.PriorityNormal)

	h.cancel()
	<-h.svc.Done()

	_, err := h.svc.StartCallback(context.Background(), req.ID, "")
	assert.ErrorIs(t, err, xerrors.ErrQueueStopped)

	// reads keep serving the last snapshot
	assert.Equal(t, callback.StatusPending, h.get(t, req.ID).Status)
}

func TestConcurrentCommandsKeepQueueDense(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	priorities := []callback.Priority{callback.PriorityUrgent, callback.PriorityHigh, callback.PriorityNormal}

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.svc.CreateCallback(ctx, callback.CreateCallbackRequest{
				CustomerName:  fmt.Sprintf("customer-%d", i),
				CustomerPhone: "1",
				Reason:        "r",
				Priority:      priorities[i%3],
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	pending := h.svc.GetPendingQueue()
	require.Len(t, pending, 30)
	assertDensePositions(t, pending)
}

// Random command sequences must keep positions dense and consistent with
// (priority, creation time) ordering.
func TestRandomSequencesKeepOrderingInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	priorities := []callback.Priority{callback.PriorityUrgent, callback.PriorityHigh, callback.PriorityNormal}

	for round := 0; round < 5; round++ {
		h := newHarness(t, nil)
		ctx := context.Background()
		var ids []string

		for step := 0; step < 60; step++ {
			if len(ids) == 0 || rng.Intn(3) == 0 {
				ids = append(ids, h.create(t, "c", priorities[rng.Intn(3)]).ID)
				continue
			}
			id := ids[rng.Intn(len(ids))]
			var err error
			switch rng.Intn(7) {
			case 0:
				_, err = h.svc.NotifyNextAgent(ctx, id)
			case 1:
				_, err = h.svc.AcceptCallback(ctx, id, "agent-1", "Alice")
			case 2:
				_, err = h.svc.RejectCallback(ctx, id, "", "Alice", "")
			case 3:
				_, err = h.svc.StartCallback(ctx, id, "")
			case 4:
				_, err = h.svc.CompleteCallback(ctx, id, "", "")
			case 5:
				_, err = h.svc.RetryCallback(ctx, id)
			case 6:
				_, err = h.svc.CancelCallback(ctx, id, "")
			}
			if err != nil {
				require.True(t,
					errors.Is(err, xerrors.ErrInvalidTransition) || errors.Is(err, xerrors.ErrRetryExhausted),
					"unexpected error: %v", err)
			}

			pending := h.svc.GetPendingQueue()
			assertDensePositions(t, pending)

			expected := append([]*callback.CallbackRequest(nil), pending...)
			sort.SliceStable(expected, func(i, j int) bool {
				if expected[i].Priority.Rank() != expected[j].Priority.Rank() {
					return expected[i].Priority.Rank() < expected[j].Priority.Rank()
				}
				return expected[i].CreatedAt.Before(expected[j].CreatedAt)
			})
			for i := range expected {
				require.Equal(t, expected[i].ID, pending[i].ID)
			}

			for _, r := range h.svc.ListCallbacks(callback.CallbackListFilters{}) {
				if r.Status != callback.StatusPending {
					require.Zero(t, r.QueuePosition)
				}
				require.LessOrEqual(t, r.RetryCount, r.MaxRetries)
			}
		}
		h.cancel()
	}
}

func TestFailedTodayCountsFailureDay(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	req, err := h.svc.CreateCallback(ctx, callback.CreateCallbackRequest{
		CustomerName: "Jane", CustomerPhone: "1", Reason: "refund", MaxRetries: intPtr(0),
	})
	require.NoError(t, err)
	failed, err := h.svc.FailCallback(ctx, req.ID, "unreachable")
	require.NoError(t, err)
	require.NotNil(t, failed.FailedAt)
	assert.Equal(t, h.clock.Now(), *failed.FailedAt)
	assert.Equal(t, 1, h.svc.GetStats(ctx).FailedToday)

	h.clock.Advance(48 * time.Hour)
	assert.Equal(t, 0, h.svc.GetStats(ctx).FailedToday)

	_, err = h.svc.AddAgentNote(ctx, req.ID, "Alice", "tried the landline too")
	require.NoError(t, err)
	assert.Equal(t, 0, h.svc.GetStats(ctx).FailedToday)
	assert.Equal(t, *failed.FailedAt, *h.get(t, req.ID).FailedAt)
}

func TestEventsReachSinkInCommitOrder(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.sink.slowDown(callback.EventNotified, 50*time.Millisecond)
	req := h.create(t, "Jane", callback.PriorityNormal)

	notified := make(chan error, 1)
	go func() {
		_, err := h.svc.NotifyNextAgent(ctx, req.ID)
		notified <- err
	}()
	require.Eventually(t, func() bool {
		got, err := h.svc.GetCallback(req.ID)
		return err == nil && got.Status == callback.StatusNotified
	}, time.Second, time.Millisecond)

	_, err := h.svc.AcceptCallback(ctx, req.ID, "agent-1", "Alice")
	require.NoError(t, err)
	require.NoError(t, <-notified)

	h.sink.await(t, 3)
	assert.Equal(t, []callback.EventType{
		callback.EventCreated,
		callback.EventNotified,
		callback.EventAccepted,
	}, h.sink.types())

	accepted := h.sink.last()
	require.NotNil(t, accepted.Notification)
	assert.Equal(t, callback.NotificationAccepted, accepted.Notification.Status)
	assert.Equal(t, req.ID, accepted.Notification.CallbackID)
}

func TestDeclineClosesOffer(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	req := h.create(t, "Jane", callback.PriorityNormal)

	_, err := h.svc.NotifyNextAgent(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, h.svc.GetNotifications(h.clock.Now()), 1)

	_, err = h.svc.RejectCallback(ctx, req.ID, "agent-2", "Bob", "on another call")
	require.NoError(t, err)
	assert.Empty(t, h.svc.GetNotifications(h.clock.Now()))

	h.sink.await(t, 3)
	declined := h.sink.last()
	assert.Equal(t, callback.EventRejected, declined.Type)
	require.NotNil(t, declined.Notification)
	assert.Equal(t, callback.NotificationDeclined, declined.Notification.Status)

	// never offered, so nothing to close
	other := h.create(t, "Walk-in", callback.PriorityNormal)
	_, err = h.svc.AcceptCallback(ctx, other.ID, "agent-1", "Alice")
	require.NoError(t, err)
	h.sink.await(t, 5)
	assert.Nil(t, h.sink.last().Notification)
}

func TestOnlyAssigneeDrivesAcceptedCallback(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	req := h.create(t, "Jane", callback.PriorityNormal)

	_, err := h.svc.AcceptCallback(ctx, req.ID, "agent-1", "Alice")
	require.NoError(t, err)

	_, err = h.svc.StartCallback(ctx, req.ID, "agent-2")
	assert.ErrorIs(t, err, xerrors.ErrForbidden)
	_, err = h.svc.RejectCallback(ctx, req.ID, "agent-2", "Bob", "")
	assert.ErrorIs(t, err, xerrors.ErrForbidden)
	_, err = h.svc.CompleteCallback(ctx, req.ID, "agent-2", "")
	assert.ErrorIs(t, err, xerrors.ErrForbidden)

	got := h.get(t, req.ID)
	assert.Equal(t, callback.StatusAccepted, got.Status)
	assert.Equal(t, "agent-1", got.AssignedAgentID)

	started, err := h.svc.StartCallback(ctx, req.ID, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, callback.StatusInProgress, started.Status)

	done, err := h.svc.CompleteCallback(ctx, req.ID, "", "closed by supervisor")
	require.NoError(t, err)
	assert.Equal(t, callback.StatusCompleted, done.Status)
}
