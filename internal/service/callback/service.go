// internal/service/callback/service.go
package callback

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"callback-queue-service/internal/domain/callback"
	"callback-queue-service/internal/pkg/clock"
	xerrors "callback-queue-service/internal/pkg/errors"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

const (
	systemAuthor = "system"
	outboxSize   = 256
)

type Options struct {
	NotificationTTL      time.Duration
	WriteAttempts        int
	WriteBackoff         time.Duration
	MinutesPerPosition   int
	AutoPromoteScheduled bool
}

func DefaultOptions() Options {
	return Options{
		NotificationTTL:    DefaultNotificationTTL,
		WriteAttempts:      3,
		WriteBackoff:       200 * time.Millisecond,
		MinutesPerPosition: 5,
	}
}

type outcome struct {
	req    *callback.CallbackRequest
	events []callback.Event
	err    error
}

type command struct {
	ctx   context.Context
	apply func(ctx context.Context) outcome
	reply chan outcome
}

type delivery struct {
	ctx    context.Context
	events []callback.Event
}

type snapshot struct {
	requests      []*callback.CallbackRequest
	byID          map[string]*callback.CallbackRequest
	notifications []callback.AgentCallbackNotification
}

// Service owns the callback request set. Every mutation runs on the Run
// loop, one command at a time; reads use the last published snapshot.
type Service struct {
	store  Store
	sink   NotificationSink
	agents AgentDirectory
	policy PolicySource
	clock  clock.Clock
	logger *zap.Logger
	opts   Options

	commands chan command
	ready    chan struct{}
	done     chan struct{}

	// owned by the Run loop
	requests map[string]*callback.CallbackRequest

	snap atomic.Pointer[snapshot]
}

func NewService(
	store Store,
	sink NotificationSink,
	agents AgentDirectory,
	policy PolicySource,
	clk clock.Clock,
	logger *zap.Logger,
	opts Options,
) *Service {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy == nil {
		policy = StaticPolicy(callback.DefaultRetryPolicy())
	}
	if opts.NotificationTTL <= 0 {
		opts.NotificationTTL = DefaultNotificationTTL
	}
	if opts.WriteAttempts < 1 {
		opts.WriteAttempts = 1
	}

	s := &Service{
		store:    store,
		sink:     sink,
		agents:   agents,
		policy:   policy,
		clock:    clk,
		logger:   logger,
		opts:     opts,
		commands: make(chan command),
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
		requests: make(map[string]*callback.CallbackRequest),
	}
	s.snap.Store(&snapshot{byID: map[string]*callback.CallbackRequest{}})
	return s
}

// Run loads the store and then applies commands until ctx is cancelled. A
// command already being applied finishes before Run returns, and so does
// delivery of every event it produced.
func (s *Service) Run(ctx context.Context) error {
	defer close(s.done)

	if err := s.load(ctx); err != nil {
		return err
	}

	outbox := make(chan delivery, outboxSize)
	drained := make(chan struct{})
	go s.deliver(outbox, drained)
	defer func() {
		close(outbox)
		<-drained
	}()

	close(s.ready)
	s.logger.Info("callback queue started", zap.Int("requests", len(s.requests)))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("callback queue stopped")
			return nil
		case cmd := <-s.commands:
			out := cmd.apply(cmd.ctx)
			// queued in commit order; one goroutine drains it
			if len(out.events) > 0 && s.sink != nil {
				outbox <- delivery{ctx: context.WithoutCancel(cmd.ctx), events: out.events}
			}
			cmd.reply <- out
		}
	}
}

func (s *Service) deliver(outbox <-chan delivery, drained chan<- struct{}) {
	defer close(drained)
	for d := range outbox {
		s.publish(d.ctx, d.events)
	}
}

func (s *Service) load(ctx context.Context) error {
	loaded, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load callbacks: %w: %w", xerrors.ErrPersistence, err)
	}

	for _, r := range loaded {
		s.requests[r.ID] = r
	}

	// heal positions left stale by an earlier crash or manual edit
	if changed := RecomputePositions(s.list()); len(changed) > 0 {
		s.logger.Warn("recomputed stale queue positions on load", zap.Int("changed", len(changed)))
		if err := s.persist(ctx, s.list(), changed); err != nil {
			return err
		}
	}
	s.publishSnapshot(s.clock.Now())
	return nil
}

func (s *Service) submit(ctx context.Context, apply func(ctx context.Context) outcome) (*callback.CallbackRequest, error) {
	cmd := command{ctx: ctx, apply: apply, reply: make(chan outcome, 1)}

	select {
	case s.commands <- cmd:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, xerrors.ErrQueueStopped
	}

	out := <-cmd.reply
	return out.req, out.err
}

// ==================== Commands ====================

func (s *Service) CreateCallback(ctx context.Context, in callback.CreateCallbackRequest) (*callback.CallbackRequest, error) {
	if err := validateCreate(&in); err != nil {
		return nil, err
	}
	policy := s.policy.Current()

	return s.submit(ctx, func(ctx context.Context) outcome {
		now := s.clock.Now()
		req := &callback.CallbackRequest{
			ID:               ulid.Make().String(),
			CustomerID:       in.CustomerID,
			CustomerName:     in.CustomerName,
			CustomerPhone:    in.CustomerPhone,
			CustomerEmail:    in.CustomerEmail,
			Reason:           in.Reason,
			Priority:         in.Priority,
			Channel:          callback.ChannelVoice,
			ScheduledTime:    in.ScheduledTime,
			ScheduledEndTime: in.ScheduledEndTime,
			CreatedAt:        now,
			UpdatedAt:        now,
			Notes:            []callback.CallbackNote{},
		}
		if req.CustomerID == "" {
			req.CustomerID = "cust-" + req.ID
		}
		snapshotPolicy(req, policy, in.MaxRetries, in.RetryInterval)

		evType, title := callback.EventCreated, "Callback requested"
		if req.ScheduledTime != nil && req.ScheduledTime.After(now) {
			req.Status = callback.StatusScheduled
			req.Notes = append(req.Notes, newNote(now, systemAuthor, callback.NoteTypeSystem,
				fmt.Sprintf("Callback scheduled for %s", req.ScheduledTime.Format(time.RFC3339))))
			evType, title = callback.EventScheduled, "Callback scheduled"
		} else {
			req.Status = callback.StatusPending
			req.Notes = append(req.Notes, newNote(now, systemAuthor, callback.NoteTypeSystem,
				"Callback request created"))
		}

		committed, err := s.commit(ctx, now, req)
		if err != nil {
			return outcome{err: err}
		}
		return outcome{
			req:    committed.Clone(),
			events: []callback.Event{s.event(evType, committed, title, fmt.Sprintf("%s requested a callback", committed.CustomerName), callback.SeverityInfo, now)},
		}
	})
}

func (s *Service) NotifyNextAgent(ctx context.Context, id string) (*callback.CallbackRequest, error) {
	return s.transition(ctx, id, callback.TriggerNotify, func(req *callback.CallbackRequest, now time.Time) (callback.CallbackNote, error) {
		return newNote(now, systemAuthor, callback.NoteTypeSystem, "Agents notified of callback request"), nil
	}, func(req *callback.CallbackRequest, now time.Time) callback.Event {
		ev := s.event(callback.EventNotified, req, "Callback waiting",
			fmt.Sprintf("%s is waiting for a callback", req.CustomerName), callback.SeverityInfo, now)
		if n, ok := s.notificationFor(req.ID); ok {
			ev.Notification = &n
		}
		return ev
	})
}

func (s *Service) AcceptCallback(ctx context.Context, id, agentID, agentName string) (*callback.CallbackRequest, error) {
	agentID, agentName = strings.TrimSpace(agentID), strings.TrimSpace(agentName)
	if agentID == "" || agentName == "" {
		return nil, fmt.Errorf("agent id and name are required: %w", xerrors.ErrInvalidInput)
	}
	if s.agents != nil {
		if err := s.agents.ValidateAgent(ctx, agentID, agentName); err != nil {
			return nil, err
		}
	}

	var offer *callback.AgentCallbackNotification
	return s.transition(ctx, id, callback.TriggerAccept, func(req *callback.CallbackRequest, now time.Time) (callback.CallbackNote, error) {
		offer = s.closeOffer(req.ID, callback.NotificationAccepted)
		req.AssignedAgentID = agentID
		req.AssignedAgentName = agentName
		return newNote(now, agentName, callback.NoteTypeAgent, fmt.Sprintf("Callback accepted by %s", agentName)), nil
	}, func(req *callback.CallbackRequest, now time.Time) callback.Event {
		ev := s.event(callback.EventAccepted, req, "Callback accepted",
			fmt.Sprintf("%s will call %s", agentName, req.CustomerName), callback.SeverityInfo, now)
		ev.Notification = offer
		return ev
	})
}

// RejectCallback returns a request to the queue. agentID may be empty for
// supervisors; otherwise only the assigned agent may reject an accepted
// request.
func (s *Service) RejectCallback(ctx context.Context, id, agentID, agentName, reason string) (*callback.CallbackRequest, error) {
	agentName = strings.TrimSpace(agentName)
	if agentName == "" {
		return nil, fmt.Errorf("agent name is required: %w", xerrors.ErrInvalidInput)
	}

	var offer *callback.AgentCallbackNotification
	return s.transition(ctx, id, callback.TriggerReject, func(req *callback.CallbackRequest, now time.Time) (callback.CallbackNote, error) {
		if err := checkAssignee(req, agentID); err != nil {
			return callback.CallbackNote{}, err
		}
		offer = s.closeOffer(req.ID, callback.NotificationDeclined)
		req.AssignedAgentID = ""
		req.AssignedAgentName = ""
		content := fmt.Sprintf("Callback declined by %s", agentName)
		if reason = strings.TrimSpace(reason); reason != "" {
			content += ": " + reason
		}
		return newNote(now, agentName, callback.NoteTypeAgent, content), nil
	}, func(req *callback.CallbackRequest, now time.Time) callback.Event {
		ev := s.event(callback.EventRejected, req, "Callback declined",
			fmt.Sprintf("%s declined the callback for %s", agentName, req.CustomerName), callback.SeverityWarning, now)
		ev.Notification = offer
		return ev
	})
}

func (s *Service) StartCallback(ctx context.Context, id, agentID string) (*callback.CallbackRequest, error) {
	return s.transition(ctx, id, callback.TriggerStart, func(req *callback.CallbackRequest, now time.Time) (callback.CallbackNote, error) {
		if err := checkAssignee(req, agentID); err != nil {
			return callback.CallbackNote{}, err
		}
		return newNote(now, authorOf(req), callback.NoteTypeSystem, "Call initiated"), nil
	}, func(req *callback.CallbackRequest, now time.Time) callback.Event {
		return s.event(callback.EventStarted, req, "Callback started",
			fmt.Sprintf("Calling %s at %s", req.CustomerName, req.CustomerPhone), callback.SeverityInfo, now)
	})
}

func (s *Service) CompleteCallback(ctx context.Context, id, agentID, notes string) (*callback.CallbackRequest, error) {
	notes = strings.TrimSpace(notes)

	return s.transition(ctx, id, callback.TriggerComplete, func(req *callback.CallbackRequest, now time.Time) (callback.CallbackNote, error) {
		if err := checkAssignee(req, agentID); err != nil {
			return callback.CallbackNote{}, err
		}
		completed := now
		req.CompletedAt = &completed
		if notes != "" {
			return newNote(now, authorOf(req), callback.NoteTypeAgent, "Callback completed: "+notes), nil
		}
		return newNote(now, authorOf(req), callback.NoteTypeSystem, "Callback completed"), nil
	}, func(req *callback.CallbackRequest, now time.Time) callback.Event {
		return s.event(callback.EventCompleted, req, "Callback completed",
			fmt.Sprintf("Callback to %s completed", req.CustomerName), callback.SeverityInfo, now)
	})
}

func (s *Service) RetryCallback(ctx context.Context, id string) (*callback.CallbackRequest, error) {
	return s.transition(ctx, id, callback.TriggerRetry, func(req *callback.CallbackRequest, now time.Time) (callback.CallbackNote, error) {
		if err := CheckRetry(req); err != nil {
			return callback.CallbackNote{}, err
		}
		applyRetry(req, now)
		return newNote(now, systemAuthor, callback.NoteTypeRetry,
			fmt.Sprintf("Retry attempt %d of %d, next attempt at %s",
				req.RetryCount, req.MaxRetries, req.NextRetryAt.Format(time.RFC3339))), nil
	}, func(req *callback.CallbackRequest, now time.Time) callback.Event {
		return s.event(callback.EventRetried, req, "Callback retry scheduled",
			fmt.Sprintf("Retry %d of %d for %s", req.RetryCount, req.MaxRetries, req.CustomerName), callback.SeverityInfo, now)
	})
}

func (s *Service) CancelCallback(ctx context.Context, id, reason string) (*callback.CallbackRequest, error) {
	reason = strings.TrimSpace(reason)

	return s.transition(ctx, id, callback.TriggerCancel, func(req *callback.CallbackRequest, now time.Time) (callback.CallbackNote, error) {
		content := "Callback cancelled"
		if reason != "" {
			content += ": " + reason
		}
		return newNote(now, systemAuthor, callback.NoteTypeSystem, content), nil
	}, func(req *callback.CallbackRequest, now time.Time) callback.Event {
		return s.event(callback.EventCancelled, req, "Callback cancelled",
			fmt.Sprintf("Callback for %s was cancelled", req.CustomerName), callback.SeverityWarning, now)
	})
}

// FailCallback closes a request whose retries are used up.
func (s *Service) FailCallback(ctx context.Context, id, reason string) (*callback.CallbackRequest, error) {
	reason = strings.TrimSpace(reason)

	return s.transition(ctx, id, callback.TriggerFail, func(req *callback.CallbackRequest, now time.Time) (callback.CallbackNote, error) {
		if !req.RetriesExhausted() {
			return callback.CallbackNote{}, fmt.Errorf("callback %s still has %d retries left: %w",
				req.ID, req.MaxRetries-req.RetryCount, xerrors.ErrInvalidTransition)
		}
		failed := now
		req.FailedAt = &failed
		content := fmt.Sprintf("Callback failed after %d retries", req.RetryCount)
		if reason != "" {
			content += ": " + reason
		}
		return newNote(now, systemAuthor, callback.NoteTypeSystem, content), nil
	}, func(req *callback.CallbackRequest, now time.Time) callback.Event {
		return s.event(callback.EventFailed, req, "Callback failed",
			fmt.Sprintf("Could not reach %s", req.CustomerName), callback.SeverityError, now)
	})
}

// AddAgentNote appends an agent note without changing status.
func (s *Service) AddAgentNote(ctx context.Context, id, author, content string) (*callback.CallbackRequest, error) {
	author, content = strings.TrimSpace(author), strings.TrimSpace(content)
	if author == "" || content == "" {
		return nil, fmt.Errorf("note author and content are required: %w", xerrors.ErrInvalidInput)
	}

	return s.submit(ctx, func(ctx context.Context) outcome {
		cur, ok := s.requests[id]
		if !ok {
			return outcome{err: notFound(id)}
		}
		now := s.clock.Now()
		next := cur.Clone()
		next.Notes = append(next.Notes, newNote(now, author, callback.NoteTypeAgent, content))
		next.UpdatedAt = now

		committed, err := s.commit(ctx, now, next)
		if err != nil {
			return outcome{err: err}
		}
		return outcome{
			req:    committed.Clone(),
			events: []callback.Event{s.event(callback.EventNoteAdded, committed, "Note added", content, callback.SeverityInfo, now)},
		}
	})
}

// Tick decays the wait estimate of every pending request by one minute and,
// when enabled, promotes scheduled requests that are due.
func (s *Service) Tick(ctx context.Context) (int, error) {
	decayed := 0
	_, err := s.submit(ctx, func(ctx context.Context) outcome {
		now := s.clock.Now()
		var updated []*callback.CallbackRequest
		var promoted []string

		for _, r := range s.list() {
			switch {
			case r.Status == callback.StatusPending && r.EstimatedWaitTime > 0:
				next := r.Clone()
				next.EstimatedWaitTime--
				updated = append(updated, next)
			case s.opts.AutoPromoteScheduled && r.Status == callback.StatusScheduled &&
				r.ScheduledTime != nil && !r.ScheduledTime.After(now):
				if err := callback.ValidateTransition(r.Status, callback.TriggerPromote); err != nil {
					continue
				}
				next := r.Clone()
				next.Status = callback.StatusPending
				next.UpdatedAt = now
				next.Notes = append(next.Notes, newNote(now, systemAuthor, callback.NoteTypeSystem, "Scheduled callback is due"))
				updated = append(updated, next)
				promoted = append(promoted, r.ID)
			}
		}
		if len(updated) == 0 {
			return outcome{}
		}

		if _, err := s.commit(ctx, now, updated...); err != nil {
			return outcome{err: err}
		}
		decayed = len(updated) - len(promoted)

		events := make([]callback.Event, 0, len(promoted))
		for _, id := range promoted {
			committed := s.requests[id]
			events = append(events, s.event(callback.EventPromoted, committed, "Scheduled callback due",
				fmt.Sprintf("%s is now in the queue", committed.CustomerName), callback.SeverityInfo, now))
		}
		return outcome{events: events}
	})
	return decayed, err
}

// transition runs one lifecycle command: validate against the transition
// table, mutate a copy, append the note, then commit.
func (s *Service) transition(
	ctx context.Context,
	id string,
	trigger callback.Trigger,
	mutate func(req *callback.CallbackRequest, now time.Time) (callback.CallbackNote, error),
	describe func(req *callback.CallbackRequest, now time.Time) callback.Event,
) (*callback.CallbackRequest, error) {
	return s.submit(ctx, func(ctx context.Context) outcome {
		cur, ok := s.requests[id]
		if !ok {
			return outcome{err: notFound(id)}
		}
		if err := callback.ValidateTransition(cur.Status, trigger); err != nil {
			return outcome{err: fmt.Errorf("callback %s: %w", id, err)}
		}

		now := s.clock.Now()
		next := cur.Clone()
		note, err := mutate(next, now)
		if err != nil {
			out := outcome{err: err}
			if errors.Is(err, xerrors.ErrRetryExhausted) {
				out.events = []callback.Event{s.event(callback.EventRetryExhausted, cur, "Max retries reached",
					fmt.Sprintf("Callback for %s has no retries left", cur.CustomerName), callback.SeverityWarning, now)}
			}
			return out
		}

		target, _ := callback.Target(trigger)
		next.Status = target
		next.UpdatedAt = now
		next.Notes = append(next.Notes, note)

		committed, err := s.commit(ctx, now, next)
		if err != nil {
			return outcome{err: err}
		}
		return outcome{req: committed.Clone(), events: []callback.Event{describe(committed, now)}}
	})
}

// commit merges updated copies into a working set, recomputes positions,
// persists, and only then swaps the working set in. On error the owned
// state is untouched.
func (s *Service) commit(ctx context.Context, now time.Time, updated ...*callback.CallbackRequest) (*callback.CallbackRequest, error) {
	working := make(map[string]*callback.CallbackRequest, len(s.requests)+1)
	for id, r := range s.requests {
		working[id] = r
	}
	dirty := make(map[string]bool, len(updated))
	for _, u := range updated {
		working[u.ID] = u
		dirty[u.ID] = true
	}

	list := make([]*callback.CallbackRequest, 0, len(working))
	for _, r := range working {
		list = append(list, r)
	}
	positions := ComputePositions(list)

	changed := make([]*callback.CallbackRequest, 0, len(updated))
	for id, r := range working {
		pos := positions[id]
		if !dirty[id] {
			if pos == r.QueuePosition {
				continue
			}
			r = r.Clone()
			working[id] = r
		}
		r.QueuePosition = pos
		prev, existed := s.requests[id]
		switch {
		case r.Status == callback.StatusPending && (!existed || prev.Status != callback.StatusPending):
			r.EstimatedWaitTime = pos * s.opts.MinutesPerPosition
		case r.Status != callback.StatusPending:
			r.EstimatedWaitTime = 0
		}
		changed = append(changed, r)
	}

	all := make([]*callback.CallbackRequest, 0, len(working))
	for _, r := range working {
		all = append(all, r)
	}
	if err := s.persist(ctx, all, changed); err != nil {
		return nil, err
	}

	s.requests = working
	s.publishSnapshot(now)
	return working[updated[0].ID], nil
}

// persist writes changed records (or the whole set for blob stores),
// retrying transient failures a bounded number of times.
func (s *Service) persist(ctx context.Context, all, changed []*callback.CallbackRequest) error {
	var err error
	for attempt := 1; attempt <= s.opts.WriteAttempts; attempt++ {
		if rs, ok := s.store.(RecordStore); ok {
			err = rs.Upsert(ctx, changed)
		} else {
			err = s.store.SaveAll(ctx, all)
		}
		if err == nil {
			return nil
		}

		s.logger.Warn("callback store write failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", s.opts.WriteAttempts),
			zap.Error(err),
		)
		if attempt == s.opts.WriteAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", xerrors.ErrPersistence, ctx.Err())
		case <-time.After(time.Duration(attempt) * s.opts.WriteBackoff):
		}
	}
	return fmt.Errorf("%w: %w", xerrors.ErrPersistence, err)
}

func (s *Service) publishSnapshot(now time.Time) {
	list := s.list()
	clones := make([]*callback.CallbackRequest, len(list))
	byID := make(map[string]*callback.CallbackRequest, len(list))
	for i, r := range list {
		c := r.Clone()
		clones[i] = c
		byID[c.ID] = c
	}

	var previous []callback.AgentCallbackNotification
	if old := s.snap.Load(); old != nil {
		previous = old.notifications
	}

	s.snap.Store(&snapshot{
		requests:      clones,
		byID:          byID,
		notifications: ProjectNotifications(clones, previous, now, s.opts.NotificationTTL),
	})
}

func (s *Service) publish(ctx context.Context, events []callback.Event) {
	if s.sink == nil {
		return
	}
	for _, ev := range events {
		if err := s.sink.Publish(ctx, ev); err != nil {
			s.logger.Warn("failed to publish callback event",
				zap.String("event", string(ev.Type)),
				zap.String("callback_id", ev.CallbackID),
				zap.Error(err),
			)
		}
	}
}

// list returns the owned requests ordered by creation time.
func (s *Service) list() []*callback.CallbackRequest {
	out := make([]*callback.CallbackRequest, 0, len(s.requests))
	for _, r := range s.requests {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// closeOffer returns the open offer for a request, marked with its final
// status, or nil when agents were never notified. It must run before
// commit replaces the snapshot.
func (s *Service) closeOffer(callbackID string, status callback.NotificationStatus) *callback.AgentCallbackNotification {
	n, ok := s.notificationFor(callbackID)
	if !ok {
		return nil
	}
	n.Status = status
	return &n
}

func (s *Service) notificationFor(callbackID string) (callback.AgentCallbackNotification, bool) {
	for _, n := range s.snap.Load().notifications {
		if n.CallbackID == callbackID {
			return n, true
		}
	}
	return callback.AgentCallbackNotification{}, false
}

func (s *Service) event(t callback.EventType, req *callback.CallbackRequest, title, message string, sev callback.Severity, now time.Time) callback.Event {
	return callback.Event{
		ID:         ulid.Make().String(),
		Type:       t,
		CallbackID: req.ID,
		Title:      title,
		Message:    message,
		Severity:   sev,
		Callback:   req.Clone(),
		OccurredAt: now,
	}
}

func newNote(now time.Time, author string, t callback.NoteType, content string) callback.CallbackNote {
	return callback.CallbackNote{
		ID:        ulid.Make().String(),
		Content:   content,
		CreatedAt: now,
		CreatedBy: author,
		Type:      t,
	}
}

func authorOf(req *callback.CallbackRequest) string {
	if req.AssignedAgentName != "" {
		return req.AssignedAgentName
	}
	return systemAuthor
}

func checkAssignee(req *callback.CallbackRequest, agentID string) error {
	if agentID == "" || req.AssignedTo(agentID) {
		return nil
	}
	return fmt.Errorf("callback %s is assigned to %s: %w", req.ID, req.AssignedAgentName, xerrors.ErrForbidden)
}

func notFound(id string) error {
	return fmt.Errorf("callback %s: %w", id, xerrors.ErrNotFound)
}

func validateCreate(in *callback.CreateCallbackRequest) error {
	in.CustomerName = strings.TrimSpace(in.CustomerName)
	in.CustomerPhone = strings.TrimSpace(in.CustomerPhone)
	in.CustomerEmail = strings.TrimSpace(in.CustomerEmail)
	in.Reason = strings.TrimSpace(in.Reason)

	switch {
	case in.CustomerName == "":
		return fmt.Errorf("customer name is required: %w", xerrors.ErrInvalidInput)
	case in.CustomerPhone == "":
		return fmt.Errorf("customer phone is required: %w", xerrors.ErrInvalidInput)
	case in.Reason == "":
		return fmt.Errorf("reason is required: %w", xerrors.ErrInvalidInput)
	}

	if in.Priority == "" {
		in.Priority = callback.PriorityNormal
	}
	if !in.Priority.Valid() {
		return fmt.Errorf("unknown priority %q: %w", in.Priority, xerrors.ErrInvalidInput)
	}
	if in.ScheduledEndTime != nil && in.ScheduledTime == nil {
		return fmt.Errorf("scheduled end time needs a scheduled time: %w", xerrors.ErrInvalidInput)
	}
	if in.ScheduledEndTime != nil && in.ScheduledEndTime.Before(*in.ScheduledTime) {
		return fmt.Errorf("scheduled end time is before scheduled time: %w", xerrors.ErrInvalidInput)
	}
	if in.MaxRetries != nil && *in.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative: %w", xerrors.ErrInvalidInput)
	}
	if in.RetryInterval != nil && *in.RetryInterval < 0 {
		return fmt.Errorf("retry interval must not be negative: %w", xerrors.ErrInvalidInput)
	}
	return nil
}
