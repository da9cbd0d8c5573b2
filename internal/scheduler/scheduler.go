// Package scheduler implements the Scheduler component: a polling
// loop over the persisted schedule table that advances each due row's
// next_run before dispatching it, so a crash mid-dispatch can never
// cause the same schedule to fire twice on the following poll.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"

	"github.com/svarun115/assistant-gateway/internal/registry"
	"github.com/svarun115/assistant-gateway/internal/store"
)

// DefaultPollInterval matches the polling cadence of the system this
// component is modeled on.
const DefaultPollInterval = 60 * time.Second

// OnDueAgent is invoked for every schedule row whose next_run has
// passed. Implementations typically delegate to
// internal/spawner.Spawner.SpawnBackground. A nil callback means
// schedules are still advanced on each tick, just never fired — useful
// while wiring the rest of the gateway up.
type OnDueAgent func(ctx context.Context, userID, agentName, skill string, config map[string]any)

// Scheduler polls store.ScheduleStore and dispatches due rows.
type Scheduler struct {
	store        store.ScheduleStore
	onDue        OnDueAgent
	pollInterval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

func New(st store.ScheduleStore, onDue OnDueAgent, pollInterval time.Duration) *Scheduler {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Scheduler{store: st, onDue: onDue, pollInterval: pollInterval}
}

// SetCallback hot-swaps the due-agent callback, e.g. once the spawner
// is constructed after the scheduler already exists.
func (s *Scheduler) SetCallback(onDue OnDueAgent) { s.onDue = onDue }

// Start launches the polling loop in a background goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()

		for {
			if err := s.tick(loopCtx); err != nil {
				slog.Error("scheduler.tick_failed", "error", err)
			}
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	slog.Info("scheduler.started", "poll_interval", s.pollInterval)
}

// Stop cancels the polling loop and waits for it to exit.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("scheduler.stopped")
}

func (s *Scheduler) tick(ctx context.Context) error {
	due, err := s.store.ListDue(ctx)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}

	slog.Info("scheduler.due", "count", len(due))
	for _, entry := range due {
		go s.fire(ctx, entry)
	}
	return nil
}

// fire advances the schedule's next_run before invoking the callback —
// the ordering, not just the update, is what prevents a slow or
// crashed run from causing a double-fire on the next poll.
func (s *Scheduler) fire(ctx context.Context, entry store.ScheduleEntry) {
	nextRun, err := NextRun(entry.Cron, time.Now())
	if err != nil {
		slog.Error("scheduler.next_run_failed", "schedule", entry.ID, "cron", entry.Cron, "error", err)
		return
	}

	now := time.Now()
	if err := s.store.Advance(ctx, entry.ID, nextRun, now); err != nil {
		slog.Error("scheduler.advance_failed", "schedule", entry.ID, "error", err)
		return
	}

	slog.Info("scheduler.firing", "agent", entry.AgentName, "user", entry.UserID, "skill", entry.Skill, "next_run", nextRun)

	if s.onDue == nil {
		slog.Debug("scheduler.no_callback", "schedule", entry.ID)
		return
	}
	s.onDue(ctx, entry.UserID, entry.AgentName, entry.Skill, entry.Config)
}

// NextRun computes the next fire time for a cron expression after the
// given reference time.
func NextRun(cronExpr string, after time.Time) (time.Time, error) {
	return gronx.NextTickAfter(cronExpr, after, false)
}

// Schedule registers a new cron job and returns its schedule ID.
func (s *Scheduler) Schedule(ctx context.Context, userID, agentName, skill, cronExpr string, config map[string]any) (string, error) {
	nextRun, err := NextRun(cronExpr, time.Now())
	if err != nil {
		return "", fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}
	id, err := s.store.Create(ctx, store.ScheduleEntry{
		UserID: userID, AgentName: agentName, Skill: skill, Cron: cronExpr,
		NextRun: nextRun, Config: config, IsActive: true,
	})
	if err != nil {
		return "", err
	}
	slog.Info("scheduler.scheduled", "agent", agentName, "user", userID, "cron", cronExpr, "first_run", nextRun)
	return id, nil
}

// Unschedule deactivates a schedule. Returns true if a row was found
// and deactivated.
func (s *Scheduler) Unschedule(ctx context.Context, scheduleID string) (bool, error) {
	return s.store.Deactivate(ctx, scheduleID)
}

// ListSchedules lists active schedules for a user, ordered by
// next_run (the store enforces the ordering).
func (s *Scheduler) ListSchedules(ctx context.Context, userID string) ([]store.ScheduleEntry, error) {
	return s.store.List(ctx, userID)
}

// RunNow dispatches a schedule immediately, out of band from the poll
// loop, without touching its next_run — an operator-triggered run
// must not perturb the regular cadence.
func (s *Scheduler) RunNow(ctx context.Context, userID, scheduleID string) error {
	entries, err := s.store.List(ctx, userID)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.ID == scheduleID {
			if s.onDue != nil {
				s.onDue(ctx, e.UserID, e.AgentName, e.Skill, e.Config)
			}
			return nil
		}
	}
	return fmt.Errorf("scheduler: schedule %q not found for user %q", scheduleID, userID)
}

// SyncFromHeartbeats reads every active agent instance's HEARTBEAT.md
// schedule declarations for a user and upserts them into the schedule
// table: a schedule whose cron hasn't changed is left untouched (so a
// user-edited next_run isn't clobbered on every restart); a changed
// cron updates in place; a schedule declared for the first time is
// created.
func (s *Scheduler) SyncFromHeartbeats(ctx context.Context, instances []store.AgentInstance) (created, updated, unchanged int, err error) {
	for _, inst := range instances {
		if inst.HeartbeatMD == "" {
			continue
		}
		def := &registry.Definition{AgentName: inst.AgentName, HeartbeatMD: inst.HeartbeatMD}
		for _, decl := range def.Schedules() {
			if decl.Cron == "" {
				slog.Warn("scheduler.heartbeat_schedule_missing_cron", "agent", inst.AgentName, "user", inst.UserID)
				continue
			}

			config := map[string]any{"task": decl.Skill}
			for k, v := range decl.Config {
				config[k] = v
			}
			skill := inst.AgentName

			existing, findErr := s.store.FindActiveByAgent(ctx, inst.UserID, inst.AgentName)
			if findErr != nil {
				err = findErr
				return
			}

			if existing == nil {
				nextRun, nrErr := NextRun(decl.Cron, time.Now())
				if nrErr != nil {
					slog.Warn("scheduler.heartbeat_invalid_cron", "agent", inst.AgentName, "cron", decl.Cron, "error", nrErr)
					continue
				}
				if _, createErr := s.store.Create(ctx, store.ScheduleEntry{
					UserID: inst.UserID, AgentName: inst.AgentName, Skill: skill, Cron: decl.Cron,
					NextRun: nextRun, Config: config, IsActive: true,
				}); createErr != nil {
					err = createErr
					return
				}
				created++
				slog.Info("scheduler.heartbeat_registered", "agent", inst.AgentName, "user", inst.UserID, "cron", decl.Cron)
				continue
			}

			if existing.Cron == decl.Cron {
				unchanged++
				continue
			}

			nextRun, nrErr := NextRun(decl.Cron, time.Now())
			if nrErr != nil {
				slog.Warn("scheduler.heartbeat_invalid_cron", "agent", inst.AgentName, "cron", decl.Cron, "error", nrErr)
				continue
			}
			if updErr := s.store.UpdateFromHeartbeat(ctx, existing.ID, decl.Cron, nextRun, config); updErr != nil {
				err = updErr
				return
			}
			updated++
			slog.Info("scheduler.heartbeat_updated", "agent", inst.AgentName, "from_cron", existing.Cron, "to_cron", decl.Cron)
		}
	}
	return
}
