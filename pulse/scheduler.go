// Package pulse wires the activity registry, job store, reconciler and
// runner into one Scheduler. It is the entry point for embedding processes
// and for activities that queue follow-up work.
package pulse

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/tempo/errors"
	"github.com/teranos/tempo/logger"
	"github.com/teranos/tempo/pulse/activity"
	"github.com/teranos/tempo/pulse/alarm"
	"github.com/teranos/tempo/pulse/jobs"
	"github.com/teranos/tempo/pulse/params"
	"github.com/teranos/tempo/pulse/runner"
	"github.com/teranos/tempo/pulse/schedule"
)

// Config holds optional scheduler settings.
type Config struct {
	Location *time.Location   // cron evaluation zone, default UTC
	Alarm    alarm.Sink       // default: log sink
	Clock    func() time.Time // default time.Now
}

// Scheduler is the durable crontab: one registry, one store.
type Scheduler struct {
	registry   *activity.Registry
	store      *jobs.Store
	reconciler *schedule.Reconciler
	runner     *runner.Runner
	loc        *time.Location
	now        func() time.Time
	pulseLog   *zap.SugaredLogger
}

var _ activity.Handle = (*Scheduler)(nil)

// New builds a Scheduler.
func New(registry *activity.Registry, store *jobs.Store, cfg Config, log *zap.SugaredLogger) *Scheduler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	s := &Scheduler{
		registry: registry,
		store:    store,
		loc:      cfg.Location,
		now:      cfg.Clock,
		pulseLog: logger.AddPulseSymbol(log.Named("pulse")),
	}
	s.reconciler = schedule.NewReconciler(registry, store, cfg.Location, log)
	s.runner = runner.New(registry, store, s.reconciler, runner.Options{
		Alarm:  cfg.Alarm,
		Handle: s,
		Clock:  cfg.Clock,
	}, log)
	return s
}

// Registry returns the activity registry.
func (s *Scheduler) Registry() *activity.Registry { return s.registry }

// Store returns the job store.
func (s *Scheduler) Store() *jobs.Store { return s.store }

// Location returns the zone cron expressions are evaluated in.
func (s *Scheduler) Location() *time.Location { return s.loc }

// ScheduleNow queues an ad-hoc job due immediately.
func (s *Scheduler) ScheduleNow(ctx context.Context, typ string, p params.Params) (int64, error) {
	return s.ScheduleAt(ctx, typ, s.now(), p)
}

// ScheduleAt queues an ad-hoc job due at the given time. The type must be
// registered and every parameter must belong to its schema; both are checked
// here, not when the job runs.
func (s *Scheduler) ScheduleAt(ctx context.Context, typ string, at time.Time, p params.Params) (int64, error) {
	if _, err := s.registry.New(s, typ, p); err != nil {
		return 0, errors.Mark(errors.Wrapf(err, "schedule %s", typ), errors.ErrInvalidRequest)
	}

	payload, err := params.Encode(p)
	if err != nil {
		return 0, errors.Mark(errors.Wrapf(err, "schedule %s", typ), errors.ErrInvalidRequest)
	}

	id, err := s.store.Insert(ctx, typ, jobs.StatusTodo, at, payload)
	if err != nil {
		return 0, err
	}
	logger.FromContext(ctx, s.pulseLog).Infow("Scheduled job",
		logger.FieldJobID, id,
		logger.FieldType, typ,
		logger.FieldPlan, at.UTC())
	return id, nil
}

// Activate runs one pass: reconcile, then drain every due job.
func (s *Scheduler) Activate(ctx context.Context) (runner.Result, error) {
	return s.runner.Pass(ctx)
}

// Reconcile runs only the reconciliation step.
func (s *Scheduler) Reconcile(ctx context.Context) (schedule.Summary, error) {
	return s.reconciler.Reconcile(ctx, s.now())
}

// Plan describes one registered activity's schedule.
type Plan struct {
	Type       string
	Recurrence string    // "" for ad-hoc only
	Fields     []string
	Next       time.Time // zero when ad-hoc or Err is set
	Err        error
}

// Plans lists every registered activity with its next occurrence.
func (s *Scheduler) Plans() []Plan {
	now := s.now()
	var plans []Plan
	for _, typ := range s.registry.Types() {
		expr, _ := s.registry.RecurrenceFor(typ)
		plan := Plan{Type: typ, Recurrence: expr}
		if a, err := s.registry.New(nil, typ, nil); err == nil {
			plan.Fields = a.Fields()
		}
		if expr != "" {
			plan.Next, plan.Err = schedule.NextOccurrence(expr, now, s.loc)
		}
		plans = append(plans, plan)
	}
	return plans
}
