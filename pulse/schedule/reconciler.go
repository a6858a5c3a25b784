package schedule

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/tempo/logger"
	"github.com/teranos/tempo/pulse/activity"
	"github.com/teranos/tempo/pulse/jobs"
)

// Reconciler makes sure every recurring activity has exactly one
// empty-params todo row, planned at its next occurrence.
type Reconciler struct {
	registry *activity.Registry
	store    *jobs.Store
	loc      *time.Location
	pulseLog *zap.SugaredLogger
}

// Summary counts what one reconciliation pass did.
type Summary struct {
	Inserted int
	Deleted  int
	Matched  int
	Skipped  int // activities whose expression could not be evaluated
}

// NewReconciler creates a reconciler. Cron expressions are evaluated in loc
// (UTC when nil).
func NewReconciler(registry *activity.Registry, store *jobs.Store, loc *time.Location, log *zap.SugaredLogger) *Reconciler {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Reconciler{
		registry: registry,
		store:    store,
		loc:      loc,
		pulseLog: logger.AddPulseSymbol(log.Named("reconciler")),
	}
}

type candidate struct {
	jobs.Pending
	matched bool
}

// Reconcile runs one pass in a single transaction. Replaying it with the
// same now leaves the row set unchanged. A bad expression skips that
// activity; only store failures are returned. A skipped activity plans
// nothing, so any pending recurring row it already had is deleted as stale.
func (r *Reconciler) Reconcile(ctx context.Context, now time.Time) (Summary, error) {
	var sum Summary
	log := logger.FromContext(ctx, r.pulseLog)

	err := r.store.Transact(ctx, func(tx *jobs.Store) error {
		sum = Summary{}

		pending, err := tx.ListPending(ctx, now)
		if err != nil {
			return err
		}
		candidates := make([]candidate, len(pending))
		for i, p := range pending {
			candidates[i] = candidate{Pending: p}
		}

		for _, typ := range r.registry.Types() {
			expr, _ := r.registry.RecurrenceFor(typ)
			if expr == "" {
				continue
			}

			next, err := NextOccurrence(expr, now, r.loc)
			if err != nil {
				sum.Skipped++
				log.Warnw("Skipping activity with unusable recurrence",
					logger.FieldType, typ,
					logger.FieldRecurrence, expr,
					logger.FieldError, err)
				continue
			}

			if c := findCandidate(candidates, typ, next); c != nil {
				c.matched = true
				sum.Matched++
				continue
			}

			id, err := tx.Insert(ctx, typ, jobs.StatusTodo, next, "")
			if err != nil {
				return err
			}
			sum.Inserted++
			log.Debugw("Planned recurring job",
				logger.FieldJobID, id,
				logger.FieldType, typ,
				logger.FieldPlan, next)
		}

		var stale []int64
		for _, c := range candidates {
			if !c.matched {
				stale = append(stale, c.ID)
			}
		}
		deleted, err := tx.Delete(ctx, stale...)
		if err != nil {
			return err
		}
		sum.Deleted = int(deleted)
		return nil
	})
	if err != nil {
		return Summary{}, err
	}

	if sum.Inserted > 0 || sum.Deleted > 0 {
		log.Infow("Reconciled recurring jobs",
			logger.FieldInserted, sum.Inserted,
			logger.FieldDeleted, sum.Deleted,
			logger.FieldMatched, sum.Matched)
	}
	return sum, nil
}

// findCandidate returns the first unmatched candidate of typ planned at next.
func findCandidate(candidates []candidate, typ string, next time.Time) *candidate {
	for i := range candidates {
		c := &candidates[i]
		if !c.matched && c.Type == typ && c.Plan.Equal(next) {
			return c
		}
	}
	return nil
}
