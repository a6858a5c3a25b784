// Package runner executes due jobs one at a time.
//
// A pass reconciles recurring schedules, then repeatedly takes the earliest
// due todo row, runs its activity and records the outcome, until nothing is
// due. Activity failures, panics and undecodable params mark the job as
// failed and raise an alarm; only job store failures end a pass early.
//
// The runner sets no deadline on an activity. A stuck Run blocks the pass.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/tempo/errors"
	"github.com/teranos/tempo/logger"
	"github.com/teranos/tempo/pulse/activity"
	"github.com/teranos/tempo/pulse/alarm"
	"github.com/teranos/tempo/pulse/jobs"
	"github.com/teranos/tempo/pulse/params"
	"github.com/teranos/tempo/pulse/schedule"
)

// Options holds the runner's optional collaborators.
type Options struct {
	Alarm  alarm.Sink       // nil: failures are only logged
	Handle activity.Handle  // passed to activity factories
	Clock  func() time.Time // default time.Now
}

// Runner drives scheduler passes.
type Runner struct {
	registry   *activity.Registry
	store      *jobs.Store
	reconciler *schedule.Reconciler
	alarm      alarm.Sink
	handle     activity.Handle
	now        func() time.Time
	logger     *zap.SugaredLogger
}

// Result summarises one pass.
type Result struct {
	PassID    string
	Reconcile schedule.Summary
	Done      int
	Failed    int
}

// Ran is the number of jobs executed in the pass.
func (r Result) Ran() int { return r.Done + r.Failed }

// New creates a Runner.
func New(registry *activity.Registry, store *jobs.Store, reconciler *schedule.Reconciler, opts Options, log *zap.SugaredLogger) *Runner {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Alarm == nil {
		opts.Alarm = alarm.NewLogSink(log)
	}
	return &Runner{
		registry:   registry,
		store:      store,
		reconciler: reconciler,
		alarm:      opts.Alarm,
		handle:     opts.Handle,
		now:        opts.Clock,
		logger:     log.Named("runner"),
	}
}

// Pass runs one scheduler pass. The returned error is always a store
// failure; everything an activity does wrong ends up in its job row.
//
// Cancelling ctx stops the pass before the next job is taken. A job that
// has started is always run to completion and recorded.
func (r *Runner) Pass(ctx context.Context) (Result, error) {
	res := Result{PassID: uuid.NewString()}
	ctx = logger.WithPassID(ctx, res.PassID)
	log := logger.FromContext(ctx, r.logger)

	if ctx.Err() != nil {
		log.Infow("Pass skipped, shutting down")
		return res, nil
	}
	logger.AddPulseOpenSymbol(log).Debugw("Pass started")

	sum, err := r.reconciler.Reconcile(ctx, r.now())
	if err != nil {
		return res, errors.Wrap(err, "reconcile")
	}
	res.Reconcile = sum

	for {
		if ctx.Err() != nil {
			log.Infow("Pass interrupted before next job", logger.FieldCount, res.Ran())
			return res, nil
		}

		job, err := r.store.NextDue(ctx, r.now())
		if err != nil {
			return res, err
		}
		if job == nil {
			break
		}

		status, err := r.runJob(ctx, job)
		if err != nil {
			return res, err
		}
		switch status {
		case jobs.StatusDone:
			res.Done++
		case jobs.StatusFail:
			res.Failed++
		}
	}

	logger.AddPulseCloseSymbol(log).Infow("Pass finished",
		logger.FieldCount, res.Ran(),
		"failed", res.Failed,
		logger.FieldInserted, sum.Inserted,
		logger.FieldDeleted, sum.Deleted)
	return res, nil
}

// runJob takes one due job through working to its outcome. It returns an
// empty status when the row was claimed elsewhere.
func (r *Runner) runJob(ctx context.Context, job *jobs.Job) (jobs.Status, error) {
	log := logger.FromContext(ctx, r.logger).With(logger.FieldJobID, job.ID, logger.FieldType, job.Type)

	// Once a job is claimed its bookkeeping must land even if ctx is cancelled.
	storeCtx := context.WithoutCancel(ctx)

	start := r.now()
	if err := r.store.MarkWorking(storeCtx, job.ID, start); err != nil {
		if errors.Is(err, jobs.ErrIllegalTransition) || errors.IsNotFoundError(err) {
			log.Warnw("Due job was claimed elsewhere, skipping", logger.FieldError, err)
			return "", nil
		}
		return "", err
	}
	logger.AddPulseSymbol(log).Infow("Job started")

	var out bytes.Buffer
	p, runErr := r.execute(ctx, job, &out)

	status := jobs.StatusDone
	if runErr != nil {
		status = jobs.StatusFail
		if out.Len() > 0 && !bytes.HasSuffix(out.Bytes(), []byte("\n")) {
			out.WriteByte('\n')
		}
		out.WriteString(errors.Trace(runErr))
	}

	finish := r.now()
	duration := int64(finish.Sub(start).Round(time.Second) / time.Second)
	if err := r.store.MarkFinished(storeCtx, job.ID, status, duration, out.String(), finish); err != nil {
		if errors.IsStoreError(err) {
			return "", err
		}
		log.Errorw("Could not record job outcome", logger.FieldError, err)
		return "", nil
	}

	if status == jobs.StatusDone {
		logger.AddPulseSymbol(log).Infow("Job finished",
			logger.FieldStatus, status,
			logger.FieldDurationS, duration)
		return status, nil
	}

	log.Warnw("Job failed",
		logger.FieldStatus, status,
		logger.FieldDurationS, duration,
		logger.FieldError, runErr)

	msg := alarm.FormatFailure(alarm.Failure{
		JobID:  job.ID,
		Type:   job.Type,
		Params: p,
		Trace:  errors.Trace(runErr),
	})
	if err := r.alarm.Notify(storeCtx, msg); err != nil {
		log.Warnw("Alarm delivery failed", logger.FieldError, err)
	}
	return status, nil
}

// execute decodes, constructs and runs the job's activity. Any error it
// returns fails the job.
func (r *Runner) execute(ctx context.Context, job *jobs.Job, out *bytes.Buffer) (params.Params, error) {
	p, err := params.Decode(job.Params)
	if err != nil {
		return nil, errors.Wrapf(err, "decode params of job %d", job.ID)
	}

	return p, runSafely(ctx, job.Type, out, func() (activity.Activity, error) {
		a, err := r.registry.New(r.handle, job.Type, p)
		if err != nil {
			return nil, errors.Wrapf(err, "construct activity for job %d", job.ID)
		}
		return a, nil
	})
}

// runSafely builds and runs one activity, turning a panic in either step
// into an error.
func runSafely(ctx context.Context, typ string, out *bytes.Buffer, build func() (activity.Activity, error)) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.Newf("activity %s panicked: %v\n%s", typ, rec, debug.Stack())
		}
	}()

	a, err := build()
	if err != nil {
		return err
	}
	if err := a.Run(ctx, out); err != nil {
		return errors.Wrapf(err, "run %s", activity.TypeName(a))
	}
	return nil
}

// String implements fmt.Stringer for log output.
func (r Result) String() string {
	return fmt.Sprintf("pass %s: %d done, %d failed (reconcile: +%d -%d)",
		r.PassID, r.Done, r.Failed, r.Reconcile.Inserted, r.Reconcile.Deleted)
}
