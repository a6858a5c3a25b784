package pulse

import (
	"context"
	"fmt"
	"io"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/tempo/db"
	"github.com/teranos/tempo/errors"
	tempotest "github.com/teranos/tempo/internal/testing"
	"github.com/teranos/tempo/pulse/activity"
	"github.com/teranos/tempo/pulse/jobs"
	"github.com/teranos/tempo/pulse/params"
)

var t0 = time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)

type exportActivity struct {
	activity.Base
	handle activity.Handle
	mu     *sync.Mutex
	log    *[]string
}

func (a *exportActivity) Type() string       { return "export" }
func (a *exportActivity) Recurrence() string { return "" }
func (a *exportActivity) Run(ctx context.Context, out io.Writer) error {
	a.mu.Lock()
	*a.log = append(*a.log, "export "+a.StrOr("customer", ""))
	a.mu.Unlock()

	// Hand the produced file to the notifier as a follow-up job.
	if a.handle != nil && a.IntOr("notify", 0) == 1 {
		_, err := a.handle.ScheduleNow(ctx, "notify", params.Params{"file": params.String(a.StrOr("customer", "") + ".csv")})
		return err
	}
	fmt.Fprintln(out, "exported")
	return nil
}

type notifyActivity struct {
	activity.Base
	mu  *sync.Mutex
	log *[]string
}

func (a *notifyActivity) Type() string       { return "notify" }
func (a *notifyActivity) Recurrence() string { return "" }
func (a *notifyActivity) Run(context.Context, io.Writer) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	*a.log = append(*a.log, "notify "+a.StrOr("file", ""))
	return nil
}

type cleanupActivity struct{ activity.Base }

func (*cleanupActivity) Type() string                         { return "cleanup" }
func (*cleanupActivity) Recurrence() string                   { return "0 3 * * *" }
func (*cleanupActivity) Run(context.Context, io.Writer) error { return nil }

func newScheduler(t *testing.T) (*Scheduler, *[]string) {
	t.Helper()
	var mu sync.Mutex
	var log []string

	reg := activity.NewRegistry()
	reg.MustRegister(activity.Build(func(h activity.Handle) activity.Activity {
		return &exportActivity{Base: activity.NewBase("customer", "notify"), handle: h, mu: &mu, log: &log}
	}))
	reg.MustRegister(activity.Build(func(activity.Handle) activity.Activity {
		return &notifyActivity{Base: activity.NewBase("file"), mu: &mu, log: &log}
	}))
	reg.MustRegister(activity.Build(func(activity.Handle) activity.Activity {
		return &cleanupActivity{Base: activity.NewBase()}
	}))

	store := jobs.NewStore(tempotest.CreateTestDB(t), db.SQLite)
	s := New(reg, store, Config{Clock: func() time.Time { return t0 }}, zaptest.NewLogger(t).Sugar())
	return s, &log
}

func TestScheduleNow(t *testing.T) {
	s, _ := newScheduler(t)
	ctx := context.Background()

	id, err := s.ScheduleNow(ctx, "export", params.Params{"customer": params.String("acme")})
	require.NoError(t, err)

	job, err := s.Store().Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusTodo, job.Status)
	assert.True(t, t0.Equal(job.Plan))
	assert.NotEmpty(t, job.Params)

	decoded, err := params.Decode(job.Params)
	require.NoError(t, err)
	assert.True(t, params.Params{"customer": params.String("acme")}.Equal(decoded))
}

func TestScheduleWithoutParamsIsStillAdHoc(t *testing.T) {
	s, _ := newScheduler(t)
	ctx := context.Background()

	id, err := s.ScheduleAt(ctx, "cleanup", t0.Add(time.Hour), nil)
	require.NoError(t, err)

	job, err := s.Store().Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "{}", job.Params)
	assert.False(t, job.Recurring(), "reconciler must not treat it as its own row")

	_, err = s.Reconcile(ctx)
	require.NoError(t, err)
	_, err = s.Store().Get(ctx, id)
	assert.NoError(t, err, "reconciliation leaves ad-hoc rows alone")
}

func TestScheduleValidation(t *testing.T) {
	s, _ := newScheduler(t)
	ctx := context.Background()

	_, err := s.ScheduleNow(ctx, "unknown", nil)
	assert.True(t, errors.Is(err, activity.ErrUnknownType))
	assert.True(t, errors.IsInvalidRequestError(err))

	_, err = s.ScheduleNow(ctx, "export", params.Params{"region": params.String("eu")})
	assert.True(t, errors.Is(err, activity.ErrUnknownField))
	assert.True(t, errors.IsInvalidRequestError(err))

	_, err = s.ScheduleNow(ctx, "export", params.Params{"customer": params.Float(math.NaN())})
	assert.True(t, errors.Is(err, params.ErrUnsupportedType))

	rows, err := s.Store().ListByStatus(ctx, "", 0)
	require.NoError(t, err)
	assert.Empty(t, rows, "rejected submissions insert nothing")
}

func TestActivateRunsFollowUps(t *testing.T) {
	s, log := newScheduler(t)
	ctx := context.Background()

	_, err := s.ScheduleNow(ctx, "export", params.Params{
		"customer": params.String("acme"),
		"notify":   params.Int(1),
	})
	require.NoError(t, err)

	res, err := s.Activate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Done)
	assert.Equal(t, 1, res.Reconcile.Inserted, "cleanup gets its nightly row")
	assert.Equal(t, []string{"export acme", "notify acme.csv"}, *log)
}

func TestPlans(t *testing.T) {
	s, _ := newScheduler(t)

	plans := s.Plans()
	require.Len(t, plans, 3)

	byType := map[string]Plan{}
	for _, p := range plans {
		byType[p.Type] = p
	}
	assert.Equal(t, time.Date(2026, 10, 17, 3, 0, 0, 0, time.UTC), byType["cleanup"].Next)
	assert.NoError(t, byType["cleanup"].Err)
	assert.True(t, byType["export"].Next.IsZero())
	assert.Equal(t, []string{"customer", "notify"}, byType["export"].Fields)
}
