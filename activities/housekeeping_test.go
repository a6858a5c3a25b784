package activities

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/tempo/db"
	tempotest "github.com/teranos/tempo/internal/testing"
	"github.com/teranos/tempo/pulse/activity"
	"github.com/teranos/tempo/pulse/jobs"
	"github.com/teranos/tempo/pulse/params"
)

var now = time.Date(2026, 10, 16, 3, 0, 0, 0, time.UTC)

func finishedJob(t *testing.T, store *jobs.Store, status jobs.Status, finish time.Time) int64 {
	t.Helper()
	ctx := context.Background()
	id, err := store.Insert(ctx, "export", jobs.StatusTodo, finish.Add(-time.Minute), "{}")
	require.NoError(t, err)
	require.NoError(t, store.MarkWorking(ctx, id, finish.Add(-time.Second)))
	require.NoError(t, store.MarkFinished(ctx, id, status, 1, "", finish))
	return id
}

func TestHousekeepingPurgesOldFinishedRows(t *testing.T) {
	store := jobs.NewStore(tempotest.CreateTestDB(t), db.SQLite)
	ctx := context.Background()

	old := finishedJob(t, store, jobs.StatusDone, now.AddDate(0, 0, -40))
	oldFailed := finishedJob(t, store, jobs.StatusFail, now.AddDate(0, 0, -40))
	recent := finishedJob(t, store, jobs.StatusDone, now.AddDate(0, 0, -2))

	f := NewHousekeeping(store, HousekeepingConfig{Schedule: "0 3 * * *", Days: 30, Clock: func() time.Time { return now }})
	a, err := f(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, HousekeepingType, a.Type())
	assert.Equal(t, "0 3 * * *", a.Recurrence())

	var out bytes.Buffer
	require.NoError(t, a.Run(ctx, &out))
	assert.Contains(t, out.String(), "purged 1 jobs")

	_, err = store.Get(ctx, old)
	assert.Error(t, err)
	_, err = store.Get(ctx, oldFailed)
	assert.NoError(t, err, "failed rows are kept")
	_, err = store.Get(ctx, recent)
	assert.NoError(t, err)
}

func TestHousekeepingDaysParam(t *testing.T) {
	store := jobs.NewStore(tempotest.CreateTestDB(t), db.SQLite)
	ctx := context.Background()
	finishedJob(t, store, jobs.StatusDone, now.AddDate(0, 0, -2))

	f := NewHousekeeping(store, HousekeepingConfig{Days: 30, Clock: func() time.Time { return now }})

	a, err := f(nil, params.Params{"days": params.Int(1)})
	require.NoError(t, err)
	var out bytes.Buffer
	require.NoError(t, a.Run(ctx, &out))
	assert.Contains(t, out.String(), "purged 1 jobs")

	a, err = f(nil, params.Params{"days": params.Int(0)})
	require.NoError(t, err)
	assert.Error(t, a.Run(ctx, &out))
}

func TestRegister(t *testing.T) {
	store := jobs.NewStore(tempotest.CreateTestDB(t), db.SQLite)
	reg := activity.NewRegistry()

	types, err := Register(reg, store, Set{
		Commands: []CommandSpec{
			{Name: "export", Schedule: "0 6 * * *", Command: "/opt/export"},
			{Name: "sync", Command: "/opt/sync"},
		},
		Housekeeping: HousekeepingConfig{Schedule: "0 3 * * *", Days: 30},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"housekeeping", "export", "sync"}, types)
	assert.Equal(t, []string{"export", "housekeeping", "sync"}, reg.Types())
}

func TestRegisterRejectsInvalidSetAtomically(t *testing.T) {
	store := jobs.NewStore(tempotest.CreateTestDB(t), db.SQLite)
	reg := activity.NewRegistry()

	_, err := Register(reg, store, Set{Commands: []CommandSpec{
		{Name: "export", Command: "/opt/export"},
		{Name: "export", Command: "/opt/other"},
	}})
	assert.ErrorContains(t, err, "duplicate")

	_, err = Register(reg, store, Set{Commands: []CommandSpec{
		{Name: "export", Command: "/opt/export"},
		{Name: "housekeeping", Command: "/opt/other"},
	}})
	assert.ErrorContains(t, err, "duplicate")

	assert.Empty(t, reg.Types())
}

func TestSyncUnregistersRemovedCommands(t *testing.T) {
	store := jobs.NewStore(tempotest.CreateTestDB(t), db.SQLite)
	reg := activity.NewRegistry()

	prev, err := Register(reg, store, Set{Commands: []CommandSpec{
		{Name: "export", Command: "/opt/export"},
		{Name: "sync", Command: "/opt/sync"},
	}})
	require.NoError(t, err)

	next, err := Sync(reg, store, prev, Set{Commands: []CommandSpec{
		{Name: "sync", Schedule: "*/5 * * * *", Command: "/opt/sync"},
	}})
	require.NoError(t, err)
	assert.Equal(t, []string{"housekeeping", "sync"}, next)
	assert.False(t, reg.Has("export"))
	expr, _ := reg.RecurrenceFor("sync")
	assert.Equal(t, "*/5 * * * *", expr)

	kept, err := Sync(reg, store, next, Set{Commands: []CommandSpec{{Name: "BAD", Command: "x"}}})
	assert.Error(t, err)
	assert.Equal(t, next, kept)
	assert.True(t, reg.Has("sync"), "an invalid reload leaves the registry alone")
}
