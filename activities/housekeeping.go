package activities

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/teranos/tempo/errors"
	"github.com/teranos/tempo/pulse/activity"
	"github.com/teranos/tempo/pulse/jobs"
)

// HousekeepingType is the registered type name of the retention job.
const HousekeepingType = "housekeeping"

// HousekeepingConfig configures the retention job.
type HousekeepingConfig struct {
	Schedule string           // cron expression, "" to run only on demand
	Days     int64            // default retention when the job has no days param
	Clock    func() time.Time // default time.Now
}

// Housekeeping deletes finished jobs older than the retention window.
// Failed rows are kept for inspection.
type Housekeeping struct {
	activity.Base
	store *jobs.Store
	cfg   HousekeepingConfig
}

// NewHousekeeping returns a factory for the retention job over store.
func NewHousekeeping(store *jobs.Store, cfg HousekeepingConfig) activity.Factory {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return activity.Build(func(activity.Handle) activity.Activity {
		return &Housekeeping{Base: activity.NewBase("days"), store: store, cfg: cfg}
	})
}

func (h *Housekeeping) Type() string       { return HousekeepingType }
func (h *Housekeeping) Recurrence() string { return h.cfg.Schedule }

func (h *Housekeeping) Run(ctx context.Context, out io.Writer) error {
	days := h.IntOr("days", h.cfg.Days)
	if days <= 0 {
		return errors.Newf("retention must be at least one day, got %d", days)
	}

	cutoff := h.cfg.Clock().Add(-time.Duration(days) * 24 * time.Hour)
	n, err := h.store.PurgeFinished(ctx, cutoff)
	if err != nil {
		return errors.Wrap(err, "purge finished jobs")
	}
	fmt.Fprintf(out, "purged %d jobs finished before %s\n", n, cutoff.UTC().Format(time.RFC3339))
	return nil
}
