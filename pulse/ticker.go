package pulse

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/tempo/db"
	"github.com/teranos/tempo/errors"
	"github.com/teranos/tempo/logger"
	"github.com/teranos/tempo/pulse/jobs"
	"github.com/teranos/tempo/sym"
)

// TickerConfig configures loop mode.
type TickerConfig struct {
	Interval time.Duration // time between pass starts, default 1 minute

	// BeforePass runs on the ticker goroutine before each pass, e.g. to apply
	// a reloaded configuration.
	BeforePass func()
}

// DefaultTickerConfig returns the loop defaults.
func DefaultTickerConfig() TickerConfig {
	return TickerConfig{Interval: time.Minute}
}

// Ticker calls Activate periodically, for processes that run standing
// instead of being invoked by an external timer. Passes never overlap, and
// Stop waits for a running pass to finish; the pass itself is never
// cancelled.
type Ticker struct {
	scheduler *Scheduler
	cfg       TickerConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	errs   chan error
	done   chan struct{}

	pulseLog *zap.SugaredLogger

	mu              sync.Mutex
	ticksSinceStart int64
	lastNext        time.Time
}

// NewTicker creates a ticker for s.
func NewTicker(s *Scheduler, cfg TickerConfig, log *zap.SugaredLogger) *Ticker {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultTickerConfig().Interval
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Ticker{
		scheduler: s,
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
		errs:      make(chan error, 1),
		done:      make(chan struct{}),
		pulseLog:  logger.AddPulseSymbol(log.Named("ticker")),
	}
}

// Start runs a pass immediately, then one per interval.
func (t *Ticker) Start() {
	t.wg.Add(1)
	go t.run()
	t.pulseLog.Infow("Pulse ticker started", "interval", t.cfg.Interval)
}

// Stop ends the loop after the current pass.
func (t *Ticker) Stop() {
	t.cancel()
	t.wg.Wait()
	t.pulseLog.Infow("Pulse ticker stopped", "ticks", t.Ticks())
}

// Errors delivers the store failure that ended the loop, if any.
func (t *Ticker) Errors() <-chan error {
	return t.errs
}

// Done is closed once the loop has ended, whether by Stop, a store failure
// or a closed database.
func (t *Ticker) Done() <-chan struct{} {
	return t.done
}

// Ticks returns how many passes have started.
func (t *Ticker) Ticks() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ticksSinceStart
}

func (t *Ticker) run() {
	defer t.wg.Done()
	defer close(t.done)

	ticker := time.NewTicker(t.cfg.Interval)
	defer ticker.Stop()

	if !t.tick(time.Now()) {
		return
	}
	for {
		select {
		case <-t.ctx.Done():
			return
		case tickTime := <-ticker.C:
			if !t.tick(tickTime) {
				return
			}
		}
	}
}

// tick runs one pass. It returns false when the loop must end.
func (t *Ticker) tick(at time.Time) bool {
	t.mu.Lock()
	t.ticksSinceStart++
	t.mu.Unlock()

	if t.cfg.BeforePass != nil {
		t.cfg.BeforePass()
	}

	// The pass gets a context that Stop does not cancel.
	res, err := t.scheduler.Activate(context.WithoutCancel(t.ctx))
	if err != nil {
		if db.IsDatabaseClosed(err) {
			t.pulseLog.Infow("Database closed, pulse ticker ending")
			t.cancel()
			return false
		}
		t.pulseLog.Errorw("Pulse pass aborted, job store unavailable", logger.FieldError, err)
		if errors.IsStoreError(err) {
			t.errs <- err
			t.cancel()
			return false
		}
		return true
	}
	if res.Ran() > 0 {
		t.pulseLog.Infow(res.String())
	}

	t.logNextJob(at)
	return true
}

// logNextJob reports the earliest pending job when it changes.
func (t *Ticker) logNextJob(now time.Time) {
	next, err := t.scheduler.Store().ListByStatus(context.Background(), jobs.StatusTodo, 1)
	if err != nil {
		t.pulseLog.Warnw("Failed to look up next job", logger.FieldError, err)
		return
	}

	var plan time.Time
	if len(next) > 0 {
		plan = next[0].Plan
	}

	t.mu.Lock()
	changed := !plan.Equal(t.lastNext)
	t.lastNext = plan
	t.mu.Unlock()
	if !changed {
		return
	}

	if len(next) == 0 {
		t.pulseLog.Infow(sym.Pulse + " Pulse - no pending jobs")
		return
	}
	until := plan.Sub(now)
	if until < 0 {
		until = 0
	}
	t.pulseLog.Infow(sym.Pulse+" Pulse - next job",
		logger.FieldJobID, next[0].ID,
		logger.FieldType, next[0].Type,
		"in", until.Round(time.Second))
}
