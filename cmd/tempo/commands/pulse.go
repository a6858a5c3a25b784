package commands

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/tempo/activities"
	"github.com/teranos/tempo/am"
	"github.com/teranos/tempo/errors"
	"github.com/teranos/tempo/logger"
	"github.com/teranos/tempo/pulse"
	"github.com/teranos/tempo/sym"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: sym.Pulse + " Run one pass: reconcile, then every due job",
		Long: sym.Pulse + ` Run one scheduler pass and exit.

The pass reconciles recurring activities, then runs due jobs one at a
time until none is left. Failed jobs are recorded and alarmed but do not
change the exit status; only an unreachable job store does.

Meant to be invoked every minute by cron or a systemd timer.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.scheduler.Activate(cmd.Context())
			if err != nil {
				return errors.Wrap(err, "pass aborted")
			}
			if res.Ran() == 0 {
				pterm.Info.Printfln("pass %s: nothing due", res.PassID)
				return nil
			}
			if res.Failed > 0 {
				pterm.Warning.Println(res.String())
				return nil
			}
			pterm.Success.Println(res.String())
			return nil
		},
	}
}

func newLoopCmd() *cobra.Command {
	var noWatch bool
	cmd := &cobra.Command{
		Use:   "loop",
		Short: sym.Pulse + " Run passes until interrupted",
		Long: sym.Pulse + ` Run a pass immediately, then one every scheduler.loop_interval_seconds.

Configuration files are watched; a valid change to commands or
housekeeping is applied before the next pass. Ctrl+C or SIGTERM ends the
loop after the running pass completes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()
			return runLoop(a, !noWatch && configPath == "")
		},
	}
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Do not reload configuration on change")
	return cmd
}

func runLoop(a *app, watch bool) error {
	r := &reloader{app: a, current: a.cfg}
	ticker := pulse.NewTicker(a.scheduler, pulse.TickerConfig{
		Interval:   a.cfg.LoopInterval(),
		BeforePass: r.apply,
	}, a.log)

	if watch {
		w, err := am.NewConfigWatcher(am.DefaultPaths(), a.log)
		if err != nil {
			a.log.Warnw("Config reload disabled", logger.FieldError, err)
		} else {
			w.OnReload(r.offer)
			w.Start()
			defer w.Stop()
		}
	}

	ticker.Start()
	pterm.Info.Printfln("%s tempo loop started (every %s, %d activities). Press Ctrl+C to stop.",
		sym.Pulse, a.cfg.LoopInterval(), len(a.types))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	select {
	case s := <-sig:
		pterm.Info.Printfln("%s %s received, finishing the current pass...", sym.PulseClose, s)
		ticker.Stop()
		return nil
	case err := <-ticker.Errors():
		ticker.Stop()
		return errors.Wrap(err, "loop stopped")
	case <-ticker.Done():
		ticker.Stop()
		select {
		case err := <-ticker.Errors():
			return errors.Wrap(err, "loop stopped")
		default:
			return nil
		}
	}
}

// reloader hands configurations from the watcher goroutine to the ticker,
// which applies them between passes.
type reloader struct {
	app *app

	mu      sync.Mutex
	pending *am.Config
	current *am.Config
}

func (r *reloader) offer(cfg *am.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = cfg
	return nil
}

func (r *reloader) apply() {
	r.mu.Lock()
	cfg := r.pending
	r.pending = nil
	r.mu.Unlock()
	if cfg == nil {
		return
	}

	types, err := activities.Sync(r.app.scheduler.Registry(), r.app.store, r.app.types, cfg.ActivitySet())
	if err != nil {
		r.app.log.Errorw("Reloaded configuration rejected, keeping current activities", logger.FieldError, err)
		return
	}
	r.app.types = types

	for _, key := range restartKeys(r.current, cfg) {
		r.app.log.Warnw("Setting changed but only takes effect after restart", "key", key)
	}
	r.current = cfg
	r.app.log.Infow("Configuration reloaded", "activities", types)
}

// restartKeys lists the changed settings a running loop cannot apply.
func restartKeys(old, updated *am.Config) []string {
	var keys []string
	if old.Database != updated.Database {
		keys = append(keys, "database")
	}
	if old.Scheduler.Timezone != updated.Scheduler.Timezone {
		keys = append(keys, "scheduler.timezone")
	}
	if old.LoopInterval() != updated.LoopInterval() {
		keys = append(keys, "scheduler.loop_interval_seconds")
	}
	if old.Alarm != updated.Alarm {
		keys = append(keys, "alarm")
	}
	return keys
}

// interruptible returns a context cancelled by SIGINT or SIGTERM.
func interruptible(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
