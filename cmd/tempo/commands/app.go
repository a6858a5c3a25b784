package commands

import (
	"database/sql"

	"go.uber.org/zap"

	"github.com/teranos/tempo/activities"
	"github.com/teranos/tempo/am"
	"github.com/teranos/tempo/db"
	"github.com/teranos/tempo/errors"
	"github.com/teranos/tempo/logger"
	"github.com/teranos/tempo/pulse"
	"github.com/teranos/tempo/pulse/activity"
	"github.com/teranos/tempo/pulse/alarm"
	"github.com/teranos/tempo/pulse/jobs"
)

// app is one opened scheduler: database, registry and activities wired
// from a validated configuration.
type app struct {
	cfg       *am.Config
	conn      *sql.DB
	store     *jobs.Store
	scheduler *pulse.Scheduler
	types     []string
	log       *zap.SugaredLogger
}

// openApp loads the configuration and opens the scheduler it describes.
func openApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}
	return newApp(cfg, logger.Logger)
}

func newApp(cfg *am.Config, log *zap.SugaredLogger) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	dialect, dsn, err := cfg.DataSource()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	sink, err := alarmSink(cfg, log)
	if err != nil {
		return nil, err
	}

	conn, err := db.OpenWithMigrations(dialect, dsn, log)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s database", dialect)
	}
	store := jobs.NewStore(conn, dialect)

	reg := activity.NewRegistry()
	types, err := activities.Register(reg, store, cfg.ActivitySet())
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &app{
		cfg:       cfg,
		conn:      conn,
		store:     store,
		scheduler: pulse.New(reg, store, pulse.Config{Location: loc, Alarm: sink}, log),
		types:     types,
		log:       log,
	}, nil
}

// alarmSink always logs failures and also posts them when a webhook is set.
func alarmSink(cfg *am.Config, log *zap.SugaredLogger) (alarm.Sink, error) {
	sinks := alarm.Multi{alarm.NewLogSink(log)}
	if wc, ok := cfg.WebhookConfig(); ok {
		hook, err := alarm.NewWebhookSink(wc, log)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, hook)
	}
	return sinks, nil
}

func (a *app) Close() error {
	return a.conn.Close()
}
