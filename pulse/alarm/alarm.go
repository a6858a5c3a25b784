// Package alarm delivers job-failure notifications. The runner calls
// Notify once per failed job; delivery errors are logged by the caller and
// never affect the job's stored outcome.
package alarm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/tempo/errors"
	"github.com/teranos/tempo/logger"
	"github.com/teranos/tempo/pulse/params"
	"github.com/teranos/tempo/sym"
)

// Sink receives failure messages.
type Sink interface {
	Notify(ctx context.Context, message string) error
}

// Failure describes one failed job for FormatFailure.
type Failure struct {
	JobID  int64
	Type   string
	Params params.Params
	Trace  string
}

// FormatFailure renders the alarm text for a failed job: id, type, decoded
// parameters and the failure trace.
func FormatFailure(f Failure) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s job %d (%s) failed\n", sym.Alarm, f.JobID, f.Type)
	fmt.Fprintf(&b, "params: %s\n", f.Params)
	b.WriteString("trace:\n")
	b.WriteString(strings.TrimRight(f.Trace, "\n"))
	return b.String()
}

// LogSink writes alarms to the structured log at error level.
type LogSink struct {
	log *zap.SugaredLogger
}

// NewLogSink creates a LogSink.
func NewLogSink(log *zap.SugaredLogger) *LogSink {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &LogSink{log: logger.AddAlarmSymbol(log.Named("alarm"))}
}

func (s *LogSink) Notify(ctx context.Context, message string) error {
	logger.FromContext(ctx, s.log).Errorw("Job failure alarm", "message", message)
	return nil
}

// Multi fans a message out to every sink. All sinks are tried; the first
// error is returned with the rest attached as secondary errors.
type Multi []Sink

func (m Multi) Notify(ctx context.Context, message string) error {
	var first error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Notify(ctx, message); err != nil {
			if first == nil {
				first = err
			} else {
				first = errors.WithSecondaryError(first, err)
			}
		}
	}
	return first
}
