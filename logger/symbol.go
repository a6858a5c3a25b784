package logger

import (
	"go.uber.org/zap"

	"github.com/teranos/tempo/sym"
)

// Symbol-aware logger wrappers. The symbol is a structured field, not part
// of the message, so logs stay queryable by subsystem.
//
//	r.pulseLog = logger.AddPulseSymbol(log)
//	r.pulseLog.Infow("Job finished", logger.FieldJobID, id)

// AddPulseSymbol wraps a logger with the Pulse symbol (꩜)
func AddPulseSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return l.With(FieldSymbol, sym.Pulse)
}

// AddPulseOpenSymbol wraps a logger with the PulseOpen symbol (✿)
func AddPulseOpenSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return l.With(FieldSymbol, sym.PulseOpen)
}

// AddPulseCloseSymbol wraps a logger with the PulseClose symbol (❀)
func AddPulseCloseSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return l.With(FieldSymbol, sym.PulseClose)
}

// AddDBSymbol wraps a logger with the DB symbol (⊔)
func AddDBSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return l.With(FieldSymbol, sym.DB)
}

// AddAlarmSymbol wraps a logger with the Alarm symbol (⚑)
func AddAlarmSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return l.With(FieldSymbol, sym.Alarm)
}
