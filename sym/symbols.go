// Package sym defines the glyphs tempo uses in CLI output and structured logs.
// These symbols are stable across CLI, logs and the HTTP API.
package sym

// Subsystem glyphs.
const (
	Pulse      = "꩜" // scheduler passes, job execution
	PulseOpen  = "✿" // pass start
	PulseClose = "❀" // pass end, loop shutdown
	DB         = "⊔" // database/storage layer
	AM         = "≡" // configuration
	Alarm      = "⚑" // failure notifications
)

// Status glyphs shown next to job rows.
const (
	Todo    = "○"
	Working = "◐"
	Done    = "●"
	Fail    = "✕"
)

// commands maps CLI command names to their glyph.
var commands = map[string]string{
	"run":        Pulse,
	"loop":       Pulse,
	"jobs":       Pulse,
	"activities": Pulse,
	"db":         DB,
	"am":         AM,
}

// ForCommand returns the glyph for a CLI command, or "" if it has none.
func ForCommand(name string) string {
	return commands[name]
}
