// Package jobs persists job records: one row per scheduled or executed unit
// of work, moving todo → working → finish|fail.
package jobs

import (
	"strings"
	"time"

	"github.com/teranos/tempo/errors"
)

// Status is the persisted lifecycle state of a job row.
type Status string

const (
	StatusTodo    Status = "todo"
	StatusWorking Status = "working"
	StatusDone    Status = "finish"
	StatusFail    Status = "fail"
)

// ErrIllegalTransition is returned when a status change is not allowed from
// the row's current state. It is a conflict, never a store failure.
var ErrIllegalTransition = errors.Wrap(errors.ErrConflict, "illegal job state transition")

// ParseStatus accepts the stored names plus "done" as an alias for finish.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "todo":
		return StatusTodo, nil
	case "working":
		return StatusWorking, nil
	case "finish", "done":
		return StatusDone, nil
	case "fail":
		return StatusFail, nil
	}
	return "", errors.NewInvalidRequestError("unknown job status %q (valid: todo, working, finish, fail)", s)
}

// Terminal reports whether no runner transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFail
}

// Job is one row of the jobs table.
type Job struct {
	ID       int64      `json:"id"`
	Type     string     `json:"type"`
	Status   Status     `json:"status"`
	Plan     time.Time  `json:"plan"`
	Start    *time.Time `json:"start,omitempty"`
	Finish   *time.Time `json:"finish,omitempty"`
	Duration *int64     `json:"duration,omitempty"` // seconds
	Params   string     `json:"params"`
	Result   string     `json:"result,omitempty"`
}

// Recurring reports whether the row was generated by the reconciler, which
// never encodes parameters.
func (j *Job) Recurring() bool {
	return j.Params == ""
}

// Pending is the reconciliation view of an empty-params todo row.
type Pending struct {
	ID   int64
	Type string
	Plan time.Time
}
