// Package activity defines the unit of schedulable work and the registry
// that maps activity type names to their factories.
//
// An Activity is a small object with a fixed field schema, an optional
// 5-field cron recurrence and a Run entry point. The scheduler never
// interrupts Run: the context passed to it is only cancelled when the
// embedding process shuts down, and a long-running activity holds up every
// other due job until it returns.
package activity

import (
	"context"
	"io"
	"reflect"
	"sort"
	"time"

	"github.com/teranos/tempo/errors"
	"github.com/teranos/tempo/pulse/params"
)

var (
	// ErrUnknownField is returned when setting a parameter outside the schema.
	ErrUnknownField = errors.New("unknown activity field")

	// ErrUnknownType is returned for type names that were never registered.
	ErrUnknownType = errors.New("unknown activity type")
)

// Activity is the capability every unit of work satisfies.
type Activity interface {
	// Type returns the registered type name. An empty string means
	// "use the Go type name", see TypeName.
	Type() string

	// Recurrence returns a 5-field cron expression, or "" for activities
	// that are only ever scheduled ad hoc.
	Recurrence() string

	// Fields returns the ordered set of legal parameter names.
	Fields() []string

	// Set assigns a parameter. Names outside Fields fail with ErrUnknownField.
	Set(name string, v params.Value) error

	// Get returns a parameter value, or the zero Value when never set.
	Get(name string) params.Value

	// Run does the work. Diagnostic text goes to out, which is scoped to this
	// single execution. Any returned error (or panic) fails the job.
	Run(ctx context.Context, out io.Writer) error
}

// Handle is the slice of the scheduler an activity may use, typically to
// queue follow-up work.
type Handle interface {
	ScheduleNow(ctx context.Context, typ string, p params.Params) (int64, error)
	ScheduleAt(ctx context.Context, typ string, at time.Time, p params.Params) (int64, error)
}

// Factory constructs an activity. h may be nil when the registry only needs
// to read the type and recurrence; p may be nil or empty.
type Factory func(h Handle, p params.Params) (Activity, error)

// TypeName returns a.Type(), falling back to the concrete Go type name.
func TypeName(a Activity) string {
	if name := a.Type(); name != "" {
		return name
	}
	t := reflect.TypeOf(a)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Apply sets every entry of p on a, in key order. The first key outside the
// schema stops the assignment.
func Apply(a Activity, p params.Params) error {
	for _, k := range p.Keys() {
		if err := a.Set(k, p[k]); err != nil {
			return err
		}
	}
	return nil
}

// Build adapts a plain constructor into a Factory that applies the decoded
// parameters after construction.
func Build(construct func(h Handle) Activity) Factory {
	return func(h Handle, p params.Params) (Activity, error) {
		a := construct(h)
		if err := Apply(a, p); err != nil {
			return nil, err
		}
		return a, nil
	}
}

// Base holds a field schema and the values set on it. Embed it to get
// Fields, Set and Get.
type Base struct {
	fields []string
	values params.Params
}

// NewBase returns a Base accepting exactly the given field names.
func NewBase(fields ...string) Base {
	return Base{
		fields: append([]string(nil), fields...),
		values: params.Params{},
	}
}

func (b *Base) Fields() []string {
	return append([]string(nil), b.fields...)
}

func (b *Base) Set(name string, v params.Value) error {
	if !b.has(name) {
		return errors.Wrapf(ErrUnknownField, "%q (accepted: %v)", name, b.fields)
	}
	if b.values == nil {
		b.values = params.Params{}
	}
	b.values[name] = v
	return nil
}

func (b *Base) Get(name string) params.Value {
	return b.values[name]
}

// StrOr returns the named string parameter, or def when unset or not a string.
func (b *Base) StrOr(name, def string) string {
	if s, ok := b.values[name].Str(); ok {
		return s
	}
	return def
}

// IntOr returns the named int parameter, or def when unset or not an int.
func (b *Base) IntOr(name string, def int64) int64 {
	if i, ok := b.values[name].Int(); ok {
		return i
	}
	return def
}

func (b *Base) has(name string) bool {
	for _, f := range b.fields {
		if f == name {
			return true
		}
	}
	return false
}

// checkKeys reports keys of p that a does not declare.
func checkKeys(a Activity, p params.Params) error {
	declared := make(map[string]bool)
	for _, f := range a.Fields() {
		declared[f] = true
	}
	var unknown []string
	for k := range p {
		if !declared[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return errors.Wrapf(ErrUnknownField, "%s does not accept %v", TypeName(a), unknown)
}
