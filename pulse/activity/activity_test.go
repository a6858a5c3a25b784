package activity

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/tempo/errors"
	"github.com/teranos/tempo/pulse/params"
)

type reportActivity struct {
	Base
	name       string
	recurrence string
	handle     Handle
}

func newReport(name, recurrence string) Factory {
	return Build(func(h Handle) Activity {
		return &reportActivity{
			Base:       NewBase("customer", "since"),
			name:       name,
			recurrence: recurrence,
			handle:     h,
		}
	})
}

func (a *reportActivity) Type() string       { return a.name }
func (a *reportActivity) Recurrence() string { return a.recurrence }
func (a *reportActivity) Run(_ context.Context, out io.Writer) error {
	_, err := fmt.Fprintf(out, "report for %s\n", a.StrOr("customer", "everyone"))
	return err
}

type Unnamed struct{ Base }

func (*Unnamed) Type() string                          { return "" }
func (*Unnamed) Recurrence() string                    { return "" }
func (*Unnamed) Run(context.Context, io.Writer) error { return nil }

// looseActivity ignores the params handed to its factory.
type looseActivity struct{ Base }

func (*looseActivity) Type() string                          { return "loose" }
func (*looseActivity) Recurrence() string                    { return "" }
func (*looseActivity) Run(context.Context, io.Writer) error { return nil }

func TestBaseSetGet(t *testing.T) {
	b := NewBase("customer", "since")

	assert.False(t, b.Get("customer").Valid(), "unset field reads as absent")

	require.NoError(t, b.Set("customer", params.String("acme")))
	assert.Equal(t, "acme", b.StrOr("customer", ""))
	assert.Equal(t, int64(5), b.IntOr("customer", 5), "wrong kind falls back to default")

	err := b.Set("region", params.String("eu"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownField))
	assert.Contains(t, err.Error(), "region")

	assert.Equal(t, []string{"customer", "since"}, b.Fields())
	fields := b.Fields()
	fields[0] = "mutated"
	assert.Equal(t, "customer", b.Fields()[0], "Fields returns a copy")
}

func TestApplyStopsAtUnknownKey(t *testing.T) {
	f := newReport("report", "")
	_, err := f(nil, params.Params{"customer": params.String("acme"), "bogus": params.Int(1)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownField))
}

func TestTypeName(t *testing.T) {
	a, err := newReport("daily-report", "")(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "daily-report", TypeName(a))

	assert.Equal(t, "Unnamed", TypeName(&Unnamed{Base: NewBase()}))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	typ, err := r.Register(newReport("daily-report", "0 6 * * *"))
	require.NoError(t, err)
	assert.Equal(t, "daily-report", typ)
	r.MustRegister(newReport("adhoc-report", ""))

	assert.Equal(t, []string{"adhoc-report", "daily-report"}, r.Types())
	assert.True(t, r.Has("daily-report"))
	assert.False(t, r.Has("weekly-report"))

	expr, ok := r.RecurrenceFor("daily-report")
	assert.True(t, ok)
	assert.Equal(t, "0 6 * * *", expr)

	expr, ok = r.RecurrenceFor("adhoc-report")
	assert.True(t, ok)
	assert.Empty(t, expr)

	_, ok = r.RecurrenceFor("weekly-report")
	assert.False(t, ok)

	_, ok = r.FactoryFor("weekly-report")
	assert.False(t, ok)
}

func TestRegistryLastRegistrationWins(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(newReport("report", "0 6 * * *"))
	r.MustRegister(newReport("report", "30 7 * * 1"))

	expr, _ := r.RecurrenceFor("report")
	assert.Equal(t, "30 7 * * 1", expr)
	assert.Len(t, r.Types(), 1)
}

func TestRegistryRejectsBrokenFactory(t *testing.T) {
	r := NewRegistry()

	_, err := r.Register(func(Handle, params.Params) (Activity, error) {
		return nil, errors.New("no config")
	})
	require.Error(t, err)

	_, err = r.Register(func(Handle, params.Params) (Activity, error) { return nil, nil })
	require.Error(t, err)
	assert.Empty(t, r.Types())

	assert.Panics(t, func() {
		r.MustRegister(func(Handle, params.Params) (Activity, error) { return nil, nil })
	})
}

type fakeHandle struct{ Handle }

func TestRegistryNew(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(newReport("report", ""))
	r.MustRegister(func(Handle, params.Params) (Activity, error) {
		return &looseActivity{Base: NewBase("only")}, nil
	})

	h := fakeHandle{}
	a, err := r.New(h, "report", params.Params{"customer": params.String("acme")})
	require.NoError(t, err)
	assert.Equal(t, "acme", a.(*reportActivity).StrOr("customer", ""))
	assert.Equal(t, h, a.(*reportActivity).handle)

	_, err = r.New(h, "missing", nil)
	assert.True(t, errors.Is(err, ErrUnknownType))

	_, err = r.New(h, "loose", params.Params{"other": params.Bool(true)})
	assert.True(t, errors.Is(err, ErrUnknownField), "keys are checked even if the factory ignores them")

	_, err = r.New(h, "loose", params.Params{"only": params.Bool(true)})
	assert.NoError(t, err)
}
