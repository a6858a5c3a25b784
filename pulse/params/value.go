// Package params holds activity parameter values and their storable encoding.
//
// A Value is a discriminated union: string, int, float, bool, time, list or
// map. The wire form is JSON in which every value is a one-key object whose
// key names the kind, so decoding never has to guess:
//
//	{"since":{"t":"2026-10-16T00:00:00Z"},"hosts":{"l":[{"s":"a"},{"s":"b"}]}}
//
// A string that happens to look like a timestamp stays a string.
package params

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Kind identifies which member of the union a Value holds.
type Kind uint8

const (
	KindInvalid Kind = iota // zero Value; the "absent" marker
	KindString
	KindInt
	KindFloat
	KindBool
	KindTime
	KindList
	KindMap
)

var kindNames = [...]string{
	KindInvalid: "invalid",
	KindString:  "string",
	KindInt:     "int",
	KindFloat:   "float",
	KindBool:    "bool",
	KindTime:    "time",
	KindList:    "list",
	KindMap:     "map",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Value is one parameter value. The zero Value is the absence marker
// returned for parameters that were never set.
type Value struct {
	kind Kind
	s    string
	i    int64
	f    float64
	b    bool
	t    time.Time
	list []Value
	m    map[string]Value
}

// Params is a decoded parameter set keyed by field name.
type Params map[string]Value

func String(s string) Value  { return Value{kind: KindString, s: s} }
func Int(i int64) Value      { return Value{kind: KindInt, i: i} }
func Float(f float64) Value  { return Value{kind: KindFloat, f: f} }
func Bool(b bool) Value      { return Value{kind: KindBool, b: b} }
func Time(t time.Time) Value { return Value{kind: KindTime, t: t} }

// List builds a list value. The slice is copied.
func List(items ...Value) Value {
	return Value{kind: KindList, list: append([]Value(nil), items...)}
}

// Map builds a map value. The map is copied.
func Map(m map[string]Value) Value {
	cp := make(map[string]Value, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return Value{kind: KindMap, m: cp}
}

// Kind reports which member of the union v holds.
func (v Value) Kind() Kind { return v.kind }

// Valid is false for the absence marker.
func (v Value) Valid() bool { return v.kind != KindInvalid }

// Str returns the string and true when v is a string.
func (v Value) Str() (string, bool) { return v.s, v.kind == KindString }

// Int returns the integer and true when v is an int.
func (v Value) Int() (int64, bool) { return v.i, v.kind == KindInt }

// Float returns the float and true when v is a float. Ints are widened.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	}
	return 0, false
}

// Bool returns the bool and true when v is a bool.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// Time returns the timestamp and true when v is a time.
func (v Value) Time() (time.Time, bool) { return v.t, v.kind == KindTime }

// List returns the items and true when v is a list. The slice is shared.
func (v Value) List() ([]Value, bool) { return v.list, v.kind == KindList }

// Map returns the entries and true when v is a map. The map is shared.
func (v Value) Map() (map[string]Value, bool) { return v.m, v.kind == KindMap }

// Equal reports deep equality. Times compare with time.Time.Equal, so the
// same instant in two locations is equal.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindInvalid:
		return true
	case KindString:
		return v.s == o.s
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindBool:
		return v.b == o.b
	case KindTime:
		return v.t.Equal(o.t)
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		return mapsEqual(v.m, o.m)
	}
	return false
}

func mapsEqual(a, b map[string]Value) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !av.Equal(bv) {
			return false
		}
	}
	return true
}

// Equal reports whether two parameter sets hold the same keys and values.
func (p Params) Equal(o Params) bool {
	return mapsEqual(p, o)
}

// Keys returns the parameter names in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String renders v for humans (alarm messages, CLI output).
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return fmt.Sprintf("%q", v.s)
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindTime:
		return v.t.Format(time.RFC3339Nano)
	case KindList:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMap:
		return Params(v.m).String()
	}
	return "<absent>"
}

// String renders the set as {k: v, ...} with sorted keys.
func (p Params) String() string {
	parts := make([]string, 0, len(p))
	for _, k := range p.Keys() {
		parts = append(parts, k+": "+p[k].String())
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
