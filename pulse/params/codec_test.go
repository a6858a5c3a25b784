package params

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/tempo/errors"
)

func TestRoundTrip(t *testing.T) {
	berlin := time.FixedZone("CEST", 2*3600)
	stamp := time.Date(2026, 10, 16, 8, 30, 15, 123456789, berlin)

	tests := []struct {
		name string
		in   Params
	}{
		{"empty", Params{}},
		{"string", Params{"path": String("/var/log/app.log")}},
		{"empty string", Params{"path": String("")}},
		{"int", Params{"n": Int(-42)}},
		{"big int", Params{"n": Int(math.MaxInt64)}},
		{"float", Params{"ratio": Float(0.25)}},
		{"whole float stays float", Params{"ratio": Float(2)}},
		{"bool", Params{"dry_run": Bool(true)}},
		{"time", Params{"since": Time(stamp)}},
		{"utc time", Params{"since": Time(stamp.UTC())}},
		{"list", Params{"hosts": List(String("a"), String("b"), Int(3))}},
		{"empty list", Params{"hosts": List()}},
		{"map", Params{"window": Map(map[string]Value{
			"from": Time(stamp),
			"to":   Time(stamp.Add(time.Hour)),
		})}},
		{"nested", Params{
			"batches": List(
				Map(map[string]Value{"ids": List(Int(1), Int(2)), "at": Time(stamp)}),
				Map(map[string]Value{"ids": List(), "skip": Bool(false)}),
			),
			"label": String("nightly"),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := Encode(tt.in)
			require.NoError(t, err)
			require.NotEmpty(t, payload)

			out, err := Decode(payload)
			require.NoError(t, err)
			assert.True(t, tt.in.Equal(out), "round trip changed params:\n in: %s\nout: %s", tt.in, out)
		})
	}
}

func TestRoundTripKeepsKinds(t *testing.T) {
	payload, err := Encode(Params{"f": Float(3), "i": Int(3)})
	require.NoError(t, err)

	out, err := Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, KindFloat, out["f"].Kind())
	assert.Equal(t, KindInt, out["i"].Kind())
}

func TestTimestampLookalikeStaysString(t *testing.T) {
	in := Params{"note": String("2026-10-16T08:30:15Z")}

	payload, err := Encode(in)
	require.NoError(t, err)
	out, err := Decode(payload)
	require.NoError(t, err)

	assert.Equal(t, KindString, out["note"].Kind())
	s, ok := out["note"].Str()
	require.True(t, ok)
	assert.Equal(t, "2026-10-16T08:30:15Z", s)
}

func TestEncodeEmptyIsNonEmptyPayload(t *testing.T) {
	payload, err := Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", payload)
}

func TestDecodeEmptyPayload(t *testing.T) {
	for _, payload := range []string{"", "  ", "{}"} {
		p, err := Decode(payload)
		require.NoError(t, err)
		assert.Empty(t, p)
		assert.NotNil(t, p)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", "{oops"},
		{"top-level array", `[1,2]`},
		{"null", `null`},
		{"bare value", `{"a":"plain"}`},
		{"two tags", `{"a":{"s":"x","i":1}}`},
		{"unknown tag", `{"a":{"q":1}}`},
		{"string tag with number", `{"a":{"s":1}}`},
		{"int tag with fraction", `{"a":{"i":1.5}}`},
		{"bad time", `{"a":{"t":"yesterday"}}`},
		{"list tag with object", `{"a":{"l":{"s":"x"}}}`},
		{"bad list item", `{"a":{"l":[{"s":"x"},5]}}`},
		{"bad map entry", `{"a":{"m":{"k":{"b":"yes"}}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.payload)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrDecode), "want ErrDecode, got %v", err)
		})
	}
}

func TestEncodeUnsupported(t *testing.T) {
	tests := []struct {
		name string
		in   Params
	}{
		{"absent value", Params{"a": {}}},
		{"NaN", Params{"a": Float(math.NaN())}},
		{"Inf in list", Params{"a": List(Float(math.Inf(1)))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(tt.in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnsupportedType), "want ErrUnsupportedType, got %v", err)
		})
	}
}

func TestFromAny(t *testing.T) {
	stamp := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	p, err := FromMap(map[string]interface{}{
		"s":     "x",
		"i":     7,
		"u8":    uint8(9),
		"f32":   float32(0.5),
		"b":     false,
		"t":     stamp,
		"list":  []string{"a", "b"},
		"map":   map[string]int{"k": 1},
		"num":   json.Number("12"),
		"numf":  json.Number("1.5"),
		"value": Int(3),
	})
	require.NoError(t, err)

	want := Params{
		"s":     String("x"),
		"i":     Int(7),
		"u8":    Int(9),
		"f32":   Float(0.5),
		"b":     Bool(false),
		"t":     Time(stamp),
		"list":  List(String("a"), String("b")),
		"map":   Map(map[string]Value{"k": Int(1)}),
		"num":   Int(12),
		"numf":  Float(1.5),
		"value": Int(3),
	}
	assert.True(t, want.Equal(p), "got %s", p)

	for _, bad := range []interface{}{nil, struct{}{}, map[int]string{1: "x"}, []interface{}{make(chan int)}, uint64(math.MaxUint64)} {
		_, err := FromAny(bad)
		assert.True(t, errors.Is(err, ErrUnsupportedType), "%T should be unsupported", bad)
	}
}

func TestInterface(t *testing.T) {
	stamp := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p := Params{
		"list": List(Int(1), String("x")),
		"map":  Map(map[string]Value{"t": Time(stamp)}),
	}

	assert.Equal(t, map[string]interface{}{
		"list": []interface{}{int64(1), "x"},
		"map":  map[string]interface{}{"t": stamp},
	}, p.Interface())
	assert.Nil(t, Value{}.Interface())
}

func TestValueAccessors(t *testing.T) {
	_, ok := String("x").Int()
	assert.False(t, ok)

	f, ok := Int(2).Float()
	assert.True(t, ok)
	assert.Equal(t, 2.0, f)

	assert.False(t, Value{}.Valid())
	assert.True(t, Value{}.Equal(Value{}))
	assert.False(t, Int(1).Equal(Float(1)))
	assert.Equal(t, "<absent>", Value{}.String())
	assert.Equal(t, `{a: 1, b: ["x", true]}`, Params{"b": List(String("x"), Bool(true)), "a": Int(1)}.String())
}
