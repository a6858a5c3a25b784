package params

import (
	"bytes"
	"encoding/json"
	"math"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/teranos/tempo/errors"
)

var (
	// ErrDecode is returned for payloads that are not a valid encoding.
	ErrDecode = errors.New("malformed params payload")

	// ErrUnsupportedType is returned when a Go value has no Value mapping.
	ErrUnsupportedType = errors.New("unsupported param type")
)

// Wire tags. Each encoded value is a JSON object with exactly one of these keys.
const (
	tagString = "s"
	tagInt    = "i"
	tagFloat  = "f"
	tagBool   = "b"
	tagTime   = "t"
	tagList   = "l"
	tagMap    = "m"
)

// Encode serializes p into a single text payload. An empty or nil set
// encodes as "{}" so an ad-hoc job's payload is never empty.
func Encode(p Params) (string, error) {
	wire := make(map[string]interface{}, len(p))
	for k, v := range p {
		w, err := toWire(v)
		if err != nil {
			return "", errors.Wrapf(err, "param %q", k)
		}
		wire[k] = w
	}

	data, err := json.Marshal(wire)
	if err != nil {
		return "", errors.Mark(errors.Wrap(err, "marshal params"), ErrUnsupportedType)
	}
	return string(data), nil
}

func toWire(v Value) (map[string]interface{}, error) {
	switch v.kind {
	case KindString:
		return map[string]interface{}{tagString: v.s}, nil
	case KindInt:
		return map[string]interface{}{tagInt: v.i}, nil
	case KindFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return nil, errors.Wrapf(ErrUnsupportedType, "non-finite float %v", v.f)
		}
		return map[string]interface{}{tagFloat: v.f}, nil
	case KindBool:
		return map[string]interface{}{tagBool: v.b}, nil
	case KindTime:
		return map[string]interface{}{tagTime: v.t.Format(time.RFC3339Nano)}, nil
	case KindList:
		items := make([]interface{}, len(v.list))
		for i, item := range v.list {
			w, err := toWire(item)
			if err != nil {
				return nil, errors.Wrapf(err, "list item %d", i)
			}
			items[i] = w
		}
		return map[string]interface{}{tagList: items}, nil
	case KindMap:
		entries := make(map[string]interface{}, len(v.m))
		for k, item := range v.m {
			w, err := toWire(item)
			if err != nil {
				return nil, errors.Wrapf(err, "map key %q", k)
			}
			entries[k] = w
		}
		return map[string]interface{}{tagMap: entries}, nil
	}
	return nil, errors.Wrap(ErrUnsupportedType, "absent value cannot be encoded")
}

// Decode parses a payload produced by Encode. The empty payload decodes to
// an empty set; anything malformed fails with ErrDecode.
func Decode(payload string) (Params, error) {
	if strings.TrimSpace(payload) == "" {
		return Params{}, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "params payload is not a JSON object"), ErrDecode)
	}
	if raw == nil {
		return nil, errors.Wrap(ErrDecode, "params payload is null")
	}

	p := make(Params, len(raw))
	for k, msg := range raw {
		v, err := fromWire(msg)
		if err != nil {
			return nil, errors.Wrapf(err, "param %q", k)
		}
		p[k] = v
	}
	return p, nil
}

func fromWire(msg json.RawMessage) (Value, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(msg, &obj); err != nil || len(obj) != 1 {
		return Value{}, errors.Wrapf(ErrDecode, "value %s is not a single-key tagged object", truncate(msg))
	}

	for tag, body := range obj {
		switch tag {
		case tagString:
			var s string
			if err := json.Unmarshal(body, &s); err != nil {
				return Value{}, decodeErr(tag, body)
			}
			return String(s), nil

		case tagInt:
			dec := json.NewDecoder(bytes.NewReader(body))
			dec.UseNumber()
			var n json.Number
			if err := dec.Decode(&n); err != nil {
				return Value{}, decodeErr(tag, body)
			}
			i, err := n.Int64()
			if err != nil {
				return Value{}, decodeErr(tag, body)
			}
			return Int(i), nil

		case tagFloat:
			var f float64
			if err := json.Unmarshal(body, &f); err != nil {
				return Value{}, decodeErr(tag, body)
			}
			return Float(f), nil

		case tagBool:
			var b bool
			if err := json.Unmarshal(body, &b); err != nil {
				return Value{}, decodeErr(tag, body)
			}
			return Bool(b), nil

		case tagTime:
			var s string
			if err := json.Unmarshal(body, &s); err != nil {
				return Value{}, decodeErr(tag, body)
			}
			t, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				return Value{}, decodeErr(tag, body)
			}
			return Time(t), nil

		case tagList:
			var items []json.RawMessage
			if err := json.Unmarshal(body, &items); err != nil || items == nil {
				return Value{}, decodeErr(tag, body)
			}
			list := make([]Value, len(items))
			for i, item := range items {
				v, err := fromWire(item)
				if err != nil {
					return Value{}, errors.Wrapf(err, "list item %d", i)
				}
				list[i] = v
			}
			return Value{kind: KindList, list: list}, nil

		case tagMap:
			var entries map[string]json.RawMessage
			if err := json.Unmarshal(body, &entries); err != nil || entries == nil {
				return Value{}, decodeErr(tag, body)
			}
			m := make(map[string]Value, len(entries))
			for k, item := range entries {
				v, err := fromWire(item)
				if err != nil {
					return Value{}, errors.Wrapf(err, "map key %q", k)
				}
				m[k] = v
			}
			return Value{kind: KindMap, m: m}, nil
		}
		return Value{}, errors.Wrapf(ErrDecode, "unknown value tag %q", tag)
	}
	return Value{}, errors.Wrap(ErrDecode, "empty value")
}

func decodeErr(tag string, body json.RawMessage) error {
	return errors.Wrapf(ErrDecode, "bad %q body %s", tag, truncate(body))
}

func truncate(b []byte) string {
	const max = 64
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "..."
}

// FromAny converts a plain Go value into a Value. Supported: string, bool,
// all integer and float kinds, time.Time, json.Number, slices/arrays and
// string-keyed maps of supported values, and Value itself.
func FromAny(x interface{}) (Value, error) {
	switch v := x.(type) {
	case Value:
		return v, nil
	case string:
		return String(v), nil
	case bool:
		return Bool(v), nil
	case time.Time:
		return Time(v), nil
	case *time.Time:
		if v == nil {
			return Value{}, errors.Wrap(ErrUnsupportedType, "nil *time.Time")
		}
		return Time(*v), nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := v.Float64()
		if err != nil {
			return Value{}, errors.Wrapf(ErrUnsupportedType, "json number %q", v)
		}
		return Float(f), nil
	case nil:
		return Value{}, errors.Wrap(ErrUnsupportedType, "nil")
	}

	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return Value{}, errors.Wrapf(ErrUnsupportedType, "uint %d overflows int64", u)
		}
		return Int(int64(u)), nil
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float()), nil
	case reflect.Slice, reflect.Array:
		items := make([]Value, rv.Len())
		for i := range items {
			item, err := FromAny(rv.Index(i).Interface())
			if err != nil {
				return Value{}, errors.Wrapf(err, "index %d", i)
			}
			items[i] = item
		}
		return Value{kind: KindList, list: items}, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return Value{}, errors.Wrapf(ErrUnsupportedType, "map key type %s", rv.Type().Key())
		}
		m := make(map[string]Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k := iter.Key().String()
			item, err := FromAny(iter.Value().Interface())
			if err != nil {
				return Value{}, errors.Wrapf(err, "key %q", k)
			}
			m[k] = item
		}
		return Value{kind: KindMap, m: m}, nil
	}
	return Value{}, errors.Wrapf(ErrUnsupportedType, "%T", x)
}

// FromMap converts a plain map into Params.
func FromMap(m map[string]interface{}) (Params, error) {
	p := make(Params, len(m))
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v, err := FromAny(m[k])
		if err != nil {
			return nil, errors.Wrapf(err, "param %q", k)
		}
		p[k] = v
	}
	return p, nil
}

// Interface converts v back to plain Go values: string, int64, float64,
// bool, time.Time, []interface{}, map[string]interface{}. The absence
// marker converts to nil.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	case KindTime:
		return v.t
	case KindList:
		out := make([]interface{}, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	case KindMap:
		return Params(v.m).Interface()
	}
	return nil
}

// Interface converts the set to a plain map (see Value.Interface).
func (p Params) Interface() map[string]interface{} {
	out := make(map[string]interface{}, len(p))
	for k, v := range p {
		out[k] = v.Interface()
	}
	return out
}
