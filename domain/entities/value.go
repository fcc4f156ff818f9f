package entities

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies the type of a Value.
type Kind int

const (
	KindNil Kind = iota
	KindBool
	KindNumber
	KindString
	KindTable
	KindFunction
	// KindOther covers interpreter values without a host representation
	// (userdata, threads, channels, tables nested too deeply).
	KindOther
)

var kindNames = [...]string{
	KindNil:      "nil",
	KindBool:     "boolean",
	KindNumber:   "number",
	KindString:   "string",
	KindTable:    "table",
	KindFunction: "function",
	KindOther:    "other",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindNames[k]
}

// Value is a typed view of a value crossing the host/script boundary.
// The zero Value is nil.
type Value struct {
	fields map[string]Value
	str    string
	elems  []Value
	num    float64
	kind   Kind
	b      bool
}

// Nil returns the nil value.
func Nil() Value { return Value{} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number returns a numeric value.
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

// Int returns a numeric value holding n.
func Int(n int64) Value { return Value{kind: KindNumber, num: float64(n)} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// List returns a table value with only an array part.
func List(elems ...Value) Value {
	return Value{kind: KindTable, elems: elems}
}

// Map returns a table value with only string keyed fields.
func Map(fields map[string]Value) Value {
	return Value{kind: KindTable, fields: fields}
}

// Table returns a table value with both an array part and string keyed fields.
func Table(elems []Value, fields map[string]Value) Value {
	return Value{kind: KindTable, elems: elems, fields: fields}
}

// Opaque returns a read-only view of a value of the given kind.
// Opaque values can be read from a session but not written back.
func Opaque(kind Kind, desc string) Value {
	return Value{kind: kind, str: desc}
}

// Kind reports the type of v.
func (v Value) Kind() Kind { return v.kind }

// IsNil reports whether v is nil.
func (v Value) IsNil() bool { return v.kind == KindNil }

// Writable reports whether v can be written into a session.
func (v Value) Writable() bool {
	switch v.kind {
	case KindFunction, KindOther:
		return false
	case KindTable:
		for _, e := range v.elems {
			if !e.Writable() {
				return false
			}
		}
		for _, f := range v.fields {
			if !f.Writable() {
				return false
			}
		}
	}
	return true
}

// AsBool returns the boolean held by v.
func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// Truthy follows script truthiness: only nil and false are false.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNil:
		return false
	case KindBool:
		return v.b
	}
	return true
}

// AsNumber returns the number held by v.
func (v Value) AsNumber() (float64, bool) {
	return v.num, v.kind == KindNumber
}

// AsInt returns the number held by v if it is integral.
func (v Value) AsInt() (int64, bool) {
	if v.kind != KindNumber || v.num != math.Trunc(v.num) || math.IsInf(v.num, 0) {
		return 0, false
	}
	return int64(v.num), true
}

// AsString returns the string held by v.
func (v Value) AsString() (string, bool) {
	return v.str, v.kind == KindString
}

// Elems returns the array part of a table.
func (v Value) Elems() []Value { return v.elems }

// Fields returns the string keyed part of a table.
func (v Value) Fields() map[string]Value { return v.fields }

// Field returns the named field of a table, or nil.
func (v Value) Field(name string) Value {
	return v.fields[name]
}

// Equal reports whether v and o hold the same value.
// An empty array part equals a nil one.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNil:
		return true
	case KindBool:
		return v.b == o.b
	case KindNumber:
		return v.num == o.num
	case KindString, KindFunction, KindOther:
		return v.str == o.str
	}
	if len(v.elems) != len(o.elems) || len(v.fields) != len(o.fields) {
		return false
	}
	for i := range v.elems {
		if !v.elems[i].Equal(o.elems[i]) {
			return false
		}
	}
	for k, f := range v.fields {
		of, ok := o.fields[k]
		if !ok || !f.Equal(of) {
			return false
		}
	}
	return true
}

// Interface converts v into plain Go values: nil, bool, float64, string,
// []any for array-only tables and map[string]any otherwise.
// Array entries of mixed tables are keyed by their 1-based index.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.num
	case KindString:
		return v.str
	case KindTable:
		if len(v.fields) == 0 && len(v.elems) > 0 {
			out := make([]any, len(v.elems))
			for i, e := range v.elems {
				out[i] = e.Interface()
			}
			return out
		}
		out := make(map[string]any, len(v.fields)+len(v.elems))
		for i, e := range v.elems {
			out[strconv.Itoa(i+1)] = e.Interface()
		}
		for k, f := range v.fields {
			out[k] = f.Interface()
		}
		return out
	}
	return nil
}

// String renders v the way a script would print it, with tables expanded.
func (v Value) String() string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return FormatNumber(v.num)
	case KindString:
		return v.str
	case KindTable:
		var sb strings.Builder
		sb.WriteByte('{')
		n := 0
		for _, e := range v.elems {
			if n > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(e.quoted())
			n++
		}
		keys := make([]string, 0, len(v.fields))
		for k := range v.fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if n > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(k)
			sb.WriteString(" = ")
			sb.WriteString(v.fields[k].quoted())
			n++
		}
		sb.WriteByte('}')
		return sb.String()
	}
	if v.str != "" {
		return v.str
	}
	return v.kind.String()
}

func (v Value) quoted() string {
	if v.kind == KindString {
		return strconv.Quote(v.str)
	}
	return v.String()
}

// FormatNumber prints integral numbers without a fraction.
func FormatNumber(n float64) string {
	if n == math.Trunc(n) && !math.IsInf(n, 0) && math.Abs(n) < 1e15 {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'g', 14, 64)
}

// FromGo converts a plain Go value into a Value.
// Supported: nil, bool, all integer and float types, string, Value,
// slices and arrays, and maps keyed by strings.
func FromGo(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Nil(), nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case int32:
		return Int(int64(t)), nil
	case uint64:
		return Number(float64(t)), nil
	case []any:
		elems := make([]Value, len(t))
		for i, e := range t {
			ev, err := FromGo(e)
			if err != nil {
				return Value{}, fmt.Errorf("index %d: %w", i+1, err)
			}
			elems[i] = ev
		}
		return List(elems...), nil
	case map[string]any:
		fields := make(map[string]Value, len(t))
		for k, f := range t {
			fv, err := FromGo(f)
			if err != nil {
				return Value{}, fmt.Errorf("field %q: %w", k, err)
			}
			fields[k] = fv
		}
		return Map(fields), nil
	}
	return fromReflect(reflect.ValueOf(x))
}

func fromReflect(rv reflect.Value) (Value, error) {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return Number(float64(rv.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return Number(rv.Float()), nil
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.String:
		return String(rv.String()), nil
	case reflect.Slice, reflect.Array:
		elems := make([]Value, rv.Len())
		for i := range elems {
			ev, err := FromGo(rv.Index(i).Interface())
			if err != nil {
				return Value{}, fmt.Errorf("index %d: %w", i+1, err)
			}
			elems[i] = ev
		}
		return List(elems...), nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return Value{}, fmt.Errorf("unsupported map key type %s", rv.Type().Key())
		}
		fields := make(map[string]Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			fv, err := FromGo(iter.Value().Interface())
			if err != nil {
				return Value{}, fmt.Errorf("field %q: %w", iter.Key().String(), err)
			}
			fields[iter.Key().String()] = fv
		}
		return Map(fields), nil
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Nil(), nil
		}
		return FromGo(rv.Elem().Interface())
	}
	if !rv.IsValid() {
		return Nil(), nil
	}
	return Value{}, fmt.Errorf("unsupported type %s", rv.Type())
}
