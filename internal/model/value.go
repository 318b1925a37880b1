// Package model defines the data types shared across the daemon: the
// accessibility tree, the semantic element/section/snapshot shapes, events,
// tracked processes, and the heterogeneous value type used at the JSON
// protocol boundary.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind identifies the concrete type held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindArray
	KindObject
)

// Value is a tagged union over the heterogeneous values that cross the
// protocol boundary: a RawNode's value, an Event's details map, and an
// action's params blob may each hold a string, a number, a bool, an
// ordered sequence, a mapping, or null. Deserialization happens eagerly
// here, at the boundary; everything past this point works with typed
// Go values via the accessors below rather than re-inspecting raw JSON.
type Value struct {
	kind Kind
	str  string
	num  float64
	flag bool
	arr  []Value
	obj  map[string]Value
}

// Null is the zero Value.
var Null = Value{kind: KindNull}

func NewString(s string) Value      { return Value{kind: KindString, str: s} }
func NewInt(i int64) Value          { return Value{kind: KindInt, num: float64(i)} }
func NewFloat(f float64) Value      { return Value{kind: KindFloat, num: f} }
func NewBool(b bool) Value          { return Value{kind: KindBool, flag: b} }
func NewArray(vs []Value) Value     { return Value{kind: KindArray, arr: vs} }
func NewObject(m map[string]Value) Value {
	return Value{kind: KindObject, obj: m}
}

func (v Value) Kind() Kind    { return v.kind }
func (v Value) IsNull() bool  { return v.kind == KindNull }
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return fmt.Sprintf("%d", int64(v.num))
	case KindFloat:
		return fmt.Sprintf("%g", v.num)
	case KindBool:
		return fmt.Sprintf("%t", v.flag)
	default:
		return ""
	}
}

// Float returns the numeric value for KindInt/KindFloat, or 0 otherwise.
func (v Value) Float() float64 { return v.num }

// Int returns the numeric value truncated to int64.
func (v Value) Int() int64 { return int64(v.num) }

// Bool returns the boolean value, or false otherwise.
func (v Value) Bool() bool { return v.flag }

// Array returns the ordered sequence for KindArray, or nil otherwise.
func (v Value) Array() []Value { return v.arr }

// Object returns the mapping for KindObject, or nil otherwise.
func (v Value) Object() map[string]Value { return v.obj }

// MarshalJSON renders the Value as its natural JSON representation.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindString:
		return json.Marshal(v.str)
	case KindInt:
		return json.Marshal(int64(v.num))
	case KindFloat:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.flag)
	case KindArray:
		return json.Marshal(v.arr)
	case KindObject:
		return json.Marshal(v.obj)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes arbitrary JSON into the appropriate Value kind.
// Numbers without a fractional component or exponent are kept as KindInt.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	*v = fromAny(raw)
	return nil
}

func fromAny(raw any) Value {
	switch t := raw.(type) {
	case nil:
		return Null
	case string:
		return NewString(t)
	case bool:
		return NewBool(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return NewInt(i)
		}
		f, _ := t.Float64()
		return NewFloat(f)
	case float64:
		return NewFloat(t)
	case []any:
		out := make([]Value, 0, len(t))
		for _, e := range t {
			out = append(out, fromAny(e))
		}
		return NewArray(out)
	case map[string]any:
		out := make(map[string]Value, len(t))
		for k, e := range t {
			out[k] = fromAny(e)
		}
		return NewObject(out)
	default:
		return Null
	}
}
