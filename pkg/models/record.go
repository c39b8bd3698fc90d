// Package models provides the typed in-memory record representation.
//
// A Record is an immutable, ordered mapping from field name to Value. Value is
// a closed variant: one of six scalar kinds, a nested Record, or a List of
// values. Constructors copy their inputs and accessors never hand out
// internal slices, so a Record can be shared freely once built.
package models

import (
	"fmt"
	"math"
)

// Kind identifies the variant held by a Value
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInt8
	KindInt16
	KindFloat64
	KindBoolean
	KindString
	KindEnum
	KindRecord
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindInt8:
		return "int8"
	case KindInt16:
		return "int16"
	case KindFloat64:
		return "float64"
	case KindBoolean:
		return "boolean"
	case KindString:
		return "string"
	case KindEnum:
		return "enum"
	case KindRecord:
		return "record"
	case KindList:
		return "list"
	default:
		return "invalid"
	}
}

// Value is a single typed datum
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	rec  Record
	list []Value
}

// Int8 creates an int8 value. The argument is wide on purpose: an out of
// range value survives construction and is rejected by Validate.
func Int8(v int64) Value { return Value{kind: KindInt8, i: v} }

// Int16 creates an int16 value, see Int8
func Int16(v int64) Value { return Value{kind: KindInt16, i: v} }

// Float64 creates a float64 value
func Float64(v float64) Value { return Value{kind: KindFloat64, f: v} }

// Bool creates a boolean value
func Bool(v bool) Value {
	var i int64
	if v {
		i = 1
	}
	return Value{kind: KindBoolean, i: i}
}

// String creates a string value
func String(v string) Value { return Value{kind: KindString, s: v} }

// Enum creates an enum value holding a symbol name
func Enum(symbol string) Value { return Value{kind: KindEnum, s: symbol} }

// Nested wraps a record as a value
func Nested(r Record) Value { return Value{kind: KindRecord, rec: r} }

// List creates a list value. An empty call yields an empty, non-nil list.
func List(values ...Value) Value {
	return Value{kind: KindList, list: append(make([]Value, 0, len(values)), values...)}
}

// RecordList creates a list of nested records
func RecordList(records ...Record) Value {
	vs := make([]Value, len(records))
	for i, r := range records {
		vs[i] = Nested(r)
	}
	return Value{kind: KindList, list: vs}
}

// Kind returns the variant of v
func (v Value) Kind() Kind { return v.kind }

// Int returns the integer payload of an int8 or int16 value
func (v Value) Int() int64 { return v.i }

// Float returns the payload of a float64 value
func (v Value) Float() float64 { return v.f }

// Bool returns the payload of a boolean value
func (v Value) Bool() bool { return v.i != 0 }

// Str returns the payload of a string value or the symbol of an enum value
func (v Value) Str() string { return v.s }

// Record returns the payload of a record value
func (v Value) Record() Record { return v.rec }

// Len returns the number of list elements
func (v Value) Len() int { return len(v.list) }

// Index returns the i-th list element
func (v Value) Index(i int) Value { return v.list[i] }

// Values returns a copy of the list elements
func (v Value) Values() []Value { return append([]Value(nil), v.list...) }

// Equal reports deep equality. NaN equals NaN so round trips compare cleanly.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindInt8, KindInt16, KindBoolean:
		return v.i == o.i
	case KindFloat64:
		return math.Float64bits(v.f) == math.Float64bits(o.f) || v.f == o.f
	case KindString, KindEnum:
		return v.s == o.s
	case KindRecord:
		return v.rec.Equal(o.rec)
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
	default:
		return true
	}
}

// String renders the value for debugging
func (v Value) String() string {
	switch v.kind {
	case KindInt8, KindInt16:
		return fmt.Sprintf("%d", v.i)
	case KindFloat64:
		return fmt.Sprintf("%g", v.f)
	case KindBoolean:
		return fmt.Sprintf("%t", v.Bool())
	case KindString:
		return fmt.Sprintf("%q", v.s)
	case KindEnum:
		return v.s
	case KindRecord:
		return v.rec.String()
	case KindList:
		s := "["
		for i, e := range v.list {
			if i > 0 {
				s += ", "
			}
			s += e.String()
		}
		return s + "]"
	default:
		return "<invalid>"
	}
}

// Entry is one named field of a Record
type Entry struct {
	Name  string
	Value Value
}

// F is shorthand for building an Entry
func F(name string, v Value) Entry { return Entry{Name: name, Value: v} }

// Record is an immutable ordered set of named values
type Record struct {
	entries []Entry
}

// NewRecord creates a record from entries. A later entry with a repeated name
// replaces the earlier one.
func NewRecord(entries ...Entry) Record {
	out := make([]Entry, 0, len(entries))
	index := make(map[string]int, len(entries))
	for _, e := range entries {
		if i, ok := index[e.Name]; ok {
			out[i] = e
			continue
		}
		index[e.Name] = len(out)
		out = append(out, e)
	}
	return Record{entries: out}
}

// Get returns the value stored under name
func (r Record) Get(name string) (Value, bool) {
	for _, e := range r.entries {
		if e.Name == name {
			return e.Value, true
		}
	}
	return Value{}, false
}

// Len returns the number of fields present
func (r Record) Len() int { return len(r.entries) }

// Names returns field names in insertion order
func (r Record) Names() []string {
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.Name
	}
	return names
}

// Entries returns a copy of the fields in insertion order
func (r Record) Entries() []Entry {
	return append([]Entry(nil), r.entries...)
}

// Equal compares two records field by field, ignoring field order
func (r Record) Equal(o Record) bool {
	if len(r.entries) != len(o.entries) {
		return false
	}
	for _, e := range r.entries {
		ov, ok := o.Get(e.Name)
		if !ok || !e.Value.Equal(ov) {
			return false
		}
	}
	return true
}

// String renders the record for debugging
func (r Record) String() string {
	s := "{"
	for i, e := range r.entries {
		if i > 0 {
			s += ", "
		}
		s += e.Name + ": " + e.Value.String()
	}
	return s + "}"
}

// RecordsEqual compares two record sequences element by element
func RecordsEqual(a, b []Record) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
