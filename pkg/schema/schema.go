// Package schema describes record layouts for parcel containers.
//
// A Schema is an ordered list of Fields. A Field is either a scalar (one of
// six ScalarTypes) or a record with its own ordered children, and carries a
// Repetition: Required, Optional or Repeated. A Repeated record models a list
// of records; only one level of such nesting is supported.
//
// Schemas are plain data. They are validated at runtime, serialized into the
// container footer, and projected onto a subset of leaf paths for reads.
package schema

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ajitpratap0/parcel/pkg/errors"
)

// ScalarType is the physical type of a leaf field
type ScalarType int

const (
	// TypeRecord marks a non-leaf field with children
	TypeRecord ScalarType = iota
	TypeInt8
	TypeInt16
	TypeFloat64
	TypeBoolean
	TypeString
	TypeEnum
)

var scalarNames = map[ScalarType]string{
	TypeRecord:  "record",
	TypeInt8:    "int8",
	TypeInt16:   "int16",
	TypeFloat64: "float64",
	TypeBoolean: "boolean",
	TypeString:  "string",
	TypeEnum:    "enum",
}

func (t ScalarType) String() string {
	if s, ok := scalarNames[t]; ok {
		return s
	}
	return fmt.Sprintf("ScalarType(%d)", int(t))
}

// MarshalText implements encoding.TextMarshaler
func (t ScalarType) MarshalText() ([]byte, error) {
	s, ok := scalarNames[t]
	if !ok {
		return nil, fmt.Errorf("unknown scalar type %d", int(t))
	}
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (t *ScalarType) UnmarshalText(b []byte) error {
	for k, v := range scalarNames {
		if v == string(b) {
			*t = k
			return nil
		}
	}
	return fmt.Errorf("unknown scalar type %q", string(b))
}

// Repetition says how many times a field may occur within its parent
type Repetition int

const (
	Required Repetition = iota
	Optional
	Repeated
)

var repetitionNames = map[Repetition]string{
	Required: "required",
	Optional: "optional",
	Repeated: "repeated",
}

func (r Repetition) String() string {
	if s, ok := repetitionNames[r]; ok {
		return s
	}
	return fmt.Sprintf("Repetition(%d)", int(r))
}

// MarshalText implements encoding.TextMarshaler
func (r Repetition) MarshalText() ([]byte, error) {
	s, ok := repetitionNames[r]
	if !ok {
		return nil, fmt.Errorf("unknown repetition %d", int(r))
	}
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (r *Repetition) UnmarshalText(b []byte) error {
	for k, v := range repetitionNames {
		if v == string(b) {
			*r = k
			return nil
		}
	}
	return fmt.Errorf("unknown repetition %q", string(b))
}

// Field is a named node of a Schema
type Field struct {
	Name       string     `json:"name"`
	Type       ScalarType `json:"type"`
	Repetition Repetition `json:"repetition"`
	// Symbols lists the allowed values of an enum, in ordinal order
	Symbols []string `json:"symbols,omitempty"`
	// Children are the ordered members of a record field
	Children []*Field `json:"children,omitempty"`
}

// IsRecord reports whether the field has children instead of a value
func (f *Field) IsRecord() bool {
	return f.Type == TypeRecord
}

// Child returns the direct child with the given name
func (f *Field) Child(name string) (*Field, bool) {
	for _, c := range f.Children {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// SymbolIndex returns the ordinal of an enum symbol, or -1
func (f *Field) SymbolIndex(symbol string) int {
	for i, s := range f.Symbols {
		if s == symbol {
			return i
		}
	}
	return -1
}

// Schema is the ordered top-level field list of a record type
type Schema struct {
	Name   string   `json:"name"`
	Fields []*Field `json:"fields"`
}

// New creates a schema with the given top-level fields
func New(name string, fields ...*Field) *Schema {
	return &Schema{Name: name, Fields: fields}
}

// Field returns the top-level field with the given name
func (s *Schema) Field(name string) (*Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// Lookup resolves a dotted path such as "attributes.quantity"
func (s *Schema) Lookup(path string) (*Field, bool) {
	parts := strings.Split(path, ".")
	f, ok := s.Field(parts[0])
	for _, p := range parts[1:] {
		if !ok || !f.IsRecord() {
			return nil, false
		}
		f, ok = f.Child(p)
	}
	return f, ok
}

// String renders the schema as an indented tree
func (s *Schema) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "record %s {\n", s.Name)
	for _, f := range s.Fields {
		writeField(&b, f, 1)
	}
	b.WriteString("}")
	return b.String()
}

func writeField(b *strings.Builder, f *Field, depth int) {
	indent := strings.Repeat("  ", depth)
	switch {
	case f.IsRecord():
		fmt.Fprintf(b, "%s%s record %s {\n", indent, f.Repetition, f.Name)
		for _, c := range f.Children {
			writeField(b, c, depth+1)
		}
		fmt.Fprintf(b, "%s}\n", indent)
	case f.Type == TypeEnum:
		fmt.Fprintf(b, "%s%s enum %s [%s]\n", indent, f.Repetition, f.Name, strings.Join(f.Symbols, ", "))
	default:
		fmt.Fprintf(b, "%s%s %s %s\n", indent, f.Repetition, f.Type, f.Name)
	}
}

var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate rejects duplicate sibling names, cyclic record references,
// malformed fields and more than one level of repeated-record nesting.
func Validate(s *Schema) error {
	if s == nil {
		return errors.New(errors.ErrorTypeSchema, "schema is nil")
	}
	if len(s.Fields) == 0 {
		return errors.New(errors.ErrorTypeSchema, "schema has no fields")
	}
	v := &validator{onPath: make(map[*Field]bool)}
	return v.fields(s.Fields, "", false)
}

type validator struct {
	onPath map[*Field]bool
}

func (v *validator) fields(fields []*Field, prefix string, underRepeatedRecord bool) error {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f == nil {
			return errors.New(errors.ErrorTypeSchema, "nil field").WithDetail("path", prefix)
		}
		path := joinPath(prefix, f.Name)
		if !namePattern.MatchString(f.Name) {
			return errors.Newf(errors.ErrorTypeSchema, "invalid field name %q", f.Name).WithDetail("path", path)
		}
		if seen[f.Name] {
			return errors.Newf(errors.ErrorTypeSchema, "duplicate field name %q", f.Name).WithDetail("path", path)
		}
		seen[f.Name] = true
		if err := v.field(f, path, underRepeatedRecord); err != nil {
			return err
		}
	}
	return nil
}

func (v *validator) field(f *Field, path string, underRepeatedRecord bool) error {
	if f.Repetition < Required || f.Repetition > Repeated {
		return errors.Newf(errors.ErrorTypeSchema, "invalid repetition %d", int(f.Repetition)).WithDetail("path", path)
	}
	if _, ok := scalarNames[f.Type]; !ok {
		return errors.Newf(errors.ErrorTypeSchema, "invalid type %d", int(f.Type)).WithDetail("path", path)
	}

	if !f.IsRecord() {
		if len(f.Children) > 0 {
			return errors.New(errors.ErrorTypeSchema, "scalar field has children").WithDetail("path", path)
		}
		if f.Type == TypeEnum {
			return validateSymbols(f, path)
		}
		if len(f.Symbols) > 0 {
			return errors.New(errors.ErrorTypeSchema, "symbols on a non-enum field").WithDetail("path", path)
		}
		return nil
	}

	if v.onPath[f] {
		return errors.New(errors.ErrorTypeSchema, "cyclic record reference").WithDetail("path", path)
	}
	if len(f.Children) == 0 {
		return errors.New(errors.ErrorTypeSchema, "record field has no children").WithDetail("path", path)
	}
	if f.Repetition == Repeated {
		if underRepeatedRecord {
			return errors.New(errors.ErrorTypeSchema, "repeated record nested inside a repeated record is not supported").
				WithDetail("path", path)
		}
		underRepeatedRecord = true
	}

	v.onPath[f] = true
	defer delete(v.onPath, f)
	return v.fields(f.Children, path, underRepeatedRecord)
}

func validateSymbols(f *Field, path string) error {
	if len(f.Symbols) == 0 {
		return errors.New(errors.ErrorTypeSchema, "enum has no symbols").WithDetail("path", path)
	}
	seen := make(map[string]bool, len(f.Symbols))
	for _, s := range f.Symbols {
		if !namePattern.MatchString(s) {
			return errors.Newf(errors.ErrorTypeSchema, "invalid enum symbol %q", s).WithDetail("path", path)
		}
		if seen[s] {
			return errors.Newf(errors.ErrorTypeSchema, "duplicate enum symbol %q", s).WithDetail("path", path)
		}
		seen[s] = true
	}
	return nil
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
