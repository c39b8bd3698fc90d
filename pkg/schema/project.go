package schema

import (
	"strings"

	gojson "github.com/goccy/go-json"

	"github.com/ajitpratap0/parcel/pkg/errors"
)

// Leaf describes one scalar column of a schema
type Leaf struct {
	// Path is the dotted name from the top-level field down to the leaf
	Path string
	// Field is the leaf field itself
	Field *Field
	// Ancestors holds every field on the path, the leaf included
	Ancestors []*Field
	// MaxDef counts the optional and repeated fields on the path
	MaxDef int
	// MaxRep counts the repeated fields on the path
	MaxRep int
}

// Leaves returns the leaf columns of s in depth-first schema order
func (s *Schema) Leaves() []Leaf {
	var leaves []Leaf
	for _, f := range s.Fields {
		leaves = collectLeaves(leaves, f, nil, "", 0, 0)
	}
	return leaves
}

// LeavesUnder returns the leaf columns beneath f, f included when it is a scalar
func LeavesUnder(f *Field) []*Field {
	if !f.IsRecord() {
		return []*Field{f}
	}
	var out []*Field
	for _, c := range f.Children {
		out = append(out, LeavesUnder(c)...)
	}
	return out
}

func collectLeaves(out []Leaf, f *Field, ancestors []*Field, prefix string, def, rep int) []Leaf {
	path := joinPath(prefix, f.Name)
	chain := append(append([]*Field(nil), ancestors...), f)
	switch f.Repetition {
	case Optional:
		def++
	case Repeated:
		def++
		rep++
	}
	if !f.IsRecord() {
		return append(out, Leaf{Path: path, Field: f, Ancestors: chain, MaxDef: def, MaxRep: rep})
	}
	for _, c := range f.Children {
		out = collectLeaves(out, c, chain, path, def, rep)
	}
	return out
}

// Project returns the sub-schema holding the requested paths and their
// ancestor chain, in schema order. A path naming a record selects all of its
// leaves. No paths selects the whole schema.
func Project(s *Schema, paths []string) (*Schema, error) {
	if len(paths) == 0 {
		return s.Clone(), nil
	}

	selected := make(map[*Field]bool, len(paths))
	for _, p := range paths {
		f, ok := s.Lookup(strings.TrimSpace(p))
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeUnknownField, "unknown field %q", p).WithDetail("path", p)
		}
		for _, leaf := range LeavesUnder(f) {
			selected[leaf] = true
		}
	}

	out := &Schema{Name: s.Name}
	for _, f := range s.Fields {
		if pf := projectField(f, selected); pf != nil {
			out.Fields = append(out.Fields, pf)
		}
	}
	return out, nil
}

// projectField keeps the selected leaves beneath f and the records that lead
// to them
func projectField(f *Field, selected map[*Field]bool) *Field {
	if !f.IsRecord() {
		if selected[f] {
			return f.Clone()
		}
		return nil
	}
	var children []*Field
	for _, c := range f.Children {
		if pc := projectField(c, selected); pc != nil {
			children = append(children, pc)
		}
	}
	if len(children) == 0 {
		return nil
	}
	cp := *f
	cp.Children = children
	return &cp
}

// Clone returns a deep copy of the schema
func (s *Schema) Clone() *Schema {
	out := &Schema{Name: s.Name, Fields: make([]*Field, len(s.Fields))}
	for i, f := range s.Fields {
		out.Fields[i] = f.Clone()
	}
	return out
}

// Clone returns a deep copy of the field and its children
func (f *Field) Clone() *Field {
	cp := *f
	cp.Symbols = append([]string(nil), f.Symbols...)
	if f.Children != nil {
		cp.Children = make([]*Field, len(f.Children))
		for i, c := range f.Children {
			cp.Children[i] = c.Clone()
		}
	}
	return &cp
}

// Equal reports whether two schemas describe the same layout
func Equal(a, b *Schema) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Name == b.Name && fieldsEqual(a.Fields, b.Fields)
}

func fieldsEqual(a, b []*Field) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		if x.Name != y.Name || x.Type != y.Type || x.Repetition != y.Repetition {
			return false
		}
		if len(x.Symbols) != len(y.Symbols) {
			return false
		}
		for j := range x.Symbols {
			if x.Symbols[j] != y.Symbols[j] {
				return false
			}
		}
		if !fieldsEqual(x.Children, y.Children) {
			return false
		}
	}
	return true
}

// Parse decodes a JSON schema document and validates it
func Parse(data []byte) (*Schema, error) {
	var s Schema
	if err := gojson.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSchema, "failed to decode schema JSON")
	}
	if err := Validate(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// MarshalIndent renders the schema as indented JSON
func MarshalIndent(s *Schema) ([]byte, error) {
	return gojson.MarshalIndent(s, "", "  ")
}
