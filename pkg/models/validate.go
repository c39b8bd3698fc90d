package models

import (
	"math"
	"unicode/utf8"

	"github.com/ajitpratap0/parcel/pkg/errors"
	"github.com/ajitpratap0/parcel/pkg/schema"
)

// Validate checks a record against a schema: required and repeated fields
// are present, no undeclared fields appear, kinds match and scalar values are
// within their type's domain. It is the only gate before encoding.
func Validate(r Record, s *schema.Schema) error {
	return validateRecord(r, s.Fields, "")
}

// ValidateAll validates a batch and tags the first failure with its row index
func ValidateAll(records []Record, s *schema.Schema, firstRow int64) error {
	for i, r := range records {
		if err := Validate(r, s); err != nil {
			if e, ok := err.(*errors.Error); ok {
				e.WithDetail("row", firstRow+int64(i))
			}
			return err
		}
	}
	return nil
}

func validateRecord(r Record, fields []*schema.Field, prefix string) error {
	declared := make(map[string]bool, len(fields))
	for _, f := range fields {
		declared[f.Name] = true
		path := join(prefix, f.Name)
		v, ok := r.Get(f.Name)
		if !ok {
			switch f.Repetition {
			case schema.Optional:
				continue
			case schema.Repeated:
				return valueError(path, "repeated field is missing, use an empty list")
			default:
				return valueError(path, "required field is missing")
			}
		}
		if err := validateField(v, f, path); err != nil {
			return err
		}
	}
	for _, name := range r.Names() {
		if !declared[name] {
			return valueError(join(prefix, name), "field is not declared in the schema")
		}
	}
	return nil
}

func validateField(v Value, f *schema.Field, path string) error {
	if f.Repetition == schema.Repeated {
		if v.Kind() != KindList {
			return valueError(path, "repeated field must be a list, got "+v.Kind().String())
		}
		for i := 0; i < v.Len(); i++ {
			if err := validateSingle(v.Index(i), f, path); err != nil {
				if e, ok := err.(*errors.Error); ok {
					e.WithDetail("index", i)
				}
				return err
			}
		}
		return nil
	}
	if v.Kind() == KindList {
		return valueError(path, "non-repeated field holds a list")
	}
	return validateSingle(v, f, path)
}

func validateSingle(v Value, f *schema.Field, path string) error {
	want := kindFor(f.Type)
	if v.Kind() != want {
		return valueError(path, "expected "+want.String()+", got "+v.Kind().String())
	}
	switch f.Type {
	case schema.TypeRecord:
		return validateRecord(v.Record(), f.Children, path)
	case schema.TypeInt8:
		if v.Int() < math.MinInt8 || v.Int() > math.MaxInt8 {
			return valueError(path, "value out of range for int8").WithDetail("value", v.Int())
		}
	case schema.TypeInt16:
		if v.Int() < math.MinInt16 || v.Int() > math.MaxInt16 {
			return valueError(path, "value out of range for int16").WithDetail("value", v.Int())
		}
	case schema.TypeString:
		if !utf8.ValidString(v.Str()) {
			return valueError(path, "string is not valid UTF-8")
		}
	case schema.TypeEnum:
		if f.SymbolIndex(v.Str()) < 0 {
			return valueError(path, "undeclared enum symbol").WithDetail("value", v.Str())
		}
	}
	return nil
}

// kindFor maps a schema type to the value kind that represents it
func kindFor(t schema.ScalarType) Kind {
	switch t {
	case schema.TypeInt8:
		return KindInt8
	case schema.TypeInt16:
		return KindInt16
	case schema.TypeFloat64:
		return KindFloat64
	case schema.TypeBoolean:
		return KindBoolean
	case schema.TypeString:
		return KindString
	case schema.TypeEnum:
		return KindEnum
	case schema.TypeRecord:
		return KindRecord
	default:
		return KindInvalid
	}
}

func valueError(path, msg string) *errors.Error {
	return errors.New(errors.ErrorTypeValue, msg).WithDetail("path", path)
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
