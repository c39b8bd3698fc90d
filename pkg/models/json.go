package models

import (
	"bytes"
	"math"
	"strconv"

	gojson "github.com/goccy/go-json"

	"github.com/ajitpratap0/parcel/pkg/errors"
	"github.com/ajitpratap0/parcel/pkg/schema"
)

// MarshalJSON renders the record as a JSON object keeping field order
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := r.appendJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalJSON renders the value as its natural JSON form
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.appendJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r Record) appendJSON(buf *bytes.Buffer) error {
	buf.WriteByte('{')
	for i, e := range r.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := gojson.Marshal(e.Name)
		if err != nil {
			return err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if err := e.Value.appendJSON(buf); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func (v Value) appendJSON(buf *bytes.Buffer) error {
	switch v.kind {
	case KindInt8, KindInt16:
		buf.WriteString(strconv.FormatInt(v.i, 10))
	case KindFloat64:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			// JSON has no literal for these
			buf.WriteString(strconv.Quote(strconv.FormatFloat(v.f, 'g', -1, 64)))
			return nil
		}
		buf.WriteString(strconv.FormatFloat(v.f, 'g', -1, 64))
	case KindBoolean:
		buf.WriteString(strconv.FormatBool(v.Bool()))
	case KindString, KindEnum:
		s, err := gojson.Marshal(v.s)
		if err != nil {
			return err
		}
		buf.Write(s)
	case KindRecord:
		return v.rec.appendJSON(buf)
	case KindList:
		buf.WriteByte('[')
		for i, e := range v.list {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := e.appendJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		buf.WriteString("null")
	}
	return nil
}

// DecodeJSON builds a record from a JSON object, typing every value by the
// schema. JSON null is treated as an absent field. The result is validated.
func DecodeJSON(s *schema.Schema, data []byte) (Record, error) {
	dec := gojson.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return Record{}, errors.Wrap(err, errors.ErrorTypeValue, "invalid JSON record")
	}
	r, err := fromJSONObject(raw, s.Fields, "")
	if err != nil {
		return Record{}, err
	}
	if err := Validate(r, s); err != nil {
		return Record{}, err
	}
	return r, nil
}

func fromJSONObject(raw map[string]interface{}, fields []*schema.Field, prefix string) (Record, error) {
	entries := make([]Entry, 0, len(raw))
	for _, f := range fields {
		v, ok := raw[f.Name]
		if !ok || v == nil {
			continue
		}
		path := join(prefix, f.Name)
		var (
			val Value
			err error
		)
		if f.Repetition == schema.Repeated {
			val, err = fromJSONList(v, f, path)
		} else {
			val, err = fromJSONSingle(v, f, path)
		}
		if err != nil {
			return Record{}, err
		}
		entries = append(entries, F(f.Name, val))
	}
	for name := range raw {
		found := false
		for _, f := range fields {
			if f.Name == name {
				found = true
				break
			}
		}
		if !found {
			return Record{}, valueError(join(prefix, name), "field is not declared in the schema")
		}
	}
	return NewRecord(entries...), nil
}

func fromJSONList(v interface{}, f *schema.Field, path string) (Value, error) {
	items, ok := v.([]interface{})
	if !ok {
		return Value{}, valueError(path, "repeated field must be a JSON array")
	}
	out := make([]Value, 0, len(items))
	for _, item := range items {
		e, err := fromJSONSingle(item, f, path)
		if err != nil {
			return Value{}, err
		}
		out = append(out, e)
	}
	return List(out...), nil
}

func fromJSONSingle(v interface{}, f *schema.Field, path string) (Value, error) {
	switch f.Type {
	case schema.TypeRecord:
		obj, ok := v.(map[string]interface{})
		if !ok {
			return Value{}, valueError(path, "expected a JSON object")
		}
		r, err := fromJSONObject(obj, f.Children, path)
		if err != nil {
			return Value{}, err
		}
		return Nested(r), nil
	case schema.TypeInt8, schema.TypeInt16:
		n, ok := v.(gojson.Number)
		if !ok {
			return Value{}, valueError(path, "expected a JSON number")
		}
		i, err := n.Int64()
		if err != nil {
			return Value{}, errors.Wrap(err, errors.ErrorTypeValue, "expected an integer").WithDetail("path", path)
		}
		if f.Type == schema.TypeInt8 {
			return Int8(i), nil
		}
		return Int16(i), nil
	case schema.TypeFloat64:
		switch n := v.(type) {
		case gojson.Number:
			x, err := n.Float64()
			if err != nil {
				return Value{}, errors.Wrap(err, errors.ErrorTypeValue, "expected a number").WithDetail("path", path)
			}
			return Float64(x), nil
		case string:
			// NaN and infinities are written as strings by MarshalJSON
			x, err := strconv.ParseFloat(n, 64)
			if err != nil {
				return Value{}, errors.Wrap(err, errors.ErrorTypeValue, "expected a number").WithDetail("path", path)
			}
			return Float64(x), nil
		}
		return Value{}, valueError(path, "expected a JSON number")
	case schema.TypeBoolean:
		b, ok := v.(bool)
		if !ok {
			return Value{}, valueError(path, "expected a JSON boolean")
		}
		return Bool(b), nil
	case schema.TypeString:
		s, ok := v.(string)
		if !ok {
			return Value{}, valueError(path, "expected a JSON string")
		}
		return String(s), nil
	case schema.TypeEnum:
		s, ok := v.(string)
		if !ok {
			return Value{}, valueError(path, "expected an enum symbol string")
		}
		return Enum(s), nil
	}
	return Value{}, valueError(path, "unsupported field type "+f.Type.String())
}
