package avro

import (
	gojson "github.com/goccy/go-json"

	"github.com/ajitpratap0/parcel/pkg/errors"
	"github.com/ajitpratap0/parcel/pkg/schema"
)

// ParseSchema converts an Avro record schema. Only the shapes parcel can
// store are accepted: records, arrays of one of those, and ["null", T]
// unions.
func ParseSchema(doc string) (*schema.Schema, error) {
	var raw map[string]interface{}
	if err := gojson.Unmarshal([]byte(doc), &raw); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSchema, "invalid Avro schema JSON")
	}
	if raw["type"] != "record" {
		return nil, errors.New(errors.ErrorTypeSchema, "top-level Avro schema must be a record")
	}
	name, _ := raw["name"].(string)
	fields, err := parseFields(raw["fields"], "")
	if err != nil {
		return nil, err
	}
	s := schema.New(name, fields...)
	if err := schema.Validate(s); err != nil {
		return nil, err
	}
	return s, nil
}

func parseFields(v interface{}, prefix string) ([]*schema.Field, error) {
	list, ok := v.([]interface{})
	if !ok {
		return nil, schemaError(prefix, "record fields must be a list")
	}
	out := make([]*schema.Field, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, schemaError(prefix, "field must be an object")
		}
		name, _ := m["name"].(string)
		f, err := parseField(name, m["type"], joinPath(prefix, name))
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func parseField(name string, t interface{}, path string) (*schema.Field, error) {
	rep := schema.Required
	if union, ok := t.([]interface{}); ok {
		if len(union) != 2 || union[0] != "null" {
			return nil, schemaError(path, `only ["null", T] unions are supported`)
		}
		rep = schema.Optional
		t = union[1]
	}
	if m, ok := t.(map[string]interface{}); ok && m["type"] == "array" {
		if rep == schema.Optional {
			return nil, schemaError(path, "optional arrays are not supported")
		}
		rep = schema.Repeated
		t = m["items"]
	}
	return parseType(name, t, rep, path)
}

func parseType(name string, t interface{}, rep schema.Repetition, path string) (*schema.Field, error) {
	var (
		typeName string
		attrs    map[string]interface{}
	)
	switch x := t.(type) {
	case string:
		typeName = x
	case map[string]interface{}:
		typeName, _ = x["type"].(string)
		attrs = x
	default:
		return nil, schemaError(path, "unsupported Avro type")
	}

	switch typeName {
	case "record":
		children, err := parseFields(attrs["fields"], path)
		if err != nil {
			return nil, err
		}
		return schema.Record(name, rep, children...), nil
	case "enum":
		raw, _ := attrs["symbols"].([]interface{})
		symbols := make([]string, 0, len(raw))
		for _, s := range raw {
			sym, _ := s.(string)
			symbols = append(symbols, sym)
		}
		return schema.Enum(name, rep, symbols...), nil
	case "int", "long":
		st := schema.TypeInt16
		if hint, _ := attrs[typeHintKey].(string); hint == schema.TypeInt8.String() {
			st = schema.TypeInt8
		}
		return schema.Scalar(name, st, rep), nil
	case "double", "float":
		return schema.Scalar(name, schema.TypeFloat64, rep), nil
	case "boolean":
		return schema.Scalar(name, schema.TypeBoolean, rep), nil
	case "string":
		return schema.Scalar(name, schema.TypeString, rep), nil
	}
	return nil, schemaError(path, "unsupported Avro type "+typeName)
}

func schemaError(path, msg string) *errors.Error {
	e := errors.New(errors.ErrorTypeSchema, msg)
	if path != "" {
		e = e.WithDetail("path", path)
	}
	return e
}
