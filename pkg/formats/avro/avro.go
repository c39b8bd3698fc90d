// Package avro exports parcel records to Avro object container files and
// imports them back.
//
// Avro has no 8 or 16 bit integers; both are written as "int" with a
// "parcelType" attribute so an import restores the narrow type. Files from
// other producers map "int" to int16 and reject values that do not fit.
package avro

import (
	"io"
	"strings"

	gojson "github.com/goccy/go-json"
	"github.com/linkedin/goavro/v2"

	"github.com/ajitpratap0/parcel/pkg/compression"
	"github.com/ajitpratap0/parcel/pkg/errors"
	"github.com/ajitpratap0/parcel/pkg/models"
	"github.com/ajitpratap0/parcel/pkg/schema"
)

// typeHintKey names the attribute carrying the parcel scalar type
const typeHintKey = "parcelType"

// Options configures an Avro export
type Options struct {
	Compression compression.Algorithm
}

// CodecName maps a chunk codec onto the Avro OCF codec carrying it. Avro has
// no zstd, lz4 or s2 codec.
func CodecName(algo compression.Algorithm) (string, error) {
	switch algo {
	case compression.None:
		return goavro.CompressionNullLabel, nil
	case compression.Gzip:
		return goavro.CompressionDeflateLabel, nil
	case compression.Snappy, "":
		return goavro.CompressionSnappyLabel, nil
	}
	return "", errors.Newf(errors.ErrorTypeConfig, "Avro cannot carry %s compression", algo).
		WithDetail("compression", string(algo))
}

// SchemaJSON renders s as an Avro record schema
func SchemaJSON(s *schema.Schema) (string, error) {
	if err := schema.Validate(s); err != nil {
		return "", err
	}
	doc := map[string]interface{}{
		"type":   "record",
		"name":   s.Name,
		"fields": avroFields(s.Fields, ""),
	}
	b, err := gojson.Marshal(doc)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeInternal, "failed to render Avro schema")
	}
	return string(b), nil
}

func avroFields(fields []*schema.Field, prefix string) []interface{} {
	out := make([]interface{}, len(fields))
	for i, f := range fields {
		path := joinPath(prefix, f.Name)
		field := map[string]interface{}{"name": f.Name}
		t := avroType(f, path)
		switch f.Repetition {
		case schema.Repeated:
			field["type"] = map[string]interface{}{"type": "array", "items": t}
			field["default"] = []interface{}{}
		case schema.Optional:
			field["type"] = []interface{}{"null", t}
			field["default"] = nil
		default:
			field["type"] = t
		}
		out[i] = field
	}
	return out
}

func avroType(f *schema.Field, path string) interface{} {
	switch f.Type {
	case schema.TypeRecord:
		return map[string]interface{}{
			"type":   "record",
			"name":   typeName(path),
			"fields": avroFields(f.Children, path),
		}
	case schema.TypeEnum:
		return map[string]interface{}{
			"type":    "enum",
			"name":    typeName(path),
			"symbols": f.Symbols,
		}
	case schema.TypeInt8, schema.TypeInt16:
		return map[string]interface{}{"type": "int", typeHintKey: f.Type.String()}
	case schema.TypeFloat64:
		return "double"
	case schema.TypeBoolean:
		return "boolean"
	default:
		return "string"
	}
}

// typeName derives a unique Avro name for a nested record or enum
func typeName(path string) string {
	return strings.ReplaceAll(path, ".", "_")
}

// unionBranch names the non-null branch of an optional field
func unionBranch(f *schema.Field, path string) string {
	switch f.Type {
	case schema.TypeRecord, schema.TypeEnum:
		return typeName(path)
	case schema.TypeInt8, schema.TypeInt16:
		return "int"
	case schema.TypeFloat64:
		return "double"
	case schema.TypeBoolean:
		return "boolean"
	default:
		return "string"
	}
}

// Write encodes records, which must be valid for s, as an Avro OCF
func Write(w io.Writer, s *schema.Schema, records []models.Record, opts Options) error {
	doc, err := SchemaJSON(s)
	if err != nil {
		return err
	}
	if err := models.ValidateAll(records, s, 0); err != nil {
		return err
	}
	codec, err := CodecName(opts.Compression)
	if err != nil {
		return err
	}
	ocfw, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               w,
		Schema:          doc,
		CompressionName: codec,
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to create Avro writer")
	}

	batch := make([]interface{}, len(records))
	for i, r := range records {
		batch[i] = toNative(r, s.Fields, "")
	}
	if err := ocfw.Append(batch); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write Avro records")
	}
	return nil
}

func toNative(r models.Record, fields []*schema.Field, prefix string) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		path := joinPath(prefix, f.Name)
		v, ok := r.Get(f.Name)
		switch {
		case f.Repetition == schema.Repeated:
			items := []interface{}{}
			if ok {
				for _, e := range v.Values() {
					items = append(items, singleNative(e, f, path))
				}
			}
			out[f.Name] = items
		case !ok:
			out[f.Name] = nil
		case f.Repetition == schema.Optional:
			out[f.Name] = goavro.Union(unionBranch(f, path), singleNative(v, f, path))
		default:
			out[f.Name] = singleNative(v, f, path)
		}
	}
	return out
}

func singleNative(v models.Value, f *schema.Field, path string) interface{} {
	switch f.Type {
	case schema.TypeRecord:
		return toNative(v.Record(), f.Children, path)
	case schema.TypeInt8, schema.TypeInt16:
		return int32(v.Int())
	case schema.TypeFloat64:
		return v.Float()
	case schema.TypeBoolean:
		return v.Bool()
	default:
		return v.Str()
	}
}

// Read decodes an Avro OCF into its schema and records
func Read(r io.Reader) (*schema.Schema, []models.Record, error) {
	ocfr, err := goavro.NewOCFReader(r)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrorTypeCorruptContainer, "failed to open Avro file")
	}
	s, err := ParseSchema(ocfr.Codec().Schema())
	if err != nil {
		return nil, nil, err
	}

	var records []models.Record
	for ocfr.Scan() {
		datum, err := ocfr.Read()
		if err != nil {
			return nil, nil, errors.Wrap(err, errors.ErrorTypeCorruptColumnData, "failed to decode Avro record").
				WithDetail("row", int64(len(records)))
		}
		m, ok := datum.(map[string]interface{})
		if !ok {
			return nil, nil, errors.New(errors.ErrorTypeCorruptColumnData, "Avro datum is not a record").
				WithDetail("row", int64(len(records)))
		}
		rec, ferr := fromNative(m, s.Fields, "")
		if ferr != nil {
			return nil, nil, ferr.WithDetail("row", int64(len(records)))
		}
		records = append(records, rec)
	}
	if err := ocfr.Err(); err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrorTypeCorruptColumnData, "failed to scan Avro file")
	}
	if err := models.ValidateAll(records, s, 0); err != nil {
		return nil, nil, err
	}
	return s, records, nil
}

func fromNative(m map[string]interface{}, fields []*schema.Field, prefix string) (models.Record, *errors.Error) {
	entries := make([]models.Entry, 0, len(fields))
	for _, f := range fields {
		path := joinPath(prefix, f.Name)
		raw, ok := m[f.Name]
		if !ok || raw == nil {
			continue
		}
		if f.Repetition == schema.Repeated {
			items, isList := raw.([]interface{})
			if !isList {
				return models.Record{}, nativeError(path, "expected an Avro array")
			}
			vals := make([]models.Value, 0, len(items))
			for _, item := range items {
				v, err := singleFromNative(item, f, path)
				if err != nil {
					return models.Record{}, err
				}
				vals = append(vals, v)
			}
			entries = append(entries, models.F(f.Name, models.List(vals...)))
			continue
		}
		if u, isUnion := raw.(map[string]interface{}); isUnion && f.Repetition == schema.Optional {
			// goavro decodes unions as a single-entry map keyed by branch name
			for _, inner := range u {
				raw = inner
			}
		}
		v, err := singleFromNative(raw, f, path)
		if err != nil {
			return models.Record{}, err
		}
		entries = append(entries, models.F(f.Name, v))
	}
	return models.NewRecord(entries...), nil
}

func singleFromNative(raw interface{}, f *schema.Field, path string) (models.Value, *errors.Error) {
	switch f.Type {
	case schema.TypeRecord:
		m, ok := raw.(map[string]interface{})
		if !ok {
			return models.Value{}, nativeError(path, "expected an Avro record")
		}
		r, err := fromNative(m, f.Children, path)
		if err != nil {
			return models.Value{}, err
		}
		return models.Nested(r), nil
	case schema.TypeInt8, schema.TypeInt16:
		var n int64
		switch x := raw.(type) {
		case int32:
			n = int64(x)
		case int64:
			n = x
		default:
			return models.Value{}, nativeError(path, "expected an Avro int")
		}
		if f.Type == schema.TypeInt8 {
			return models.Int8(n), nil
		}
		return models.Int16(n), nil
	case schema.TypeFloat64:
		switch x := raw.(type) {
		case float64:
			return models.Float64(x), nil
		case float32:
			return models.Float64(float64(x)), nil
		}
		return models.Value{}, nativeError(path, "expected an Avro double")
	case schema.TypeBoolean:
		b, ok := raw.(bool)
		if !ok {
			return models.Value{}, nativeError(path, "expected an Avro boolean")
		}
		return models.Bool(b), nil
	case schema.TypeEnum:
		s, ok := raw.(string)
		if !ok {
			return models.Value{}, nativeError(path, "expected an Avro enum symbol")
		}
		return models.Enum(s), nil
	default:
		s, ok := raw.(string)
		if !ok {
			return models.Value{}, nativeError(path, "expected an Avro string")
		}
		return models.String(s), nil
	}
}

func nativeError(path, msg string) *errors.Error {
	return errors.New(errors.ErrorTypeCorruptColumnData, msg).WithDetail("path", path)
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
