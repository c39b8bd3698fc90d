// Package arrowconv converts between parcel schemas and records and Apache
// Arrow schemas and record batches.
//
// Repeated fields become non-null lists, records become structs and optional
// fields become nullable. Arrow has no enum type, so enums are strings whose
// field metadata lists the symbols; the Parquet and IPC writers keep that
// metadata, which lets imports restore the enum.
package arrowconv

import (
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/parcel/pkg/errors"
	"github.com/ajitpratap0/parcel/pkg/models"
	"github.com/ajitpratap0/parcel/pkg/schema"
)

const (
	// EnumSymbolsKey holds the comma separated symbols of an enum field
	EnumSymbolsKey = "parcel.enum.symbols"
	// SchemaNameKey holds the parcel schema name in the Arrow schema metadata
	SchemaNameKey = "parcel.schema.name"
	// DefaultSchemaName names schemas imported without SchemaNameKey
	DefaultSchemaName = "Record"
)

// ToArrowSchema converts a parcel schema
func ToArrowSchema(s *schema.Schema) (*arrow.Schema, error) {
	if err := schema.Validate(s); err != nil {
		return nil, err
	}
	fields := make([]arrow.Field, len(s.Fields))
	for i, f := range s.Fields {
		fields[i] = toArrowField(f)
	}
	md := arrow.NewMetadata([]string{SchemaNameKey}, []string{s.Name})
	return arrow.NewSchema(fields, &md), nil
}

func toArrowField(f *schema.Field) arrow.Field {
	elem := arrow.Field{Name: f.Name, Type: elementType(f)}
	if f.Type == schema.TypeEnum {
		elem.Metadata = arrow.NewMetadata([]string{EnumSymbolsKey}, []string{strings.Join(f.Symbols, ",")})
	}
	switch f.Repetition {
	case schema.Repeated:
		elem.Name = "element"
		return arrow.Field{Name: f.Name, Type: arrow.ListOfField(elem)}
	case schema.Optional:
		elem.Nullable = true
	}
	return elem
}

func elementType(f *schema.Field) arrow.DataType {
	switch f.Type {
	case schema.TypeRecord:
		children := make([]arrow.Field, len(f.Children))
		for i, c := range f.Children {
			children[i] = toArrowField(c)
		}
		return arrow.StructOf(children...)
	case schema.TypeInt8:
		return arrow.PrimitiveTypes.Int8
	case schema.TypeInt16:
		return arrow.PrimitiveTypes.Int16
	case schema.TypeFloat64:
		return arrow.PrimitiveTypes.Float64
	case schema.TypeBoolean:
		return arrow.FixedWidthTypes.Boolean
	default:
		// strings and enums
		return arrow.BinaryTypes.String
	}
}

// FromArrowSchema converts an Arrow schema. Types parcel cannot represent are
// a schema error naming the field.
func FromArrowSchema(as *arrow.Schema) (*schema.Schema, error) {
	name := DefaultSchemaName
	if md := as.Metadata(); md.Len() > 0 {
		if i := md.FindKey(SchemaNameKey); i >= 0 {
			name = md.Values()[i]
		}
	}
	fields := make([]*schema.Field, 0, len(as.Fields()))
	for _, af := range as.Fields() {
		f, err := fromArrowField(af, "")
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	s := schema.New(name, fields...)
	if err := schema.Validate(s); err != nil {
		return nil, err
	}
	return s, nil
}

func fromArrowField(af arrow.Field, prefix string) (*schema.Field, error) {
	path := af.Name
	if prefix != "" {
		path = prefix + "." + af.Name
	}
	rep := schema.Required
	if af.Nullable {
		rep = schema.Optional
	}
	dt := af.Type
	md := af.Metadata
	if lt, ok := dt.(*arrow.ListType); ok {
		rep = schema.Repeated
		dt = lt.Elem()
		md = lt.ElemField().Metadata
		if _, nested := dt.(*arrow.ListType); nested {
			return nil, unsupported(path, "list of lists")
		}
	}

	switch t := dt.(type) {
	case *arrow.StructType:
		children := make([]*schema.Field, 0, t.NumFields())
		for _, c := range t.Fields() {
			cf, err := fromArrowField(c, path)
			if err != nil {
				return nil, err
			}
			children = append(children, cf)
		}
		return schema.Record(af.Name, rep, children...), nil
	case *arrow.StringType:
		if i := md.FindKey(EnumSymbolsKey); i >= 0 {
			return schema.Enum(af.Name, rep, strings.Split(md.Values()[i], ",")...), nil
		}
		return schema.Scalar(af.Name, schema.TypeString, rep), nil
	}

	switch dt.ID() {
	case arrow.INT8:
		return schema.Scalar(af.Name, schema.TypeInt8, rep), nil
	case arrow.INT16:
		return schema.Scalar(af.Name, schema.TypeInt16, rep), nil
	case arrow.FLOAT64:
		return schema.Scalar(af.Name, schema.TypeFloat64, rep), nil
	case arrow.BOOL:
		return schema.Scalar(af.Name, schema.TypeBoolean, rep), nil
	}
	return nil, unsupported(path, dt.String())
}

func unsupported(path, what string) *errors.Error {
	return errors.Newf(errors.ErrorTypeSchema, "arrow type %s has no parcel equivalent", what).
		WithDetail("path", path)
}

// ToArrow builds one record batch from records, which must be valid for s.
// The caller releases the batch.
func ToArrow(mem memory.Allocator, as *arrow.Schema, s *schema.Schema, records []models.Record) (arrow.Record, error) {
	b := array.NewRecordBuilder(mem, as)
	defer b.Release()

	for row, r := range records {
		for i, f := range s.Fields {
			v, ok := r.Get(f.Name)
			if err := appendField(b.Field(i), f, v, ok, f.Name); err != nil {
				return nil, err.WithDetail("row", int64(row))
			}
		}
	}
	return b.NewRecord(), nil
}

func appendField(b array.Builder, f *schema.Field, v models.Value, ok bool, path string) *errors.Error {
	if f.Repetition == schema.Repeated {
		lb, isList := b.(*array.ListBuilder)
		if !isList {
			return builderMismatch(path, b)
		}
		lb.Append(true)
		if !ok {
			return nil
		}
		for _, e := range v.Values() {
			if err := appendSingle(lb.ValueBuilder(), f, e, path); err != nil {
				return err
			}
		}
		return nil
	}
	if !ok {
		b.AppendNull()
		return nil
	}
	return appendSingle(b, f, v, path)
}

func appendSingle(b array.Builder, f *schema.Field, v models.Value, path string) *errors.Error {
	switch bb := b.(type) {
	case *array.StructBuilder:
		if f.Type != schema.TypeRecord {
			break
		}
		bb.Append(true)
		rec := v.Record()
		for i, c := range f.Children {
			cv, ok := rec.Get(c.Name)
			if err := appendField(bb.FieldBuilder(i), c, cv, ok, path+"."+c.Name); err != nil {
				return err
			}
		}
		return nil
	case *array.Int8Builder:
		bb.Append(int8(v.Int()))
		return nil
	case *array.Int16Builder:
		bb.Append(int16(v.Int()))
		return nil
	case *array.Float64Builder:
		bb.Append(v.Float())
		return nil
	case *array.BooleanBuilder:
		bb.Append(v.Bool())
		return nil
	case *array.StringBuilder:
		bb.Append(v.Str())
		return nil
	}
	return builderMismatch(path, b)
}

func builderMismatch(path string, b array.Builder) *errors.Error {
	return errors.Newf(errors.ErrorTypeInternal, "arrow builder %T does not match the field", b).
		WithDetail("path", path)
}

// FromArrow converts every row of a record batch. Top-level columns are
// matched to s by name; columns s does not name are ignored.
func FromArrow(s *schema.Schema, rec arrow.Record) ([]models.Record, error) {
	cols := make([]arrow.Array, len(s.Fields))
	for i, f := range s.Fields {
		if idx := rec.Schema().FieldIndices(f.Name); len(idx) > 0 {
			cols[i] = rec.Column(idx[0])
		}
	}

	out := make([]models.Record, rec.NumRows())
	for row := range out {
		entries := make([]models.Entry, 0, len(s.Fields))
		for i, f := range s.Fields {
			if cols[i] == nil {
				continue
			}
			v, ok, err := readField(cols[i], f, row, f.Name)
			if err != nil {
				return nil, err.WithDetail("row", int64(row))
			}
			if ok {
				entries = append(entries, models.F(f.Name, v))
			}
		}
		out[row] = models.NewRecord(entries...)
	}
	return out, nil
}

func readField(arr arrow.Array, f *schema.Field, row int, path string) (models.Value, bool, *errors.Error) {
	if f.Repetition == schema.Repeated {
		la, ok := arr.(*array.List)
		if !ok {
			return models.Value{}, false, arrayMismatch(path, arr)
		}
		if la.IsNull(row) {
			return models.List(), true, nil
		}
		start, end := la.ValueOffsets(row)
		values := la.ListValues()
		items := make([]models.Value, 0, end-start)
		for j := start; j < end; j++ {
			v, err := readSingle(values, f, int(j), path)
			if err != nil {
				return models.Value{}, false, err
			}
			items = append(items, v)
		}
		return models.List(items...), true, nil
	}
	if arr.IsNull(row) {
		return models.Value{}, false, nil
	}
	v, err := readSingle(arr, f, row, path)
	return v, err == nil, err
}

func readSingle(arr arrow.Array, f *schema.Field, row int, path string) (models.Value, *errors.Error) {
	switch a := arr.(type) {
	case *array.Struct:
		st, ok := a.DataType().(*arrow.StructType)
		if !ok || f.Type != schema.TypeRecord {
			break
		}
		entries := make([]models.Entry, 0, len(f.Children))
		for _, c := range f.Children {
			idx, found := st.FieldIdx(c.Name)
			if !found {
				continue
			}
			v, ok, err := readField(a.Field(idx), c, row, path+"."+c.Name)
			if err != nil {
				return models.Value{}, err
			}
			if ok {
				entries = append(entries, models.F(c.Name, v))
			}
		}
		return models.Nested(models.NewRecord(entries...)), nil
	case *array.Int8:
		return models.Int8(int64(a.Value(row))), nil
	case *array.Int16:
		return models.Int16(int64(a.Value(row))), nil
	case *array.Float64:
		return models.Float64(a.Value(row)), nil
	case *array.Boolean:
		return models.Bool(a.Value(row)), nil
	case *array.String:
		if f.Type == schema.TypeEnum {
			return models.Enum(a.Value(row)), nil
		}
		return models.String(a.Value(row)), nil
	}
	return models.Value{}, arrayMismatch(path, arr)
}

func arrayMismatch(path string, arr arrow.Array) *errors.Error {
	return errors.Newf(errors.ErrorTypeValue, "arrow column of type %s does not match the field", arr.DataType()).
		WithDetail("path", path)
}
