package schema

// Scalar creates a leaf field
func Scalar(name string, t ScalarType, rep Repetition) *Field {
	return &Field{Name: name, Type: t, Repetition: rep}
}

// RequiredOf creates a required leaf field
func RequiredOf(name string, t ScalarType) *Field {
	return Scalar(name, t, Required)
}

// OptionalOf creates an optional leaf field
func OptionalOf(name string, t ScalarType) *Field {
	return Scalar(name, t, Optional)
}

// List creates a repeated leaf field, i.e. a list of scalars
func List(name string, t ScalarType) *Field {
	return Scalar(name, t, Repeated)
}

// Enum creates an enum leaf field with the given symbols
func Enum(name string, rep Repetition, symbols ...string) *Field {
	return &Field{Name: name, Type: TypeEnum, Repetition: rep, Symbols: append([]string(nil), symbols...)}
}

// Record creates a record field with the given children
func Record(name string, rep Repetition, children ...*Field) *Field {
	return &Field{Name: name, Type: TypeRecord, Repetition: rep, Children: children}
}

// RecordList creates a repeated record field, i.e. a list of records
func RecordList(name string, children ...*Field) *Field {
	return Record(name, Repeated, children...)
}
