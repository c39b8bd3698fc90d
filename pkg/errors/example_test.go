package errors_test

import (
	stderrors "errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/parcel/pkg/errors"
)

// Example demonstrates basic error creation with context details.
func Example() {
	err := errors.New(errors.ErrorTypeValue, "value out of range for int8").
		WithDetail("path", "attributes.quantity").
		WithDetail("row", 3)

	fmt.Println(err.Error())

	// Output:
	// value: value out of range for int8 (path=attributes.quantity, row=3)
}

// ExampleWrap shows how to wrap existing errors with context.
func ExampleWrap() {
	err := errors.Wrap(io.ErrUnexpectedEOF, errors.ErrorTypeCorruptContainer, "footer is truncated").
		WithDetail("file", "out.parcel")

	if errors.IsType(err, errors.ErrorTypeCorruptContainer) {
		fmt.Println("container is corrupt")
	}
	if stderrors.Is(err, io.ErrUnexpectedEOF) {
		fmt.Println("caused by a short read")
	}

	// Output:
	// container is corrupt
	// caused by a short read
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, errors.Wrap(nil, errors.ErrorTypeFile, "nothing"))
}

func TestWrapPreservesStack(t *testing.T) {
	inner := errors.New(errors.ErrorTypeSchema, "duplicate field")
	outer := errors.Wrap(inner, errors.ErrorTypeInternal, "open writer")

	require.NotEmpty(t, inner.Stack)
	assert.Equal(t, inner.Stack, outer.Stack)
	assert.True(t, errors.IsType(outer, errors.ErrorTypeInternal))
	assert.Equal(t, errors.ErrorTypeInternal, errors.TypeOf(outer))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"file", errors.New(errors.ErrorTypeFile, "disk full"), true},
		{"corrupt", errors.New(errors.ErrorTypeCorruptContainer, "bad magic"), false},
		{"foreign", io.EOF, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.IsRetryable(tt.err))
		})
	}
}

func TestDetail(t *testing.T) {
	err := errors.Newf(errors.ErrorTypeUnknownField, "unknown field %q", "nope").WithDetail("path", "nope")

	v, ok := err.Detail("path")
	require.True(t, ok)
	assert.Equal(t, "nope", v)
	assert.Equal(t, errors.ErrorTypeInternal, errors.TypeOf(io.EOF))
}
