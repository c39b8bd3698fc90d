package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	require.Error(t, err)
}

func TestInitReplacesGlobal(t *testing.T) {
	require.NoError(t, Init(Config{Level: "debug", Encoding: "console"}))
	first := Get()
	require.NoError(t, Init(Config{Level: "warn", Encoding: "json"}))
	assert.NotSame(t, first, Get())
	assert.False(t, Get().Core().Enabled(-1)) // debug disabled at warn
}

func TestWithContext(t *testing.T) {
	ctx := ContextWithFile(context.Background(), "out.parcel")
	ctx = ContextWithRowGroup(ctx, 2)
	assert.Equal(t, "out.parcel", ctx.Value(FileKey))
	assert.Equal(t, 2, ctx.Value(RowGroupKey))
	assert.NotNil(t, WithContext(ctx))
	assert.NotNil(t, With())
}
