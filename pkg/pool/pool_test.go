package pool

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolResetsOnPut(t *testing.T) {
	p := New(
		func() *bytes.Buffer { return new(bytes.Buffer) },
		func(b *bytes.Buffer) { b.Reset() },
	)
	b := p.Get()
	b.WriteString("dirty")
	p.Put(b)

	again := p.Get()
	assert.Equal(t, 0, again.Len())
	p.Put(again)

	allocated, inUse, gets := p.Stats()
	assert.GreaterOrEqual(t, allocated, int64(1))
	assert.Equal(t, int64(0), inUse)
	assert.Equal(t, int64(2), gets)
}

func TestBufferPoolConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n byte) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				buf := GetBuffer()
				require.Empty(t, buf.B)
				buf.B = append(buf.B, n, n, n)
				PutBuffer(buf)
			}
		}(byte(i))
	}
	wg.Wait()
}

func TestPutBufferDropsOversized(t *testing.T) {
	_, before, _ := BufferStats()
	buf := GetBuffer()
	buf.B = make([]byte, 0, maxPooledBufferSize+1)
	PutBuffer(buf)
	PutBuffer(nil)
	_, after, _ := BufferStats()
	assert.Equal(t, before, after)
}
