package pool

import (
	"sync"
	"sync/atomic"
)

// Pool is a typed wrapper around sync.Pool that resets objects on Put and
// counts allocations. It is safe for concurrent use.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)
	stats struct {
		allocated int64
		inUse     int64
		gets      int64
	}
}

// New creates a pool. newFn builds an object when the pool is empty; reset,
// if non-nil, runs before an object goes back into the pool.
//
//	bufs := pool.New(
//	    func() *bytes.Buffer { return new(bytes.Buffer) },
//	    func(b *bytes.Buffer) { b.Reset() },
//	)
func New[T any](newFn func() T, reset func(T)) *Pool[T] {
	p := &Pool[T]{reset: reset}
	p.pool.New = func() interface{} {
		atomic.AddInt64(&p.stats.allocated, 1)
		return newFn()
	}
	return p
}

// Get takes an object from the pool, allocating one if it is empty
func (p *Pool[T]) Get() T {
	atomic.AddInt64(&p.stats.gets, 1)
	atomic.AddInt64(&p.stats.inUse, 1)
	return p.pool.Get().(T)
}

// Put resets obj and returns it to the pool
func (p *Pool[T]) Put(obj T) {
	if p.reset != nil {
		p.reset(obj)
	}
	atomic.AddInt64(&p.stats.inUse, -1)
	p.pool.Put(obj)
}

// Stats reports the objects allocated, currently checked out and the total
// number of Get calls. gets minus allocated is the number of reuses.
func (p *Pool[T]) Stats() (allocated, inUse, gets int64) {
	return atomic.LoadInt64(&p.stats.allocated),
		atomic.LoadInt64(&p.stats.inUse),
		atomic.LoadInt64(&p.stats.gets)
}

// Buffer is a growable byte slice handed out by the buffer pool
type Buffer struct {
	B []byte
}

const (
	defaultBufferSize = 64 << 10
	// buffers that grew past this are dropped instead of pooled
	maxPooledBufferSize = 16 << 20
)

var buffers = New(
	func() *Buffer { return &Buffer{B: make([]byte, 0, defaultBufferSize)} },
	func(b *Buffer) { b.B = b.B[:0] },
)

// GetBuffer returns an empty buffer with at least the default capacity
func GetBuffer() *Buffer {
	return buffers.Get()
}

// PutBuffer returns b to the pool. Oversized buffers are released to the
// garbage collector. b must not be used afterwards.
func PutBuffer(b *Buffer) {
	if b == nil {
		return
	}
	if cap(b.B) > maxPooledBufferSize {
		atomic.AddInt64(&buffers.stats.inUse, -1)
		return
	}
	buffers.Put(b)
}

// BufferStats reports the statistics of the shared buffer pool
func BufferStats() (allocated, inUse, gets int64) {
	return buffers.Stats()
}
