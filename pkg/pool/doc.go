// Package pool provides typed object pools.
//
// The shared buffer pool backs the scratch space used while encoding column
// chunks: levels and values are serialized into a pooled buffer, compressed
// into a fresh slice and the buffer is returned.
//
//	buf := pool.GetBuffer()
//	defer pool.PutBuffer(buf)
//	buf.B = append(buf.B, data...)
package pool
