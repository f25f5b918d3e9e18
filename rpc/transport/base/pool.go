package base

import (
	"github.com/ValentinKolb/dRPC/rpc/common"
	"github.com/puzpuzpuz/xsync/v3"
	"sync"
	"sync/atomic"
)

// --------------------------------------------------------------------------
// Buffer
// --------------------------------------------------------------------------

// Buffer is a byte buffer rented from a BufferPool.
// It must be released exactly once and must not be used after release.
type Buffer struct {
	data      []byte
	sizeClass int
	inUse     atomic.Bool
	pool      *BufferPool
}

// Bytes returns the whole buffer (len == size class)
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Len returns the size class of the buffer
func (b *Buffer) Len() int {
	return b.sizeClass
}

// Release returns the buffer to its pool. Releasing twice panics.
func (b *Buffer) Release() {
	if !b.inUse.CompareAndSwap(true, false) {
		panic("buffer released twice")
	}
	b.pool.put(b)
}

// --------------------------------------------------------------------------
// Buffer Pool
// --------------------------------------------------------------------------

// PoolStats is a snapshot of the pool counters
type PoolStats struct {
	Allocated   int64 // buffers created by the pool
	Reused      int64 // rents served from a free list
	Outstanding int64 // buffers rented and not yet released
}

// sizeClass holds the free buffers of one exact size
type sizeClass struct {
	mu   sync.Mutex
	free []*Buffer
}

// BufferPool hands out reusable byte buffers keyed by exact size.
// The pool grows on demand and never blocks a caller.
type BufferPool struct {
	defaultSize int
	classes     *xsync.MapOf[int, *sizeClass]
	closed      atomic.Bool

	allocated   atomic.Int64
	reused      atomic.Int64
	outstanding atomic.Int64
}

// NewBufferPool creates a pool. Rent calls with minSize <= 0 use defaultSize.
func NewBufferPool(defaultSize int) *BufferPool {
	if defaultSize <= 0 {
		defaultSize = common.DefaultReceiveBufferSize
	}
	return &BufferPool{
		defaultSize: defaultSize,
		classes:     xsync.NewMapOf[int, *sizeClass](),
	}
}

// Rent returns a buffer of exactly minSize bytes. Renting from a closed pool panics.
func (p *BufferPool) Rent(minSize int) *Buffer {
	if p.closed.Load() {
		panic(common.ErrPoolClosed)
	}
	if minSize <= 0 {
		minSize = p.defaultSize
	}

	class, _ := p.classes.LoadOrCompute(minSize, func() *sizeClass {
		return &sizeClass{}
	})

	var b *Buffer
	class.mu.Lock()
	if n := len(class.free); n > 0 {
		b = class.free[n-1]
		class.free[n-1] = nil
		class.free = class.free[:n-1]
	}
	class.mu.Unlock()

	if b != nil {
		p.reused.Add(1)
	} else {
		b = &Buffer{
			data:      make([]byte, minSize),
			sizeClass: minSize,
			pool:      p,
		}
		p.allocated.Add(1)
	}

	b.inUse.Store(true)
	p.outstanding.Add(1)
	return b
}

// Stats returns a snapshot of the pool counters
func (p *BufferPool) Stats() PoolStats {
	return PoolStats{
		Allocated:   p.allocated.Load(),
		Reused:      p.reused.Load(),
		Outstanding: p.outstanding.Load(),
	}
}

// Close drops all free buffers. Buffers released after Close are discarded.
func (p *BufferPool) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	p.classes.Range(func(size int, class *sizeClass) bool {
		class.mu.Lock()
		class.free = nil
		class.mu.Unlock()
		return true
	})
	p.classes.Clear()
}

// put requeues a released buffer under its original size class
func (p *BufferPool) put(b *Buffer) {
	p.outstanding.Add(-1)
	if p.closed.Load() {
		return
	}

	class, ok := p.classes.Load(b.sizeClass)
	if !ok {
		return
	}
	class.mu.Lock()
	class.free = append(class.free, b)
	class.mu.Unlock()
}
