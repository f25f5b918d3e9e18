package base

import (
	"sync"
	"testing"
)

// TestPoolReuse checks that a released buffer is handed out again
func TestPoolReuse(t *testing.T) {
	p := NewBufferPool(64)
	defer p.Close()

	b1 := p.Rent(128)
	if b1.Len() != 128 || len(b1.Bytes()) != 128 {
		t.Fatalf("Expected 128 byte buffer, got %d", len(b1.Bytes()))
	}
	first := &b1.Bytes()[0]
	b1.Release()

	b2 := p.Rent(128)
	if &b2.Bytes()[0] != first {
		t.Errorf("Expected the released buffer to be reused")
	}

	stats := p.Stats()
	if stats.Allocated != 1 || stats.Reused != 1 || stats.Outstanding != 1 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
	b2.Release()

	if p.Stats().Outstanding != 0 {
		t.Errorf("Expected no outstanding buffers, got %d", p.Stats().Outstanding)
	}
}

func TestPoolSizeClasses(t *testing.T) {
	p := NewBufferPool(64)
	defer p.Close()

	small := p.Rent(100)
	small.Release()

	// a different size never gets the 100 byte buffer
	big := p.Rent(101)
	if big.Len() != 101 {
		t.Errorf("Expected 101 byte buffer, got %d", big.Len())
	}
	if p.Stats().Allocated != 2 {
		t.Errorf("Expected 2 allocations, got %d", p.Stats().Allocated)
	}
	big.Release()

	def := p.Rent(0)
	if def.Len() != 64 {
		t.Errorf("Expected default size 64, got %d", def.Len())
	}
	def.Release()
}

func TestPoolNeverHandsOutTwice(t *testing.T) {
	p := NewBufferPool(32)
	defer p.Close()

	a := p.Rent(32)
	b := p.Rent(32)
	if a == b {
		t.Fatalf("Expected two distinct buffers")
	}
	a.Release()
	b.Release()
}

func TestPoolDoubleReleasePanics(t *testing.T) {
	p := NewBufferPool(32)
	defer p.Close()

	b := p.Rent(32)
	b.Release()

	defer func() {
		if recover() == nil {
			t.Errorf("Expected panic on double release")
		}
	}()
	b.Release()
}

func TestPoolRentAfterClosePanics(t *testing.T) {
	p := NewBufferPool(32)
	b := p.Rent(32)
	p.Close()

	// releasing after close is allowed, the buffer is dropped
	b.Release()

	defer func() {
		if recover() == nil {
			t.Errorf("Expected panic on rent after close")
		}
	}()
	p.Rent(32)
}

func TestPoolConcurrent(t *testing.T) {
	p := NewBufferPool(256)
	defer p.Close()

	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				b := p.Rent(256 + g%4)
				b.Bytes()[0] = byte(g)
				b.Release()
			}
		}(g)
	}
	wg.Wait()

	stats := p.Stats()
	if stats.Outstanding != 0 {
		t.Errorf("Expected no outstanding buffers, got %d", stats.Outstanding)
	}
	if stats.Allocated+stats.Reused != 16*1000 {
		t.Errorf("Expected %d rents, got %d", 16*1000, stats.Allocated+stats.Reused)
	}
	if stats.Allocated > 16 {
		t.Errorf("Expected at most 16 allocations, got %d", stats.Allocated)
	}
}
