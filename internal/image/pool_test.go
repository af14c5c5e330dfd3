package image

import (
	"sync"
	"testing"
)

func TestNewPool(t *testing.T) {
	tests := []struct {
		name         string
		maxPerBucket int
		wantMaxSize  int
	}{
		{"zero means unlimited", 0, 0},
		{"positive limit", 5, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := NewPool(tt.maxPerBucket)
			if pool.maxSize != tt.wantMaxSize {
				t.Errorf("maxSize = %d, want %d", pool.maxSize, tt.wantMaxSize)
			}
			if pool.buckets == nil {
				t.Error("buckets map is nil")
			}
		})
	}
}

func TestBucketOf(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{0, 0},
		{1, 0},
		{2, 1},
		{3, 2},
		{4, 2},
		{5, 3},
		{1024, 10},
		{1025, 11},
	}
	for _, tt := range tests {
		if got := bucketOf(tt.n); got != tt.want {
			t.Errorf("bucketOf(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

func TestPool_GetPut(t *testing.T) {
	pool := NewPool(4)

	buf := pool.Get(100)
	if len(buf) != 100 {
		t.Fatalf("len = %d, want 100", len(buf))
	}
	if cap(buf) != 128 {
		t.Errorf("cap = %d, want 128", cap(buf))
	}
	for i := range buf {
		buf[i] = 0xff
	}
	pool.Put(buf)

	// Same bucket: reused and zeroed.
	again := pool.Get(120)
	if &again[0] != &buf[0] {
		t.Error("Get did not reuse the pooled buffer")
	}
	for i, b := range again {
		if b != 0 {
			t.Fatalf("byte %d = %#x, want 0", i, b)
		}
	}
}

func TestPool_PutForeignBuffer(t *testing.T) {
	pool := NewPool(4)
	pool.Put(make([]byte, 100))
	pool.Put(nil)
	if n := len(pool.buckets); n != 0 {
		t.Errorf("buckets = %d, want 0 after putting non-pool buffers", n)
	}
}

func TestPool_BucketLimit(t *testing.T) {
	pool := NewPool(2)
	for range 5 {
		pool.Put(make([]byte, 0, 64))
	}
	if got := len(pool.buckets[bucketOf(64)]); got != 2 {
		t.Errorf("bucket size = %d, want 2", got)
	}
}

func TestPool_Concurrent(t *testing.T) {
	pool := NewPool(8)
	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 100 {
				n := 1 + (g*100+i)%500
				buf := pool.Get(n)
				if len(buf) != n {
					t.Errorf("len = %d, want %d", len(buf), n)
					return
				}
				buf[0] = byte(i)
				pool.Put(buf)
			}
		}()
	}
	wg.Wait()
}
