package image

import (
	"math/bits"
	"sync"
)

// Pool recycles host scratch buffers used to convert texels on their way
// to and from staging buffers.
//
// Buffers are bucketed by capacity rounded up to a power of two.
// Pool is safe for concurrent use.
type Pool struct {
	mu      sync.Mutex
	buckets map[int][][]byte
	maxSize int
}

// NewPool creates a new scratch pool with the given maximum buffers per
// bucket. A maxPerBucket of 0 means unlimited.
func NewPool(maxPerBucket int) *Pool {
	return &Pool{
		buckets: make(map[int][][]byte),
		maxSize: maxPerBucket,
	}
}

// bucketOf returns the bucket index holding buffers of at least n bytes.
func bucketOf(n int) int {
	if n <= 1 {
		return 0
	}
	return bits.Len(uint(n - 1))
}

// Get returns a zeroed buffer of length n.
func (p *Pool) Get(n int) []byte {
	b := bucketOf(n)

	p.mu.Lock()
	bucket := p.buckets[b]
	if len(bucket) > 0 {
		buf := bucket[len(bucket)-1]
		p.buckets[b] = bucket[:len(bucket)-1]
		p.mu.Unlock()

		buf = buf[:n]
		clear(buf)
		return buf
	}
	p.mu.Unlock()

	return make([]byte, n, 1<<b)
}

// Put returns buf to the pool. Buffers not obtained from Get are
// discarded, and so are buffers of full buckets.
func (p *Pool) Put(buf []byte) {
	if buf == nil || cap(buf)&(cap(buf)-1) != 0 {
		return
	}
	b := bucketOf(cap(buf))

	p.mu.Lock()
	defer p.mu.Unlock()

	bucket := p.buckets[b]
	if p.maxSize > 0 && len(bucket) >= p.maxSize {
		return
	}
	p.buckets[b] = append(bucket, buf[:0])
}

// scratch is the pool shared by all storages.
var scratch = NewPool(8)
