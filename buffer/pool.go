/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package buffer implements the shared byte-buffer recycling pool used by
// sessions and the server to avoid a per-read/write allocation. Buffers are
// bucketed by size class; each bucket tracks its own free list and, once
// populous enough, switches on a lock-free ring for the hot acquire/release
// path (see bucket.go).
package buffer

import (
	"sync"
	"time"
)

// Size classes, smallest to largest (§4.4).
const (
	Small  = 1 * 1024
	Medium = 4 * 1024
	Large  = 16 * 1024
	XLarge = 64 * 1024
)

var classOrder = []int{Small, Medium, Large, XLarge}

// DefaultMaxPoolSize bounds how many buffers a single bucket will recycle
// before release() starts dropping buffers instead of returning them.
const DefaultMaxPoolSize = 10000

// Pool is the Memory Pool: one PoolBucket per size class, plus pool-wide
// statistics and auto-tuning.
type Pool struct {
	buckets map[int]*PoolBucket

	maxPoolSize int

	mu          sync.RWMutex
	maxSeenSize int
}

// NewPool builds a pool with the standard four size classes.
func NewPool() *Pool {
	return NewPoolWithMax(DefaultMaxPoolSize)
}

// NewPoolWithMax builds a pool whose buckets each cap out at maxPoolSize
// recycled buffers.
func NewPoolWithMax(maxPoolSize int) *Pool {
	p := &Pool{
		buckets:     make(map[int]*PoolBucket, len(classOrder)),
		maxPoolSize: maxPoolSize,
	}
	for _, sz := range classOrder {
		p.buckets[sz] = newPoolBucket(sz, maxPoolSize)
	}
	return p
}

// classFor returns the smallest size class able to satisfy size, or 0 if
// size exceeds every class (an oversize request, served unpooled).
func classFor(size int) int {
	for _, sz := range classOrder {
		if size <= sz {
			return sz
		}
	}
	return 0
}

// Acquire returns a buffer able to hold at least size bytes. A request for
// size 0 returns an empty, unpooled buffer without touching the statistics
// or any bucket (§9). Oversize requests (beyond XLarge) are served as a
// direct allocation, also outside the pool's bookkeeping.
func (p *Pool) Acquire(size int) *BufferInfo {
	if size == 0 {
		return &BufferInfo{Data: []byte{}}
	}

	cls := classFor(size)
	if cls == 0 {
		return &BufferInfo{Data: make([]byte, size), LastUsed: time.Now()}
	}

	p.mu.Lock()
	if size > p.maxSeenSize {
		p.maxSeenSize = size
	}
	p.mu.Unlock()

	b := p.buckets[cls]
	bi := b.acquire()
	return bi
}

// Release returns bi to its owning bucket. A nil buffer, or one that was
// never drawn from a bucket (oversize or zero-length), is a no-op.
func (p *Pool) Release(bi *BufferInfo) {
	if bi == nil || len(bi.Data) == 0 {
		return
	}
	cls := classFor(cap(bi.Data))
	if cls == 0 {
		return
	}
	b, ok := p.buckets[cls]
	if !ok || b.size != cls {
		return
	}
	if cap(bi.Data) != cls {
		return
	}
	b.release(bi)
}

// CleanupOldBuffers drops free buffers that have been idle longer than
// maxAge from every bucket's free list, returning the total removed.
func (p *Pool) CleanupOldBuffers(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, sz := range classOrder {
		removed += p.buckets[sz].cleanupOlderThan(cutoff)
	}
	return removed
}

// BucketStats is a point-in-time snapshot of one size class.
type BucketStats struct {
	Size             int
	InUse            int
	Free             int
	Total            int
	TotalAllocations uint64
	PoolHits         uint64
	PoolMisses       uint64
}

// Stats is the pool-wide snapshot plus derived metrics (§4.4).
type Stats struct {
	Buckets          []BucketStats
	TotalAllocations uint64
	PoolHits         uint64
	PoolMisses       uint64
	CurrentPoolSize  int
	MaxPoolSize      int
}

// HitRate is pool_hits / total_allocations, or 0 with no allocations yet.
func (s Stats) HitRate() float64 {
	if s.TotalAllocations == 0 {
		return 0
	}
	return float64(s.PoolHits) / float64(s.TotalAllocations)
}

// Utilization is the fraction of recycled buffers currently checked out.
func (s Stats) Utilization() float64 {
	if s.CurrentPoolSize == 0 {
		return 0
	}
	inUse := 0
	for _, b := range s.Buckets {
		inUse += b.InUse
	}
	return float64(inUse) / float64(s.CurrentPoolSize)
}

// Efficiency rewards a high hit rate achieved with a small pool footprint.
func (s Stats) Efficiency() float64 {
	if s.MaxPoolSize == 0 {
		return s.HitRate()
	}
	footprint := float64(s.CurrentPoolSize) / float64(s.MaxPoolSize)
	if footprint > 1 {
		footprint = 1
	}
	return s.HitRate() * (1 - 0.5*footprint)
}

// PerformanceScore blends hit rate, utilization and efficiency into a single
// [0,1] figure suitable for a dashboard gauge.
func (s Stats) PerformanceScore() float64 {
	return (s.HitRate() + s.Utilization() + s.Efficiency()) / 3
}

// Stats snapshots every bucket and aggregates the pool-wide totals.
func (p *Pool) Stats() Stats {
	out := Stats{MaxPoolSize: p.maxPoolSize}
	for _, sz := range classOrder {
		b := p.buckets[sz]
		inUse, free, total := b.snapshot()
		out.Buckets = append(out.Buckets, BucketStats{
			Size:             sz,
			InUse:            inUse,
			Free:             free,
			Total:            total,
			TotalAllocations: b.totalAllocations.Load(),
			PoolHits:         b.poolHits.Load(),
			PoolMisses:       b.poolMisses.Load(),
		})
		out.TotalAllocations += b.totalAllocations.Load()
		out.PoolHits += b.poolHits.Load()
		out.PoolMisses += b.poolMisses.Load()
		out.CurrentPoolSize += total
	}
	return out
}

// AutoTune grows a bucket's recycling ceiling when its hit rate is healthy
// and population is pressing the current cap, and leaves it alone
// otherwise. It runs on demand (e.g. from a reactor-scheduled timer) rather
// than on its own goroutine, keeping the pool free of background workers.
func (p *Pool) AutoTune() {
	for _, sz := range classOrder {
		b := p.buckets[sz]
		inUse, free, total := b.snapshot()
		_ = inUse
		if total == 0 {
			continue
		}
		hits := b.poolHits.Load()
		allocs := b.totalAllocations.Load()
		if allocs == 0 {
			continue
		}
		hitRate := float64(hits) / float64(allocs)
		nearCap := b.maxPoolSize > 0 && total*10 >= b.maxPoolSize*9
		if hitRate > 0.9 && nearCap && free < total/10 {
			b.mu.Lock()
			b.maxPoolSize += b.maxPoolSize / 2
			b.mu.Unlock()
		}
	}
}
