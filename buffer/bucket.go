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

package buffer

import (
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/bits-and-blooms/bitset"
)

// ringEnableThreshold is the bucket population at which the lock-free ring
// activates (§4.4). The switch is one-way within a bucket's lifetime (§9).
const ringEnableThreshold = 1000

// ringCapacity is the fixed slot count backing the lock-free ring, sized
// generously above the activation threshold so refills rarely contend.
const ringCapacity = 4096

// alignThreshold is the size, in bytes, at or above which buffers are given
// 64-byte alignment (§4.4); below it, natural allocator alignment is used.
const alignThreshold = 4 * 1024

const alignment = 64

// BufferInfo owns one byte array of a bucket's size class plus its
// recycling bookkeeping. Invariant: in_use ⇒ not on free list;
// ¬in_use ⇒ on exactly one free list (tracked by the owning bucket's bitset
// plus free-index queue or ring).
type BufferInfo struct {
	Data     []byte
	LastUsed time.Time
	index    int
}

// PoolBucket is one size class of the Memory Pool. While population is
// below ringEnableThreshold, acquire/release take the mutex-guarded
// free-index queue; once population reaches the threshold, acquire also
// tries the lock-free ring first, and the mutex path refills it.
type PoolBucket struct {
	size        int
	maxPoolSize int

	mu       sync.Mutex
	buffers  []*BufferInfo
	inUse    *bitset.BitSet
	freeIdx  []int
	ringOn   atomic.Bool
	ringSlot []atomic.Int32
	ringHead atomic.Uint32
	ringTail atomic.Uint32

	totalAllocations atomic.Uint64
	poolHits         atomic.Uint64
	poolMisses       atomic.Uint64
}

// newPoolBucket constructs an empty bucket for the given size class.
func newPoolBucket(size, maxPoolSize int) *PoolBucket {
	b := &PoolBucket{
		size:        size,
		maxPoolSize: maxPoolSize,
		inUse:       bitset.New(0),
		ringSlot:    make([]atomic.Int32, ringCapacity),
	}
	for i := range b.ringSlot {
		b.ringSlot[i].Store(-1)
	}
	return b
}

func alignedMake(size int) []byte {
	if size < alignThreshold {
		return make([]byte, size)
	}
	buf := make([]byte, size+alignment)
	base := uintptr(unsafe.Pointer(&buf[0]))
	off := int((alignment - base%alignment) % alignment)
	return buf[off : off+size : off+size]
}

// acquire returns a buffer from the bucket, allocating a new one on a free
// list/ring miss, and records the hit/miss/allocation statistics.
func (b *PoolBucket) acquire() *BufferInfo {
	b.totalAllocations.Add(1)

	if b.ringOn.Load() {
		if bi := b.ringPop(); bi != nil {
			b.poolHits.Add(1)
			return bi
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if n := len(b.freeIdx); n > 0 {
		idx := b.freeIdx[n-1]
		b.freeIdx = b.freeIdx[:n-1]
		b.inUse.Set(uint(idx))
		b.poolHits.Add(1)
		return b.buffers[idx]
	}

	b.poolMisses.Add(1)
	idx := len(b.buffers)
	bi := &BufferInfo{Data: alignedMake(b.size), index: idx}
	b.buffers = append(b.buffers, bi)
	b.inUse.Set(uint(idx))

	if !b.ringOn.Load() && len(b.buffers) >= ringEnableThreshold {
		b.ringOn.Store(true)
	}

	return bi
}

// release returns bi to the bucket's free path. If the bucket is already at
// max_pool_size, the buffer is dropped instead of recycled.
func (b *PoolBucket) release(bi *BufferInfo) {
	if bi == nil {
		return
	}
	bi.LastUsed = time.Now()

	b.mu.Lock()
	if b.maxPoolSize > 0 && len(b.buffers) > b.maxPoolSize {
		b.inUse.Clear(uint(bi.index))
		b.mu.Unlock()
		return
	}
	b.inUse.Clear(uint(bi.index))

	if b.ringOn.Load() {
		if !b.ringPush(bi.index) {
			b.freeIdx = append(b.freeIdx, bi.index)
		}
	} else {
		b.freeIdx = append(b.freeIdx, bi.index)
	}
	b.mu.Unlock()
}

// ringPop attempts the lock-free fast path: an atomic fetch-add on the head
// index followed by a swap of that slot to empty.
func (b *PoolBucket) ringPop() *BufferInfo {
	for {
		head := b.ringHead.Load()
		tail := b.ringTail.Load()
		if head == tail {
			return nil
		}
		if !b.ringHead.CompareAndSwap(head, head+1) {
			continue
		}
		slot := &b.ringSlot[head%ringCapacity]
		idx := slot.Swap(-1)
		if idx < 0 {
			return nil
		}
		return b.buffers[idx]
	}
}

// ringPush refills the ring under the bucket mutex (the slow path, per §4.4
// and §9's "lock-free ring refill"). Returns false if the ring is full, in
// which case the caller falls back to the mutex-guarded free list.
func (b *PoolBucket) ringPush(idx int) bool {
	tail := b.ringTail.Load()
	head := b.ringHead.Load()
	if tail-head >= ringCapacity {
		return false
	}
	b.ringSlot[tail%ringCapacity].Store(int32(idx))
	b.ringTail.Store(tail + 1)
	return true
}

// cleanupOlderThan removes free buffers whose LastUsed predates cutoff from
// the bucket's mutex-guarded free list (§4.4 cleanup_old_buffers). Buffers
// staged in the lock-free ring are not examined; while the ring is on, a
// released buffer goes back to the ring and reaches the free list only
// when the ring is full.
func (b *PoolBucket) cleanupOlderThan(cutoff time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	kept := b.freeIdx[:0]
	removed := 0
	for _, idx := range b.freeIdx {
		if b.buffers[idx].LastUsed.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, idx)
	}
	b.freeIdx = kept
	return removed
}

func (b *PoolBucket) snapshot() (inUse, free, total int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	total = len(b.buffers)
	free = len(b.freeIdx) + int(b.ringTail.Load()-b.ringHead.Load())
	inUse = total - free
	return
}
