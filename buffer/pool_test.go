/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
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

package buffer_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"

	. "github.com/sabouaram/translink/buffer"
)

var _ = Describe("Pool size classes", func() {
	It("rounds a small request up to the Small class", func() {
		p := NewPool()
		bi := p.Acquire(10)
		Expect(cap(bi.Data)).To(Equal(Small))
	})

	It("rounds a request at a class boundary to that class", func() {
		p := NewPool()
		bi := p.Acquire(Medium)
		Expect(cap(bi.Data)).To(Equal(Medium))
	})

	It("serves an oversize request directly, unpooled", func() {
		p := NewPool()
		bi := p.Acquire(XLarge + 1)
		Expect(len(bi.Data)).To(Equal(XLarge + 1))
		Expect(p.Stats().TotalAllocations).To(BeZero())
	})

	It("returns an empty buffer for a zero-size request without counting it", func() {
		p := NewPool()
		bi := p.Acquire(0)
		Expect(bi.Data).To(BeEmpty())
		Expect(p.Stats().TotalAllocations).To(BeZero())
	})
})

var _ = Describe("Pool acquire/release", func() {
	It("reuses a released buffer on the next acquire of the same class", func() {
		p := NewPool()
		first := p.Acquire(Medium)
		p.Release(first)
		second := p.Acquire(Medium)
		Expect(second).To(BeIdenticalTo(first))

		s := p.Stats()
		Expect(s.TotalAllocations).To(Equal(uint64(2)))
		Expect(s.PoolHits).To(Equal(uint64(1)))
		Expect(s.PoolMisses).To(Equal(uint64(1)))
	})

	It("treats release of nil as a no-op", func() {
		p := NewPool()
		Expect(func() { p.Release(nil) }).NotTo(Panic())
	})

	It("does not recycle an unpooled oversize buffer", func() {
		p := NewPool()
		bi := p.Acquire(XLarge + 1)
		Expect(func() { p.Release(bi) }).NotTo(Panic())
		Expect(p.Stats().CurrentPoolSize).To(BeZero())
	})

	It("sustains a high hit rate across many acquire/release cycles", func() {
		p := NewPool()
		for i := 0; i < 10000; i++ {
			bi := p.Acquire(Medium)
			p.Release(bi)
		}
		Expect(p.Stats().HitRate()).To(BeNumerically(">=", 0.99))
	})

	It("switches a bucket onto its lock-free ring past the activation threshold", func() {
		p := NewPool()
		var held []*BufferInfo
		for i := 0; i < 1200; i++ {
			held = append(held, p.Acquire(Small))
		}
		for _, bi := range held {
			p.Release(bi)
		}
		reused := p.Acquire(Small)
		Expect(cap(reused.Data)).To(Equal(Small))
		Expect(p.Stats().PoolHits).To(BeNumerically(">", 0))
	})
})

var _ = Describe("CleanupOldBuffers", func() {
	It("drops free buffers older than the cutoff", func() {
		p := NewPool()
		bi := p.Acquire(Small)
		p.Release(bi)
		bi.LastUsed = time.Now().Add(-time.Hour)

		removed := p.CleanupOldBuffers(time.Minute)
		Expect(removed).To(Equal(1))
		Expect(p.Stats().Buckets[0].Free).To(BeZero())
	})
})

var _ = Describe("Stats derived metrics", func() {
	It("reports zero-valued derived metrics on an empty pool", func() {
		p := NewPool()
		s := p.Stats()
		Expect(s.HitRate()).To(BeZero())
		Expect(s.Utilization()).To(BeZero())
		Expect(s.PerformanceScore()).To(BeZero())
	})

	It("collects as a prometheus.Collector", func() {
		p := NewPool()
		bi := p.Acquire(Medium)
		p.Release(bi)
		Expect(testutil.CollectAndCount(p)).To(BeNumerically(">", 0))
	})
})

var _ = Describe("AutoTune", func() {
	It("runs without panicking on an idle pool", func() {
		p := NewPool()
		Expect(func() { p.AutoTune() }).NotTo(Panic())
	})
})
