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
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	descTotalAllocations = prometheus.NewDesc(
		"translink_pool_allocations_total", "Total buffer allocations requested from the pool.",
		[]string{"size_class"}, nil)
	descHits = prometheus.NewDesc(
		"translink_pool_hits_total", "Allocations satisfied from a bucket's free list or ring.",
		[]string{"size_class"}, nil)
	descMisses = prometheus.NewDesc(
		"translink_pool_misses_total", "Allocations that required a fresh buffer.",
		[]string{"size_class"}, nil)
	descBucketSize = prometheus.NewDesc(
		"translink_pool_bucket_buffers", "Buffers currently owned by a bucket, by state.",
		[]string{"size_class", "state"}, nil)
	descHitRate = prometheus.NewDesc(
		"translink_pool_hit_rate", "Pool-wide hit rate over the process lifetime.", nil, nil)
	descUtilization = prometheus.NewDesc(
		"translink_pool_utilization", "Fraction of recycled buffers currently checked out.", nil, nil)
	descEfficiency = prometheus.NewDesc(
		"translink_pool_efficiency", "Hit rate discounted by pool footprint.", nil, nil)
	descPerformance = prometheus.NewDesc(
		"translink_pool_performance_score", "Blend of hit rate, utilization and efficiency.", nil, nil)
)

// Describe implements prometheus.Collector.
func (p *Pool) Describe(ch chan<- *prometheus.Desc) {
	ch <- descTotalAllocations
	ch <- descHits
	ch <- descMisses
	ch <- descBucketSize
	ch <- descHitRate
	ch <- descUtilization
	ch <- descEfficiency
	ch <- descPerformance
}

// Collect implements prometheus.Collector, exposing both per-bucket raw
// counters and the pool-wide derived metrics from Stats.
func (p *Pool) Collect(ch chan<- prometheus.Metric) {
	s := p.Stats()

	for _, b := range s.Buckets {
		class := strconv.Itoa(b.Size)
		ch <- prometheus.MustNewConstMetric(descTotalAllocations, prometheus.CounterValue, float64(b.TotalAllocations), class)
		ch <- prometheus.MustNewConstMetric(descHits, prometheus.CounterValue, float64(b.PoolHits), class)
		ch <- prometheus.MustNewConstMetric(descMisses, prometheus.CounterValue, float64(b.PoolMisses), class)
		ch <- prometheus.MustNewConstMetric(descBucketSize, prometheus.GaugeValue, float64(b.InUse), class, "in_use")
		ch <- prometheus.MustNewConstMetric(descBucketSize, prometheus.GaugeValue, float64(b.Free), class, "free")
	}

	ch <- prometheus.MustNewConstMetric(descHitRate, prometheus.GaugeValue, s.HitRate())
	ch <- prometheus.MustNewConstMetric(descUtilization, prometheus.GaugeValue, s.Utilization())
	ch <- prometheus.MustNewConstMetric(descEfficiency, prometheus.GaugeValue, s.Efficiency())
	ch <- prometheus.MustNewConstMetric(descPerformance, prometheus.GaugeValue, s.PerformanceScore())
}
