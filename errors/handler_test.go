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

package errors_test

import (
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/sabouaram/translink/errors"
)

var _ = Describe("Error Handler", func() {
	var h *Handler

	BeforeEach(func() {
		h = NewHandler()
	})

	It("records a reported ErrorInfo in the global ring and stats", func() {
		h.Report(NewErrorInfo(LevelError, CategoryConnection, "session", "connect", "refused", true, nil))
		Expect(h.StatsSnapshot().Total).To(Equal(uint64(1)))
		Expect(h.Recent(10)).To(HaveLen(1))
	})

	It("drops reports below min level", func() {
		h.SetMinLevel(LevelCritical)
		h.Report(NewErrorInfo(LevelWarning, CategoryCommunication, "session", "read", "short read", true, nil))
		Expect(h.StatsSnapshot().Total).To(Equal(uint64(0)))
	})

	It("ignores reports while disabled", func() {
		h.SetEnabled(false)
		h.Report(NewErrorInfo(LevelError, CategorySystem, "pool", "acquire", "oom", false, nil))
		Expect(h.StatsSnapshot().Total).To(Equal(uint64(0)))
	})

	It("caps the global ring at 1000 entries", func() {
		for i := 0; i < 1200; i++ {
			h.Report(NewErrorInfo(LevelInfo, CategoryUnknown, "x", "y", "z", false, nil))
		}
		Expect(h.Recent(0)).To(HaveLen(1000))
	})

	It("caps the per-component ring at 100 entries", func() {
		for i := 0; i < 150; i++ {
			h.Report(NewErrorInfo(LevelInfo, CategoryUnknown, "server", "accept", "x", false, nil))
		}
		Expect(h.ErrorsByComponent("server")).To(HaveLen(100))
	})

	It("dispatches to subscribers synchronously in report order", func() {
		var seen []string
		h.Subscribe(func(info ErrorInfo) {
			seen = append(seen, info.Message)
		})
		h.Report(NewErrorInfo(LevelInfo, CategoryUnknown, "c", "o", "first", false, nil))
		h.Report(NewErrorInfo(LevelInfo, CategoryUnknown, "c", "o", "second", false, nil))
		Expect(seen).To(Equal([]string{"first", "second"}))
	})

	It("recovers from a panicking subscriber without affecting later subscribers", func() {
		var called bool
		h.Subscribe(func(ErrorInfo) { panic("boom") })
		h.Subscribe(func(ErrorInfo) { called = true })
		Expect(func() {
			h.Report(NewErrorInfo(LevelError, CategoryUnknown, "c", "o", "m", false, nil))
		}).NotTo(Panic())
		Expect(called).To(BeTrue())
	})

	It("clears subscribers", func() {
		var n int
		h.Subscribe(func(ErrorInfo) { n++ })
		h.ClearSubscribers()
		h.Report(NewErrorInfo(LevelInfo, CategoryUnknown, "c", "o", "m", false, nil))
		Expect(n).To(Equal(0))
	})

	It("resets stats and rings", func() {
		h.Report(NewErrorInfo(LevelInfo, CategoryUnknown, "c", "o", "m", false, nil))
		h.ResetStats()
		Expect(h.StatsSnapshot().Total).To(Equal(uint64(0)))
		Expect(h.HasErrors("c")).To(BeFalse())
	})

	It("counts by component and level", func() {
		h.Report(NewErrorInfo(LevelWarning, CategoryConnection, "peer-1", "read", "a", true, nil))
		h.Report(NewErrorInfo(LevelError, CategoryConnection, "peer-1", "read", "b", false, nil))
		Expect(h.Count("peer-1", LevelWarning)).To(Equal(uint64(1)))
		Expect(h.Count("peer-1", LevelError)).To(Equal(uint64(1)))
		Expect(h.HasErrors("peer-1")).To(BeTrue())
		Expect(h.HasErrors("peer-2")).To(BeFalse())
	})

	It("wraps a cause with a stack trace accessible via Cause", func() {
		cause := fmt.Errorf("dial tcp: connection refused")
		info := NewErrorInfo(LevelError, CategoryConnection, "session", "connect", "dial failed", true, cause)
		Expect(info.Cause()).To(HaveOccurred())
		Expect(info.Error()).To(ContainSubstring("dial failed"))
	})

	It("aggregates broadcast failures with AggregateBroadcast", func() {
		err := AggregateBroadcast(nil, fmt.Errorf("peer 2 gone"), nil, fmt.Errorf("peer 4 gone"))
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("peer 2 gone"))
		Expect(err.Error()).To(ContainSubstring("peer 4 gone"))
	})

	It("returns nil from AggregateBroadcast when every failure is nil", func() {
		Expect(AggregateBroadcast(nil, nil)).To(BeNil())
	})

	It("carries a system error code set via WithCode", func() {
		info := NewErrorInfo(LevelError, CategoryConnection, "server", "bind", "port retry exhausted", false, nil).WithCode(CodePortRetryExhausted)
		Expect(info.Code).To(Equal(CodePortRetryExhausted))
		h.Report(info)
		Expect(h.Recent(1)[0].Code).To(Equal(CodePortRetryExhausted))
	})
})
