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

package errors

import (
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Category classifies the subsystem an ErrorInfo originates from.
type Category uint8

const (
	CategoryUnknown Category = iota
	CategoryConnection
	CategoryCommunication
	CategoryConfiguration
	CategoryMemory
	CategorySystem
)

func (c Category) String() string {
	switch c {
	case CategoryConnection:
		return "connection"
	case CategoryCommunication:
		return "communication"
	case CategoryConfiguration:
		return "configuration"
	case CategoryMemory:
		return "memory"
	case CategorySystem:
		return "system"
	default:
		return "unknown"
	}
}

// Level is the severity of a reported ErrorInfo.
type Level uint8

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
	LevelCritical
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	case LevelCritical:
		return "critical"
	default:
		return "error"
	}
}

// CodePortRetryExhausted distinguishes a bind failure that exhausted its
// configured port-retry budget from a plain, non-retried OS bind error
// (§3 Open Question (c)). Set via ErrorInfo.WithCode at the reporting site.
const CodePortRetryExhausted int = 6001

// ErrorInfo is the record created at a reporting site and fanned out to the
// Error Handler's rings and subscribers.
type ErrorInfo struct {
	Level     Level
	Category  Category
	Component string
	Operation string
	Message   string
	Code      int
	Retryable bool
	Timestamp time.Time
	cause     error
}

// Cause returns the wrapped, stack-trace-carrying error behind this
// ErrorInfo, if the reporting site supplied one.
func (i ErrorInfo) Cause() error {
	return i.cause
}

// WithCode returns a copy of i carrying the given system error code.
func (i ErrorInfo) WithCode(code int) ErrorInfo {
	i.Code = code
	return i
}

func (i ErrorInfo) Error() string {
	if i.cause != nil {
		return fmt.Sprintf("[%s/%s] %s.%s: %s: %v", i.Level, i.Category, i.Component, i.Operation, i.Message, i.cause)
	}
	return fmt.Sprintf("[%s/%s] %s.%s: %s", i.Level, i.Category, i.Component, i.Operation, i.Message)
}

// NewErrorInfo builds an ErrorInfo, wrapping cause (if non-nil) with
// github.com/pkg/errors so a stack trace survives into the rings.
func NewErrorInfo(level Level, category Category, component, operation, message string, retryable bool, cause error) ErrorInfo {
	var wrapped error
	if cause != nil {
		wrapped = errors.WithStack(cause)
	}
	return ErrorInfo{
		Level:     level,
		Category:  category,
		Component: component,
		Operation: operation,
		Message:   message,
		Retryable: retryable,
		Timestamp: time.Now(),
		cause:     wrapped,
	}
}

const (
	globalRingCap    = 1000
	componentRingCap = 100
)

// Subscriber receives every reported ErrorInfo synchronously, in report order.
type Subscriber func(ErrorInfo)

// Stats is a point-in-time snapshot of the Handler's counters.
type Stats struct {
	Total       uint64
	ByLevel     map[Level]uint64
	ByCategory  map[Category]uint64
	ByComponent map[string]uint64
}

// Handler is the process-wide Error Handler sink (§4.6): stats, recent-error
// rings, and synchronous subscriber fan-out. The zero value is not usable;
// construct with NewHandler.
type Handler struct {
	mu         sync.Mutex
	minLevel   Level
	enabled    bool
	global     []ErrorInfo
	perCompo   map[string][]ErrorInfo
	subs       []Subscriber
	total      uint64
	byLevel    map[Level]uint64
	byCategory map[Category]uint64
	byCompo    map[string]uint64
}

// NewHandler returns an enabled Handler with min level Info.
func NewHandler() *Handler {
	return &Handler{
		enabled:    true,
		minLevel:   LevelInfo,
		perCompo:   make(map[string][]ErrorInfo),
		byLevel:    make(map[Level]uint64),
		byCategory: make(map[Category]uint64),
		byCompo:    make(map[string]uint64),
	}
}

// Report records info if enabled and info.Level >= the configured min level,
// then invokes every subscriber synchronously (§4.6). Subscriber panics are
// recovered and do not propagate, nor do they re-enter the handler.
func (h *Handler) Report(info ErrorInfo) {
	h.mu.Lock()
	if !h.enabled || info.Level < h.minLevel {
		h.mu.Unlock()
		return
	}

	h.total++
	h.byLevel[info.Level]++
	h.byCategory[info.Category]++
	h.byCompo[info.Component]++

	h.global = appendRing(h.global, info, globalRingCap)
	h.perCompo[info.Component] = appendRing(h.perCompo[info.Component], info, componentRingCap)

	subs := make([]Subscriber, len(h.subs))
	copy(subs, h.subs)
	h.mu.Unlock()

	for _, s := range subs {
		notifySubscriber(s, info)
	}
}

func notifySubscriber(s Subscriber, info ErrorInfo) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("errors: subscriber panic recovered: %v\n", r)
		}
	}()
	s(info)
}

func appendRing(ring []ErrorInfo, info ErrorInfo, cap int) []ErrorInfo {
	ring = append(ring, info)
	if len(ring) > cap {
		ring = ring[len(ring)-cap:]
	}
	return ring
}

// Subscribe appends fn to the subscriber list.
func (h *Handler) Subscribe(fn Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs = append(h.subs, fn)
}

// ClearSubscribers removes every registered subscriber.
func (h *Handler) ClearSubscribers() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs = nil
}

// SetMinLevel changes the minimum level reported.
func (h *Handler) SetMinLevel(l Level) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.minLevel = l
}

// SetEnabled toggles whether Report has any effect.
func (h *Handler) SetEnabled(enabled bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.enabled = enabled
}

// ResetStats clears counters and rings but preserves subscribers and config.
func (h *Handler) ResetStats() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.total = 0
	h.byLevel = make(map[Level]uint64)
	h.byCategory = make(map[Category]uint64)
	h.byCompo = make(map[string]uint64)
	h.global = nil
	h.perCompo = make(map[string][]ErrorInfo)
}

// StatsSnapshot returns a copy of the aggregate counters.
func (h *Handler) StatsSnapshot() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := Stats{
		Total:       h.total,
		ByLevel:     make(map[Level]uint64, len(h.byLevel)),
		ByCategory:  make(map[Category]uint64, len(h.byCategory)),
		ByComponent: make(map[string]uint64, len(h.byCompo)),
	}
	for k, v := range h.byLevel {
		s.ByLevel[k] = v
	}
	for k, v := range h.byCategory {
		s.ByCategory[k] = v
	}
	for k, v := range h.byCompo {
		s.ByComponent[k] = v
	}
	return s
}

// Recent returns up to count of the most recently reported ErrorInfo,
// newest last.
func (h *Handler) Recent(count int) []ErrorInfo {
	h.mu.Lock()
	defer h.mu.Unlock()

	if count <= 0 || count > len(h.global) {
		count = len(h.global)
	}
	out := make([]ErrorInfo, count)
	copy(out, h.global[len(h.global)-count:])
	return out
}

// ErrorsByComponent returns the per-component ring for name.
func (h *Handler) ErrorsByComponent(name string) []ErrorInfo {
	h.mu.Lock()
	defer h.mu.Unlock()

	src := h.perCompo[name]
	out := make([]ErrorInfo, len(src))
	copy(out, src)
	return out
}

// HasErrors reports whether any ErrorInfo has been recorded for name.
func (h *Handler) HasErrors(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.perCompo[name]) > 0
}

// Count returns how many ErrorInfo entries for component name were recorded
// at exactly the given level.
func (h *Handler) Count(name string, level Level) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	var n uint64
	for _, info := range h.perCompo[name] {
		if info.Level == level {
			n++
		}
	}
	return n
}

// AggregateBroadcast combines per-peer send failures from a fan-out (e.g.
// Server.Broadcast) into a single error using the teacher's multierror
// aggregation idiom, or nil if every failure was nil.
func AggregateBroadcast(failures ...error) error {
	var agg *multierror.Error
	for _, f := range failures {
		if f != nil {
			agg = multierror.Append(agg, f)
		}
	}
	if agg == nil {
		return nil
	}
	return agg.ErrorOrNil()
}
