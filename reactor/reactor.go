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

// Package reactor implements the single-threaded event loop that arbitrates
// every session, server and timer in the library. Exactly one goroutine
// ever drains a given Reactor's queue; everything else communicates with it
// by Post, which appends under a mutex and wakes the loop.
package reactor

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/sabouaram/translink/errors"
)

// Task is a zero-argument unit of work guaranteed to run on the owning
// Reactor's loop goroutine.
type Task func()

// Reactor is one event-loop context. The zero value is not usable; build
// one with New, NewIndependent, or use Singleton.
type Reactor struct {
	name string

	mu      sync.Mutex
	queue   []Task
	signal  chan struct{}
	stopCh  chan struct{}
	stopped chan struct{}
	stopOne sync.Once

	running atomic.Bool

	sink atomic.Pointer[errors.Handler]
}

func newReactor(name string) *Reactor {
	return &Reactor{
		name:    name,
		signal:  make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

var (
	singleton     *Reactor
	singletonOnce sync.Once
)

// Singleton returns the process-wide reactor, constructing it on first use.
func Singleton() *Reactor {
	singletonOnce.Do(func() {
		singleton = newReactor("singleton")
	})
	return singleton
}

// NewIndependent returns a fresh reactor sharing no state with the
// singleton, for test isolation (§4.1). Its name is tagged with a unique
// suffix so concurrent independents are distinguishable in logs and error
// reports.
func NewIndependent(name string) *Reactor {
	if name == "" {
		name = "independent"
	}
	return newReactor(fmt.Sprintf("%s-%s", name, uuid.NewString()))
}

// Name identifies this reactor in logs and error reports.
func (r *Reactor) Name() string {
	return r.name
}

// SetErrorSink routes panics recovered from tasks to h instead of discarding
// them. Safe to call before or during Run.
func (r *Reactor) SetErrorSink(h *errors.Handler) {
	r.sink.Store(h)
}

// Running reports whether Run is currently servicing this reactor's queue.
func (r *Reactor) Running() bool {
	return r.running.Load()
}

// Post enqueues task for execution on the reactor thread. Posts from the
// same calling goroutine are executed in the order they were posted.
// Posting to a stopped reactor is a silent no-op, matching a descriptor
// completion arriving just after shutdown.
func (r *Reactor) Post(task Task) {
	if task == nil {
		return
	}
	select {
	case <-r.stopCh:
		return
	default:
	}

	r.mu.Lock()
	r.queue = append(r.queue, task)
	r.mu.Unlock()

	select {
	case r.signal <- struct{}{}:
	default:
	}
}

// Run blocks the calling goroutine, servicing posted tasks until Stop is
// called. A work-guard keeps it blocked between tasks even when the queue
// is empty; only an explicit Stop releases it. Calling Run on an
// already-running reactor is a no-op.
func (r *Reactor) Run() {
	if !r.running.CompareAndSwap(false, true) {
		return
	}
	defer func() {
		r.running.Store(false)
		close(r.stopped)
	}()

	for {
		select {
		case <-r.stopCh:
			r.drain()
			return
		case <-r.signal:
			r.drain()
		}
	}
}

// Stop unblocks Run cooperatively: the loop finishes any task in progress,
// drains whatever is left in the queue, then returns. Safe to call multiple
// times or before Run has started.
func (r *Reactor) Stop() {
	r.stopOne.Do(func() {
		close(r.stopCh)
	})
	if r.running.Load() {
		<-r.stopped
	}
}

func (r *Reactor) drain() {
	for {
		r.mu.Lock()
		if len(r.queue) == 0 {
			r.mu.Unlock()
			return
		}
		task := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		r.safeExec(task)
	}
}

func (r *Reactor) safeExec(task Task) {
	defer func() {
		if rec := recover(); rec != nil {
			r.reportPanic(rec)
		}
	}()
	task()
}

func (r *Reactor) reportPanic(rec interface{}) {
	h := r.sink.Load()
	if h == nil {
		return
	}
	h.Report(errors.NewErrorInfo(
		errors.LevelError,
		errors.CategorySystem,
		r.name,
		"task",
		fmt.Sprintf("recovered panic: %v", rec),
		false,
		nil,
	))
}
