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

package reactor

import "time"

// Timer is a handle to a deferred or repeating task scheduled with
// PostAfter or PostEvery. Cancel prevents any future firing; a firing
// already queued via Post still runs.
type Timer struct {
	t *time.Timer
}

// Cancel stops the timer. Safe to call more than once.
func (tm *Timer) Cancel() {
	if tm == nil || tm.t == nil {
		return
	}
	tm.t.Stop()
}

// PostAfter schedules task to be posted to the reactor once d has elapsed.
// The task itself still runs on the reactor thread, same as any other Post.
func (r *Reactor) PostAfter(d time.Duration, task Task) *Timer {
	t := time.AfterFunc(d, func() {
		r.Post(task)
	})
	return &Timer{t: t}
}

// PostEvery schedules task to be posted to the reactor every d until
// Cancel is called on the returned Timer.
func (r *Reactor) PostEvery(d time.Duration, task Task) *Timer {
	tm := &Timer{}
	var arm func()
	arm = func() {
		tm.t = time.AfterFunc(d, func() {
			r.Post(task)
			arm()
		})
	}
	arm()
	return tm
}
