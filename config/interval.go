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

package config

import "time"

// DefaultRetryIntervalMS is the session reconnect delay (§4.2) used when the
// caller leaves RetryInterval at its zero value.
const DefaultRetryIntervalMS = 2000

// DefaultPortRetryIntervalMS is the server bind-retry delay (§4.3) used when
// the caller enables port retry without specifying an interval.
const DefaultPortRetryIntervalMS = 500

// Interval is a millisecond duration with a sensible zero-value fallback,
// used for every retry_interval_ms-shaped builder input.
type Interval int

// Duration converts the interval to a time.Duration, substituting fallback
// (in milliseconds) when the interval is zero or negative.
func (i Interval) Duration(fallbackMS int) time.Duration {
	v := int(i)
	if v <= 0 {
		v = fallbackMS
	}
	return time.Duration(v) * time.Millisecond
}
