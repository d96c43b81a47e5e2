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

package logsink

import (
	"time"

	"github.com/hashicorp/go-hclog"
)

// HCLogSink adapts a github.com/hashicorp/go-hclog Logger to the Sink
// interface, mapping the spec's (component, operation) pair onto hclog's
// named-argument model.
type HCLogSink struct {
	base hclog.Logger
}

// NewHCLogSink wraps base. A nil base falls back to hclog's default logger.
func NewHCLogSink(base hclog.Logger) *HCLogSink {
	if base == nil {
		base = hclog.Default()
	}
	return &HCLogSink{base: base}
}

func (s *HCLogSink) Log(ts time.Time, lvl Level, component, operation, message string, fields ...Field) {
	args := make([]interface{}, 0, 2+2*len(fields)+2)
	args = append(args, "component", component, "operation", operation, "ts", ts)
	for _, f := range fields {
		args = append(args, f.Key, f.Value)
	}

	named := s.base.Named(component)
	switch lvl {
	case LevelWarning:
		named.Warn(message, args...)
	case LevelError, LevelCritical:
		named.Error(message, args...)
	default:
		named.Info(message, args...)
	}
}
