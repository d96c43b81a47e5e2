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

// Package logsink defines the Logger collaborator (§6): a passive sink for
// (timestamp, level, component, operation, message) records. The session,
// server, reactor and errors packages do not call it; callers log through
// it themselves. The logger may discard everything.
package logsink

import "time"

// Level mirrors the four ErrorInfo severities so the Logger collaborator
// and the Error Handler speak the same vocabulary.
type Level uint8

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
	LevelCritical
)

func (l Level) String() string {
	switch l {
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	case LevelCritical:
		return "critical"
	default:
		return "info"
	}
}

// Field is one named value attached to a log record.
type Field struct {
	Key   string
	Value interface{}
}

// F is a small constructor to keep call sites readable: F("client_id", 3).
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Sink is the Logger collaborator interface: a record of
// (timestamp, level, component, operation, message) plus free-form fields.
// No other package in this module calls it.
type Sink interface {
	Log(ts time.Time, lvl Level, component, operation, message string, fields ...Field)
}

// discard is the Sink used when a caller supplies nil.
type discard struct{}

func (discard) Log(time.Time, Level, string, string, string, ...Field) {}

// Discard is a Sink that drops every record.
var Discard Sink = discard{}

// OrDiscard returns s, or Discard if s is nil, so callers never need a nil
// check before logging.
func OrDiscard(s Sink) Sink {
	if s == nil {
		return Discard
	}
	return s
}
