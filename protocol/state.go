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

// Package protocol defines the carrier-variant tag and connection-state
// machine shared by every Session and Server in this module.
package protocol

import "fmt"

// LinkState is the six-value state machine every Session and Server
// maintains exactly one of. Transitions are monotonic per episode (the span
// from Idle/Connecting to the next Closed/Error).
type LinkState uint8

const (
	Idle LinkState = iota
	Connecting
	Listening
	Connected
	Closed
	Error
)

func (s LinkState) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Connecting:
		return "Connecting"
	case Listening:
		return "Listening"
	case Connected:
		return "Connected"
	case Closed:
		return "Closed"
	case Error:
		return "Error"
	default:
		return fmt.Sprintf("LinkState(%d)", uint8(s))
	}
}

// transitions enumerates every edge allowed by §4.2's state graph:
//
//	Idle -> Connecting -> Connected -> Closed -> Connecting (retry fires)
//	Connecting -> Closed (open failed; also arms the retry timer)
//	Idle -> Listening (server bind) -> Closed
//	any state -> Error -> Closed
var transitions = map[LinkState]map[LinkState]bool{
	Idle:       {Connecting: true, Listening: true, Error: true},
	Connecting: {Connected: true, Closed: true, Error: true},
	Listening:  {Closed: true, Error: true},
	Connected:  {Closed: true, Error: true},
	Closed:     {Connecting: true},
	Error:      {Closed: true},
}

// CanTransition reports whether moving from s to next is a legal edge of the
// state graph. It is used defensively by Session/Server to catch a
// programming error as early as possible rather than silently corrupt state.
func (s LinkState) CanTransition(next LinkState) bool {
	if s == next {
		return false
	}
	if next == Error {
		return true
	}
	edges, ok := transitions[s]
	if !ok {
		return false
	}
	return edges[next]
}

// LinkKind tags which concrete carrier a Session wraps (§9 "Polymorphism
// over carrier types"): one interface, a tagged variant of per-kind data,
// rather than class-based inheritance.
type LinkKind uint8

const (
	KindTcpClient LinkKind = iota
	KindSerial
	KindTcpPeer
)

func (k LinkKind) String() string {
	switch k {
	case KindTcpClient:
		return "tcp-client"
	case KindSerial:
		return "serial"
	case KindTcpPeer:
		return "tcp-peer"
	default:
		return fmt.Sprintf("LinkKind(%d)", uint8(k))
	}
}
