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

// Package session implements the per-connection state machine (§4.2) shared
// by the TCP-client and Serial variants. Every state mutation happens
// inside a closure posted to the owning reactor; Start, Stop and Send are
// the only methods safe to call from any goroutine.
package session

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sabouaram/translink/buffer"
	"github.com/sabouaram/translink/errors"
	"github.com/sabouaram/translink/protocol"
	"github.com/sabouaram/translink/reactor"
)

// dialer opens the underlying transport. TCP and Serial variants each
// supply their own; Session is otherwise transport-agnostic.
type dialer func(ctx context.Context) (io.ReadWriteCloser, error)

// Callbacks are invoked on the reactor thread (§4.2). None may block.
type Callbacks struct {
	OnBytes func(data []byte)
	OnState func(state protocol.LinkState)
	OnError func(info errors.ErrorInfo)
}

func (c Callbacks) fire(which func()) {
	if which != nil {
		which()
	}
}

// Session is the state machine for one TCP-client or Serial connection.
// Construct with NewTCPClient or NewSerial.
type Session struct {
	component string
	kind      protocol.LinkKind

	r    *reactor.Reactor
	pool *buffer.Pool
	sink *errors.Handler

	dial          dialer
	retryInterval time.Duration
	maxRetries    int // 0 = unbounded
	noRetry       bool

	mu    sync.Mutex
	cb    Callbacks
	state atomic.Int32

	conn       io.ReadWriteCloser
	generation uint64

	txQueue  []*buffer.BufferInfo
	writing  bool
	readBuf  *buffer.BufferInfo
	retryTm  *reactor.Timer
	attempts int
}

func newSession(component string, kind protocol.LinkKind, r *reactor.Reactor, pool *buffer.Pool, sink *errors.Handler, d dialer, retryInterval time.Duration, maxRetries int, noRetry bool) *Session {
	s := &Session{
		component:     component,
		kind:          kind,
		r:             r,
		pool:          pool,
		sink:          sink,
		dial:          d,
		retryInterval: retryInterval,
		maxRetries:    maxRetries,
		noRetry:       noRetry,
	}
	s.state.Store(int32(protocol.Idle))
	return s
}

// Kind reports whether this is a TCP-client or Serial session.
func (s *Session) Kind() protocol.LinkKind {
	return s.kind
}

// State is an atomic snapshot of the current LinkState.
func (s *Session) State() protocol.LinkState {
	return protocol.LinkState(s.state.Load())
}

// IsConnected is an atomic snapshot of State() == Connected.
func (s *Session) IsConnected() bool {
	return s.State() == protocol.Connected
}

// RegisterFuncBytes sets the callback invoked with each chunk read off the
// wire. Safe to call before or after Start; a late registration takes
// effect on the next event.
func (s *Session) RegisterFuncBytes(fn func(data []byte)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cb.OnBytes = fn
}

// RegisterFuncState sets the callback invoked on every LinkState transition.
func (s *Session) RegisterFuncState(fn func(state protocol.LinkState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cb.OnState = fn
}

// RegisterFuncError sets the callback invoked for every ErrorInfo raised by
// this session, in addition to the process-wide Error Handler.
func (s *Session) RegisterFuncError(fn func(info errors.ErrorInfo)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cb.OnError = fn
}

func (s *Session) callbacks() Callbacks {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cb
}

// Start is idempotent: a no-op if already Connecting or Connected.
// Otherwise it enters Connecting and begins the dial.
func (s *Session) Start() {
	s.r.Post(func() {
		switch s.State() {
		case protocol.Connecting, protocol.Connected:
			return
		}
		s.attempts = 0
		s.beginConnect()
	})
}

// Stop cancels any pending retry timer, closes the descriptor, drains and
// releases the TX queue, and transitions to Closed. Safe from any thread.
func (s *Session) Stop() {
	s.r.Post(func() {
		s.stopOnReactor()
	})
}

func (s *Session) stopOnReactor() {
	s.generation++
	if s.retryTm != nil {
		s.retryTm.Cancel()
		s.retryTm = nil
	}
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.releaseQueue()
	if s.readBuf != nil {
		s.pool.Release(s.readBuf)
		s.readBuf = nil
	}
	s.writing = false
	if s.State() != protocol.Closed {
		s.transition(protocol.Closed)
	}
}

func (s *Session) releaseQueue() {
	for _, bi := range s.txQueue {
		s.pool.Release(bi)
	}
	s.txQueue = nil
}

// Send copies data into a pool buffer and appends it to the TX queue. If
// the session is not Connected, the buffer is discarded silently (§4.2).
func (s *Session) Send(data []byte) {
	if len(data) == 0 {
		return
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.r.Post(func() {
		s.sendOnReactor(cp)
	})
}

// SendLine is equivalent to Send(s + "\n").
func (s *Session) SendLine(line string) {
	s.Send(append([]byte(line), '\n'))
}

func (s *Session) sendOnReactor(data []byte) {
	bi := s.pool.Acquire(len(data))
	n := copy(bi.Data[:cap(bi.Data)], data)
	bi.Data = bi.Data[:n]

	if s.State() != protocol.Connected {
		s.pool.Release(bi)
		return
	}

	s.txQueue = append(s.txQueue, bi)
	if !s.writing {
		s.startWrite()
	}
}

func (s *Session) transition(next protocol.LinkState) {
	cur := s.State()
	if cur == next {
		return
	}
	if !cur.CanTransition(next) {
		return
	}
	s.state.Store(int32(next))
	if cb := s.callbacks().OnState; cb != nil {
		cb(next)
	}
}

func (s *Session) reportError(operation, message string, retryable bool, cause error) {
	info := errors.NewErrorInfo(errors.LevelError, errors.CategoryConnection, s.component, operation, message, retryable, cause)
	if s.sink != nil {
		s.sink.Report(info)
	}
	if cb := s.callbacks().OnError; cb != nil {
		cb(info)
	}
}

func (s *Session) beginConnect() {
	s.transition(protocol.Connecting)
	gen := s.generation
	ctx := context.Background()

	go func() {
		conn, err := s.dial(ctx)
		s.r.Post(func() {
			if gen != s.generation {
				if conn != nil {
					_ = conn.Close()
				}
				return
			}
			if err != nil {
				s.onConnectFailed(err)
				return
			}
			s.onConnected(conn)
		})
	}()
}

func (s *Session) onConnectFailed(err error) {
	s.reportError("connect", "dial failed", true, err)
	s.armRetry()
}

func (s *Session) onConnected(conn io.ReadWriteCloser) {
	s.conn = conn
	s.attempts = 0
	s.transition(protocol.Connected)
	s.issueRead()
}

func (s *Session) armRetry() {
	if s.noRetry || (s.maxRetries > 0 && s.attempts >= s.maxRetries) {
		s.transition(protocol.Error)
		s.transition(protocol.Closed)
		return
	}
	s.attempts++
	if s.State() != protocol.Error {
		s.transition(protocol.Closed)
	}
	s.retryTm = s.r.PostAfter(s.retryInterval, func() {
		s.beginConnect()
	})
}

func (s *Session) issueRead() {
	s.readBuf = s.pool.Acquire(buffer.Medium)
	conn := s.conn
	gen := s.generation
	buf := s.readBuf

	go func() {
		n, err := conn.Read(buf.Data[:cap(buf.Data)])
		s.r.Post(func() {
			if gen != s.generation {
				return
			}
			s.onReadDone(n, err)
		})
	}()
}

func (s *Session) onReadDone(n int, err error) {
	bi := s.readBuf
	s.readBuf = nil

	if n > 0 {
		data := bi.Data[:n]
		if cb := s.callbacks().OnBytes; cb != nil {
			cb(data)
		}
	}
	s.pool.Release(bi)

	if err != nil {
		s.onTransportError("read", err)
		return
	}
	if n == 0 {
		s.onTransportError("read", io.EOF)
		return
	}
	s.issueRead()
}

func (s *Session) onTransportError(operation string, err error) {
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.releaseQueue()
	s.writing = false

	if err == io.EOF {
		s.reportError(operation, "peer closed", true, nil)
	} else {
		s.reportError(operation, "transport error", true, err)
	}
	s.armRetry()
}

func (s *Session) startWrite() {
	if len(s.txQueue) == 0 {
		s.writing = false
		return
	}
	s.writing = true
	bi := s.txQueue[0]
	s.txQueue = s.txQueue[1:]
	conn := s.conn
	gen := s.generation

	go func() {
		_, err := conn.Write(bi.Data)
		s.r.Post(func() {
			if gen != s.generation {
				return
			}
			s.onWriteDone(bi, err)
		})
	}()
}

func (s *Session) onWriteDone(bi *buffer.BufferInfo, err error) {
	s.pool.Release(bi)
	if err != nil {
		s.onTransportError("write", err)
		return
	}
	s.startWrite()
}
