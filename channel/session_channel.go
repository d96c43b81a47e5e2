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

package channel

import (
	"sync"

	"github.com/sabouaram/translink/buffer"
	"github.com/sabouaram/translink/config"
	"github.com/sabouaram/translink/errors"
	"github.com/sabouaram/translink/protocol"
	"github.com/sabouaram/translink/reactor"
	"github.com/sabouaram/translink/session"
)

// SessionChannel wraps a single-peer Session (TCP-client or Serial) with
// the event surface of §6: on_data(bytes), on_connect(), on_disconnect(),
// on_error(message).
type SessionChannel struct {
	s *session.Session

	mu           sync.Mutex
	onData       func(data []byte)
	onConnect    func()
	onDisconnect func()
	onError      func(message string)

	wasConnected bool
}

func newSessionChannel(s *session.Session) *SessionChannel {
	c := &SessionChannel{s: s}
	s.RegisterFuncBytes(func(data []byte) {
		if fn := c.callback().onData; fn != nil {
			fn(data)
		}
	})
	s.RegisterFuncState(func(state protocol.LinkState) {
		c.dispatchState(state)
	})
	s.RegisterFuncError(func(info errors.ErrorInfo) {
		if fn := c.callback().onError; fn != nil {
			fn(info.Error())
		}
	})
	return c
}

// NewTCPClientChannel builds a Channel over an outbound TCP session.
func NewTCPClientChannel(r *reactor.Reactor, pool *buffer.Pool, sink *errors.Handler, component string, cfg config.TCPClient) (*SessionChannel, error) {
	s, err := session.NewTCPClient(r, pool, sink, component, cfg)
	if err != nil {
		return nil, err
	}
	return newSessionChannel(s), nil
}

// NewSerialChannel builds a Channel over a serial/UART session.
func NewSerialChannel(r *reactor.Reactor, pool *buffer.Pool, sink *errors.Handler, component string, cfg config.Serial) (*SessionChannel, error) {
	s, err := session.NewSerial(r, pool, sink, component, cfg)
	if err != nil {
		return nil, err
	}
	return newSessionChannel(s), nil
}

type sessionCallbacks struct {
	onData       func(data []byte)
	onConnect    func()
	onDisconnect func()
	onError      func(message string)
}

func (c *SessionChannel) callback() sessionCallbacks {
	c.mu.Lock()
	defer c.mu.Unlock()
	return sessionCallbacks{c.onData, c.onConnect, c.onDisconnect, c.onError}
}

func (c *SessionChannel) dispatchState(state protocol.LinkState) {
	c.mu.Lock()
	wasConnected := c.wasConnected
	if state == protocol.Connected {
		c.wasConnected = true
	} else if state == protocol.Closed || state == protocol.Error {
		c.wasConnected = false
	}
	cb := sessionCallbacks{c.onData, c.onConnect, c.onDisconnect, c.onError}
	c.mu.Unlock()

	switch state {
	case protocol.Connected:
		if cb.onConnect != nil {
			cb.onConnect()
		}
	case protocol.Closed:
		if wasConnected && cb.onDisconnect != nil {
			cb.onDisconnect()
		}
	}
}

// RegisterFuncData sets the callback invoked with each chunk read off the
// wire. A late registration (after Start) takes effect on the next event.
func (c *SessionChannel) RegisterFuncData(fn func(data []byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onData = fn
}

// RegisterFuncConnect sets the callback fired on transition to Connected.
func (c *SessionChannel) RegisterFuncConnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnect = fn
}

// RegisterFuncDisconnect sets the callback fired on transition to Closed,
// provided the session had reached Connected first.
func (c *SessionChannel) RegisterFuncDisconnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnect = fn
}

// RegisterFuncError sets the callback fired with a human-readable cause
// whenever this session raises an ErrorInfo.
func (c *SessionChannel) RegisterFuncError(fn func(message string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = fn
}

// Start begins connecting (or opening the serial port).
func (c *SessionChannel) Start() { c.s.Start() }

// Stop tears the session down and transitions it to Closed.
func (c *SessionChannel) Stop() { c.s.Stop() }

// Send queues bytes for transmission.
func (c *SessionChannel) Send(data []byte) { c.s.Send(data) }

// SendLine queues line + "\n" for transmission.
func (c *SessionChannel) SendLine(line string) { c.s.SendLine(line) }

// IsConnected is an atomic snapshot of the underlying session's state.
func (c *SessionChannel) IsConnected() bool { return c.s.IsConnected() }

// State exposes the underlying LinkState for callers that need more detail
// than IsConnected offers.
func (c *SessionChannel) State() protocol.LinkState { return c.s.State() }

var _ Channel = (*SessionChannel)(nil)
