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
	"github.com/sabouaram/translink/server"
)

// ServerChannel wraps a multi-client Server with the event surface of §6:
// on_connect(client_id, peer_addr), on_disconnect(client_id) and
// on_error(message), plus broadcast, send_to, get_client_count and
// get_connected_clients (§4.5). It has no on_data: bytes received from
// peers are not delivered to the caller.
type ServerChannel struct {
	s *server.Server

	mu           sync.Mutex
	onConnect    func(clientID uint64, peerAddr string)
	onDisconnect func(clientID uint64)
	onError      func(message string)
}

// NewTCPServerChannel builds a Channel over a listening TCP server. It
// surfaces connect/disconnect/error events only; neither this façade nor
// the Server registers a byte callback on peer sessions, so data read from
// peers is released to the pool without being handed to any callback.
func NewTCPServerChannel(r *reactor.Reactor, pool *buffer.Pool, sink *errors.Handler, component string, cfg config.TCPServer) (*ServerChannel, error) {
	s, err := server.New(r, pool, sink, component, cfg)
	if err != nil {
		return nil, err
	}
	c := &ServerChannel{s: s}
	s.RegisterFuncConnect(func(clientID uint64, peerAddr string) {
		if fn := c.callback().onConnect; fn != nil {
			fn(clientID, peerAddr)
		}
	})
	s.RegisterFuncDisconnect(func(clientID uint64) {
		if fn := c.callback().onDisconnect; fn != nil {
			fn(clientID)
		}
	})
	s.RegisterFuncError(func(info errors.ErrorInfo) {
		if fn := c.callback().onError; fn != nil {
			fn(info.Error())
		}
	})
	return c, nil
}

type serverCallbacks struct {
	onConnect    func(clientID uint64, peerAddr string)
	onDisconnect func(clientID uint64)
	onError      func(message string)
}

func (c *ServerChannel) callback() serverCallbacks {
	c.mu.Lock()
	defer c.mu.Unlock()
	return serverCallbacks{c.onConnect, c.onDisconnect, c.onError}
}

// RegisterFuncConnect sets the callback fired when a new peer is admitted.
func (c *ServerChannel) RegisterFuncConnect(fn func(clientID uint64, peerAddr string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnect = fn
}

// RegisterFuncDisconnect sets the callback fired when a peer leaves.
func (c *ServerChannel) RegisterFuncDisconnect(fn func(clientID uint64)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnect = fn
}

// RegisterFuncError sets the callback fired with a human-readable cause
// whenever the server or one of its peers raises an ErrorInfo.
func (c *ServerChannel) RegisterFuncError(fn func(message string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = fn
}

// Start binds the listener (with port retry per cfg).
func (c *ServerChannel) Start() { c.s.Start() }

// Stop closes the listener and every peer session.
func (c *ServerChannel) Stop() { c.s.Stop() }

// Send is Broadcast under another name, so ServerChannel satisfies Channel.
func (c *ServerChannel) Send(data []byte) { c.s.Broadcast(data) }

// SendLine broadcasts line + "\n" to every connected peer.
func (c *ServerChannel) SendLine(line string) { c.s.Broadcast(append([]byte(line), '\n')) }

// IsConnected reports whether the server is currently Listening.
func (c *ServerChannel) IsConnected() bool { return c.s.State() == protocol.Listening }

// Broadcast appends data to every connected peer's TX queue.
func (c *ServerChannel) Broadcast(data []byte) { c.s.Broadcast(data) }

// SendTo appends data to one peer's TX queue; a no-op if clientID is not
// currently admitted.
func (c *ServerChannel) SendTo(clientID uint64, data []byte) { c.s.SendTo(clientID, data) }

// GetClientCount returns the number of currently admitted peers.
func (c *ServerChannel) GetClientCount() int { return c.s.GetClientCount() }

// GetConnectedClients returns the ClientIds of currently admitted peers.
func (c *ServerChannel) GetConnectedClients() []uint64 { return c.s.GetConnectedClients() }

// State exposes the underlying LinkState.
func (c *ServerChannel) State() protocol.LinkState { return c.s.State() }

var _ Channel = (*ServerChannel)(nil)
