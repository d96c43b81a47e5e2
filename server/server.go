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

// Package server implements the multi-client TCP listener (§4.3): bind with
// port retry, admission control, monotonic client numbering, and broadcast /
// targeted send fan-out over peer sessions.
package server

import (
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/sabouaram/translink/buffer"
	"github.com/sabouaram/translink/config"
	"github.com/sabouaram/translink/errors"
	"github.com/sabouaram/translink/protocol"
	"github.com/sabouaram/translink/reactor"
	"github.com/sabouaram/translink/session"
)

// Callbacks are invoked on the reactor thread, same discipline as Session
// callbacks (§4.2, §4.3).
type Callbacks struct {
	OnConnect    func(clientID uint64, peerAddr string)
	OnDisconnect func(clientID uint64)
	OnError      func(info errors.ErrorInfo)
}

// Server is the multi-client TCP listener of §4.3. Construct with New.
type Server struct {
	component string
	cfg       config.TCPServer

	r    *reactor.Reactor
	pool *buffer.Pool
	sink *errors.Handler

	mu  sync.Mutex
	cb  Callbacks
	ln  net.Listener
	sem *semaphore.Weighted

	state atomic.Int32

	clients      map[uint64]*session.Session
	order        []uint64
	nextClientID uint64

	portRetryAttempts int
	portRetryTm       *reactor.Timer
}

// New validates cfg and constructs a Server bound to r and pool. Start
// still needs to be called to bind.
func New(r *reactor.Reactor, pool *buffer.Pool, sink *errors.Handler, component string, cfg config.TCPServer) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	budget := cfg.DescriptorBudget
	if budget <= 0 {
		budget = config.DefaultDescriptorBudget
	}

	s := &Server{
		component: component,
		cfg:       cfg,
		r:         r,
		pool:      pool,
		sink:      sink,
		clients:   make(map[uint64]*session.Session),
		sem:       semaphore.NewWeighted(int64(budget)),
	}
	s.state.Store(int32(protocol.Idle))
	return s, nil
}

// RegisterFuncConnect sets the callback fired when a new peer is admitted.
func (s *Server) RegisterFuncConnect(fn func(clientID uint64, peerAddr string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cb.OnConnect = fn
}

// RegisterFuncDisconnect sets the callback fired when a peer leaves.
func (s *Server) RegisterFuncDisconnect(fn func(clientID uint64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cb.OnDisconnect = fn
}

// RegisterFuncError sets the callback fired for every ErrorInfo the server
// (or one of its peers) raises, in addition to the process-wide sink.
func (s *Server) RegisterFuncError(fn func(info errors.ErrorInfo)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cb.OnError = fn
}

func (s *Server) callbacks() Callbacks {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cb
}

// State is an atomic snapshot of the server's LinkState.
func (s *Server) State() protocol.LinkState {
	return protocol.LinkState(s.state.Load())
}

// GetClientCount returns the number of currently admitted peers.
func (s *Server) GetClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// GetConnectedClients returns the ClientIds of currently admitted peers,
// oldest first.
func (s *Server) GetConnectedClients() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uint64, len(s.order))
	copy(out, s.order)
	return out
}

func (s *Server) transition(next protocol.LinkState) {
	cur := s.State()
	if cur == next || !cur.CanTransition(next) {
		return
	}
	s.state.Store(int32(next))
}

func (s *Server) reportError(operation, message string, retryable bool, code int, cause error) {
	info := errors.NewErrorInfo(errors.LevelError, errors.CategoryConnection, s.component, operation, message, retryable, cause)
	if code != 0 {
		info = info.WithCode(code)
	}
	if s.sink != nil {
		s.sink.Report(info)
	}
	if cb := s.callbacks().OnError; cb != nil {
		cb(info)
	}
}

// Start is idempotent: a no-op once Listening or past it. Otherwise it
// attempts to bind, retrying per cfg.PortRetry on "address already in use".
func (s *Server) Start() {
	s.r.Post(func() {
		switch s.State() {
		case protocol.Listening, protocol.Closed, protocol.Error:
			return
		}
		s.portRetryAttempts = 0
		s.bind()
	})
}

func (s *Server) bind() {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		if s.cfg.PortRetry.Enabled && isAddrInUse(err) && s.portRetryAttempts < s.cfg.PortRetry.MaxRetries {
			s.portRetryAttempts++
			interval := config.Interval(s.cfg.PortRetry.IntervalMS).Duration(config.DefaultPortRetryIntervalMS)
			s.portRetryTm = s.r.PostAfter(interval, s.bind)
			return
		}
		code := 0
		if s.cfg.PortRetry.Enabled && isAddrInUse(err) {
			code = errors.CodePortRetryExhausted
		}
		s.reportError("bind", "failed to bind listener", false, code, err)
		s.transition(protocol.Error)
		return
	}

	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	s.transition(protocol.Listening)
	s.acceptLoop(ln)
}

func isAddrInUse(err error) bool {
	return strings.Contains(err.Error(), "address already in use")
}

func (s *Server) acceptLoop(ln net.Listener) {
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			c := conn
			s.r.Post(func() {
				s.admit(c)
			})
		}
	}()
}

func (s *Server) limit() int {
	switch s.cfg.Admission.Kind {
	case config.AdmissionSingle:
		return 1
	case config.AdmissionBounded:
		return s.cfg.Admission.Bound
	default:
		return -1
	}
}

func (s *Server) admit(conn net.Conn) {
	s.mu.Lock()
	count := len(s.order)
	s.mu.Unlock()

	if limit := s.limit(); limit >= 0 && count >= limit {
		_ = conn.Close()
		return
	}

	if s.cfg.Admission.Kind == config.AdmissionUnlimited {
		if !s.sem.TryAcquire(1) {
			_ = conn.Close()
			s.reportError("admit", "descriptor budget exhausted", true, 0, nil)
			return
		}
	}

	id := s.nextClientID
	s.nextClientID++

	peer := session.NewTCPPeer(fmt.Sprintf("%s.peer[%d]", s.component, id), s.r, s.pool, s.sink, conn)
	peer.RegisterFuncState(func(next protocol.LinkState) {
		if next == protocol.Closed || next == protocol.Error {
			s.removePeer(id)
		}
	})

	s.mu.Lock()
	s.clients[id] = peer
	s.order = append(s.order, id)
	s.mu.Unlock()

	peer.Start()

	if cb := s.callbacks().OnConnect; cb != nil {
		cb(id, conn.RemoteAddr().String())
	}
}

func (s *Server) removePeer(id uint64) {
	s.mu.Lock()
	_, existed := s.clients[id]
	delete(s.clients, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	kind := s.cfg.Admission.Kind
	s.mu.Unlock()

	if !existed {
		return
	}
	if kind == config.AdmissionUnlimited {
		s.sem.Release(1)
	}
	if cb := s.callbacks().OnDisconnect; cb != nil {
		cb(id)
	}
}

// Stop cancels any pending bind retry, closes the listener, stops every
// peer session, and transitions to Closed.
func (s *Server) Stop() {
	s.r.Post(func() {
		if s.portRetryTm != nil {
			s.portRetryTm.Cancel()
			s.portRetryTm = nil
		}
		s.mu.Lock()
		ln := s.ln
		s.ln = nil
		peers := make([]*session.Session, 0, len(s.clients))
		for _, p := range s.clients {
			peers = append(peers, p)
		}
		s.mu.Unlock()

		if ln != nil {
			_ = ln.Close()
		}
		for _, p := range peers {
			p.Stop()
		}
		if s.State() != protocol.Closed {
			s.transition(protocol.Closed)
		}
	})
}

// Broadcast appends data to every currently admitted peer's TX queue. A
// peer in Error does not fail the whole call; its failure is reported
// independently through the Error Handler (§4.3).
func (s *Server) Broadcast(data []byte) {
	s.r.Post(func() {
		s.mu.Lock()
		peers := make([]*session.Session, 0, len(s.order))
		for _, id := range s.order {
			peers = append(peers, s.clients[id])
		}
		s.mu.Unlock()

		var failures []error
		for _, p := range peers {
			if !p.IsConnected() {
				failures = append(failures, fmt.Errorf("peer not connected"))
				continue
			}
			p.Send(data)
		}
		if agg := errors.AggregateBroadcast(failures...); agg != nil {
			s.reportError("broadcast", "one or more peers could not receive the broadcast", true, 0, agg)
		}
	})
}

// SendTo appends data to clientID's TX queue. A no-op if the id is not
// currently admitted.
func (s *Server) SendTo(clientID uint64, data []byte) {
	s.r.Post(func() {
		s.mu.Lock()
		peer, ok := s.clients[clientID]
		s.mu.Unlock()
		if !ok {
			return
		}
		peer.Send(data)
	})
}
