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

package session

import (
	"context"
	"fmt"
	"io"
	"net"

	"github.com/sabouaram/translink/buffer"
	"github.com/sabouaram/translink/config"
	"github.com/sabouaram/translink/errors"
	"github.com/sabouaram/translink/protocol"
	"github.com/sabouaram/translink/reactor"
)

// NewTCPClient builds a Session that dials cfg.Host:cfg.Port on Start and
// reconnects on the configured retry interval.
func NewTCPClient(r *reactor.Reactor, pool *buffer.Pool, sink *errors.Handler, component string, cfg config.TCPClient) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	var d net.Dialer

	dial := func(ctx context.Context) (io.ReadWriteCloser, error) {
		return d.DialContext(ctx, "tcp", addr)
	}

	retry := cfg.RetryInterval.Duration(config.DefaultRetryIntervalMS)
	return newSession(component, protocol.KindTcpClient, r, pool, sink, dial, retry, cfg.MaxRetries, false), nil
}

// NewTCPPeer adapts an already-accepted net.Conn (a server peer) into a
// Session whose dialer simply hands the same connection back once; peer
// sessions never reconnect (§4.3).
func NewTCPPeer(component string, r *reactor.Reactor, pool *buffer.Pool, sink *errors.Handler, conn net.Conn) *Session {
	used := false
	dial := func(ctx context.Context) (io.ReadWriteCloser, error) {
		if used {
			return nil, fmt.Errorf("peer session does not reconnect")
		}
		used = true
		return conn, nil
	}
	s := newSession(component, protocol.KindTcpPeer, r, pool, sink, dial, 0, 0, true)
	return s
}
