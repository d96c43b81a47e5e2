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

package session_test

import (
	"net"
	"strconv"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/translink/buffer"
	"github.com/sabouaram/translink/config"
	"github.com/sabouaram/translink/protocol"
	"github.com/sabouaram/translink/reactor"
	. "github.com/sabouaram/translink/session"
)

func startEchoServer() (addr string, stop func()) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).NotTo(HaveOccurred())

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				buf := make([]byte, 4096)
				for {
					n, err := c.Read(buf)
					if n > 0 {
						_, _ = c.Write(buf[:n])
					}
					if err != nil {
						return
					}
				}
			}(conn)
		}
	}()

	return ln.Addr().String(), func() { _ = ln.Close() }
}

func hostPort(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	Expect(err).NotTo(HaveOccurred())
	port, err := strconv.Atoi(portStr)
	Expect(err).NotTo(HaveOccurred())
	return host, port
}

var _ = Describe("TCP client session", func() {
	It("connects, echoes data, and reports IsConnected", func() {
		addr, stop := startEchoServer()
		defer stop()
		host, port := hostPort(addr)

		r := reactor.NewIndependent("session-echo")
		go r.Run()
		defer r.Stop()

		pool := buffer.NewPool()
		s, err := NewTCPClient(r, pool, nil, "echo-client", config.TCPClient{Host: host, Port: port})
		Expect(err).NotTo(HaveOccurred())

		var received atomic.Value
		s.RegisterFuncBytes(func(data []byte) {
			cp := make([]byte, len(data))
			copy(cp, data)
			received.Store(cp)
		})

		s.Start()
		Eventually(s.IsConnected, "1s").Should(BeTrue())

		s.Send([]byte("hello"))
		Eventually(func() interface{} { return received.Load() }, "1s").ShouldNot(BeNil())
		Expect(string(received.Load().([]byte))).To(Equal("hello"))

		s.Stop()
		Eventually(func() protocol.LinkState { return s.State() }, "1s").Should(Equal(protocol.Closed))
	})

	It("discards sends while not connected", func() {
		r := reactor.NewIndependent("session-discard")
		go r.Run()
		defer r.Stop()

		pool := buffer.NewPool()
		s, err := NewTCPClient(r, pool, nil, "idle-client", config.TCPClient{Host: "127.0.0.1", Port: 1})
		Expect(err).NotTo(HaveOccurred())

		Expect(func() { s.Send([]byte("nope")) }).NotTo(Panic())
		Expect(s.IsConnected()).To(BeFalse())
	})

	It("retries a failed dial and eventually connects once the listener comes up", func() {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		addr := ln.Addr().String()
		Expect(ln.Close()).To(Succeed())

		host, port := hostPort(addr)

		r := reactor.NewIndependent("session-retry")
		go r.Run()
		defer r.Stop()

		pool := buffer.NewPool()
		s, err := NewTCPClient(r, pool, nil, "retry-client", config.TCPClient{
			Host: host, Port: port, RetryInterval: 20,
		})
		Expect(err).NotTo(HaveOccurred())
		s.Start()

		Eventually(func() protocol.LinkState { return s.State() }, "500ms").Should(Equal(protocol.Closed))

		ln2, err := net.Listen("tcp", addr)
		if err == nil {
			defer ln2.Close()
			go func() {
				c, _ := ln2.Accept()
				if c != nil {
					defer c.Close()
				}
			}()
			Eventually(s.IsConnected, "2s").Should(BeTrue())
		}
		s.Stop()
	})
})
