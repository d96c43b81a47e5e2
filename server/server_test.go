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

package server_test

import (
	"net"
	"strconv"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/translink/buffer"
	"github.com/sabouaram/translink/config"
	"github.com/sabouaram/translink/errors"
	"github.com/sabouaram/translink/protocol"
	"github.com/sabouaram/translink/reactor"
	. "github.com/sabouaram/translink/server"
)

func deadline() time.Time {
	return time.Now().Add(2 * time.Second)
}

func freePort() int {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).NotTo(HaveOccurred())
	defer ln.Close()
	_, portStr, err := net.SplitHostPort(ln.Addr().String())
	Expect(err).NotTo(HaveOccurred())
	port, err := strconv.Atoi(portStr)
	Expect(err).NotTo(HaveOccurred())
	return port
}

var _ = Describe("Server admission and broadcast", func() {
	It("admits up to the bounded limit and rejects beyond it", func() {
		port := freePort()
		r := reactor.NewIndependent("server-bounded")
		go r.Run()
		defer r.Stop()

		pool := buffer.NewPool()
		srv, err := New(r, pool, nil, "bounded-srv", config.TCPServer{
			Host: "127.0.0.1", Port: port, Admission: config.Bounded(2),
		})
		Expect(err).NotTo(HaveOccurred())

		var connects atomic.Int32
		srv.RegisterFuncConnect(func(id uint64, addr string) { connects.Add(1) })

		srv.Start()
		Eventually(func() protocol.LinkState { return srv.State() }, "1s").Should(Equal(protocol.Listening))

		addr := "127.0.0.1:" + strconv.Itoa(port)
		var conns []net.Conn
		for i := 0; i < 3; i++ {
			c, err := net.Dial("tcp", addr)
			Expect(err).NotTo(HaveOccurred())
			conns = append(conns, c)
		}
		defer func() {
			for _, c := range conns {
				_ = c.Close()
			}
		}()

		Eventually(srv.GetClientCount, "1s").Should(Equal(2))
		Consistently(srv.GetClientCount, "100ms").Should(Equal(2))

		srv.Stop()
	})

	It("reports CodePortRetryExhausted once bind retries run out", func() {
		port := freePort()
		blocker, err := net.Listen("tcp", "127.0.0.1:"+strconv.Itoa(port))
		Expect(err).NotTo(HaveOccurred())
		defer blocker.Close()

		r := reactor.NewIndependent("server-port-retry")
		go r.Run()
		defer r.Stop()

		sink := errors.NewHandler()
		pool := buffer.NewPool()
		srv, err := New(r, pool, sink, "exhausted-srv", config.TCPServer{
			Host: "127.0.0.1", Port: port,
			PortRetry: config.PortRetry{Enabled: true, MaxRetries: 1, IntervalMS: 10},
		})
		Expect(err).NotTo(HaveOccurred())

		srv.Start()
		Eventually(func() protocol.LinkState { return srv.State() }, "1s").Should(Equal(protocol.Error))

		recent := sink.Recent(10)
		Expect(recent).NotTo(BeEmpty())
		Expect(recent[len(recent)-1].Code).To(Equal(errors.CodePortRetryExhausted))
	})

	It("broadcasts to every connected peer", func() {
		port := freePort()
		r := reactor.NewIndependent("server-broadcast")
		go r.Run()
		defer r.Stop()

		pool := buffer.NewPool()
		srv, err := New(r, pool, nil, "broadcast-srv", config.TCPServer{
			Host: "127.0.0.1", Port: port, Admission: config.Unlimited(),
		})
		Expect(err).NotTo(HaveOccurred())
		srv.Start()
		Eventually(func() protocol.LinkState { return srv.State() }, "1s").Should(Equal(protocol.Listening))

		addr := "127.0.0.1:" + strconv.Itoa(port)
		c1, err := net.Dial("tcp", addr)
		Expect(err).NotTo(HaveOccurred())
		defer c1.Close()
		c2, err := net.Dial("tcp", addr)
		Expect(err).NotTo(HaveOccurred())
		defer c2.Close()

		Eventually(srv.GetClientCount, "1s").Should(Equal(2))

		srv.Broadcast([]byte("hi"))

		buf1 := make([]byte, 2)
		Expect(c1.SetReadDeadline(deadline())).To(Succeed())
		n1, err := c1.Read(buf1)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(buf1[:n1])).To(Equal("hi"))

		buf2 := make([]byte, 2)
		Expect(c2.SetReadDeadline(deadline())).To(Succeed())
		n2, err := c2.Read(buf2)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(buf2[:n2])).To(Equal("hi"))

		srv.Stop()
	})
})
