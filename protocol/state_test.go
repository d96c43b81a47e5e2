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

package protocol_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	. "github.com/sabouaram/translink/protocol"
)

var _ = Describe("LinkState", func() {
	It("stringifies every named state", func() {
		Expect(Idle.String()).To(Equal("Idle"))
		Expect(Connecting.String()).To(Equal("Connecting"))
		Expect(Listening.String()).To(Equal("Listening"))
		Expect(Connected.String()).To(Equal("Connected"))
		Expect(Closed.String()).To(Equal("Closed"))
		Expect(Error.String()).To(Equal("Error"))
	})

	It("stringifies an out-of-range value without panicking", func() {
		Expect(LinkState(255).String()).To(ContainSubstring("LinkState"))
	})

	It("allows the client episode's forward edges", func() {
		Expect(Idle.CanTransition(Connecting)).To(BeTrue())
		Expect(Connecting.CanTransition(Connected)).To(BeTrue())
		Expect(Connected.CanTransition(Closed)).To(BeTrue())
		Expect(Closed.CanTransition(Connecting)).To(BeTrue())
	})

	It("allows the server bind edge", func() {
		Expect(Idle.CanTransition(Listening)).To(BeTrue())
		Expect(Listening.CanTransition(Closed)).To(BeTrue())
	})

	It("allows a fatal transition from any state", func() {
		for _, s := range []LinkState{Idle, Connecting, Listening, Connected, Closed} {
			Expect(s.CanTransition(Error)).To(BeTrue())
		}
	})

	It("rejects reverse edges", func() {
		Expect(Connected.CanTransition(Idle)).To(BeFalse())
		Expect(Closed.CanTransition(Connected)).To(BeFalse())
		Expect(Error.CanTransition(Connecting)).To(BeFalse())
	})

	It("rejects a no-op transition to the same state", func() {
		Expect(Connected.CanTransition(Connected)).To(BeFalse())
	})
})

var _ = Describe("LinkKind", func() {
	It("stringifies every named kind", func() {
		Expect(KindTcpClient.String()).To(Equal("tcp-client"))
		Expect(KindSerial.String()).To(Equal("serial"))
		Expect(KindTcpPeer.String()).To(Equal("tcp-peer"))
	})
})
