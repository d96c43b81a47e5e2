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

// Package channel presents the uniform façade of §4.5 over the three
// underlying transport variants. Every constructor returns a type exposing
// the common start/stop/send/send_line/is_connected surface; TCP-client,
// Serial and TCP-server each layer their own event-registration shape on
// top, translating the internal LinkState/ErrorInfo vocabulary into the
// plain on_connect/on_disconnect/on_error surface of §6.
package channel

// Channel is the subset of behavior every variant shares. Single-peer and
// multi-client façades both satisfy it; their event registration differs
// and is exposed on the concrete type instead, since on_data and on_connect
// carry a client_id for servers and not for single-peer sessions (§6).
type Channel interface {
	Start()
	Stop()
	Send(data []byte)
	SendLine(line string)
	IsConnected() bool
}
