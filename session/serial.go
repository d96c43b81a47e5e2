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
	"io"
	"strings"

	"github.com/tarm/serial"

	"github.com/sabouaram/translink/buffer"
	"github.com/sabouaram/translink/config"
	"github.com/sabouaram/translink/errors"
	"github.com/sabouaram/translink/protocol"
	"github.com/sabouaram/translink/reactor"
)

func serialParity(p config.Parity) serial.Parity {
	switch strings.ToLower(string(p)) {
	case string(config.ParityOdd):
		return serial.ParityOdd
	case string(config.ParityEven):
		return serial.ParityEven
	default:
		return serial.ParityNone
	}
}

// NewSerial builds a Session that opens cfg.Device on Start and reopens it
// on the configured retry interval, e.g. after a USB-serial adapter is
// unplugged and replugged.
func NewSerial(r *reactor.Reactor, pool *buffer.Pool, sink *errors.Handler, component string, cfg config.Serial) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	serCfg := &serial.Config{
		Name:     cfg.Device,
		Baud:     cfg.BaudRate,
		Size:     byte(cfg.DataBits),
		StopBits: serial.StopBits(cfg.StopBits),
		Parity:   serialParity(cfg.Parity),
	}

	dial := func(ctx context.Context) (io.ReadWriteCloser, error) {
		return serial.OpenPort(serCfg)
	}

	retry := cfg.RetryInterval.Duration(config.DefaultRetryIntervalMS)
	return newSession(component, protocol.KindSerial, r, pool, sink, dial, retry, cfg.MaxRetries, false), nil
}
