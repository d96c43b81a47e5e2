/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
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

// Package config validates the declarative builder-input surface of §6:
// hostnames, addresses, serial framing, device paths, and admission policy.
// Validation happens at configuration time and rejects with a classified
// error before any resource is acquired, per §7's propagation rule for
// Configuration-category errors.
package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Parity is the serial line's parity setting.
type Parity string

const (
	ParityNone Parity = "none"
	ParityOdd  Parity = "odd"
	ParityEven Parity = "even"
)

// FlowControl is the serial line's flow-control setting.
type FlowControl string

const (
	FlowControlNone     FlowControl = "none"
	FlowControlHardware FlowControl = "hardware"
	FlowControlSoftware FlowControl = "software"
)

// AdmissionKind selects the server's client-limit policy (§4.3).
type AdmissionKind uint8

const (
	AdmissionSingle AdmissionKind = iota
	AdmissionBounded
	AdmissionUnlimited
)

// Admission describes a server's admission policy. Bound is meaningful only
// when Kind is AdmissionBounded.
type Admission struct {
	Kind  AdmissionKind
	Bound int
}

// Single returns the single_client admission policy (limit 1).
func Single() Admission { return Admission{Kind: AdmissionSingle} }

// Bounded returns the bounded(n) admission policy. n must be >= 2; 0 and 1
// are rejected by Validate (use Single or Unlimited instead).
func Bounded(n int) Admission { return Admission{Kind: AdmissionBounded, Bound: n} }

// Unlimited returns the unlimited_clients admission policy.
func Unlimited() Admission { return Admission{Kind: AdmissionUnlimited} }

// Validate rejects bounded(0) and bounded(1) per §4.3.
func (a Admission) Validate() error {
	if a.Kind == AdmissionBounded && a.Bound < 2 {
		return fmt.Errorf("%w: bounded client limit must be >= 2, got %d", ErrInvalidAdmission, a.Bound)
	}
	return nil
}

// PortRetry configures the server's bind-retry policy.
type PortRetry struct {
	Enabled     bool
	MaxRetries  int
	IntervalMS  int
}

// TCPClient is the validated builder input for an outbound TCP session.
type TCPClient struct {
	Host                  string   `validate:"required"`
	Port                  int      `validate:"required,min=1,max=65535"`
	RetryInterval         Interval `validate:"omitempty,min=1"`
	MaxRetries            int      `validate:"omitempty,min=0"`
	UseIndependentContext bool
	AutoStart             bool
	AutoManage            bool
}

// Validate checks host and port grammar per §6.
func (c TCPClient) Validate() error {
	if err := validate.Struct(c); err != nil {
		return classifyStructError(err)
	}
	if !isValidHost(c.Host) {
		return fmt.Errorf("%w: invalid host %q", ErrInvalidHost, c.Host)
	}
	return nil
}

// TCPServer is the validated builder input for a listening TCP server.
type TCPServer struct {
	Host                  string `validate:"omitempty"`
	Port                  int    `validate:"required,min=1,max=65535"`
	Admission             Admission
	PortRetry             PortRetry
	// DescriptorBudget caps concurrent peers under Unlimited() admission,
	// where there is otherwise no numeric limit (§4.3). Zero uses
	// DefaultDescriptorBudget.
	DescriptorBudget     int
	UseIndependentContext bool
	AutoStart             bool
	AutoManage            bool
}

// DefaultDescriptorBudget is the descriptor cap applied under unlimited
// admission when TCPServer.DescriptorBudget is left at zero.
const DefaultDescriptorBudget = 10000

// Validate checks host, port, and admission policy per §4.3/§6.
func (c TCPServer) Validate() error {
	if err := validate.Struct(c); err != nil {
		return classifyStructError(err)
	}
	if c.Host != "" && !isValidHost(c.Host) {
		return fmt.Errorf("%w: invalid host %q", ErrInvalidHost, c.Host)
	}
	if err := c.Admission.Validate(); err != nil {
		return err
	}
	if c.PortRetry.Enabled && c.PortRetry.MaxRetries < 0 {
		return fmt.Errorf("%w: max_retries must be >= 0", ErrInvalidPortRetry)
	}
	return nil
}

// Serial is the validated builder input for a serial/UART session.
type Serial struct {
	Device        string `validate:"required"`
	BaudRate      int    `validate:"required,min=50,max=4000000"`
	DataBits      int    `validate:"required,min=5,max=8"`
	StopBits      int    `validate:"required,min=1,max=2"`
	Parity        Parity
	FlowControl   FlowControl
	RetryInterval Interval `validate:"omitempty,min=1"`
	MaxRetries    int      `validate:"omitempty,min=0"`
}

// Validate checks device path grammar and framing ranges per §6.
func (c Serial) Validate() error {
	if err := validate.Struct(c); err != nil {
		return classifyStructError(err)
	}
	if !isValidDevicePath(c.Device) {
		return fmt.Errorf("%w: invalid device path %q", ErrInvalidDevice, c.Device)
	}
	switch strings.ToLower(string(c.Parity)) {
	case "", string(ParityNone), string(ParityOdd), string(ParityEven):
	default:
		return fmt.Errorf("%w: invalid parity %q", ErrInvalidParity, c.Parity)
	}
	return nil
}

func classifyStructError(err error) error {
	return fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
}

// RFC 1123 hostname: labels of up to 63 alphanumerics/hyphens, not starting
// or ending with a hyphen, total length <= 253. A name made only of digits
// and dots that is not a valid IPv4 address is rejected, not read as a
// hostname.
var hostLabel = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)

func isValidHost(h string) bool {
	if h == "" || len(h) > 253 {
		return false
	}
	if isValidIPv4(h) || isValidIPv6(h) {
		return true
	}
	if strings.Trim(h, "0123456789.") == "" {
		return false
	}
	for _, label := range strings.Split(h, ".") {
		if !hostLabel.MatchString(label) {
			return false
		}
	}
	return true
}

func isValidIPv4(h string) bool {
	parts := strings.Split(h, ".")
	if len(parts) != 4 {
		return false
	}
	for _, p := range parts {
		if p == "" || (len(p) > 1 && p[0] == '0') {
			return false
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 255 {
			return false
		}
	}
	return true
}

func isValidIPv6(h string) bool {
	if !strings.Contains(h, ":") {
		return false
	}
	groups := strings.Split(h, ":")
	if len(groups) < 3 || len(groups) > 8 {
		return false
	}
	seenEmpty := false
	for _, g := range groups {
		if g == "" {
			seenEmpty = true
			continue
		}
		if len(g) > 4 {
			return false
		}
		if _, err := strconv.ParseUint(g, 16, 64); err != nil {
			return false
		}
	}
	_ = seenEmpty
	return true
}

var winReserved = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
}

var unixDevice = regexp.MustCompile(`^/[a-zA-Z0-9/_-]+$`)
var comPort = regexp.MustCompile(`^COM([1-9][0-9]{0,2})$`)

// isValidDevicePath accepts a Unix device path (alphanumerics, /, _, - only,
// beginning with /), a Windows COM1..COM255 port, or a Windows reserved name.
func isValidDevicePath(d string) bool {
	if d == "" {
		return false
	}
	if strings.HasPrefix(d, "/") {
		return unixDevice.MatchString(d)
	}
	if m := comPort.FindStringSubmatch(strings.ToUpper(d)); m != nil {
		n, err := strconv.Atoi(m[1])
		return err == nil && n >= 1 && n <= 255
	}
	return winReserved[strings.ToUpper(d)]
}
