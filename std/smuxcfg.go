// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package std

import (
	"time"

	"github.com/xtaci/smux"
)

// Tuning defaults for the single outbound smux session cmd/ioproxy
// multiplexes every accepted relay over. Unlike kcptun's client/server,
// which expose every one of these as its own CLI flag for a KCP session
// per tunnel, ioproxy dials exactly one target connection in -multiplex
// mode, so these are fixed rather than flag-controlled.
const (
	DefaultSmuxVersion           = 2
	DefaultSmuxMaxReceiveBuffer  = 4194304
	DefaultSmuxMaxStreamBuffer   = 2097152
	DefaultSmuxMaxFrameSize      = 4096
	DefaultSmuxKeepAliveInterval = 10 * time.Second
)

// BuildSmuxConfig constructs a smux.Config from explicit parameters and
// verifies the result, for callers that need non-default tuning. Callers
// can log or wrap the returned error for better diagnostics.
func BuildSmuxConfig(version, maxReceiveBuffer, maxStreamBuffer, maxFrameSize int, keepAlive time.Duration) (*smux.Config, error) {
	cfg := smux.DefaultConfig()
	cfg.Version = version
	cfg.MaxReceiveBuffer = maxReceiveBuffer
	cfg.MaxStreamBuffer = maxStreamBuffer
	cfg.MaxFrameSize = maxFrameSize
	cfg.KeepAliveInterval = keepAlive

	return cfg, smux.VerifyConfig(cfg)
}

// DefaultSmuxConfig builds a smux.Config from the package defaults above —
// what ioproxy's own -multiplex mode actually runs with.
func DefaultSmuxConfig() (*smux.Config, error) {
	return BuildSmuxConfig(DefaultSmuxVersion, DefaultSmuxMaxReceiveBuffer, DefaultSmuxMaxStreamBuffer, DefaultSmuxMaxFrameSize, DefaultSmuxKeepAliveInterval)
}
