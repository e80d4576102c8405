// Copyright (c) 2024 The ioreactor Authors. Use of this source code is
// governed by an MIT license that can be found in the LICENSE file.

// Package ioreactor is an asynchronous, single-threaded TCP I/O reactor.
// Sockets are registered once and thereafter exposed as back-pressured
// async Sources and Sinks (see the async package): the reactor reads a
// socket only while its consumer has demand, and writes to it only while
// its producer has supply, coupling kernel-level edge-triggered readiness
// with consumer-level pull demand so neither side runs ahead of the other.
package ioreactor

import (
	"net"
	"syscall"

	"github.com/pkg/errors"

	"github.com/xtaci/ioreactor/async"
	"github.com/xtaci/ioreactor/internal/socket"
)

// Reactor is a cheaply clonable handle to a running event-loop goroutine
// and the slab of sockets it owns. Go has no destructor to hook the
// reference-counted teardown the design describes, so the last owner must
// call Close explicitly; Close is idempotent and safe to call from any
// clone.
type Reactor struct {
	d *dispatcher
}

// Start constructs a notifier and slab, spawns the event-loop goroutine,
// and returns a handle to it.
func Start() (Reactor, error) {
	d, err := newDispatcher()
	if err != nil {
		return Reactor{}, errors.Wrap(err, "ioreactor: start")
	}
	go d.run()
	return Reactor{d: d}, nil
}

// Clone duplicates the handle; the duplicate shares the same underlying
// reactor, slab, and event-loop goroutine.
func (r Reactor) Clone() Reactor {
	return r
}

// Close tears down the event-loop goroutine.
func (r Reactor) Close() {
	r.d.close()
}

// syscallConn is satisfied by *net.TCPListener and *net.TCPConn; Accept and
// Stream need it to duplicate and drive the underlying fd non-blockingly.
type syscallConn interface {
	SyscallConn() (syscall.RawConn, error)
}

// Accept registers a non-blocking listening socket and returns a lazy
// sequence of accepted connection (Sink, Source) pairs. l must expose
// SyscallConn (every *net.TCPListener does); anything else is rejected with
// ErrUnsupportedConn rather than driven through a slower, blocking path.
func (r Reactor) Accept(l net.Listener) (*async.Source[Pair], error) {
	if r.d.isClosed() {
		return nil, ErrReactorClosed
	}
	sc, ok := l.(syscallConn)
	if !ok {
		return nil, ErrUnsupportedConn
	}
	sock, err := socket.NewListener(sc)
	if err != nil {
		return nil, errors.Wrap(err, "ioreactor: accept")
	}

	sink, source := async.NewPair[Pair]()
	r.d.post(msgAccept{l: newListener(sock, sink)})
	return source, nil
}

// Stream registers an already-connected socket and returns the (Sink,
// Source) pair through which the caller writes and reads bytes. c must
// expose SyscallConn (every *net.TCPConn does); anything else is rejected
// with ErrUnsupportedConn rather than driven through a slower, blocking path.
func (r Reactor) Stream(c net.Conn) (*async.Sink[[]byte], *async.Source[[]byte], error) {
	if r.d.isClosed() {
		return nil, nil, ErrReactorClosed
	}
	sc, ok := c.(syscallConn)
	if !ok {
		return nil, nil, ErrUnsupportedConn
	}
	sock, err := socket.NewConn(sc)
	if err != nil {
		return nil, nil, errors.Wrap(err, "ioreactor: stream")
	}

	conn, pair := newConnection(sock)
	r.d.post(msgStream{conn: conn})
	return pair.Sink, pair.Source, nil
}
