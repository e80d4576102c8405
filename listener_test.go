// Copyright (c) 2024 The ioreactor Authors. Use of this source code is
// governed by an MIT license that can be found in the LICENSE file.

package ioreactor

import (
	"net"
	"testing"
	"time"

	"github.com/xtaci/ioreactor/async"
	"github.com/xtaci/ioreactor/internal/socket"
)

func mustListen(t *testing.T) *net.TCPListener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	return ln.(*net.TCPListener)
}

func TestListenerListenRegistersRead(t *testing.T) {
	ln := mustListen(t)
	defer ln.Close()

	sock, err := socket.NewListener(ln)
	if err != nil {
		t.Fatalf("NewListener: %v", err)
	}
	defer sock.Close()

	sink, _ := async.NewPair[Pair]()
	l := newListener(sock, sink)

	act := l.listen()
	if act.kind != kindRegister || act.interest != InterestRead {
		t.Fatalf("got %+v, want Register(Read)", act)
	}
	if l.state != listenerListening {
		t.Fatalf("got state %v, want listenerListening", l.state)
	}
}

func TestListenerAcceptDeliversPairToConsumer(t *testing.T) {
	ln := mustListen(t)
	defer ln.Close()
	addr := ln.Addr().(*net.TCPAddr)

	sock, err := socket.NewListener(ln)
	if err != nil {
		t.Fatalf("NewListener: %v", err)
	}
	defer sock.Close()

	sink, source := async.NewPair[Pair]()
	l := newListener(sock, sink)
	l.listen()

	clientConn, err := net.DialTCP("tcp", nil, addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer clientConn.Close()

	// Loopback connect completes almost immediately; give the kernel a
	// moment so the listening socket actually has something to accept.
	time.Sleep(20 * time.Millisecond)

	stream, act := l.accept(0, noopPost)
	if stream == nil {
		t.Fatalf("accept produced no connection")
	}
	defer stream.sock.Close()
	// The consumer has not pulled yet, so the Send cannot have completed:
	// the listener parks in Waiting until the callback reports demand.
	if act.kind != kindWait {
		t.Fatalf("got %+v, want Wait", act)
	}
	if l.state != listenerWaiting {
		t.Fatalf("got state %v, want listenerWaiting", l.state)
	}

	item, _ := source.Receive().Wait()
	if item.Err != nil {
		t.Fatalf("unexpected error: %v", item.Err)
	}
	if item.Value.Sink == nil || item.Value.Source == nil {
		t.Fatalf("got zero-value Pair")
	}
}
