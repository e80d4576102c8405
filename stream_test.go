// Copyright (c) 2024 The ioreactor Authors. Use of this source code is
// governed by an MIT license that can be found in the LICENSE file.

package ioreactor

import (
	"io"
	"syscall"
	"testing"

	"github.com/xtaci/ioreactor/internal/socket"
)

func socketPair(t *testing.T) (*socket.Conn, *socket.Conn) {
	t.Helper()
	fds, err := syscall.Socketpair(syscall.AF_UNIX, syscall.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	for _, fd := range fds {
		if err := syscall.SetNonblock(fd, true); err != nil {
			t.Fatalf("set non-blocking: %v", err)
		}
	}
	return &socket.Conn{Fd: fds[0]}, &socket.Conn{Fd: fds[1]}
}

func noopPost(message) {}

func TestConnectionReadDeliversBytesInOrder(t *testing.T) {
	a, b := socketPair(t)
	defer a.Close()
	defer b.Close()

	c, pair := newConnection(a)
	c.initRead()

	if _, _, err := b.Write([]byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}

	act := c.read(0, noopPost)
	if act.kind != kindWait {
		t.Fatalf("got action %+v, want Wait (chunk parked until the consumer pulls)", act)
	}

	item, _ := pair.Source.Receive().Wait()
	if item.Err != nil {
		t.Fatalf("unexpected error: %v", item.Err)
	}
	if string(item.Value) != "hello" {
		t.Fatalf("got %q, want %q", item.Value, "hello")
	}
}

func TestConnectionReadEOFClosesReadingHalf(t *testing.T) {
	a, b := socketPair(t)
	defer a.Close()

	c, pair := newConnection(a)
	c.initRead()
	b.Close()

	act := c.read(0, noopPost)
	if c.rState != readClosed {
		t.Fatalf("got rState %v, want readClosed", c.rState)
	}
	if act.kind != kindWait {
		t.Fatalf("got action kind %v, want Wait (writing half still open)", act.kind)
	}

	item, _ := pair.Source.Receive().Wait()
	if item.Err != io.EOF {
		t.Fatalf("got err %v, want io.EOF", item.Err)
	}
}

func TestConnectionWriteDrainsBufferThenPullsNext(t *testing.T) {
	a, b := socketPair(t)
	defer a.Close()
	defer b.Close()

	posted := make(chan message, 1)
	post := func(m message) { posted <- m }

	c, pair := newConnection(a)
	act := c.initWrite(0, post)
	if act.kind != kindWait {
		t.Fatalf("got action %+v, want Wait (no chunk supplied yet)", act)
	}

	if _, err := pair.Sink.Send([]byte("ping")).Wait(); err != nil {
		t.Fatalf("send: %v", err)
	}

	m := (<-posted).(msgWriteInterest)
	c.writeInterest(m.hasChunk, m.chunk, m.rest)
	if c.wState != writeWriting {
		t.Fatalf("got wState %v, want writeWriting", c.wState)
	}

	c.write(0, post)
	if c.wState != writeWaiting {
		t.Fatalf("got wState %v, want writeWaiting (parked for next chunk)", c.wState)
	}

	buf := make([]byte, 4)
	n, _, err := b.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(buf[:n]) != "ping" {
		t.Fatalf("got %q, want %q", buf[:n], "ping")
	}
}

func TestConnectionWriteInterestNoneClosesWritingHalf(t *testing.T) {
	a, _ := socketPair(t)
	defer a.Close()

	posted := make(chan message, 1)
	c, pair := newConnection(a)
	c.initWrite(0, func(m message) { posted <- m })

	pair.Sink.Close()

	m := (<-posted).(msgWriteInterest)
	act := c.writeInterest(m.hasChunk, m.chunk, m.rest)
	if c.wState != writeClosed {
		t.Fatalf("got wState %v, want writeClosed", c.wState)
	}
	if act.kind != kindWait {
		t.Fatalf("got action kind %v, want Wait (reading half still open)", act.kind)
	}
}

func TestConnectionActionCompositeTable(t *testing.T) {
	c := &connection{}

	c.rState, c.wState = readReading, writeWriting
	if a := c.action(); a.kind != kindRegister || a.interest != InterestReadWrite {
		t.Fatalf("got %+v, want Register(ReadWrite)", a)
	}

	c.rState, c.wState = readReading, writeClosed
	if a := c.action(); a.kind != kindRegister || a.interest != InterestRead {
		t.Fatalf("got %+v, want Register(Read)", a)
	}

	c.rState, c.wState = readWaiting, writeWriting
	if a := c.action(); a.kind != kindRegister || a.interest != InterestWrite {
		t.Fatalf("got %+v, want Register(Write)", a)
	}

	c.rState, c.wState = readClosed, writeClosed
	if a := c.action(); a.kind != kindRemove {
		t.Fatalf("got %+v, want Remove", a)
	}

	c.rState, c.wState = readWaiting, writeWaiting
	if a := c.action(); a.kind != kindWait {
		t.Fatalf("got %+v, want Wait", a)
	}
}
