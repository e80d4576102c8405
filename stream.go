// Copyright (c) 2024 The ioreactor Authors. Use of this source code is
// governed by an MIT license that can be found in the LICENSE file.

package ioreactor

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/xtaci/ioreactor/async"
	"github.com/xtaci/ioreactor/internal/socket"
)

// readBufferSize is the chunk size the reading half allocates per
// non-blocking read.
const readBufferSize = 4096

// writeIterationBurst/writeIterationRefill bound how many non-blocking
// write syscalls a single writable event may spend on one socket, so one
// fast writer cannot starve the rest of the slab. Advisory only: a socket
// that still has buf left after the cap simply re-registers and continues
// on the next writable event.
const (
	writeIterationBurst  = 64
	writeIterationRefill = 4096
)

type readState int

const (
	readNew readState = iota
	readWaiting
	readReading
	readClosed
)

type writeState int

const (
	writeNew writeState = iota
	writeWaiting
	writeWriting
	writeClosed
)

// connection is the Stream state machine: two independently advancing
// halves sharing one non-blocking connected socket.
type connection struct {
	sock *socket.Conn

	rState readState
	rSink  *async.Sink[[]byte] // held in New and Reading

	wState writeState
	wBuf   []byte
	wSrc   *async.Source[[]byte] // held in New (pre-first-pull) and Writing (next chunk's source)

	limiter *rate.Limiter
}

// newConnection wraps sock and builds the external (Sink, Source) pair its
// consumer reads and writes bytes through.
func newConnection(sock *socket.Conn) (*connection, Pair) {
	rSink, extSource := async.NewPair[[]byte]()
	extSink, wSrc := async.NewPair[[]byte]()

	c := &connection{
		sock:    sock,
		rState:  readNew,
		rSink:   rSink,
		wState:  writeNew,
		wSrc:    wSrc,
		limiter: rate.NewLimiter(rate.Limit(writeIterationRefill), writeIterationBurst),
	}
	return c, Pair{Sink: extSink, Source: extSource}
}

// action computes the composite Action from the cross product of the two
// halves' states.
func (c *connection) action() Action {
	switch {
	case c.rState == readReading && c.wState == writeWriting:
		return Register(InterestReadWrite)
	case c.rState == readReading:
		return Register(InterestRead)
	case c.wState == writeWriting:
		return Register(InterestWrite)
	case c.rState == readClosed && c.wState == writeClosed:
		return Remove
	default:
		return Wait
	}
}

func (c *connection) closed() bool {
	return c.rState == readClosed && c.wState == writeClosed
}

// initRead runs once after insertion. The freshly extracted sink has
// nothing sent through it yet, so — unlike a mid-stream read — there is no
// busy handle to poll for consumer demand: the channel-based Sink/Source
// pair already blocks Send until a receive is pending, so the half starts
// directly in Reading and the first real demand check happens at the first
// actual Send in read().
func (c *connection) initRead() Action {
	c.rState = readReading
	return c.action()
}

// initWrite runs once after insertion: pull the first chunk (or
// end-of-stream) from the producer's source.
func (c *connection) initWrite(token Token, post func(message)) Action {
	c.wState = writeWaiting
	src := c.wSrc
	c.wSrc = nil

	recv := src.Receive()
	if item, tail, ready := recv.Poll(); ready {
		c.writeInterest(item.Err == nil, item.Value, tail)
		return c.action()
	}
	recv.OnReady(func(item async.Item[[]byte], tail *async.Source[[]byte]) {
		post(msgWriteInterest{chunk: item.Value, rest: tail, hasChunk: item.Err == nil, token: token})
	})
	return c.action()
}

// read handles a kernel-readable event on the reading half.
func (c *connection) read(token Token, post func(message)) Action {
	sink := c.rSink
	c.rSink = nil
	c.rState = readWaiting

	buf := make([]byte, readBufferSize)
	n, wouldBlock, err := c.sock.Read(buf)
	switch {
	case err != nil:
		c.rState = readClosed
		sink.Fail(err)
		return c.action()
	case wouldBlock:
		// Spurious edge-triggered wakeup; nothing read, nothing sent.
		c.rState = readReading
		c.rSink = sink
		return c.action()
	case n == 0:
		c.rState = readClosed
		sink.Close()
		return c.action()
	default:
		busy := sink.Send(buf[:n])
		if s, sendErr, ready := busy.Poll(); ready {
			if sendErr != nil {
				c.rState = readClosed
				return c.action()
			}
			c.rState = readReading
			c.rSink = s
			return c.action()
		}
		busy.OnReady(func(s *async.Sink[[]byte], sendErr error) {
			if sendErr != nil {
				post(msgReadInterest{token: token})
			} else {
				post(msgReadInterest{sink: s, token: token})
			}
		})
		return c.action()
	}
}

// readInterest applies a msgReadInterest note: sink == nil means the
// consumer dropped the reading source.
func (c *connection) readInterest(sink *async.Sink[[]byte]) Action {
	if sink == nil {
		c.rState = readClosed
		return c.action()
	}
	c.rState = readReading
	c.rSink = sink
	return c.action()
}

// write handles a kernel-writable event on the writing half: drain buf
// non-blockingly, then pull the next chunk once it is empty.
func (c *connection) write(token Token, post func(message)) Action {
	buf := c.wBuf
	src := c.wSrc
	c.wBuf = nil
	c.wSrc = nil
	c.wState = writeWaiting

	for len(buf) > 0 {
		if !c.limiter.AllowN(time.Now(), 1) {
			break
		}
		n, wouldBlock, err := c.sock.Write(buf)
		if err != nil {
			c.wState = writeClosed
			src.Close()
			return c.action()
		}
		if wouldBlock {
			break
		}
		buf = buf[n:]
	}

	if len(buf) > 0 {
		c.wState = writeWriting
		c.wBuf = buf
		c.wSrc = src
		return c.action()
	}

	recv := src.Receive()
	if item, tail, ready := recv.Poll(); ready {
		c.writeInterest(item.Err == nil, item.Value, tail)
		return c.action()
	}
	recv.OnReady(func(item async.Item[[]byte], tail *async.Source[[]byte]) {
		post(msgWriteInterest{chunk: item.Value, rest: tail, hasChunk: item.Err == nil, token: token})
	})
	return c.action()
}

// writeInterest applies a msgWriteInterest note, whether it arrived from
// initWrite's, write's, or a parked callback's pull.
func (c *connection) writeInterest(hasChunk bool, chunk []byte, rest *async.Source[[]byte]) Action {
	if !hasChunk {
		c.wState = writeClosed
		return c.action()
	}
	c.wState = writeWriting
	c.wBuf = chunk
	c.wSrc = rest
	return c.action()
}
