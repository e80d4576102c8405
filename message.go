// Copyright (c) 2024 The ioreactor Authors. Use of this source code is
// governed by an MIT license that can be found in the LICENSE file.

package ioreactor

import "github.com/xtaci/ioreactor/async"

// Pair is the (Sink, Source) bundle handed to a listener's consumer for
// each accepted connection.
type Pair struct {
	Sink   *async.Sink[[]byte]
	Source *async.Source[[]byte]
}

// message is the tagged union of cross-thread notes the reactor's
// event-loop goroutine drains alongside kernel readiness events. Async
// callbacks running on arbitrary goroutines post these; only the dispatcher
// ever reads them, so no slab state is touched outside the event loop.
type message interface {
	isMessage()
}

// msgStream installs a newly registered connection into the slab.
type msgStream struct {
	conn *connection
}

// msgAccept installs a newly registered listener into the slab.
type msgAccept struct {
	l *listener
}

// msgAcceptInterest reports that the listener's consumer is ready for the
// next accepted pair (sink != nil), or has dropped the sequence (sink == nil).
type msgAcceptInterest struct {
	sink  *async.Sink[Pair]
	token Token
}

// msgReadInterest reports that a connection's reading-half consumer is
// ready for the next chunk (sink != nil), or has dropped it (sink == nil).
type msgReadInterest struct {
	sink  *async.Sink[[]byte]
	token Token
}

// msgWriteInterest reports that a connection's writing-half producer has
// supplied a chunk and its continuation (hasChunk true), or signalled
// end-of-stream (hasChunk false).
type msgWriteInterest struct {
	chunk    []byte
	rest     *async.Source[[]byte]
	hasChunk bool
	token    Token
}

func (msgStream) isMessage()         {}
func (msgAccept) isMessage()         {}
func (msgAcceptInterest) isMessage() {}
func (msgReadInterest) isMessage()   {}
func (msgWriteInterest) isMessage()  {}
