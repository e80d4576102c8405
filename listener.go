// Copyright (c) 2024 The ioreactor Authors. Use of this source code is
// governed by an MIT license that can be found in the LICENSE file.

package ioreactor

import (
	"github.com/xtaci/ioreactor/async"
	"github.com/xtaci/ioreactor/internal/socket"
)

type listenerState int

const (
	listenerNew listenerState = iota
	listenerWaiting
	listenerListening
)

// listener is the Listener state machine: New -> Waiting -> Listening,
// cycling back to Waiting on every accept.
type listener struct {
	sock  *socket.Listener
	state listenerState
	sink  *async.Sink[Pair] // held in New and Listening
}

func newListener(sock *socket.Listener, sink *async.Sink[Pair]) *listener {
	return &listener{sock: sock, sink: sink, state: listenerNew}
}

// listen runs once right after insertion. Sending the first accepted pair
// is what actually blocks on consumer demand (in accept, via Sink.Send), so
// unlike the reference implementation's Sender there is no separate
// zero-value readiness to poll here first: the channel-based Sink already
// will not resolve a Send until a receive is pending. The listener goes
// straight to Listening and arms for the first readable event.
func (l *listener) listen() Action {
	l.state = listenerListening
	return Register(InterestRead)
}

// ready applies a msgAcceptInterest note carrying a live sink: the consumer
// has registered demand for the next accepted pair.
func (l *listener) ready(sink *async.Sink[Pair]) Action {
	l.state = listenerListening
	l.sink = sink
	return Register(InterestRead)
}

// accept handles a kernel-readable event: extract the sink, accept one
// socket non-blockingly, and hand the freshly built connection's pair to
// the consumer.
func (l *listener) accept(token Token, post func(message)) (*connection, Action) {
	sink := l.sink
	l.sink = nil
	l.state = listenerWaiting

	conn, ok, err := l.sock.Accept()
	if err != nil {
		// A kernel I/O error on the listening socket itself (§7 category
		// 3): surface it to the consumer rather than panic, and tear the
		// listener down.
		sink.Fail(err)
		return nil, Remove
	}
	if !ok {
		// Spurious edge-triggered wakeup: nothing was actually pending.
		l.state = listenerListening
		l.sink = sink
		return nil, Register(InterestRead)
	}

	stream, pair := newConnection(conn)

	busy := sink.Send(pair)
	if s, sendErr, ready := busy.Poll(); ready {
		if sendErr != nil {
			return stream, Remove
		}
		l.state = listenerListening
		l.sink = s
		return stream, Register(InterestRead)
	}

	busy.OnReady(func(s *async.Sink[Pair], sendErr error) {
		if sendErr != nil {
			post(msgAcceptInterest{token: token})
		} else {
			post(msgAcceptInterest{sink: s, token: token})
		}
	})
	return stream, Wait
}
