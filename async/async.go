// Copyright (c) 2024 The ioreactor Authors. Use of this source code is
// governed by an MIT license that can be found in the LICENSE file.

// Package async provides the back-pressured, pull-based Source/Sink pair the
// reactor core is built on. It is the Go shape of the "async primitives"
// contract the specification treats as an external collaborator: a value
// written through a Sink is observed by the paired Source in the order
// written, and the write only completes once the Source side has pulled for
// it — neither end can run ahead of the other.
//
// Everything here is safe to poll synchronously (Poll) or to drive from a
// background goroutine via a callback (OnReady); the reactor's own
// event-loop goroutine only ever uses Poll and OnReady, never Wait, so it
// never blocks on anything but the OS notifier.
package async

import (
	"io"
	"sync"

	"github.com/pkg/errors"
)

// ErrAborted is returned to a producer when the paired Source has been
// closed by its consumer before accepting the in-flight value.
var ErrAborted = errors.New("async: receiver aborted")

// Item is one element flowing through a Source: a value, orderly
// end-of-stream (Err == io.EOF), or producer failure (any other Err).
type Item[T any] struct {
	Value T
	Err   error
}

// NewPair creates a connected Sink/Source pair. Exactly one item may be
// in flight at a time; callers that need pipelining queue ahead of the Sink
// themselves (the dispatcher never does, by construction of the state
// machines in listener.go/stream.go).
func NewPair[T any]() (*Sink[T], *Source[T]) {
	shared := &channel[T]{
		ch:    make(chan Item[T]),
		abort: make(chan struct{}),
	}
	return &Sink[T]{c: shared}, &Source[T]{c: shared}
}

type channel[T any] struct {
	ch        chan Item[T]
	abort     chan struct{}
	abortOnce sync.Once
	closeOnce sync.Once
}

func (c *channel[T]) closeSend() {
	c.closeOnce.Do(func() { close(c.ch) })
}

func (c *channel[T]) doAbort() {
	c.abortOnce.Do(func() { close(c.abort) })
}

// Sink is the writable end of a Source/Sink pair.
type Sink[T any] struct {
	c *channel[T]
}

// Busy is returned by Send; it resolves once the paired Source has pulled
// the value (Ready, Sink reusable) or resolves with ErrAborted because the
// consumer dropped its Source first (Ready, err == ErrAborted).
type Busy[T any] struct {
	sink *Sink[T]
	done chan error
}

// Send hands one value to the paired Source. The Sink must not be used
// again until the returned Busy resolves.
func (s *Sink[T]) Send(v T) *Busy[T] {
	b := &Busy[T]{sink: s, done: make(chan error, 1)}
	go func() {
		select {
		case s.c.ch <- Item[T]{Value: v}:
			b.done <- nil
		case <-s.c.abort:
			b.done <- ErrAborted
		}
	}()
	return b
}

// Close ends the sequence in orderly fashion: the Source's next receive
// observes Ok(None).
func (s *Sink[T]) Close() {
	s.c.closeSend()
}

// Fail ends the sequence with a producer failure: the Source's next receive
// observes Err(Failed(e)).
func (s *Sink[T]) Fail(err error) {
	go func() {
		select {
		case s.c.ch <- Item[T]{Err: err}:
		case <-s.c.abort:
		}
		s.c.closeSend()
	}()
}

// Poll synchronously and non-blockingly checks whether the exchange has
// completed. ready is false when neither the Source nor the abort signal
// has fired yet.
func (b *Busy[T]) Poll() (sink *Sink[T], err error, ready bool) {
	select {
	case err = <-b.done:
		return b.sink, err, true
	default:
		return nil, nil, false
	}
}

// OnReady installs a callback, invoked exactly once from a new goroutine
// when the exchange completes. Used by the reactor when Poll reports
// NotReady so the event-loop goroutine never blocks.
func (b *Busy[T]) OnReady(f func(sink *Sink[T], err error)) {
	go func() {
		f(b.sink, <-b.done)
	}()
}

// Wait blocks until the exchange completes. Convenience for callers driving
// a pipeline from their own goroutine (e.g. the frame drivers); never used
// by the reactor's event-loop goroutine itself.
func (b *Busy[T]) Wait() (*Sink[T], error) {
	return b.sink, <-b.done
}

// Source is the readable end of a Source/Sink pair.
type Source[T any] struct {
	c *channel[T]
}

// Recv represents a receive in progress.
type Recv[T any] struct {
	source *Source[T]
	done   chan Item[T]
}

// Receive starts pulling the next item. The Source must not be used again
// until the returned Recv resolves.
func (s *Source[T]) Receive() *Recv[T] {
	r := &Recv[T]{source: s, done: make(chan Item[T], 1)}
	go func() {
		select {
		case item, ok := <-s.c.ch:
			if !ok {
				item = Item[T]{Err: io.EOF}
			}
			r.done <- item
		case <-s.c.abort:
			r.done <- Item[T]{Err: ErrAborted}
		}
	}()
	return r
}

// Close signals the paired Sink that this consumer has dropped the
// sequence; any Busy currently outstanding (or created later) on that Sink
// resolves with ErrAborted.
func (s *Source[T]) Close() {
	s.c.doAbort()
}

// Poll synchronously and non-blockingly checks whether the receive has
// completed. tail is the same Source, returned for symmetry with a
// single-owner pull chain; ready is false when nothing has arrived yet.
func (r *Recv[T]) Poll() (item Item[T], tail *Source[T], ready bool) {
	select {
	case item = <-r.done:
		return item, r.source, true
	default:
		return Item[T]{}, nil, false
	}
}

// OnReady installs a callback, invoked exactly once from a new goroutine
// once the receive completes.
func (r *Recv[T]) OnReady(f func(item Item[T], tail *Source[T])) {
	go func() {
		f(<-r.done, r.source)
	}()
}

// Wait blocks until the receive completes. Convenience for callers driving
// a pipeline from their own goroutine; never used by the reactor's
// event-loop goroutine itself.
func (r *Recv[T]) Wait() (Item[T], *Source[T]) {
	return <-r.done, r.source
}
