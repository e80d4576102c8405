// Copyright (c) 2024 The ioreactor Authors. Use of this source code is
// governed by an MIT license that can be found in the LICENSE file.

package ioreactor

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/xtaci/ioreactor/internal/poller"
)

// eventBatch bounds how many readiness events a single notifier wait
// drains before the loop checks for cross-thread messages again.
const eventBatch = 128

// dispatcher is the reactor's event-loop goroutine: it owns the slab and
// the notifier and is the only thing that ever touches either.
type dispatcher struct {
	slab *slab
	poll poller.Poller

	notify chan message
	die    chan struct{}
	once   sync.Once
}

func newDispatcher() (*dispatcher, error) {
	p, err := poller.New()
	if err != nil {
		return nil, errors.Wrap(err, "ioreactor: start notifier")
	}
	return &dispatcher{
		slab:   newSlab(),
		poll:   p,
		notify: make(chan message, 256),
		die:    make(chan struct{}),
	}, nil
}

// post delivers a cross-thread message to the event loop; safe from any
// goroutine, including the callbacks the async package spawns.
func (d *dispatcher) post(m message) {
	select {
	case d.notify <- m:
	case <-d.die:
	}
}

func (d *dispatcher) close() {
	d.once.Do(func() {
		close(d.die)
		d.poll.Close()
	})
}

func (d *dispatcher) isClosed() bool {
	select {
	case <-d.die:
		return true
	default:
		return false
	}
}

// run is the single serial loop described in §4.5: kernel readiness events
// and cross-thread messages, both processed on this one goroutine.
func (d *dispatcher) run() {
	events := make(chan []poller.Event)
	failed := make(chan error, 1)
	go d.pollLoop(events, failed)

	for {
		select {
		case <-d.die:
			return
		case <-failed:
			// The notifier itself is broken; nothing further can be
			// serviced. Registration failures on individual sockets are
			// handled per-entry in applyAction, not here.
			d.close()
			return
		case evs := <-events:
			for _, ev := range evs {
				d.handleEvent(ev)
			}
		case m := <-d.notify:
			d.handleMessage(m)
		}
	}
}

func (d *dispatcher) pollLoop(out chan<- []poller.Event, failed chan<- error) {
	buf := make([]poller.Event, eventBatch)
	for {
		n, err := d.poll.Wait(buf)
		if err != nil {
			select {
			case failed <- err:
			case <-d.die:
			}
			return
		}
		batch := make([]poller.Event, n)
		copy(batch, buf[:n])
		select {
		case out <- batch:
		case <-d.die:
			return
		}
	}
}

func (d *dispatcher) handleEvent(ev poller.Event) {
	token := Token(ev.Token)
	entry := d.slab.get(token)
	if entry == nil {
		return
	}

	switch {
	case entry.listener != nil:
		if !ev.Readable {
			return
		}
		conn, act := entry.listener.accept(token, d.post)
		if conn != nil {
			if err := d.insertConnection(conn); err != nil {
				conn.sock.Close()
			}
		}
		d.applyAction(token, entry, act)

	case entry.conn != nil:
		c := entry.conn
		if ev.Readable && c.rState == readReading {
			c.read(token, d.post)
		}
		if ev.Writable && c.wState == writeWriting {
			c.write(token, d.post)
		}
		d.applyAction(token, entry, c.action())
	}
}

func (d *dispatcher) handleMessage(m message) {
	switch msg := m.(type) {
	case msgAccept:
		if err := d.insertListener(msg.l); err != nil {
			msg.l.sink.Fail(err)
		}

	case msgStream:
		if err := d.insertConnection(msg.conn); err != nil {
			msg.conn.sock.Close()
		}

	case msgAcceptInterest:
		entry := d.slab.get(msg.token)
		if entry == nil || entry.listener == nil {
			return
		}
		var act Action
		if msg.sink == nil {
			act = Remove
		} else {
			act = entry.listener.ready(msg.sink)
		}
		d.applyAction(msg.token, entry, act)

	case msgReadInterest:
		entry := d.slab.get(msg.token)
		if entry == nil || entry.conn == nil {
			return
		}
		act := entry.conn.readInterest(msg.sink)
		d.applyAction(msg.token, entry, act)

	case msgWriteInterest:
		entry := d.slab.get(msg.token)
		if entry == nil || entry.conn == nil {
			return
		}
		act := entry.conn.writeInterest(msg.hasChunk, msg.chunk, msg.rest)
		d.applyAction(msg.token, entry, act)
	}
}

func (d *dispatcher) insertListener(l *listener) error {
	entry := &slabEntry{listener: l}
	token, err := d.slab.insert(entry)
	if err != nil {
		return err
	}
	d.applyAction(token, entry, l.listen())
	return nil
}

func (d *dispatcher) insertConnection(c *connection) error {
	entry := &slabEntry{conn: c}
	token, err := d.slab.insert(entry)
	if err != nil {
		return err
	}
	c.initRead()
	c.initWrite(token, d.post)
	d.applyAction(token, entry, c.action())
	return nil
}

// applyAction processes an Action uniformly, per §4.5.
func (d *dispatcher) applyAction(token Token, entry *slabEntry, act Action) {
	switch act.kind {
	case kindWait:
		return

	case kindRegister:
		fd := fdOf(entry)
		read := act.interest == InterestRead || act.interest == InterestReadWrite
		write := act.interest == InterestWrite || act.interest == InterestReadWrite

		var err error
		if entry.registered {
			err = d.poll.Modify(fd, uint32(token), read, write)
		} else {
			err = d.poll.Add(fd, uint32(token), read, write)
			if err == nil {
				entry.registered = true
			}
		}
		if err != nil {
			d.failEntry(entry, err)
			d.poll.Remove(fd)
			closeEntry(entry)
			d.slab.remove(token)
		}

	case kindRemove:
		fd := fdOf(entry)
		if entry.registered {
			d.poll.Remove(fd)
		}
		closeEntry(entry)
		d.slab.remove(token)
	}
}

// failEntry surfaces a fatal notifier-registration error (§7 category 4)
// to whichever async endpoints the entry currently holds.
func (d *dispatcher) failEntry(entry *slabEntry, err error) {
	switch {
	case entry.listener != nil:
		if entry.listener.sink != nil {
			entry.listener.sink.Fail(err)
		}
	case entry.conn != nil:
		c := entry.conn
		if c.rSink != nil {
			c.rSink.Fail(err)
		}
		if c.wSrc != nil {
			c.wSrc.Close()
		}
	}
}

func fdOf(entry *slabEntry) int {
	if entry.listener != nil {
		return entry.listener.sock.Fd
	}
	return entry.conn.sock.Fd
}

func closeEntry(entry *slabEntry) {
	if entry.listener != nil {
		entry.listener.sock.Close()
	} else if entry.conn != nil {
		entry.conn.sock.Close()
	}
}
