// Copyright (c) 2024 The ioreactor Authors. Use of this source code is
// governed by an MIT license that can be found in the LICENSE file.

package poller

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// epoller is the Linux epoll implementation of Poller.
type epoller struct {
	epfd int
}

// New opens a fresh epoll instance.
func New() (Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(err, "poller: epoll_create1")
	}
	return &epoller{epfd: epfd}, nil
}

func events(read, write bool) uint32 {
	ev := uint32(unix.EPOLLET | unix.EPOLLONESHOT)
	if read {
		ev |= unix.EPOLLIN
	}
	if write {
		ev |= unix.EPOLLOUT
	}
	return ev
}

func (p *epoller) Add(fd int, token uint32, read, write bool) error {
	ev := &unix.EpollEvent{Events: events(read, write), Fd: int32(token)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		return errors.Wrap(err, "poller: epoll_ctl add")
	}
	return nil
}

func (p *epoller) Modify(fd int, token uint32, read, write bool) error {
	ev := &unix.EpollEvent{Events: events(read, write), Fd: int32(token)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, ev); err != nil {
		return errors.Wrap(err, "poller: epoll_ctl mod")
	}
	return nil
}

func (p *epoller) Remove(fd int) error {
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return errors.Wrap(err, "poller: epoll_ctl del")
	}
	return nil
}

func (p *epoller) Wait(buf []Event) (int, error) {
	raw := make([]unix.EpollEvent, len(buf))
	for {
		n, err := unix.EpollWait(p.epfd, raw, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, errors.Wrap(err, "poller: epoll_wait")
		}
		for i := 0; i < n; i++ {
			buf[i] = Event{
				Token:    uint32(raw[i].Fd),
				Readable: raw[i].Events&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0,
				Writable: raw[i].Events&(unix.EPOLLOUT|unix.EPOLLHUP|unix.EPOLLERR) != 0,
			}
		}
		return n, nil
	}
}

func (p *epoller) Close() error {
	return unix.Close(p.epfd)
}
