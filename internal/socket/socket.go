// Copyright (c) 2024 The ioreactor Authors. Use of this source code is
// governed by an MIT license that can be found in the LICENSE file.

// Package socket wraps raw non-blocking TCP file descriptors for the
// reactor: duplicate the fd out from under a stdlib net.Listener/net.Conn,
// flip it non-blocking, and expose plain syscall-level Accept/Read/Write
// that report EAGAIN as a would-block result instead of an error.
package socket

import (
	"syscall"

	"github.com/pkg/errors"
)

// syscallConn is satisfied by *net.TCPListener and *net.TCPConn.
type syscallConn interface {
	SyscallConn() (syscall.RawConn, error)
}

// dup duplicates the fd behind sc without disturbing sc's own blocking
// mode, so the caller's original net.Listener/net.Conn remains usable.
func dup(sc syscallConn) (int, error) {
	rc, err := sc.SyscallConn()
	if err != nil {
		return -1, errors.Wrap(err, "socket: SyscallConn")
	}

	var newfd int
	var operr error
	if err := rc.Control(func(fd uintptr) {
		newfd, operr = syscall.Dup(int(fd))
	}); err != nil {
		return -1, errors.Wrap(err, "socket: control")
	}
	if operr != nil {
		return -1, errors.Wrap(operr, "socket: dup")
	}
	return newfd, nil
}

// Listener is a non-blocking listening socket.
type Listener struct {
	Fd int
}

// NewListener duplicates l's descriptor and switches the duplicate to
// non-blocking mode.
func NewListener(l syscallConn) (*Listener, error) {
	fd, err := dup(l)
	if err != nil {
		return nil, err
	}
	if err := syscall.SetNonblock(fd, true); err != nil {
		syscall.Close(fd)
		return nil, errors.Wrap(err, "socket: set listener non-blocking")
	}
	return &Listener{Fd: fd}, nil
}

// Accept performs one non-blocking accept. ok is false when the kernel had
// nothing pending (EAGAIN); the caller should wait for the next readiness
// event before retrying.
func (l *Listener) Accept() (conn *Conn, ok bool, err error) {
	for {
		nfd, _, err := syscall.Accept(l.Fd)
		switch err {
		case nil:
			if serr := syscall.SetNonblock(nfd, true); serr != nil {
				syscall.Close(nfd)
				return nil, false, errors.Wrap(serr, "socket: set conn non-blocking")
			}
			return &Conn{Fd: nfd}, true, nil
		case syscall.EAGAIN:
			return nil, false, nil
		case syscall.EINTR:
			continue
		default:
			return nil, false, errors.Wrap(err, "socket: accept")
		}
	}
}

// Close releases the duplicated listening descriptor.
func (l *Listener) Close() error {
	return syscall.Close(l.Fd)
}

// Conn is a non-blocking connected socket.
type Conn struct {
	Fd int
}

// NewConn duplicates an already-connected socket's descriptor and switches
// the duplicate to non-blocking mode, for registering a caller-supplied
// connection with the reactor.
func NewConn(c syscallConn) (*Conn, error) {
	fd, err := dup(c)
	if err != nil {
		return nil, err
	}
	if err := syscall.SetNonblock(fd, true); err != nil {
		syscall.Close(fd)
		return nil, errors.Wrap(err, "socket: set conn non-blocking")
	}
	return &Conn{Fd: fd}, nil
}

// Read performs one non-blocking read. wouldBlock is true on EAGAIN, in
// which case n and err are zero/nil and the caller should wait for the
// next readiness event.
func (c *Conn) Read(b []byte) (n int, wouldBlock bool, err error) {
	for {
		n, err := syscall.Read(c.Fd, b)
		switch err {
		case nil:
			return n, false, nil
		case syscall.EAGAIN:
			return 0, true, nil
		case syscall.EINTR:
			continue
		default:
			return 0, false, errors.Wrap(err, "socket: read")
		}
	}
}

// Write performs one non-blocking write, which may be partial.
func (c *Conn) Write(b []byte) (n int, wouldBlock bool, err error) {
	for {
		n, err := syscall.Write(c.Fd, b)
		switch err {
		case nil:
			return n, false, nil
		case syscall.EAGAIN:
			return 0, true, nil
		case syscall.EINTR:
			continue
		default:
			return 0, false, errors.Wrap(err, "socket: write")
		}
	}
}

// Close releases the duplicated connected descriptor.
func (c *Conn) Close() error {
	return syscall.Close(c.Fd)
}
