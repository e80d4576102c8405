// Copyright (c) 2024 The ioreactor Authors. Use of this source code is
// governed by an MIT license that can be found in the LICENSE file.

package ioreactor

import "github.com/pkg/errors"

// Sentinel errors surfaced to callers. The reactor never enumerates kernel
// error codes: a failed accept, read or write is surfaced as the kernel
// error wrapped with context via pkg/errors (not with one of these), so
// callers can still inspect it with errors.Cause.
var (
	// ErrSlabFull means the reactor's slab has reached its fixed capacity
	// and cannot accept another listener or connection. This is fatal for
	// the registration attempt that triggered it.
	ErrSlabFull = errors.New("ioreactor: slab is full")

	// ErrReactorClosed means Start succeeded but the reactor's event loop
	// has since torn down (Close was called, or a fatal notifier error).
	ErrReactorClosed = errors.New("ioreactor: reactor closed")

	// ErrUnsupportedConn is returned when a socket handed to Accept/Stream
	// cannot be driven in non-blocking mode by this reactor (e.g. it does
	// not expose SyscallConn).
	ErrUnsupportedConn = errors.New("ioreactor: connection type unsupported")
)
