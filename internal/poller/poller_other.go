// Copyright (c) 2024 The ioreactor Authors. Use of this source code is
// governed by an MIT license that can be found in the LICENSE file.

//go:build !linux

package poller

import "github.com/pkg/errors"

// New is unimplemented outside Linux; the reactor's notifier is epoll-based.
func New() (Poller, error) {
	return nil, errors.New("poller: epoll notifier is only available on linux")
}
