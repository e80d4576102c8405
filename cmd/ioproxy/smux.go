// Copyright (c) 2024 The ioreactor Authors. Use of this source code is
// governed by an MIT license that can be found in the LICENSE file.

package main

import (
	"net"

	"github.com/pkg/errors"
	"github.com/xtaci/smux"

	"github.com/xtaci/ioreactor/std"
)

// smuxSession multiplexes every proxied connection over a single TCP
// connection to the target, built the same way kcptun's client/server
// build their smux session around a kcp/tcp connection.
type smuxSession struct {
	conn    net.Conn
	session *smux.Session
}

func newSmuxSession(targetAddr string) (*smuxSession, error) {
	conn, err := net.Dial("tcp", targetAddr)
	if err != nil {
		return nil, errors.Wrap(err, "dial target")
	}

	cfg, err := std.DefaultSmuxConfig()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "build smux config")
	}

	sess, err := smux.Client(conn, cfg)
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "open smux session")
	}
	return &smuxSession{conn: conn, session: sess}, nil
}

func (s *smuxSession) OpenStream() (*smux.Stream, error) {
	return s.session.OpenStream()
}

func (s *smuxSession) Close() error {
	s.session.Close()
	return s.conn.Close()
}
