// Copyright (c) 2024 The ioreactor Authors. Use of this source code is
// governed by an MIT license that can be found in the LICENSE file.

package std

import (
	"io"

	"github.com/xtaci/ioreactor/async"
)

const bufSize = 4096

// WrapReadWriteCloser bridges a blocking io.ReadWriteCloser — typically one
// leg of a multiplexed smux session, which the reactor's notifier does not
// drive directly — onto an async Sink/Source pair shaped exactly like the
// ones the reactor's own sockets expose, so both can be relayed with the
// same pump loop.
func WrapReadWriteCloser(rwc io.ReadWriteCloser) (*async.Sink[[]byte], *async.Source[[]byte]) {
	readSink, readSource := async.NewPair[[]byte]()
	writeSink, writeSource := async.NewPair[[]byte]()

	go func() {
		buf := make([]byte, bufSize)
		for {
			n, err := rwc.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				if _, sendErr := readSink.Send(chunk).Wait(); sendErr != nil {
					rwc.Close()
					return
				}
			}
			if err != nil {
				if err == io.EOF {
					readSink.Close()
				} else {
					readSink.Fail(err)
				}
				return
			}
		}
	}()

	go func() {
		src := writeSource
		for {
			item, tail := src.Receive().Wait()
			if item.Err != nil {
				rwc.Close()
				return
			}
			if _, err := rwc.Write(item.Value); err != nil {
				src.Close()
				rwc.Close()
				return
			}
			src = tail
		}
	}()

	return writeSink, readSource
}
