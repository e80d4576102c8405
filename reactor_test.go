// Copyright (c) 2024 The ioreactor Authors. Use of this source code is
// governed by an MIT license that can be found in the LICENSE file.

package ioreactor

import (
	"net"
	"testing"

	"github.com/xtaci/ioreactor/frame"
)

// TestEchoTwoMessages reproduces the specification's canonical end-to-end
// scenario: a server accepts exactly one connection and echoes every chunk
// it reads; a client sends two messages and frames the echoed replies by
// their own length.
func TestEchoTwoMessages(t *testing.T) {
	r, err := Start()
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer r.Close()

	ln := mustListen(t)
	defer ln.Close()
	addr := ln.Addr().(*net.TCPAddr)

	accepted, err := r.Accept(ln)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		item, _ := accepted.Receive().Wait()
		if item.Err != nil {
			return
		}
		pair := item.Value
		source := pair.Source
		sink := pair.Sink
		for {
			in, tail := source.Receive().Wait()
			if in.Err != nil {
				return
			}
			source = tail
			var sendErr error
			sink, sendErr = sink.Send(in.Value).Wait()
			if sendErr != nil {
				return
			}
		}
	}()

	clientConn, err := net.DialTCP("tcp", nil, addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer clientConn.Close()

	sink, source, err := r.Stream(clientConn)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}

	messages := []string{"Mary had a little lamb", "its fleece was white as snow"}
	for _, m := range messages {
		var sendErr error
		sink, sendErr = sink.Send([]byte(m)).Wait()
		if sendErr != nil {
			t.Fatalf("send %q: %v", m, sendErr)
		}
	}

	for _, want := range messages {
		item, _ := frame.FrameOne(source, frame.NewLen(len(want))).Receive().Wait()
		if item.Err != nil {
			t.Fatalf("unexpected error: %v", item.Err)
		}
		if !item.Value.HasFrame || string(item.Value.Frame) != want {
			t.Fatalf("got %+v, want frame %q", item.Value, want)
		}
		source = item.Value.Rest
	}

	// The reactor drives a duplicate of clientConn's descriptor, so closing
	// clientConn alone would not end the TCP connection; shut down the
	// socket's write side so the server reads end-of-stream.
	clientConn.CloseWrite()
	<-done
}
