// Copyright (c) 2024 The ioreactor Authors. Use of this source code is
// governed by an MIT license that can be found in the LICENSE file.

package async

import (
	"io"
	"testing"
	"time"
)

func TestSendReceiveRoundTrip(t *testing.T) {
	sink, source := NewPair[int]()

	busy := sink.Send(42)

	item, tail := source.Receive().Wait()
	if item.Err != nil {
		t.Fatalf("unexpected error: %v", item.Err)
	}
	if item.Value != 42 {
		t.Fatalf("got %d, want 42", item.Value)
	}
	if tail != source {
		t.Fatalf("tail should be the same Source for a single-consumer pull chain")
	}

	if _, err := busy.Wait(); err != nil {
		t.Fatalf("busy resolved with error: %v", err)
	}
}

func TestSendBlocksUntilDemand(t *testing.T) {
	sink, source := NewPair[int]()

	busy := sink.Send(1)

	if _, _, ready := busy.Poll(); ready {
		t.Fatalf("busy resolved before the consumer registered demand")
	}

	source.Receive()

	deadline := time.After(time.Second)
	for {
		if _, err, ready := busy.Poll(); ready {
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("busy never resolved after demand was registered")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestCloseSignalsEndOfStream(t *testing.T) {
	sink, source := NewPair[int]()
	sink.Close()

	item, _ := source.Receive().Wait()
	if item.Err != io.EOF {
		t.Fatalf("got err %v, want io.EOF", item.Err)
	}
}

func TestConsumerDropAbortsPendingSend(t *testing.T) {
	sink, source := NewPair[int]()
	source.Close()

	if _, err := sink.Send(7).Wait(); err != ErrAborted {
		t.Fatalf("got err %v, want ErrAborted", err)
	}
}

func TestFailDeliversFailure(t *testing.T) {
	sink, source := NewPair[int]()
	boom := io.ErrUnexpectedEOF
	sink.Fail(boom)

	item, _ := source.Receive().Wait()
	if item.Err != boom {
		t.Fatalf("got err %v, want %v", item.Err, boom)
	}
}

func TestFutureCompleteRoundTrip(t *testing.T) {
	complete, future := NewFuture[string]()
	complete.Complete("hello")

	item, _ := future.Receive().Wait()
	if item.Err != nil {
		t.Fatalf("unexpected error: %v", item.Err)
	}
	if item.Value != "hello" {
		t.Fatalf("got %q, want %q", item.Value, "hello")
	}
}
