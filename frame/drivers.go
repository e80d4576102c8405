// Copyright (c) 2024 The ioreactor Authors. Use of this source code is
// governed by an MIT license that can be found in the LICENSE file.

package frame

import (
	"io"

	"github.com/xtaci/ioreactor/async"
)

// Frame lazily re-chunks src through f, yielding every complete frame
// followed by f's final Flush (if non-empty) and then end-of-stream. Any
// upstream failure is preserved and forwarded to the returned Source's
// consumer unchanged.
//
// The driving goroutine pulls from src only when f is dry and pushes to the
// returned Source only once its consumer has registered demand — the same
// back-pressure the async package already provides for a plain byte Source,
// just relayed through a re-chunking step.
func Frame(src *async.Source[[]byte], f Framer) *async.Source[[]byte] {
	sink, out := async.NewPair[[]byte]()

	go func() {
		for {
			if fr, ok := f.Next(); ok {
				if _, err := sink.Send(fr).Wait(); err != nil {
					return
				}
				continue
			}

			item, tail := src.Receive().Wait()
			switch {
			case item.Err == io.EOF:
				if fr, ok := f.Flush(); ok {
					sink.Send(fr).Wait()
				}
				sink.Close()
				return
			case item.Err != nil:
				sink.Fail(item.Err)
				return
			default:
				f.Buffer(item.Value)
				src = tail
			}
		}
	}()

	return out
}

// Head is the result of FrameOne: at most one frame plus the unconsumed
// remainder of the original stream with any surplus bytes already at its
// head. HasFrame is false only when the upstream Source ended before a
// single complete frame (or flushed remainder) was available.
type Head struct {
	Frame    []byte
	Rest     *async.Source[[]byte]
	HasFrame bool
}

// FrameOne pulls just enough of src to produce one frame (or, failing that,
// whatever Flush returns at end-of-stream) and resolves with that frame
// plus a Source for everything after it — the surplus bytes the Framer had
// already buffered beyond the first frame are replayed at the head of Rest
// before Rest forwards the rest of the original upstream.
func FrameOne(src *async.Source[[]byte], f Framer) *async.Future[Head] {
	complete, future := async.NewFuture[Head]()

	go func() {
		for {
			if fr, ok := f.Next(); ok {
				rest := src
				if surplus, ok := f.Flush(); ok {
					rest = prepend(surplus, src)
				}
				complete.Complete(Head{Frame: fr, Rest: rest, HasFrame: true})
				return
			}

			item, tail := src.Receive().Wait()
			switch {
			case item.Err == io.EOF:
				if fr, ok := f.Flush(); ok {
					complete.Complete(Head{Frame: fr, Rest: empty[[]byte](), HasFrame: true})
				} else {
					complete.Complete(Head{Rest: empty[[]byte](), HasFrame: false})
				}
				return
			case item.Err != nil:
				complete.Fail(item.Err)
				return
			default:
				f.Buffer(item.Value)
				src = tail
			}
		}
	}()

	return future
}

// prepend builds a Source that yields head first, then forwards rest
// unchanged (including its eventual end-of-stream or failure).
func prepend(head []byte, rest *async.Source[[]byte]) *async.Source[[]byte] {
	sink, out := async.NewPair[[]byte]()

	go func() {
		if len(head) > 0 {
			if _, err := sink.Send(head).Wait(); err != nil {
				return
			}
		}
		for {
			item, tail := rest.Receive().Wait()
			switch {
			case item.Err == io.EOF:
				sink.Close()
				return
			case item.Err != nil:
				sink.Fail(item.Err)
				return
			default:
				if _, err := sink.Send(item.Value).Wait(); err != nil {
					return
				}
				rest = tail
			}
		}
	}()

	return out
}

// empty returns a Source that immediately yields end-of-stream.
func empty[T any]() *async.Source[T] {
	sink, out := async.NewPair[T]()
	sink.Close()
	return out
}
