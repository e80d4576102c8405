// Copyright (c) 2024 The ioreactor Authors. Use of this source code is
// governed by an MIT license that can be found in the LICENSE file.

package ioreactor

// Interest is the set of readiness kinds a slab entry wants the notifier to
// watch for.
type Interest int

const (
	InterestRead Interest = iota + 1
	InterestWrite
	InterestReadWrite
)

// actionKind discriminates the three verdicts a state-machine operation can
// hand back to the dispatcher.
type actionKind int

const (
	kindWait actionKind = iota
	kindRegister
	kindRemove
)

// Action is the verdict every state-machine operation returns: do nothing
// (a callback is already parked), (re-)register interest with the notifier,
// or drop the slab entry.
type Action struct {
	kind     actionKind
	interest Interest
}

// Wait asks the dispatcher to do nothing; a callback has already been
// parked and will post a message when it fires.
var Wait = Action{kind: kindWait}

// Register asks the dispatcher to (re-)register the socket with the
// notifier, edge-triggered and one-shot, for the given interest.
func Register(i Interest) Action {
	return Action{kind: kindRegister, interest: i}
}

// Remove asks the dispatcher to drop the slab entry.
var Remove = Action{kind: kindRemove}
