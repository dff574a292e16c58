// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package swarm

// Signal is a one-shot auto-reset latch: Set releases at most one
// waiter, and callers that want to observe every occurrence must
// re-arm by calling Wait again after each one returns (spec §9).
type Signal struct {
	ch chan struct{}
}

// NewSignal creates an unset signal.
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{}, 1)}
}

// Set releases one waiter. Repeated sets before a Wait consumes them
// coalesce into a single pending release.
func (s *Signal) Set() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// Wait blocks until Set is called, or shutdown fires.
func (s *Signal) Wait(shutdown <-chan struct{}) (fired bool) {
	select {
	case <-s.ch:
		return true
	case <-shutdown:
		return false
	}
}

// Events groups the observable auto-reset signals named in spec §6.
type Events struct {
	DeltaReceived   *Signal
	DeltaDistributed *Signal
	TxReceived      *Signal
	BlockReceived   *Signal
}

func newEvents() *Events {
	return &Events{
		DeltaReceived:    NewSignal(),
		DeltaDistributed: NewSignal(),
		TxReceived:       NewSignal(),
		BlockReceived:    NewSignal(),
	}
}
