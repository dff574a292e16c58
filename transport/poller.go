// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package transport owns the inbound router socket and opens the
// outbound dealer sockets, one per peer (the address-keyed map that
// holds them lives in peerset.Registry), the way zmqutil provides the
// primitives peer/listener.go and peer/connector.go build on.
package transport

import (
	"sync"
	"time"

	zmq "github.com/pebbe/zmq4"
)

// Poller wraps zmq.Poller to allow removing a single socket from an
// otherwise-live poll set, which the raw zmq4 API does not support
// directly.
type Poller struct {
	mu      sync.Mutex
	sockets map[*zmq.Socket]zmq.State
	poller  *zmq.Poller
}

// NewPoller creates an empty poller.
func NewPoller() *Poller {
	return &Poller{
		sockets: make(map[*zmq.Socket]zmq.State),
		poller:  zmq.NewPoller(),
	}
}

// Add registers socket for events, ignoring duplicate adds.
func (p *Poller) Add(socket *zmq.Socket, events zmq.State) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.sockets[socket]; ok {
		return
	}
	p.sockets[socket] = events
	p.poller.Add(socket, events)
}

// Remove drops socket from the poll set.
func (p *Poller) Remove(socket *zmq.Socket) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.sockets[socket]; !ok {
		return
	}
	delete(p.sockets, socket)

	rebuilt := zmq.NewPoller()
	for s, events := range p.sockets {
		rebuilt.Add(s, events)
	}
	p.poller = rebuilt
}

// Poll blocks for up to timeout waiting for any registered socket to
// become ready.
func (p *Poller) Poll(timeout time.Duration) ([]zmq.Polled, error) {
	p.mu.Lock()
	poller := p.poller
	p.mu.Unlock()
	return poller.Poll(timeout)
}
