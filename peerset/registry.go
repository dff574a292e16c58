// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peerset

import (
	"sync"
	"time"

	"github.com/bitmark-inc/logger"

	"github.com/ledgermesh/swarmd/fault"
	"github.com/ledgermesh/swarmd/identity"
)

// Socket is the handle peerset and the swarm package need for an
// outbound connection; the concrete dealer socket lives in package
// transport.
type Socket interface {
	Send(frames [][]byte, timeout time.Duration) error
	Receive(timeout time.Duration) ([][]byte, error)
	Close() error
}

// DialFunc opens the outbound socket for a peer, performing the
// handshake described in spec §4.3 (Ping/Pong, protocol check).
// Injected so peerset never imports transport, avoiding the cycle
// peerset -> transport -> peerset that socket teardown would
// otherwise require.
type DialFunc func(peer Peer) (Socket, error)

// Registry is the shared peer-membership state: the active map, the
// removed map, and the address-keyed outbound-socket map.
type Registry struct {
	mu sync.Mutex

	log  *logger.L
	self identity.PublicKey
	dial DialFunc

	active  map[identity.Address]entry
	removed map[identity.Address]entry
	sockets map[identity.Address]Socket
}

// NewRegistry constructs an empty registry for the local node
// identified by self, dialing new peers via dial.
func NewRegistry(self identity.PublicKey, dial DialFunc) *Registry {
	log := logger.New("peerset")
	return &Registry{
		log:     log,
		self:    self,
		dial:    dial,
		active:  make(map[identity.Address]entry),
		removed: make(map[identity.Address]entry),
		sockets: make(map[identity.Address]Socket),
	}
}

// Add attempts to dial and register each peer not equal to self.
// running gates whether a dial is attempted at all (construction-time
// adds, before the swarm starts, just record the peer). A peer
// already active with a live socket is left untouched; a peer already
// recorded but still without a socket (added while the swarm wasn't
// running) is redialed here instead of being skipped, so a later
// Start can bring bootstrap peers online. Dial failures with IO,
// Timeout, or DifferentAppProtocolVersion are skipped silently
// (logged); any other error from dial is also skipped, since only
// those three kinds are part of the documented dial contract. Add
// returns the subset of peers that were accepted.
func (r *Registry) Add(peers []Peer, timestamp time.Time, running bool) []Peer {

	r.mu.Lock()
	defer r.mu.Unlock()

	accepted := make([]Peer, 0, len(peers))

	for _, p := range peers {
		if p.PublicKey == r.self {
			continue
		}
		_, hasSocket := r.sockets[p.Address]
		if _, known := r.active[p.Address]; known && hasSocket {
			continue
		}
		if removedEntry, wasRemoved := r.removed[p.Address]; wasRemoved && !timestamp.After(removedEntry.timestamp) {
			continue
		}

		var sock Socket
		if running && nil != r.dial && !hasSocket {
			s, err := r.dial(p)
			if nil != err {
				r.log.Debugf("dial %s failed: %v", p.Address, err)
				continue
			}
			sock = s
		}

		r.active[p.Address] = entry{peer: p, timestamp: timestamp}
		if nil != sock {
			r.sockets[p.Address] = sock
		}
		delete(r.removed, p.Address)
		accepted = append(accepted, p)
	}

	return accepted
}

// Remove records peers in the removed map, closes and drops their
// outbound sockets, and additionally drops any other active peer
// sharing a public key with a removed peer — key-identity dominates
// endpoint changes.
func (r *Registry) Remove(peers []Peer, timestamp time.Time) {

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range peers {
		r.dropAddress(p, timestamp)

		for addr, e := range r.active {
			if addr != p.Address && e.peer.PublicKey == p.PublicKey {
				r.dropAddress(e.peer, timestamp)
			}
		}
	}
}

// dropAddress removes peer's address from the active map, records its
// removal timestamp under its address, and disposes its outbound
// socket. Caller must hold mu.
func (r *Registry) dropAddress(peer Peer, timestamp time.Time) {
	addr := peer.Address
	delete(r.active, addr)
	r.removed[addr] = entry{peer: peer, timestamp: timestamp}
	if sock, ok := r.sockets[addr]; ok {
		if err := sock.Close(); nil != err {
			r.log.Warnf("close socket for %s: %v", addr, err)
		}
		delete(r.sockets, addr)
	}
}

// Clear closes every outbound socket and empties the socket map only
// (spec's stop step: "clear the outbound map"), leaving peers on file
// in the active map so a later Start's re-dial loop still knows who
// to reconnect to — Add now skips the dial only when a live socket is
// still on file, so an emptied socket map is what makes that redial
// happen.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for addr, sock := range r.sockets {
		if err := sock.Close(); nil != err {
			r.log.Warnf("close socket for %s: %v", addr, err)
		}
	}
	r.sockets = make(map[identity.Address]Socket)
}

// Contains reports whether address is in the active map.
func (r *Registry) Contains(address identity.Address) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[address]
	return ok
}

// Lookup returns the active Peer for address, or
// fault.ErrPeerNotFound.
func (r *Registry) Lookup(address identity.Address) (Peer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.active[address]
	if !ok {
		return Peer{}, fault.ErrPeerNotFound
	}
	return e.peer, nil
}

// Count returns the number of active peers.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// Snapshot returns a point-in-time copy of the active peer set,
// avoiding a long-held lock across the network I/O a caller (for
// example the delta distributor) performs with the result —
// peer/connector.go takes the same care via its allClients callback.
func (r *Registry) Snapshot() []Peer {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Peer, 0, len(r.active))
	for _, e := range r.active {
		out = append(out, e.peer)
	}
	return out
}

// AddedSince returns active peers whose last-seen timestamp is
// strictly after since and at most upTo.
func (r *Registry) AddedSince(since, upTo time.Time) []Peer {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Peer, 0)
	for _, e := range r.active {
		if e.timestamp.After(since) && !e.timestamp.After(upTo) {
			out = append(out, e.peer)
		}
	}
	return out
}

// DrainRemoved returns peers in the removed map with timestamp at most
// upTo, and deletes them — they are announced exactly once.
func (r *Registry) DrainRemoved(upTo time.Time) []Peer {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Peer, 0)
	for addr, e := range r.removed {
		if !e.timestamp.After(upTo) {
			out = append(out, e.peer)
			delete(r.removed, addr)
		}
	}
	return out
}

// SocketFor returns the outbound socket registered for address, if
// any.
func (r *Registry) SocketFor(address identity.Address) (Socket, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sockets[address]
	return s, ok
}

// Sockets returns a point-in-time copy of the address -> socket map,
// for broadcast fan-out.
func (r *Registry) Sockets() map[identity.Address]Socket {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[identity.Address]Socket, len(r.sockets))
	for k, v := range r.sockets {
		out[k] = v
	}
	return out
}

// Self returns the local node's public key.
func (r *Registry) Self() identity.PublicKey {
	return r.self
}
