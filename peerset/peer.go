// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package peerset tracks known peers and their last-seen timestamps,
// a parallel map of recently removed peers, and answers membership
// queries. It has no transport import: dialing is injected as a
// function, mirroring how peer/connector.go keeps the socket-owning
// upstream.Upstream separate from its own bookkeeping.
package peerset

import (
	"time"

	"github.com/ledgermesh/swarmd/identity"
)

// Peer is a remote node's identity plus endpoint. Two peers are equal
// by public key and endpoint; Peer is immutable after construction.
type Peer struct {
	PublicKey identity.PublicKey
	Address   identity.Address
	Host      string
	Port      uint16
}

// NewPeer constructs a Peer, deriving Address from PublicKey.
func NewPeer(pub identity.PublicKey, host string, port uint16) Peer {
	return Peer{
		PublicKey: pub,
		Address:   pub.Address(),
		Host:      host,
		Port:      port,
	}
}

// Equal reports whether two peers share both public key and endpoint.
func (p Peer) Equal(other Peer) bool {
	return p.PublicKey == other.PublicKey && p.Host == other.Host && p.Port == other.Port
}

// entry is the last-seen (or removed) timestamp recorded for a peer.
type entry struct {
	peer      Peer
	timestamp time.Time
}
