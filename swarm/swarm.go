// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package swarm

import (
	"fmt"
	"sync"
	"time"

	"github.com/bitmark-inc/logger"

	"github.com/ledgermesh/swarmd/background"
	"github.com/ledgermesh/swarmd/chainsync"
	"github.com/ledgermesh/swarmd/fault"
	"github.com/ledgermesh/swarmd/identity"
	"github.com/ledgermesh/swarmd/peerset"
	"github.com/ledgermesh/swarmd/relayhost"
	"github.com/ledgermesh/swarmd/transport"
	"github.com/ledgermesh/swarmd/util"
	"github.com/ledgermesh/swarmd/wire"
)

// Swarm is the peer-to-peer networking core: membership, dispatch, the
// delta distributor, and the block-sync engine, built around one
// inbound router and one outbound dealer per peer (spec §2/§5).
//
// The four named mutexes are acquired in the order listed here,
// matching spec §5's ordering rule: runningMutex, blockSyncMutex,
// receiveMutex, distributeMutex.
type Swarm struct {
	log *logger.L

	config Configuration
	priv   identity.PrivateKey
	pub    identity.PublicKey
	self   identity.Address

	registry *peerset.Registry
	chain    chainsync.Chain
	relay    relayhost.Client
	events   *Events

	runningMutex    sync.Mutex
	blockSyncMutex  sync.Mutex
	receiveMutex    sync.Mutex
	distributeMutex sync.Mutex

	running bool
	router  *transport.Router
	host    string
	port    uint16

	lastDistributed time.Time
	lastReceived    time.Time
	lastSeen        map[identity.Address]time.Time
	tick            uint64

	background *background.T
}

// New constructs a Swarm over chain, not yet started. Either a local
// host or an ICE server list must be configured (spec §6).
func New(config Configuration, chain chainsync.Chain) (*Swarm, error) {
	config = config.withDefaults()

	if "" == config.LocalHost && 0 == len(config.ICEServers) {
		return nil, fault.ErrMissingHostOrIceServers
	}

	pub := config.PrivateKey.PublicKey()

	s := &Swarm{
		log:      logger.New("swarm"),
		config:   config,
		priv:     config.PrivateKey,
		pub:      pub,
		self:     pub.Address(),
		chain:    chain,
		events:   newEvents(),
		lastSeen: make(map[identity.Address]time.Time),
	}
	s.registry = peerset.NewRegistry(pub, s.dial)

	return s, nil
}

// Events exposes the observable auto-reset signals named in spec §6
// (`deltaReceived`, `deltaDistributed`, `txReceived`, `blockReceived`).
func (s *Swarm) Events() *Events {
	return s.events
}

// Self returns the local node's address.
func (s *Swarm) Self() identity.Address {
	return s.self
}

// IsRunning reports whether the swarm has completed Start and not yet
// finished Stop.
func (s *Swarm) IsRunning() bool {
	s.runningMutex.Lock()
	defer s.runningMutex.Unlock()
	return s.running
}

// AddPeer registers a bootstrap peer, dialing it immediately if the
// swarm is already running. Returns true if the peer was accepted
// (spec §4.2's add). Peers advertising a loopback endpoint are
// rejected outright: a remote node can never legitimately be reached
// there, and dialing one would only ever connect back into this
// process or another one sharing the host.
func (s *Swarm) AddPeer(peer peerset.Peer) bool {
	if util.IsLoopback(fmt.Sprintf("%s:%d", peer.Host, peer.Port)) {
		s.log.Warnf("rejecting peer %s with loopback endpoint %s:%d", peer.Address, peer.Host, peer.Port)
		return false
	}
	accepted := s.registry.Add([]peerset.Peer{peer}, time.Now().UTC(), s.IsRunning())
	return len(accepted) > 0
}

// selfPeer builds the Peer record this node advertises as the sender
// of a PeerSetDelta.
func (s *Swarm) selfPeer() peerset.Peer {
	return peerset.Peer{PublicKey: s.pub, Address: s.self, Host: s.host, Port: s.port}
}

// dial performs the handshake described in spec §4.3 against peer,
// returning the registered peerset.Socket. Injected into peerset.Registry
// so peerset never imports transport.
func (s *Swarm) dial(peer peerset.Peer) (peerset.Socket, error) {
	ping := wire.Encode(s.priv, wire.KindPing, nil, wire.EncodePing())

	decodePong := func(frames [][]byte) (int32, error) {
		msg, _, err := wire.Parse(frames, true)
		if nil != err {
			return 0, err
		}
		if wire.KindPong != msg.Kind {
			return 0, fault.ErrInvalidMessage
		}
		return wire.DecodePong(msg.Payload), nil
	}

	return transport.Dial(peer, s.priv, s.pub, ping, decodePong, s.config.LocalProtocolVersion, s.config.DialTimeout)
}
