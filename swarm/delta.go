// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package swarm

import (
	"time"

	"github.com/ledgermesh/swarmd/identity"
	"github.com/ledgermesh/swarmd/peerset"
	"github.com/ledgermesh/swarmd/wire"
)

// runDistributor ticks every DistributeInterval, running a partial
// distribute and, every fullDistributeEvery-th tick, a full one (spec
// §4.6).
func (s *Swarm) runDistributor(shutdown <-chan struct{}) {
	ticker := time.NewTicker(s.config.DistributeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick++
			all := 0 == s.tick%fullDistributeEvery
			s.distribute(all)
		case <-shutdown:
			return
		}
	}
}

// distribute builds and fans out a PeerSetDelta, or does nothing if
// there is nothing to report and all is false (spec §4.6 steps 1-5).
func (s *Swarm) distribute(all bool) {
	s.distributeMutex.Lock()
	defer s.distributeMutex.Unlock()

	now := time.Now().UTC()

	added := s.registry.AddedSince(s.lastDistributed, now)
	removed := s.registry.DrainRemoved(now)

	var existing []peerset.Peer
	if all {
		existing = existingExcluding(s.registry.Snapshot(), added)
	}

	if !all && 0 == len(added) && 0 == len(removed) {
		return
	}

	delta := wire.PeerSetDelta{
		Sender:    s.selfPeer(),
		Timestamp: now,
		Added:     added,
		Removed:   removed,
		Existing:  existing,
	}
	s.lastDistributed = now

	frames := wire.Encode(s.priv, wire.KindPeerSetDelta, nil, wire.EncodePeerSetDelta(delta))

	for addr, sock := range s.registry.Sockets() {
		if err := sock.Send(frames, sendTimeout); nil != err {
			s.log.Debugf("send delta to %s: %v", addr, err)
		}
	}

	s.events.DeltaDistributed.Set()
}

// processDelta applies an inbound PeerSetDelta (spec §4.6 "Inbound
// delta handling").
func (s *Swarm) processDelta(delta wire.PeerSetDelta) {
	firstEncounter := !s.registry.Contains(delta.Sender.Address)
	if firstEncounter {
		delta.Added = append(append([]peerset.Peer(nil), delta.Added...), delta.Sender)
	}

	s.receiveMutex.Lock()

	removed := excludingPublicKey(delta.Removed, s.pub)
	s.registry.Remove(removed, delta.Timestamp)

	union := append(append([]peerset.Peer(nil), delta.Added...), delta.Existing...)
	union = excludingByPublicKey(union, removed)
	s.registry.Add(union, delta.Timestamp, s.IsRunning())

	now := time.Now().UTC()
	s.lastReceived = now
	s.lastSeen[delta.Sender.Address] = now

	s.receiveMutex.Unlock()

	s.events.DeltaReceived.Set()

	if firstEncounter {
		s.distribute(true)
	}
}

// existingExcluding returns snapshot peers not present in added, by
// address, used to build the "existing" list of a full re-sync delta.
func existingExcluding(snapshot, added []peerset.Peer) []peerset.Peer {
	skip := make(map[identity.Address]struct{}, len(added))
	for _, p := range added {
		skip[p.Address] = struct{}{}
	}
	out := make([]peerset.Peer, 0, len(snapshot))
	for _, p := range snapshot {
		if _, found := skip[p.Address]; !found {
			out = append(out, p)
		}
	}
	return out
}

// excludingPublicKey drops any peer whose public key matches self —
// removal announcements never apply to the local node's own entry.
func excludingPublicKey(peers []peerset.Peer, self identity.PublicKey) []peerset.Peer {
	out := make([]peerset.Peer, 0, len(peers))
	for _, p := range peers {
		if p.PublicKey != self {
			out = append(out, p)
		}
	}
	return out
}

// excludingByPublicKey drops any peer from peers that shares a public
// key with one in excluded.
func excludingByPublicKey(peers, excluded []peerset.Peer) []peerset.Peer {
	skip := make(map[identity.PublicKey]struct{}, len(excluded))
	for _, p := range excluded {
		skip[p.PublicKey] = struct{}{}
	}
	out := make([]peerset.Peer, 0, len(peers))
	for _, p := range peers {
		if _, found := skip[p.PublicKey]; !found {
			out = append(out, p)
		}
	}
	return out
}
