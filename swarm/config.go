// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package swarm is the peer-to-peer networking core: membership
// bookkeeping, the dispatcher, the delta distributor, the block-sync
// engine, and process lifecycle. It is the dominant package, the way
// peer/connector.go dominates the teacher's peer package.
package swarm

import (
	"time"

	"github.com/ledgermesh/swarmd/identity"
	"github.com/ledgermesh/swarmd/relayhost"
)

// Configuration carries the construction parameters for a Swarm,
// mirroring peer.Configuration in peer/setup.go but generalised past
// libucl config-file tags (loading it from a file is an embedder
// concern, out of scope here).
type Configuration struct {
	PrivateKey           identity.PrivateKey
	LocalProtocolVersion int32
	DialTimeout          time.Duration // default 15s
	LocalHost            string        // optional
	LocalPort            uint16        // optional; 0 = ephemeral
	ICEServers           []string      // optional

	// DistributeInterval is the delta distributor's tick period,
	// default 1500ms (spec §4.6).
	DistributeInterval time.Duration

	// NewRelayClient constructs the relay collaborator when
	// ICEServers is non-empty. Required in that case; relayhost ships
	// no concrete implementation (out of scope, §1).
	NewRelayClient func(iceServers []string) (relayhost.Client, error)
}

const (
	defaultDialTimeout        = 15 * time.Second
	defaultDistributeInterval = 1500 * time.Millisecond

	sendTimeout  = 300 * time.Millisecond
	pollTimeout  = 100 * time.Millisecond
	replyTimeout = 100 * time.Millisecond

	fillLoopRetries  = 3
	allocationMargin = 1 * time.Minute

	fullDistributeEvery = 10 // every 10th tick is a full re-sync
)

func (c Configuration) withDefaults() Configuration {
	if 0 == c.DialTimeout {
		c.DialTimeout = defaultDialTimeout
	}
	if 0 == c.DistributeInterval {
		c.DistributeInterval = defaultDistributeInterval
	}
	return c
}
