// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package swarm

import (
	"strconv"
	"time"

	"github.com/ledgermesh/swarmd/background"
	"github.com/ledgermesh/swarmd/fault"
	"github.com/ledgermesh/swarmd/peerset"
	"github.com/ledgermesh/swarmd/transport"
)

// relayAllocationLifetime is the lifetime requested from the relay
// collaborator (spec §4.3).
const relayAllocationLifetime = 777 * time.Second

// runFunc adapts a plain function into a background.Process, the way
// peer/listener.go and peer/broadcaster.go each implement Run directly
// on a dedicated type — here the swarm's own methods close over *Swarm
// so one adapter type serves every loop.
type runFunc func(shutdown <-chan struct{})

func (f runFunc) Run(args interface{}, shutdown <-chan struct{}) {
	f(shutdown)
}

// Start brings the swarm up: allocates a relay endpoint first when ICE
// servers are configured and the node is behind NAT, binds the inbound
// socket in every case, re-dials every peer already known
// to the registry, and launches the dispatcher, delta distributor, and
// reply-writer loops (spec §4.9).
func (s *Swarm) Start() error {
	s.runningMutex.Lock()
	defer s.runningMutex.Unlock()

	if s.running {
		return fault.ErrSwarmAlreadyRunning
	}

	if len(s.config.ICEServers) > 0 {
		relay, err := s.config.NewRelayClient(s.config.ICEServers)
		if nil != err {
			return err
		}
		s.relay = relay

		behindNAT, err := relay.IsBehindNAT()
		if nil != err {
			return err
		}
		if behindNAT {
			endpoint, err := relay.AllocateRequest(relayAllocationLifetime)
			if nil != err {
				return err
			}
			s.log.Infof("allocated relay endpoint %s", endpoint)
		}
	}

	router, err := transport.NewRouter(s.priv, s.pub)
	if nil != err {
		return err
	}
	s.router = router

	port, err := router.Bind(bindHostPort(s.config.LocalHost, s.config.LocalPort))
	if nil != err {
		router.Close()
		s.router = nil
		return err
	}
	s.host = hostOnly(s.config.LocalHost)
	s.port = uint16(port)
	s.log.Infof("bound inbound router on %s:%d", s.host, s.port)

	s.running = true

	for _, p := range s.registry.Snapshot() {
		s.registry.Add([]peerset.Peer{p}, time.Now().UTC(), true)
	}

	processes := background.Processes{
		runFunc(s.runDispatcher),
		runFunc(s.runDistributor),
		runFunc(s.runReplyWriter),
	}
	if nil != s.relay {
		processes = append(processes, runFunc(s.runAllocationRefresh))
	}
	s.background = background.Start(processes, nil)

	return nil
}

// Stop announces departure to every known peer, disposes every socket,
// and halts the background loops (spec §4.9).
func (s *Swarm) Stop() {
	s.runningMutex.Lock()
	defer s.runningMutex.Unlock()

	if !s.running {
		return
	}

	now := time.Now().UTC()
	s.registry.Remove([]peerset.Peer{s.selfPeer()}, now)
	s.distribute(false)

	if nil != s.background {
		s.background.Stop()
		s.background = nil
	}

	if nil != s.router {
		s.router.Shutdown()
		s.router.Close()
		s.router = nil
	}
	s.registry.Clear()

	s.running = false
}

// runAllocationRefresh refreshes the relay allocation at
// lifetime-1 minute, per spec §4.9/§5.
func (s *Swarm) runAllocationRefresh(shutdown <-chan struct{}) {
	lifetime := relayAllocationLifetime
	for {
		select {
		case <-time.After(lifetime - allocationMargin):
			newLifetime, err := s.relay.RefreshAllocation(relayAllocationLifetime)
			if nil != err {
				s.log.Errorf("refresh relay allocation: %v", err)
				continue
			}
			lifetime = newLifetime
		case <-shutdown:
			return
		}
	}
}

func bindHostPort(host string, port uint16) string {
	if "" == host {
		host = "0.0.0.0"
	}
	return host + ":" + portString(port)
}

func hostOnly(host string) string {
	if "" == host {
		return "0.0.0.0"
	}
	return host
}

func portString(port uint16) string {
	return strconv.Itoa(int(port))
}
