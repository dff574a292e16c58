// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package swarm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ledgermesh/swarmd/chainsync"
	"github.com/ledgermesh/swarmd/fault"
	"github.com/ledgermesh/swarmd/identity"
	"github.com/ledgermesh/swarmd/peerset"
)

func TestNewRequiresHostOrIceServers(t *testing.T) {
	priv, err := newConfigPrivateKey(t)
	assert.NoError(t, err)

	_, err = New(Configuration{PrivateKey: priv}, chainsync.NewMemChain())

	assert.Equal(t, fault.ErrMissingHostOrIceServers, err)
}

func newConfigPrivateKey(t *testing.T) (identity.PrivateKey, error) {
	_, priv, err := identity.Generate()
	assert.NoError(t, err)
	return priv, nil
}

func TestNewSucceedsWithLocalHost(t *testing.T) {
	priv, err := newConfigPrivateKey(t)
	assert.NoError(t, err)

	s, err := New(Configuration{PrivateKey: priv, LocalHost: "127.0.0.1"}, chainsync.NewMemChain())

	assert.NoError(t, err)
	assert.NotNil(t, s)
	assert.False(t, s.IsRunning())
	assert.Equal(t, priv.PublicKey().Address(), s.Self())
}

func TestAddPeerBeforeStartDoesNotDial(t *testing.T) {
	priv, err := newConfigPrivateKey(t)
	assert.NoError(t, err)

	dialed := false
	s, err := New(Configuration{PrivateKey: priv, LocalHost: "127.0.0.1"}, chainsync.NewMemChain())
	assert.NoError(t, err)
	s.registry = peerset.NewRegistry(s.pub, func(peerset.Peer) (peerset.Socket, error) {
		dialed = true
		return nil, nil
	})

	peer, _ := newTestPeer(t)
	accepted := s.AddPeer(peer)

	assert.True(t, accepted)
	assert.False(t, dialed)
	assert.True(t, s.registry.Contains(peer.Address))
}
