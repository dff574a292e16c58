// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package swarm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ledgermesh/swarmd/chainsync"
	"github.com/ledgermesh/swarmd/identity"
	"github.com/ledgermesh/swarmd/peerset"
	"github.com/ledgermesh/swarmd/wire"
)

type fakeTxSocket struct {
	sent    [][][]byte
	replies [][][]byte
}

func (s *fakeTxSocket) Send(frames [][]byte, timeout time.Duration) error {
	s.sent = append(s.sent, frames)
	return nil
}

func (s *fakeTxSocket) Receive(timeout time.Duration) ([][]byte, error) {
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return reply, nil
}

func (s *fakeTxSocket) Close() error { return nil }

func TestProcessTxIdsFetchesOnlyUnknown(t *testing.T) {
	pub, priv, err := identity.Generate()
	assert.NoError(t, err)

	known := syncHash(1)
	unknown := syncHash(2)

	chain := chainsync.NewMemChain()
	assert.NoError(t, chain.StageTransactions([]chainsync.Tx{{ID: known, Encoded: []byte("known")}}))

	txFrames := wire.Encode(priv, wire.KindTx, nil, wire.EncodeTx([]byte("tx-2")))
	sock := &fakeTxSocket{replies: [][][]byte{txFrames}}

	sender, _ := newTestPeer(t)

	s := &Swarm{
		priv:   priv,
		pub:    pub,
		self:   pub.Address(),
		chain:  chain,
		events: newEvents(),
	}
	s.registry = peerset.NewRegistry(pub, func(peerset.Peer) (peerset.Socket, error) { return sock, nil })
	s.registry.Add([]peerset.Peer{sender}, time.Now().UTC(), true)

	s.processTxIds(sender.Address, []wire.Hash{known, unknown})

	assert.Len(t, sock.sent, 1)
	assert.True(t, chain.HasTransaction(unknown))
	assert.True(t, s.events.TxReceived.Wait(make(chan struct{})))
}

func TestProcessTxIdsNoOpWhenAllKnown(t *testing.T) {
	pub, priv, err := identity.Generate()
	assert.NoError(t, err)

	known := syncHash(1)
	chain := chainsync.NewMemChain()
	assert.NoError(t, chain.StageTransactions([]chainsync.Tx{{ID: known, Encoded: []byte("known")}}))

	sock := &fakeTxSocket{}
	sender, _ := newTestPeer(t)

	s := &Swarm{
		priv:   priv,
		pub:    pub,
		self:   pub.Address(),
		chain:  chain,
		events: newEvents(),
	}
	s.registry = peerset.NewRegistry(pub, func(peerset.Peer) (peerset.Socket, error) { return sock, nil })
	s.registry.Add([]peerset.Peer{sender}, time.Now().UTC(), true)

	s.processTxIds(sender.Address, []wire.Hash{known})

	assert.Empty(t, sock.sent)
}
