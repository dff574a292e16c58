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

// fakeSyncSocket replays a fixed queue of Receive replies, independent
// of what was Sent, matching fakeTxSocket's shape in txgossip_test.go.
type fakeSyncSocket struct {
	sent    [][][]byte
	replies [][][]byte
}

func (s *fakeSyncSocket) Send(frames [][]byte, timeout time.Duration) error {
	s.sent = append(s.sent, frames)
	return nil
}

func (s *fakeSyncSocket) Receive(timeout time.Duration) ([][]byte, error) {
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return reply, nil
}

func (s *fakeSyncSocket) Close() error { return nil }

func syncHash(n byte) wire.Hash {
	var h wire.Hash
	h[0] = n
	return h
}

func TestChainBlocksAssignsSequentialIndexFromBranchPoint(t *testing.T) {
	blocks := []chainsync.Block{
		{Hash: syncHash(1)},
		{Hash: syncHash(2)},
		{Hash: syncHash(3)},
	}
	branchPoint := syncHash(0)

	chainBlocks(blocks, branchPoint, 10)

	assert.Equal(t, branchPoint, blocks[0].PreviousHash)
	assert.Equal(t, uint64(11), blocks[0].Index)
	assert.Equal(t, syncHash(1), blocks[1].PreviousHash)
	assert.Equal(t, uint64(12), blocks[1].Index)
	assert.Equal(t, syncHash(2), blocks[2].PreviousHash)
	assert.Equal(t, uint64(13), blocks[2].Index)
}

func TestHasSmallerDigest(t *testing.T) {
	low := syncHash(1)
	high := syncHash(2)

	assert.True(t, hasSmallerDigest(low, high))
	assert.False(t, hasSmallerDigest(high, low))
	assert.False(t, hasSmallerDigest(low, low))
}

func TestSelectWorkingChainNoTipIsLive(t *testing.T) {
	s := &Swarm{chain: chainsync.NewMemChain()}

	working, isLive, baseIndex, err := s.selectWorkingChain(wire.Hash{}, false, chainsync.Block{})

	assert.NoError(t, err)
	assert.True(t, isLive)
	assert.Same(t, s.chain, working)
	assert.Equal(t, uint64(0), baseIndex)
}

func TestSelectWorkingChainBranchPointAtTipIsLive(t *testing.T) {
	chain := chainsync.NewMemChain()
	assert.NoError(t, chain.Append(chainsync.Block{Hash: syncHash(1), Index: 5}))
	s := &Swarm{chain: chain}
	tip, _ := chain.Tip()

	working, isLive, baseIndex, err := s.selectWorkingChain(syncHash(1), true, tip)

	assert.NoError(t, err)
	assert.True(t, isLive)
	assert.Same(t, chain, working)
	assert.Equal(t, uint64(5), baseIndex)
}

func TestSelectWorkingChainUnknownBranchPointIsFresh(t *testing.T) {
	chain := chainsync.NewMemChain()
	assert.NoError(t, chain.Append(chainsync.Block{Hash: syncHash(1), Index: 5}))
	s := &Swarm{chain: chain}
	tip, _ := chain.Tip()

	working, isLive, baseIndex, err := s.selectWorkingChain(syncHash(99), true, tip)

	assert.NoError(t, err)
	assert.False(t, isLive)
	assert.NotSame(t, chain, working)
	assert.Equal(t, uint64(0), baseIndex)
	if _, ok := working.Tip(); ok {
		t.Errorf("expected a fresh chain to have no tip")
	}
}

func TestSelectWorkingChainKnownForkBranchPoint(t *testing.T) {
	chain := chainsync.NewMemChain()
	assert.NoError(t, chain.Append(chainsync.Block{Hash: syncHash(1), Index: 0}))
	assert.NoError(t, chain.Append(chainsync.Block{Hash: syncHash(2), PreviousHash: syncHash(1), Index: 1}))
	assert.NoError(t, chain.Append(chainsync.Block{Hash: syncHash(3), PreviousHash: syncHash(2), Index: 2}))
	s := &Swarm{chain: chain}
	tip, _ := chain.Tip()

	working, isLive, baseIndex, err := s.selectWorkingChain(syncHash(1), true, tip)

	assert.NoError(t, err)
	assert.False(t, isLive)
	assert.Equal(t, uint64(0), baseIndex)
	forkedTip, ok := working.Tip()
	assert.True(t, ok)
	assert.Equal(t, syncHash(1), forkedTip.Hash)
}

// TestProcessBlockHashesForkAtOrBelowTipLeavesChainUnchanged drives
// processBlockHashes through a known-fork branch point (not the live
// tip) whose announced height ties the local tip but loses the digest
// tie-break. Spec §8's testable property holds for every reconciliation
// path, not only the live-continuation one, so the local chain must be
// left untouched.
func TestProcessBlockHashesForkAtOrBelowTipLeavesChainUnchanged(t *testing.T) {
	pub, priv, err := identity.Generate()
	assert.NoError(t, err)

	chain := chainsync.NewMemChain()
	assert.NoError(t, chain.Append(chainsync.Block{Hash: syncHash(1), Index: 0}))
	assert.NoError(t, chain.Append(chainsync.Block{Hash: syncHash(2), PreviousHash: syncHash(1), Index: 1}))

	forkedBlock := syncHash(3) // loses the tie-break against syncHash(2)

	branchPointReply := wire.Encode(priv, wire.KindBlockHashes, nil, wire.EncodeBlockHashes(pub.Address(), []wire.Hash{syncHash(1)}))
	blockReply := wire.Encode(priv, wire.KindBlock, nil, wire.EncodeBlock([]byte("forked-block")))
	sock := &fakeSyncSocket{replies: [][][]byte{branchPointReply, blockReply}}

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

	s.processBlockHashes(sender.Address, []wire.Hash{forkedBlock})

	tip, ok := chain.Tip()
	assert.True(t, ok)
	assert.Equal(t, syncHash(2), tip.Hash, "local chain must be unchanged when the announced chain doesn't win the tie-break")
	assert.False(t, chain.HasBlock(forkedBlock))
}
