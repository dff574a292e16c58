// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package swarm

import (
	"bytes"

	"github.com/ledgermesh/swarmd/chainsync"
	"github.com/ledgermesh/swarmd/fault"
	"github.com/ledgermesh/swarmd/identity"
	"github.com/ledgermesh/swarmd/peerset"
	"github.com/ledgermesh/swarmd/wire"
)

// processBlockHashes reconciles the local chain against a BlockHashes
// announcement (spec §4.7). Everything from branch-point negotiation
// through the final swap runs under blockSyncMutex so only one
// reconciliation is ever in flight.
//
// Block.Index/PreviousHash are not carried on the wire (the encoded
// block body is opaque, §1) so this engine derives them from chain
// position instead of decoding: PreviousHash chains from the
// negotiated branch point through the announced hash sequence, and
// Index continues from the working chain's tip at selection time.
func (s *Swarm) processBlockHashes(sender identity.Address, hashes []wire.Hash) {
	s.blockSyncMutex.Lock()
	defer s.blockSyncMutex.Unlock()

	if 0 == len(hashes) {
		return
	}
	oldestHash := hashes[0]
	latestHash := hashes[len(hashes)-1]

	if s.chain.HasBlock(latestHash) {
		return
	}

	peer, err := s.registry.Lookup(sender)
	if nil != err {
		s.log.Debugf("block hashes from unknown sender %s: %v", sender, err)
		return
	}
	sock, ok := s.registry.SocketFor(sender)
	if !ok {
		s.log.Debugf("no outbound socket for %s", sender)
		return
	}

	tip, hasTip := s.chain.Tip()

	var branchPoint wire.Hash
	if hasTip {
		branchPoint, err = s.negotiateBranchPoint(sock, oldestHash)
		if nil != err {
			s.log.Errorf("negotiate branch point with %s: %v", peer.Address, err)
			return
		}
	}

	working, isLive, baseIndex, err := s.selectWorkingChain(branchPoint, hasTip, tip)
	if nil != err {
		s.log.Errorf("select working chain: %v", err)
		return
	}

	blocks, err := s.fetchBlocks(sock, hashes)
	if nil != err {
		s.log.Errorf("fetch blocks from %s: %v", peer.Address, err)
		return
	}
	chainBlocks(blocks, branchPoint, baseIndex)
	latest := blocks[len(blocks)-1]

	if hasTip {
		if latest.Index < tip.Index {
			return
		}
		if latest.Index == tip.Index && !hasSmallerDigest(latest.Hash, tip.Hash) {
			return
		}
	}

	if err := s.fillAncestors(sock, working, blocks[0]); nil != err {
		s.log.Errorf("fill ancestors from %s: %v", peer.Address, err)
		return
	}

	for _, b := range blocks {
		if err := working.Append(b); nil != err {
			s.log.Errorf("append block %v: %v", b.Hash, err)
			return
		}
	}

	if !isLive {
		s.chain.Swap(working)
	}

	s.events.BlockReceived.Set()
}

// chainBlocks assigns PreviousHash/Index to a contiguous block
// sequence whose first element follows branchPoint at baseIndex+1.
func chainBlocks(blocks []chainsync.Block, branchPoint wire.Hash, baseIndex uint64) {
	prev := branchPoint
	for i := range blocks {
		blocks[i].PreviousHash = prev
		blocks[i].Index = baseIndex + 1 + uint64(i)
		prev = blocks[i].Hash
	}
}

// fetchBlocks issues GetBlocks for hashes and decodes the streamed
// Block replies in order (spec §4.7 step 2).
func (s *Swarm) fetchBlocks(sock peerset.Socket, hashes []wire.Hash) ([]chainsync.Block, error) {
	request := wire.Encode(s.priv, wire.KindGetBlocks, nil, wire.EncodeGetBlocks(hashes))
	if err := sock.Send(request, sendTimeout); nil != err {
		return nil, err
	}

	blocks := make([]chainsync.Block, 0, len(hashes))
	for _, h := range hashes {
		frames, err := sock.Receive(replyTimeout)
		if nil != err {
			return nil, err
		}
		msg, _, err := wire.Parse(frames, true)
		if nil != err {
			return nil, err
		}
		blocks = append(blocks, chainsync.Block{
			Hash:    h,
			Encoded: wire.DecodeBlock(msg.Payload),
		})
	}
	return blocks, nil
}

// negotiateBranchPoint asks sender for hashes stopping at oldest and
// returns the first one, the deepest common ancestor (spec §4.7 step
// 4).
func (s *Swarm) negotiateBranchPoint(sock peerset.Socket, oldest wire.Hash) (wire.Hash, error) {
	locator := s.chain.BlockLocator()
	request := wire.Encode(s.priv, wire.KindGetBlockHashes, nil, wire.EncodeGetBlockHashes(locator, &oldest))
	if err := sock.Send(request, sendTimeout); nil != err {
		return wire.Hash{}, err
	}
	frames, err := sock.Receive(replyTimeout)
	if nil != err {
		return wire.Hash{}, err
	}
	msg, _, err := wire.Parse(frames, true)
	if nil != err {
		return wire.Hash{}, err
	}
	_, replyHashes, err := wire.DecodeBlockHashes(msg.Payload)
	if nil != err {
		return wire.Hash{}, err
	}
	if 0 == len(replyHashes) {
		return wire.Hash{}, fault.ErrEmptyBlockHashesReply
	}
	return replyHashes[0], nil
}

// selectWorkingChain picks the chain a reconciliation mutates and the
// index its first new block continues from: the live chain when the
// branch point is its tip (or there is no tip yet), a fresh
// genesis-shared chain when the branch point is unknown locally, or a
// fork at the branch point otherwise (spec §4.7 step 5).
func (s *Swarm) selectWorkingChain(branchPoint wire.Hash, hasTip bool, tip chainsync.Block) (working chainsync.Chain, isLive bool, baseIndex uint64, err error) {
	if !hasTip || branchPoint == tip.Hash {
		base := uint64(0)
		if hasTip {
			base = tip.Index
		}
		return s.chain, true, base, nil
	}
	if !s.chain.HasBlock(branchPoint) {
		return chainsync.NewMemChain(), false, 0, nil
	}
	forked, err := s.chain.Fork(branchPoint)
	if nil != err {
		return nil, false, 0, err
	}
	forkedTip, _ := forked.Tip()
	return forked, false, forkedTip.Index, nil
}

// fillAncestors walks backward from working's tip until it reaches
// oldest's immediate predecessor, retrying the whole loop up to
// fillLoopRetries times on error (spec §4.7 step 6).
func (s *Swarm) fillAncestors(sock peerset.Socket, working chainsync.Chain, oldest chainsync.Block) error {
	var lastErr error
	for attempt := 0; attempt < fillLoopRetries; attempt++ {
		if err := s.fillAncestorsOnce(sock, working, oldest); nil != err {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

func (s *Swarm) fillAncestorsOnce(sock peerset.Socket, working chainsync.Chain, oldest chainsync.Block) error {
	for {
		tip, hasTip := working.Tip()
		if hasTip && tip.Hash == oldest.PreviousHash {
			return nil
		}

		locator := working.BlockLocator()
		request := wire.Encode(s.priv, wire.KindGetBlockHashes, nil, wire.EncodeGetBlockHashes(locator, &oldest.PreviousHash))
		if err := sock.Send(request, sendTimeout); nil != err {
			return err
		}
		frames, err := sock.Receive(replyTimeout)
		if nil != err {
			return err
		}
		msg, _, err := wire.Parse(frames, true)
		if nil != err {
			return err
		}
		_, hashes, err := wire.DecodeBlockHashes(msg.Payload)
		if nil != err {
			return err
		}
		if hasTip && len(hashes) > 0 {
			hashes = hashes[1:]
		}
		if 0 == len(hashes) {
			return nil
		}

		blocks, err := s.fetchBlocks(sock, hashes)
		if nil != err {
			return err
		}
		baseIndex := uint64(0)
		if hasTip {
			baseIndex = tip.Index
		}
		chainBlocks(blocks, tip.Hash, baseIndex)
		for _, b := range blocks {
			if err := working.Append(b); nil != err {
				return err
			}
		}
	}
}

// hasSmallerDigest reports whether remote sorts lower than local,
// breaking ties on equal-height BlockHashes announcements so the
// network converges deterministically (grounded on
// peer/connector.go's hasSmallerDigestThanLocal).
func hasSmallerDigest(remote, local wire.Hash) bool {
	return bytes.Compare(remote[:], local[:]) < 0
}
