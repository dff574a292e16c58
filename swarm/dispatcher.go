// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package swarm

import (
	"github.com/ledgermesh/swarmd/fault"
	"github.com/ledgermesh/swarmd/messagebus"
	"github.com/ledgermesh/swarmd/wire"
)

// runDispatcher polls the inbound router socket and spawns a
// fire-and-forget handler per parsed message, so head-of-line blocking
// never stalls the poll loop (spec §4.5, §9).
func (s *Swarm) runDispatcher(shutdown <-chan struct{}) {
	for {
		select {
		case <-shutdown:
			return
		default:
		}

		frames, ok, stopped, err := s.router.Receive(pollTimeout)
		if stopped {
			return
		}
		if nil != err {
			s.log.Errorf("inbound receive: %v", err)
			continue
		}
		if !ok {
			continue
		}

		msg, routerIdentity, err := wire.Parse(frames, false)
		if nil != err {
			s.log.Debugf("invalid inbound message: %v", err)
			continue
		}

		go s.handleMessage(msg, routerIdentity)
	}
}

// handleMessage dispatches on message kind (spec §4.5 step 3).
func (s *Swarm) handleMessage(msg *wire.Message, routerIdentity []byte) {
	switch msg.Kind {

	case wire.KindPing:
		reply := wire.Encode(s.priv, wire.KindPong, msg.ReplyIdentity, wire.EncodePong(s.config.LocalProtocolVersion))
		messagebus.Send(routerIdentity, reply)

	case wire.KindPeerSetDelta:
		delta, err := wire.DecodePeerSetDelta(msg.Payload)
		if nil != err {
			s.log.Debugf("invalid peer set delta: %v", err)
			return
		}
		s.processDelta(delta)

	case wire.KindGetBlockHashes:
		locator, stop, err := wire.DecodeGetBlockHashes(msg.Payload)
		if nil != err {
			s.log.Debugf("invalid get block hashes: %v", err)
			return
		}
		hashes := s.chain.FindNextHashes(locator, stop, wire.MaxHashes)
		reply := wire.Encode(s.priv, wire.KindBlockHashes, msg.ReplyIdentity, wire.EncodeBlockHashes(s.self, hashes))
		messagebus.Send(routerIdentity, reply)

	case wire.KindGetBlocks:
		hashes, err := wire.DecodeGetBlocks(msg.Payload)
		if nil != err {
			s.log.Debugf("invalid get blocks: %v", err)
			return
		}
		for _, h := range hashes {
			block, found := s.chain.BlockByHash(h)
			if !found {
				continue
			}
			reply := wire.Encode(s.priv, wire.KindBlock, msg.ReplyIdentity, wire.EncodeBlock(block.Encoded))
			messagebus.Send(routerIdentity, reply)
		}

	case wire.KindGetTxs:
		ids, err := wire.DecodeGetTxs(msg.Payload)
		if nil != err {
			s.log.Debugf("invalid get txs: %v", err)
			return
		}
		for _, id := range ids {
			tx, found := s.chain.TransactionByID(id)
			if !found {
				continue
			}
			reply := wire.Encode(s.priv, wire.KindTx, msg.ReplyIdentity, wire.EncodeTx(tx.Encoded))
			messagebus.Send(routerIdentity, reply)
		}

	case wire.KindTxIds:
		sender, ids, err := wire.DecodeTxIds(msg.Payload)
		if nil != err {
			s.log.Debugf("invalid tx ids: %v", err)
			return
		}
		s.processTxIds(sender, ids)

	case wire.KindBlockHashes:
		sender, hashes, err := wire.DecodeBlockHashes(msg.Payload)
		if nil != err {
			s.log.Debugf("invalid block hashes: %v", err)
			return
		}
		s.processBlockHashes(sender, hashes)

	default:
		// wire.Parse already rejects any Kind outside the switch above,
		// so reaching here means the codec and dispatcher have drifted.
		fault.Panicf("unhandled message kind reached the dispatcher: %s", msg.Kind)
	}
}
