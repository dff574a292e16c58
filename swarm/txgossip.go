// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package swarm

import (
	"github.com/ledgermesh/swarmd/chainsync"
	"github.com/ledgermesh/swarmd/identity"
	"github.com/ledgermesh/swarmd/wire"
)

// processTxIds handles an inbound TxIds announcement: fetch whatever
// transactions are not already staged and stage them (spec §4.8).
func (s *Swarm) processTxIds(sender identity.Address, ids []wire.Hash) {
	if 0 == len(ids) {
		return
	}

	unknown := make([]wire.Hash, 0, len(ids))
	for _, id := range ids {
		if !s.chain.HasTransaction(id) {
			unknown = append(unknown, id)
		}
	}
	if 0 == len(unknown) {
		return
	}

	sock, ok := s.registry.SocketFor(sender)
	if !ok {
		s.log.Debugf("no outbound socket for tx gossip sender %s", sender)
		return
	}

	request := wire.Encode(s.priv, wire.KindGetTxs, nil, wire.EncodeGetTxs(unknown))
	if err := sock.Send(request, sendTimeout); nil != err {
		s.log.Errorf("request txs from %s: %v", sender, err)
		return
	}

	txs := make([]chainsync.Tx, 0, len(unknown))
	for _, id := range unknown {
		frames, err := sock.Receive(replyTimeout)
		if nil != err {
			s.log.Errorf("receive tx from %s: %v", sender, err)
			return
		}
		msg, _, err := wire.Parse(frames, true)
		if nil != err {
			s.log.Errorf("parse tx reply from %s: %v", sender, err)
			return
		}
		txs = append(txs, chainsync.Tx{ID: id, Encoded: wire.DecodeTx(msg.Payload)})
	}

	if err := s.chain.StageTransactions(txs); nil != err {
		s.log.Errorf("stage transactions: %v", err)
		return
	}

	s.events.TxReceived.Set()
}
