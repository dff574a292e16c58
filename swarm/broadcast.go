// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package swarm

import (
	"github.com/ledgermesh/swarmd/wire"
)

// BroadcastBlocks announces newly appended blocks to every outbound
// peer as a BlockHashes message (spec §4.9).
func (s *Swarm) BroadcastBlocks(hashes []wire.Hash) {
	frames := wire.Encode(s.priv, wire.KindBlockHashes, nil, wire.EncodeBlockHashes(s.self, hashes))
	s.fanOut(frames)
}

// BroadcastTxs announces newly staged transactions to every outbound
// peer as a TxIds message (spec §4.9).
func (s *Swarm) BroadcastTxs(ids []wire.Hash) {
	frames := wire.Encode(s.priv, wire.KindTxIds, nil, wire.EncodeTxIds(s.self, ids))
	s.fanOut(frames)
}

// fanOut unicasts frames to every outbound socket with a 300ms
// per-send timeout, tolerating per-dealer failures.
func (s *Swarm) fanOut(frames [][]byte) {
	for addr, sock := range s.registry.Sockets() {
		if err := sock.Send(frames, sendTimeout); nil != err {
			s.log.Debugf("broadcast to %s: %v", addr, err)
		}
	}
}
