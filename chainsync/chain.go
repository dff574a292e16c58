// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chainsync declares the chain collaborator the block-sync
// engine consumes (block/transaction data model, validation and
// persistence are out of scope, §1) and provides an in-memory
// reference implementation used by tests and by the glossary's
// "working chain" concept during reconciliation.
package chainsync

import (
	"github.com/ledgermesh/swarmd/wire"
)

// Block is the minimal shape the sync engine needs: enough to walk
// the chain and identify ancestry. The encoded block body is opaque —
// decoding it is the data model's job, not the swarm's.
type Block struct {
	Hash         wire.Hash
	PreviousHash wire.Hash
	Index        uint64
	Encoded      []byte
}

// Tx is an opaque transaction, identified by id.
type Tx struct {
	ID      wire.Hash
	Encoded []byte
}

// Chain is the collaborator interface consumed by the block-sync
// engine and tx gossip (spec §6). Fork and Swap give the engine a
// transient working chain to mutate in isolation before an atomic
// pointer swap into place.
type Chain interface {
	// Tip returns the current chain head, or ok=false for an empty
	// chain.
	Tip() (block Block, ok bool)

	// HasBlock / HasTransaction answer membership queries used to
	// decide what to fetch.
	HasBlock(hash wire.Hash) bool
	HasTransaction(id wire.Hash) bool

	// BlockByHash / TransactionByID serve GetBlocks/GetTxs requests.
	BlockByHash(hash wire.Hash) (Block, bool)
	TransactionByID(id wire.Hash) (Tx, bool)

	// BlockLocator returns a sparse, exponentially spaced sequence of
	// hashes from the tip backwards, used to negotiate a branch
	// point without sending the full chain.
	BlockLocator() []wire.Hash

	// FindNextHashes returns up to max hashes starting with the
	// deepest locator hash present in this chain (the branch point)
	// and continuing with the hashes after it, stopping at stop if
	// non-nil.
	FindNextHashes(locator []wire.Hash, stop *wire.Hash, max int) []wire.Hash

	// Append adds block onto the current tip. The caller guarantees
	// block.PreviousHash equals the current tip's hash (or the chain
	// is empty and block is the genesis block).
	Append(block Block) error

	// StageTransactions adds txs to the pending transaction index.
	StageTransactions(txs []Tx) error

	// Fork clones this chain up to and including branchPoint into a
	// new, independent Chain.
	Fork(branchPoint wire.Hash) (Chain, error)

	// Swap atomically replaces this chain's contents with other's.
	Swap(other Chain)
}
