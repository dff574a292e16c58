// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainsync

import (
	"sync"

	"github.com/ledgermesh/swarmd/fault"
	"github.com/ledgermesh/swarmd/wire"
)

// localityWindow is how many of the most recent blocks the locator
// includes one-by-one before switching to exponential spacing.
const localityWindow = 10

// MemChain is an in-memory Chain used by tests and as the target of a
// fresh, genesis-shared fork when the announced branch point is not
// in the local block index. Block lookup is O(1) via index, resolving
// the "ContainsKey... potentially expensive" note in spec §9.
type MemChain struct {
	mu sync.RWMutex

	blocks []Block
	index  map[wire.Hash]int // hash -> position in blocks

	transactions map[wire.Hash]Tx
}

// NewMemChain creates an empty chain.
func NewMemChain() *MemChain {
	return &MemChain{
		index:        make(map[wire.Hash]int),
		transactions: make(map[wire.Hash]Tx),
	}
}

var _ Chain = (*MemChain)(nil)

func (c *MemChain) Tip() (Block, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if 0 == len(c.blocks) {
		return Block{}, false
	}
	return c.blocks[len(c.blocks)-1], true
}

func (c *MemChain) HasBlock(hash wire.Hash) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.index[hash]
	return ok
}

func (c *MemChain) HasTransaction(id wire.Hash) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.transactions[id]
	return ok
}

func (c *MemChain) BlockByHash(hash wire.Hash) (Block, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.index[hash]
	if !ok {
		return Block{}, false
	}
	return c.blocks[i], true
}

func (c *MemChain) TransactionByID(id wire.Hash) (Tx, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tx, ok := c.transactions[id]
	return tx, ok
}

// BlockLocator returns the most recent localityWindow hashes
// one-by-one, then exponentially spaced hashes down to genesis.
func (c *MemChain) BlockLocator() []wire.Hash {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return locatorFrom(c.blocks)
}

func locatorFrom(blocks []Block) []wire.Hash {
	n := len(blocks)
	if 0 == n {
		return nil
	}

	out := make([]wire.Hash, 0, localityWindow+32)
	step := 1
	i := n - 1
	count := 0
	for i >= 0 {
		out = append(out, blocks[i].Hash)
		count++
		if count >= localityWindow {
			step *= 2
		}
		i -= step
	}
	return out
}

// FindNextHashes locates the deepest locator hash present in this
// chain (locator is ordered tip-backwards, so the first match is the
// deepest common ancestor) and returns up to max hashes starting with
// that ancestor and continuing with the hashes after it, not
// exceeding stop.
func (c *MemChain) FindNextHashes(locator []wire.Hash, stop *wire.Hash, max int) []wire.Hash {
	c.mu.RLock()
	defer c.mu.RUnlock()

	start := -1
	for _, h := range locator {
		if i, ok := c.index[h]; ok {
			start = i
			break
		}
	}
	if -1 == start {
		return nil
	}

	out := make([]wire.Hash, 0, max)
	for i := start; i < len(c.blocks) && len(out) < max; i++ {
		out = append(out, c.blocks[i].Hash)
		if nil != stop && c.blocks[i].Hash == *stop {
			break
		}
	}
	return out
}

func (c *MemChain) Append(block Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index[block.Hash] = len(c.blocks)
	c.blocks = append(c.blocks, block)
	return nil
}

func (c *MemChain) StageTransactions(txs []Tx) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, tx := range txs {
		c.transactions[tx.ID] = tx
	}
	return nil
}

// Fork clones the chain up to and including branchPoint into a new,
// independent MemChain.
func (c *MemChain) Fork(branchPoint wire.Hash) (Chain, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i, ok := c.index[branchPoint]
	if !ok {
		return nil, fault.ErrBranchPointNotFound
	}

	forked := NewMemChain()
	for j := 0; j <= i; j++ {
		b := c.blocks[j]
		forked.index[b.Hash] = j
		forked.blocks = append(forked.blocks, b)
	}
	return forked, nil
}

// Swap atomically replaces this chain's blocks and transaction index
// with other's.
func (c *MemChain) Swap(other Chain) {
	o, ok := other.(*MemChain)
	if !ok {
		return
	}

	o.mu.RLock()
	blocks := append([]Block(nil), o.blocks...)
	index := make(map[wire.Hash]int, len(o.index))
	for k, v := range o.index {
		index[k] = v
	}
	transactions := make(map[wire.Hash]Tx, len(o.transactions))
	for k, v := range o.transactions {
		transactions[k] = v
	}
	o.mu.RUnlock()

	c.mu.Lock()
	c.blocks = blocks
	c.index = index
	c.transactions = transactions
	c.mu.Unlock()
}
