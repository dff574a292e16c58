// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainsync_test

import (
	"testing"

	"github.com/ledgermesh/swarmd/chainsync"
	"github.com/ledgermesh/swarmd/wire"
)

func hashFor(n byte) wire.Hash {
	var h wire.Hash
	h[0] = n
	return h
}

func buildChain(t *testing.T, n int) *chainsync.MemChain {
	c := chainsync.NewMemChain()
	var prev wire.Hash
	for i := 0; i < n; i++ {
		h := hashFor(byte(i + 1))
		if err := c.Append(chainsync.Block{Hash: h, PreviousHash: prev, Index: uint64(i)}); nil != err {
			t.Fatalf("append %d: %v", i, err)
		}
		prev = h
	}
	return c
}

func TestTipOnEmptyChain(t *testing.T) {
	c := chainsync.NewMemChain()
	if _, ok := c.Tip(); ok {
		t.Errorf("expected no tip on empty chain")
	}
}

func TestAppendAndTip(t *testing.T) {
	c := buildChain(t, 5)
	tip, ok := c.Tip()
	if !ok {
		t.Fatalf("expected a tip")
	}
	if tip.Index != 4 {
		t.Errorf("expected tip index 4, got %d", tip.Index)
	}
	if !c.HasBlock(hashFor(1)) {
		t.Errorf("expected genesis block to be present")
	}
}

func TestFindNextHashesStopsAtStop(t *testing.T) {
	c := buildChain(t, 10)
	locator := []wire.Hash{hashFor(5)}
	stop := hashFor(8)

	hashes := c.FindNextHashes(locator, &stop, 500)

	expected := []wire.Hash{hashFor(5), hashFor(6), hashFor(7), hashFor(8)}
	if len(hashes) != len(expected) {
		t.Fatalf("expected %d hashes, got %d", len(expected), len(hashes))
	}
	for i, h := range expected {
		if hashes[i] != h {
			t.Errorf("hash %d: expected %v  got %v", i, h, hashes[i])
		}
	}
}

func TestFindNextHashesUnknownLocatorReturnsNil(t *testing.T) {
	c := buildChain(t, 3)
	hashes := c.FindNextHashes([]wire.Hash{hashFor(99)}, nil, 500)
	if nil != hashes {
		t.Errorf("expected nil for an unknown locator, got %v", hashes)
	}
}

func TestForkAndSwap(t *testing.T) {
	c := buildChain(t, 5)

	forked, err := c.Fork(hashFor(3))
	if nil != err {
		t.Fatalf("fork: %v", err)
	}

	tip, ok := forked.Tip()
	if !ok || tip.Hash != hashFor(3) {
		t.Fatalf("expected forked tip at block 3, got %+v ok=%v", tip, ok)
	}

	if err := forked.Append(chainsync.Block{Hash: hashFor(100), PreviousHash: hashFor(3), Index: 3}); nil != err {
		t.Fatalf("append to fork: %v", err)
	}

	c.Swap(forked)

	newTip, ok := c.Tip()
	if !ok || newTip.Hash != hashFor(100) {
		t.Fatalf("expected live chain to adopt forked tip, got %+v", newTip)
	}
	if c.HasBlock(hashFor(4)) {
		t.Errorf("expected block 4 from the old fork to be gone after swap")
	}
}

func TestForkUnknownBranchPoint(t *testing.T) {
	c := buildChain(t, 3)
	if _, err := c.Fork(hashFor(99)); nil == err {
		t.Errorf("expected an error forking at an unknown branch point")
	}
}

func TestStageAndLookupTransactions(t *testing.T) {
	c := chainsync.NewMemChain()
	tx := chainsync.Tx{ID: hashFor(1), Encoded: []byte("tx-1")}

	if err := c.StageTransactions([]chainsync.Tx{tx}); nil != err {
		t.Fatalf("stage: %v", err)
	}
	if !c.HasTransaction(tx.ID) {
		t.Errorf("expected staged transaction to be present")
	}
	got, ok := c.TransactionByID(tx.ID)
	if !ok || got.ID != tx.ID {
		t.Errorf("expected to look up staged transaction, got %+v ok=%v", got, ok)
	}
}
