// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"time"

	"github.com/ledgermesh/swarmd/fault"
	"github.com/ledgermesh/swarmd/identity"
	"github.com/ledgermesh/swarmd/peerset"
)

// Hash is a 32-byte block or transaction digest.
type Hash [HashSize]byte

// EncodePing builds the (empty) Ping payload.
func EncodePing() [][]byte {
	return [][]byte{}
}

// EncodePong builds the Pong payload.
func EncodePong(appProtocolVersion int32) [][]byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(appProtocolVersion))
	return [][]byte{b}
}

// DecodePong extracts the protocol version carried by a Pong.
func DecodePong(payload [][]byte) int32 {
	return int32(binary.BigEndian.Uint32(payload[0]))
}

// EncodeGetBlockHashes builds the GetBlockHashes payload: a locator
// frame followed by an optional stop-hash frame.
func EncodeGetBlockHashes(locator []Hash, stop *Hash) [][]byte {
	frames := [][]byte{encodeHashList(locator)}
	if nil != stop {
		frames = append(frames, stop[:])
	}
	return frames
}

// DecodeGetBlockHashes parses a GetBlockHashes payload.
func DecodeGetBlockHashes(payload [][]byte) (locator []Hash, stop *Hash, err error) {
	locator, err = decodeHashList(payload[0])
	if nil != err {
		return nil, nil, err
	}
	if 2 == len(payload) {
		if HashSize != len(payload[1]) {
			return nil, nil, fault.ErrPayloadSchemaMismatch
		}
		var h Hash
		copy(h[:], payload[1])
		stop = &h
	}
	return locator, stop, nil
}

// EncodeBlockHashes builds the BlockHashes payload, capping hashes at
// MaxHashes per spec §6.
func EncodeBlockHashes(sender identity.Address, hashes []Hash) [][]byte {
	if len(hashes) > MaxHashes {
		hashes = hashes[:MaxHashes]
	}
	return [][]byte{sender[:], encodeHashList(hashes)}
}

// DecodeBlockHashes parses a BlockHashes payload.
func DecodeBlockHashes(payload [][]byte) (sender identity.Address, hashes []Hash, err error) {
	copy(sender[:], payload[0])
	hashes, err = decodeHashList(payload[1])
	return sender, hashes, err
}

// EncodeGetBlocks / EncodeGetTxs share the same count-prefixed hash
// list shape.
func EncodeGetBlocks(hashes []Hash) [][]byte {
	return [][]byte{encodeHashList(hashes)}
}

func DecodeGetBlocks(payload [][]byte) ([]Hash, error) {
	return decodeHashList(payload[0])
}

func EncodeGetTxs(ids []Hash) [][]byte {
	return [][]byte{encodeHashList(ids)}
}

func DecodeGetTxs(payload [][]byte) ([]Hash, error) {
	return decodeHashList(payload[0])
}

// EncodeBlock / EncodeTx carry one opaque encoded blob each.
func EncodeBlock(encoded []byte) [][]byte {
	return [][]byte{encoded}
}

func DecodeBlock(payload [][]byte) []byte {
	return payload[0]
}

func EncodeTx(encoded []byte) [][]byte {
	return [][]byte{encoded}
}

func DecodeTx(payload [][]byte) []byte {
	return payload[0]
}

// EncodeTxIds builds the TxIds payload.
func EncodeTxIds(sender identity.Address, ids []Hash) [][]byte {
	return [][]byte{sender[:], encodeHashList(ids)}
}

// DecodeTxIds parses a TxIds payload.
func DecodeTxIds(payload [][]byte) (sender identity.Address, ids []Hash, err error) {
	copy(sender[:], payload[0])
	ids, err = decodeHashList(payload[1])
	return sender, ids, err
}

// PeerSetDelta describes changes to the peer set since a reference
// moment (spec §3). Existing is non-nil only on full (re-sync)
// broadcasts.
type PeerSetDelta struct {
	Sender    peerset.Peer
	Timestamp time.Time
	Added     []peerset.Peer
	Removed   []peerset.Peer
	Existing  []peerset.Peer
}

// EncodePeerSetDelta builds the PeerSetDelta payload: sender peer,
// timestamp, then three count-prefixed peer lists (added, removed,
// existing); the existing frame starts with a presence byte, 1 for a
// full re-sync (followed by the list, possibly empty) and 0 for a
// partial delta with no existing list.
func EncodePeerSetDelta(delta PeerSetDelta) [][]byte {
	frames := make([][]byte, 0, 5)
	frames = append(frames, encodePeer(delta.Sender))
	frames = append(frames, encodeTimestamp(delta.Timestamp))
	frames = append(frames, encodePeerList(delta.Added))
	frames = append(frames, encodePeerList(delta.Removed))

	if nil == delta.Existing {
		frames = append(frames, []byte{0})
	} else {
		frames = append(frames, append([]byte{1}, encodePeerList(delta.Existing)...))
	}

	return frames
}

// DecodePeerSetDelta parses a PeerSetDelta payload.
func DecodePeerSetDelta(payload [][]byte) (PeerSetDelta, error) {
	if len(payload) < 5 {
		return PeerSetDelta{}, fault.ErrPayloadSchemaMismatch
	}

	sender, err := decodePeer(payload[0])
	if nil != err {
		return PeerSetDelta{}, err
	}
	timestamp, err := decodeTimestamp(payload[1])
	if nil != err {
		return PeerSetDelta{}, err
	}
	added, err := decodePeerList(payload[2])
	if nil != err {
		return PeerSetDelta{}, err
	}
	removed, err := decodePeerList(payload[3])
	if nil != err {
		return PeerSetDelta{}, err
	}

	existingFrame := payload[4]
	var existing []peerset.Peer
	if len(existingFrame) > 0 && 1 == existingFrame[0] {
		existing, err = decodePeerList(existingFrame[1:])
		if nil != err {
			return PeerSetDelta{}, err
		}
	}

	return PeerSetDelta{
		Sender:    sender,
		Timestamp: timestamp,
		Added:     added,
		Removed:   removed,
		Existing:  existing,
	}, nil
}

func encodeHashList(hashes []Hash) []byte {
	out := putUint32(uint32(len(hashes)))
	for _, h := range hashes {
		out = append(out, h[:]...)
	}
	return out
}

func decodeHashList(b []byte) ([]Hash, error) {
	if len(b) < 4 {
		return nil, fault.ErrPayloadSchemaMismatch
	}
	count := getUint32(b[:4])
	b = b[4:]
	if uint32(len(b)) != count*HashSize {
		return nil, fault.ErrPayloadSchemaMismatch
	}
	out := make([]Hash, count)
	for i := range out {
		copy(out[i][:], b[i*HashSize:(i+1)*HashSize])
	}
	return out, nil
}

// peer encoding: publicKey(32) || host-length(4) || host || port(2)
func encodePeer(p peerset.Peer) []byte {
	host := []byte(p.Host)
	out := make([]byte, 0, 32+4+len(host)+2)
	out = append(out, p.PublicKey[:]...)
	out = append(out, putUint32(uint32(len(host)))...)
	out = append(out, host...)
	port := make([]byte, 2)
	binary.BigEndian.PutUint16(port, p.Port)
	out = append(out, port...)
	return out
}

func decodePeer(b []byte) (peerset.Peer, error) {
	if len(b) < 32+4 {
		return peerset.Peer{}, fault.ErrPayloadSchemaMismatch
	}
	pub, err := identity.PublicKeyFromBytes(b[:32])
	if nil != err {
		return peerset.Peer{}, fault.ErrInvalidPublicKey
	}
	b = b[32:]
	hostLen := getUint32(b[:4])
	b = b[4:]
	if uint32(len(b)) < hostLen+2 {
		return peerset.Peer{}, fault.ErrPayloadSchemaMismatch
	}
	host := string(b[:hostLen])
	port := binary.BigEndian.Uint16(b[hostLen : hostLen+2])
	return peerset.NewPeer(pub, host, port), nil
}

func encodePeerList(peers []peerset.Peer) []byte {
	out := putUint32(uint32(len(peers)))
	for _, p := range peers {
		encoded := encodePeer(p)
		out = append(out, putUint32(uint32(len(encoded)))...)
		out = append(out, encoded...)
	}
	return out
}

func decodePeerList(b []byte) ([]peerset.Peer, error) {
	if len(b) < 4 {
		return nil, fault.ErrPayloadSchemaMismatch
	}
	count := getUint32(b[:4])
	b = b[4:]
	out := make([]peerset.Peer, 0, count)
	for i := uint32(0); i < count; i++ {
		if len(b) < 4 {
			return nil, fault.ErrPayloadSchemaMismatch
		}
		entryLen := getUint32(b[:4])
		b = b[4:]
		if uint32(len(b)) < entryLen {
			return nil, fault.ErrPayloadSchemaMismatch
		}
		p, err := decodePeer(b[:entryLen])
		if nil != err {
			return nil, err
		}
		out = append(out, p)
		b = b[entryLen:]
	}
	return out, nil
}

func encodeTimestamp(t time.Time) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(t.Unix()))
	return b
}

func decodeTimestamp(b []byte) (time.Time, error) {
	if 8 != len(b) {
		return time.Time{}, fault.ErrPayloadSchemaMismatch
	}
	return time.Unix(int64(binary.BigEndian.Uint64(b)), 0).UTC(), nil
}
