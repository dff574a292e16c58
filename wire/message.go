// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package wire frames typed messages into ordered byte frames with a
// signed header, and parses them back, the way peer/listener.go frames
// its single-byte command tags but generalised to a signed, typed
// variant set.
package wire

import (
	"encoding/binary"

	"github.com/ledgermesh/swarmd/fault"
	"github.com/ledgermesh/swarmd/identity"
)

// Kind tags the payload carried by a Message.
type Kind byte

// wire tags, network byte order throughout
const (
	KindPing           Kind = 0x01
	KindPong           Kind = 0x02
	KindGetBlockHashes Kind = 0x03
	KindBlockHashes    Kind = 0x04
	KindGetBlocks      Kind = 0x05
	KindBlock          Kind = 0x06
	KindGetTxs         Kind = 0x07
	KindTx             Kind = 0x08
	KindTxIds          Kind = 0x09
	KindPeerSetDelta   Kind = 0x0A
)

// headerFrames is the frame count before any payload frames:
// signature, signer-public-key, tag, reply-identity.
const headerFrames = 4

// MaxHashes bounds the number of hashes a GetBlockHashes reply may carry.
const MaxHashes = 500

// HashSize is the length in bytes of a block or transaction hash.
const HashSize = 32

// Message is a parsed, authenticated wire message.
type Message struct {
	Sender        identity.PublicKey
	Kind          Kind
	ReplyIdentity []byte
	Payload       [][]byte
}

func (k Kind) String() string {
	switch k {
	case KindPing:
		return "Ping"
	case KindPong:
		return "Pong"
	case KindGetBlockHashes:
		return "GetBlockHashes"
	case KindBlockHashes:
		return "BlockHashes"
	case KindGetBlocks:
		return "GetBlocks"
	case KindBlock:
		return "Block"
	case KindGetTxs:
		return "GetTxs"
	case KindTx:
		return "Tx"
	case KindTxIds:
		return "TxIds"
	case KindPeerSetDelta:
		return "PeerSetDelta"
	default:
		return "unknown"
	}
}

// Encode serializes a message to its ordered frame sequence and signs
// it with priv. replyIdentity may be nil for outbound requests that
// expect no correlated reply.
func Encode(priv identity.PrivateKey, kind Kind, replyIdentity []byte, payload [][]byte) [][]byte {

	pub := priv.PublicKey()

	frames := make([][]byte, 0, headerFrames+len(payload))
	frames = append(frames, nil) // signature placeholder
	frames = append(frames, pub[:])
	frames = append(frames, []byte{byte(kind)})
	frames = append(frames, replyIdentity)
	frames = append(frames, payload...)

	signed := concatFrames(frames[1:])
	sig := priv.Sign(signed)
	frames[0] = sig

	return frames
}

// Parse authenticates and decodes frames into a Message. When reply is
// false, frames[0] is a per-connection identity frame prepended by the
// router transport and is consumed before the header is read; when
// true, frames already start at the signature frame and carry an
// explicit (possibly empty) reply-identity frame.
func Parse(frames [][]byte, reply bool) (*Message, []byte, error) {

	var routerIdentity []byte
	if !reply {
		if len(frames) < 1 {
			return nil, nil, fault.ErrFrameCountBelowMinimum
		}
		routerIdentity = frames[0]
		frames = frames[1:]
	}

	if len(frames) < headerFrames {
		return nil, routerIdentity, fault.ErrFrameCountBelowMinimum
	}

	signature := frames[0]
	rawPub := frames[1]
	rawKind := frames[2]
	replyIdentity := frames[3]
	payload := frames[4:]

	if 1 != len(rawKind) {
		return nil, routerIdentity, fault.ErrUnknownMessageKind
	}
	kind := Kind(rawKind[0])
	if !validKind(kind) {
		return nil, routerIdentity, fault.ErrUnknownMessageKind
	}

	pub, err := identity.PublicKeyFromBytes(rawPub)
	if nil != err {
		return nil, routerIdentity, fault.ErrInvalidMessage
	}

	if !pub.Verify(concatFrames(frames[1:]), signature) {
		return nil, routerIdentity, fault.ErrInvalidSignature
	}

	if err := validatePayload(kind, payload); nil != err {
		return nil, routerIdentity, err
	}

	return &Message{
		Sender:        pub,
		Kind:          kind,
		ReplyIdentity: replyIdentity,
		Payload:       payload,
	}, routerIdentity, nil
}

func validKind(k Kind) bool {
	switch k {
	case KindPing, KindPong, KindGetBlockHashes, KindBlockHashes,
		KindGetBlocks, KindBlock, KindGetTxs, KindTx, KindTxIds, KindPeerSetDelta:
		return true
	default:
		return false
	}
}

// validatePayload checks the payload frame count matches the schema
// for kind; it does not decode list contents (done by the typed
// helpers in codec.go).
func validatePayload(kind Kind, payload [][]byte) error {
	switch kind {
	case KindPing:
		if 0 != len(payload) {
			return fault.ErrPayloadSchemaMismatch
		}
	case KindPong:
		if 1 != len(payload) || 4 != len(payload[0]) {
			return fault.ErrPayloadSchemaMismatch
		}
	case KindGetBlockHashes:
		if 1 != len(payload) && 2 != len(payload) {
			return fault.ErrPayloadSchemaMismatch
		}
	case KindBlockHashes:
		if 2 != len(payload) || identity.AddressSize != len(payload[0]) {
			return fault.ErrPayloadSchemaMismatch
		}
	case KindGetBlocks, KindGetTxs:
		if 1 != len(payload) {
			return fault.ErrPayloadSchemaMismatch
		}
	case KindBlock, KindTx:
		if 1 != len(payload) {
			return fault.ErrPayloadSchemaMismatch
		}
	case KindTxIds:
		if 2 != len(payload) || identity.AddressSize != len(payload[0]) {
			return fault.ErrPayloadSchemaMismatch
		}
	case KindPeerSetDelta:
		if 5 != len(payload) {
			return fault.ErrPayloadSchemaMismatch
		}
	}
	return nil
}

func concatFrames(frames [][]byte) []byte {
	total := 0
	for _, f := range frames {
		total += len(f)
	}
	buf := make([]byte, 0, total)
	for _, f := range frames {
		buf = append(buf, f...)
	}
	return buf
}

// putUint32 / getUint32 are the network-byte-order helpers used by the
// count-prefixed list encodings in codec.go.
func putUint32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func getUint32(b []byte) uint32 {
	return binary.BigEndian.Uint32(b)
}
