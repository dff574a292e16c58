// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package identity holds the node's own message-signing keypair and
// the address derivation used to label peers. This is message-level
// identity only; chain-level account keys are out of scope.
package identity

import (
	"crypto/rand"
	"encoding/hex"

	"golang.org/x/crypto/ed25519"
	"golang.org/x/crypto/sha3"

	"github.com/ledgermesh/swarmd/fault"
)

// AddressSize is the length in bytes of an Address.
const AddressSize = 20

// PublicKey is a node's 32-byte ed25519 public key.
type PublicKey [ed25519.PublicKeySize]byte

// PrivateKey is a node's 64-byte ed25519 private key.
type PrivateKey [ed25519.PrivateKeySize]byte

// Address is the 20-byte truncated SHA3-256 digest of a public key.
type Address [AddressSize]byte

// Generate creates a new random keypair.
func Generate() (PublicKey, PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if nil != err {
		return PublicKey{}, PrivateKey{}, err
	}
	var publicKey PublicKey
	var privateKey PrivateKey
	copy(publicKey[:], pub)
	copy(privateKey[:], priv)
	return publicKey, privateKey, nil
}

// Sign produces a detached ed25519 signature over message.
func (priv PrivateKey) Sign(message []byte) []byte {
	return ed25519.Sign(ed25519.PrivateKey(priv[:]), message)
}

// PublicKey returns the public half of the keypair.
func (priv PrivateKey) PublicKey() PublicKey {
	var pub PublicKey
	copy(pub[:], ed25519.PrivateKey(priv[:]).Public().(ed25519.PublicKey))
	return pub
}

// Verify reports whether signature is a valid ed25519 signature of
// message under pub.
func (pub PublicKey) Verify(message, signature []byte) bool {
	return ed25519.Verify(ed25519.PublicKey(pub[:]), message, signature)
}

// Address derives the node address advertised in peer-set deltas and
// the sender frame of wire messages: the first AddressSize bytes of
// the SHA3-256 digest of the public key.
func (pub PublicKey) Address() Address {
	digest := sha3.Sum256(pub[:])
	var a Address
	copy(a[:], digest[:AddressSize])
	return a
}

// PublicKeyFromBytes validates and wraps a raw public key.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var pub PublicKey
	if len(b) != len(pub) {
		return PublicKey{}, fault.ErrInvalidPublicKey
	}
	copy(pub[:], b)
	return pub, nil
}

// PrivateKeyFromBytes validates and wraps a raw private key.
func PrivateKeyFromBytes(b []byte) (PrivateKey, error) {
	var priv PrivateKey
	if len(b) != len(priv) {
		return PrivateKey{}, fault.ErrInvalidPrivateKey
	}
	copy(priv[:], b)
	return priv, nil
}

func (pub PublicKey) String() string {
	return hex.EncodeToString(pub[:])
}

func (a Address) String() string {
	return hex.EncodeToString(a[:])
}
