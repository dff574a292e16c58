// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package transport_test

import (
	"testing"
	"time"

	"github.com/ledgermesh/swarmd/identity"
	"github.com/ledgermesh/swarmd/peerset"
	"github.com/ledgermesh/swarmd/transport"
)

// TestRouterDealerHandshake exercises the wire-level handshake of spec
// §4.3: a DealerSocket dials a Router, sends a request, and the
// Router's Receive observes it with the per-connection identity frame
// prepended. CURVE security reuses each node's identity keypair, the
// way zmqutil/socket.go hands the account keypair straight to libzmq.
func TestRouterDealerHandshake(t *testing.T) {
	serverPub, serverPriv, err := identity.Generate()
	if nil != err {
		t.Fatalf("generate server identity: %v", err)
	}
	clientPub, clientPriv, err := identity.Generate()
	if nil != err {
		t.Fatalf("generate client identity: %v", err)
	}

	router, err := transport.NewRouter(serverPriv, serverPub)
	if nil != err {
		t.Fatalf("new router: %v", err)
	}
	defer router.Close()

	port, err := router.Bind("127.0.0.1:0")
	if nil != err {
		t.Fatalf("bind: %v", err)
	}
	if 0 == port {
		t.Fatalf("expected a non-zero ephemeral port")
	}

	peer := peerset.Peer{PublicKey: serverPub, Host: "127.0.0.1", Port: uint16(port)}

	decodePong := func(frames [][]byte) (int32, error) {
		return 1, nil
	}

	dialErr := make(chan error, 1)
	dialed := make(chan *transport.DealerSocket, 1)
	go func() {
		dealer, err := transport.Dial(peer, clientPriv, clientPub, [][]byte{[]byte("ping")}, decodePong, 1, 5*time.Second)
		dialed <- dealer
		dialErr <- err
	}()

	frames, ok, stopped, err := router.Receive(5 * time.Second)
	if nil != err {
		t.Fatalf("receive: %v", err)
	}
	if stopped {
		t.Fatalf("unexpected shutdown signal")
	}
	if !ok {
		t.Fatalf("expected a message, got a timeout")
	}
	if len(frames) < 2 {
		t.Fatalf("expected identity frame plus payload, got %d frames", len(frames))
	}

	identityFrame := frames[0]
	if err := router.Send(identityFrame, [][]byte{[]byte("pong")}); nil != err {
		t.Fatalf("send reply: %v", err)
	}

	if err := <-dialErr; nil != err {
		t.Fatalf("dial: %v", err)
	}
	dealer := <-dialed
	defer dealer.Close()
}

func TestRouterShutdownWakesReceive(t *testing.T) {
	pub, priv, err := identity.Generate()
	if nil != err {
		t.Fatalf("generate identity: %v", err)
	}
	router, err := transport.NewRouter(priv, pub)
	if nil != err {
		t.Fatalf("new router: %v", err)
	}
	defer router.Close()

	if _, err := router.Bind("127.0.0.1:0"); nil != err {
		t.Fatalf("bind: %v", err)
	}

	done := make(chan struct{})
	go func() {
		_, _, stopped, err := router.Receive(5 * time.Second)
		if nil != err {
			t.Errorf("receive: %v", err)
		}
		if !stopped {
			t.Errorf("expected Receive to observe the shutdown signal")
		}
		close(done)
	}()

	router.Shutdown()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Receive did not wake up after Shutdown")
	}
}
