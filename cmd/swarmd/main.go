// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/bitmark-inc/logger"

	"github.com/ledgermesh/swarmd/chainsync"
	"github.com/ledgermesh/swarmd/fault"
	"github.com/ledgermesh/swarmd/identity"
	"github.com/ledgermesh/swarmd/peerset"
	"github.com/ledgermesh/swarmd/swarm"
)

// set by the linker: go build -ldflags "-X main.version=M.N" ./...
var version = "zero" // do not change this value

// peerList accumulates repeated -peer flags.
type peerList []string

func (p *peerList) String() string     { return strings.Join(*p, ",") }
func (p *peerList) Set(s string) error { *p = append(*p, s); return nil }

func main() {
	var (
		host         = flag.String("host", "0.0.0.0", "local host to bind the inbound router on")
		port         = flag.Uint("port", 0, "local port to bind on, 0 for an ephemeral port")
		keyFile      = flag.String("key-file", "swarmd.key", "path to the hex-encoded ed25519 private key, created if missing")
		logDirectory = flag.String("log-directory", ".", "directory for the log file")
		logFile      = flag.String("log-file", "swarmd.log", "log file name")
		logLevel     = flag.String("log-level", "info", "default log level")
		dialTimeout  = flag.Duration("dial-timeout", 15*time.Second, "timeout dialing a peer")
		distribute   = flag.Duration("distribute-interval", 1500*time.Millisecond, "delta distributor tick period")
		protocol     = flag.Int("protocol-version", 1, "local application protocol version")
	)
	var peers peerList
	flag.Var(&peers, "peer", "pubkeyhex@host:port of a bootstrap peer, may be repeated")
	flag.Parse()

	if err := logger.Initialise(logger.Configuration{
		Directory: *logDirectory,
		File:      *logFile,
		Size:      1048576,
		Count:     10,
		Console:   true,
		Levels:    map[string]string{logger.DefaultTag: *logLevel},
	}); nil != err {
		fmt.Fprintf(os.Stderr, "logger setup failed: %s\n", err)
		os.Exit(1)
	}
	defer logger.Finalise()

	if err := fault.Initialise(); nil != err {
		fmt.Fprintf(os.Stderr, "fault setup failed: %s\n", err)
		os.Exit(1)
	}
	defer fault.Finalise()

	log := logger.New("main")
	defer log.Info("finished")
	log.Info("starting…")
	log.Infof("version: %s", version)

	priv, err := loadOrCreatePrivateKey(*keyFile)
	if nil != err {
		log.Criticalf("private key: %s", err)
		fmt.Fprintf(os.Stderr, "private key: %s\n", err)
		os.Exit(1)
	}
	log.Infof("node address: %s", priv.PublicKey().Address())

	seeds, err := parsePeers(peers)
	if nil != err {
		log.Criticalf("peer list: %s", err)
		fmt.Fprintf(os.Stderr, "peer list: %s\n", err)
		os.Exit(1)
	}

	config := swarm.Configuration{
		PrivateKey:           priv,
		LocalProtocolVersion: int32(*protocol),
		DialTimeout:          *dialTimeout,
		LocalHost:            *host,
		LocalPort:            uint16(*port),
		DistributeInterval:   *distribute,
	}

	// No production chainsync.Chain implementation ships with this
	// repo (data model out of scope); MemChain stands in for it here
	// the way p2psimulation stands in for a real upstream in the
	// teacher's p2p tests.
	s, err := swarm.New(config, chainsync.NewMemChain())
	if nil != err {
		log.Criticalf("swarm construction: %s", err)
		fmt.Fprintf(os.Stderr, "swarm construction: %s\n", err)
		os.Exit(1)
	}

	for _, p := range seeds {
		s.AddPeer(p)
	}

	if err := s.Start(); nil != err {
		log.Criticalf("swarm start: %s", err)
		fmt.Fprintf(os.Stderr, "swarm start: %s\n", err)
		os.Exit(1)
	}
	defer s.Stop()

	log.Infof("listening on %s:%d", *host, *port)
	fmt.Printf("\nWaiting for CTRL-C (SIGINT) or 'kill <pid>' (SIGTERM)…\n")

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	sig := <-ch
	log.Infof("received signal: %v", sig)
}

// loadOrCreatePrivateKey reads a hex-encoded private key from path,
// generating and persisting a new one if the file does not exist.
func loadOrCreatePrivateKey(path string) (identity.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if nil == err {
		b, decodeErr := hex.DecodeString(strings.TrimSpace(string(raw)))
		if nil != decodeErr {
			return identity.PrivateKey{}, decodeErr
		}
		return identity.PrivateKeyFromBytes(b)
	}
	if !os.IsNotExist(err) {
		return identity.PrivateKey{}, err
	}

	_, priv, genErr := identity.Generate()
	if nil != genErr {
		return identity.PrivateKey{}, genErr
	}
	if writeErr := os.WriteFile(path, []byte(hex.EncodeToString(priv[:])+"\n"), 0600); nil != writeErr {
		return identity.PrivateKey{}, writeErr
	}
	return priv, nil
}

// parsePeers converts "pubkeyhex@host:port" seed strings into Peers.
func parsePeers(seeds []string) ([]peerset.Peer, error) {
	out := make([]peerset.Peer, 0, len(seeds))
	for _, seed := range seeds {
		at := strings.IndexByte(seed, '@')
		if -1 == at {
			return nil, fmt.Errorf("peer %q: expected pubkeyhex@host:port", seed)
		}
		keyHex, hostPort := seed[:at], seed[at+1:]

		colon := strings.LastIndexByte(hostPort, ':')
		if -1 == colon {
			return nil, fmt.Errorf("peer %q: missing port", seed)
		}
		host, portStr := hostPort[:colon], hostPort[colon+1:]

		portN, err := strconv.ParseUint(portStr, 10, 16)
		if nil != err {
			return nil, fmt.Errorf("peer %q: invalid port: %w", seed, err)
		}

		keyBytes, err := hex.DecodeString(keyHex)
		if nil != err {
			return nil, fmt.Errorf("peer %q: invalid public key: %w", seed, err)
		}
		pub, err := identity.PublicKeyFromBytes(keyBytes)
		if nil != err {
			return nil, fmt.Errorf("peer %q: %w", seed, err)
		}

		out = append(out, peerset.NewPeer(pub, host, uint16(portN)))
	}
	return out, nil
}
