// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package transport

import (
	"fmt"
	"time"

	"github.com/bitmark-inc/logger"
	zmq "github.com/pebbe/zmq4"

	"github.com/ledgermesh/swarmd/fault"
	"github.com/ledgermesh/swarmd/identity"
	"github.com/ledgermesh/swarmd/peerset"
	"github.com/ledgermesh/swarmd/util"
)

const (
	heartbeatInterval = 15 * time.Second
	heartbeatTimeout  = 60 * time.Second
	heartbeatTTL      = 120 * time.Second

	zapDomain = "swarmd"
)

// Router owns the inbound socket traffic flows through: one ZMQ
// ROUTER socket plus the inproc signal pair used to interrupt its
// poller on shutdown, mirroring peer/listener.go. CURVE security
// reuses the node's identity keypair as its own key material, the
// same way zmqutil/socket.go passes the account keypair straight into
// SetCurveSecretkey.
type Router struct {
	log    *logger.L
	socket *zmq.Socket
	push   *zmq.Socket
	pull   *zmq.Socket
	poller *Poller
}

// NewRouter allocates the signal pair and the ROUTER socket, ready to
// Bind.
func NewRouter(priv identity.PrivateKey, pub identity.PublicKey) (*Router, error) {
	log := logger.New("transport")
	if nil == log {
		return nil, fault.ErrInvalidLoggerChannel
	}

	signal := fmt.Sprintf("inproc://swarmd-router-signal-%s", pub.String())
	push, err := zmq.NewSocket(zmq.PUSH)
	if nil != err {
		return nil, err
	}
	push.SetLinger(0)
	if err := push.Bind(signal); nil != err {
		push.Close()
		return nil, err
	}

	pull, err := zmq.NewSocket(zmq.PULL)
	if nil != err {
		push.Close()
		return nil, err
	}
	pull.SetLinger(0)
	if err := pull.Connect(signal); nil != err {
		push.Close()
		pull.Close()
		return nil, err
	}

	socket, err := zmq.NewSocket(zmq.ROUTER)
	if nil != err {
		push.Close()
		pull.Close()
		return nil, err
	}
	if err := applyCurveServer(socket, priv, pub); nil != err {
		socket.Close()
		push.Close()
		pull.Close()
		return nil, err
	}
	socket.SetRouterMandatory(0)

	poller := NewPoller()
	poller.Add(socket, zmq.POLLIN)
	poller.Add(pull, zmq.POLLIN)

	return &Router{log: log, socket: socket, push: push, pull: pull, poller: poller}, nil
}

// Bind listens on hostPort; port 0 binds an ephemeral port, which is
// logged and returned.
func (r *Router) Bind(hostPort string) (int, error) {
	endpoint := "tcp://" + hostPort
	if err := r.socket.Bind(endpoint); nil != err {
		return 0, err
	}
	bound, err := r.socket.GetLastEndpoint()
	if nil != err {
		return 0, err
	}
	port, err := portOf(bound)
	if nil != err {
		return 0, err
	}
	r.log.Infof("bound inbound router socket on %s", bound)
	return port, nil
}

// Receive polls the inbound socket and the shutdown signal with a
// timeout, matching spec §4.5 step 1. ok is false on timeout; stopped
// is true once the signal pair fires.
func (r *Router) Receive(timeout time.Duration) (frames [][]byte, ok bool, stopped bool, err error) {
	polled, err := r.poller.Poll(timeout)
	if nil != err {
		return nil, false, false, err
	}
	for _, p := range polled {
		switch p.Socket {
		case r.socket:
			frames, err = r.socket.RecvMessageBytes(0)
			return frames, nil == err, false, err
		case r.pull:
			r.pull.RecvMessageBytes(0)
			return nil, false, true, nil
		}
	}
	return nil, false, false, nil
}

// Send writes frames onto the router socket, prefixed by identity so
// it routes back to the connection that owns it. Used only by the
// single reply-writer loop (spec §4.4).
func (r *Router) Send(identity []byte, frames [][]byte) error {
	if _, err := r.socket.SendBytes(identity, zmq.SNDMORE); nil != err {
		return err
	}
	return sendFrames(r.socket, frames)
}

// Shutdown wakes a blocked Receive so the caller's loop can observe
// the shutdown channel promptly.
func (r *Router) Shutdown() {
	r.push.SendMessage("stop")
}

// Close disposes every socket owned by the router. Call only after
// Shutdown's Receive wakeup has been consumed.
func (r *Router) Close() {
	r.push.Close()
	r.pull.Close()
	r.socket.Close()
}

// DealerSocket is one outbound connection to a peer. It implements
// peerset.Socket so the registry can dispose it on removal without
// importing this package.
type DealerSocket struct {
	socket *zmq.Socket
}

var _ peerset.Socket = (*DealerSocket)(nil)

// Send writes frames onto the dealer socket with a send deadline.
func (d *DealerSocket) Send(frames [][]byte, timeout time.Duration) error {
	d.socket.SetSndtimeo(timeout)
	return sendFrames(d.socket, frames)
}

// Receive reads one reply from the dealer socket, waiting up to
// timeout. Used by the block-sync engine's synchronous
// GetBlockHashes/GetBlocks/GetTxs requests to a specific peer.
func (d *DealerSocket) Receive(timeout time.Duration) ([][]byte, error) {
	d.socket.SetRcvtimeo(timeout)
	frames, err := d.socket.RecvMessageBytes(0)
	if nil != err {
		return nil, fault.ErrTimeout
	}
	return frames, nil
}

// Close disposes the underlying socket.
func (d *DealerSocket) Close() error {
	return d.socket.Close()
}

// Dial performs the handshake described in spec §4.3: connect, send
// pingFrames, await a reply within dialTimeout, decode its protocol
// version via decodePong and compare against localProtocolVersion. On
// any failure the socket is always disposed before the error is
// returned.
func Dial(peer peerset.Peer, priv identity.PrivateKey, pub identity.PublicKey, pingFrames [][]byte, decodePong func([][]byte) (int32, error), localProtocolVersion int32, dialTimeout time.Duration) (*DealerSocket, error) {

	socket, err := zmq.NewSocket(zmq.DEALER)
	if nil != err {
		return nil, err
	}

	if err := applyCurveClient(socket, priv, pub, peer.PublicKey); nil != err {
		socket.Close()
		return nil, fault.ErrIO
	}
	socket.SetLinger(0)
	socket.SetSndtimeo(dialTimeout)
	socket.SetRcvtimeo(dialTimeout)

	// the outbound identity frame is set to the local address so the
	// remote router can route replies back (spec §4.3).
	localAddress := pub.Address()
	if err := socket.SetIdentity(string(localAddress[:])); nil != err {
		socket.Close()
		return nil, fault.ErrIO
	}

	hostPort, err := util.CanonicalIPandPort(fmt.Sprintf("%s:%d", peer.Host, peer.Port))
	if nil != err {
		socket.Close()
		return nil, err
	}
	if err := socket.Connect("tcp://" + hostPort); nil != err {
		socket.Close()
		return nil, fault.ErrIO
	}

	if err := sendFrames(socket, pingFrames); nil != err {
		socket.Close()
		return nil, fault.ErrIO
	}

	reply, err := socket.RecvMessageBytes(0)
	if nil != err {
		socket.Close()
		return nil, fault.ErrTimeout
	}

	remoteVersion, err := decodePong(reply)
	if nil != err {
		socket.Close()
		return nil, fault.ErrInvalidMessage
	}
	if remoteVersion != localProtocolVersion {
		socket.Close()
		return nil, fault.ErrDifferentAppProtocolVersion
	}

	return &DealerSocket{socket: socket}, nil
}

func sendFrames(socket *zmq.Socket, frames [][]byte) error {
	if 0 == len(frames) {
		_, err := socket.Send("", 0)
		return err
	}
	last := len(frames) - 1
	for i, f := range frames {
		flag := zmq.SNDMORE
		if i == last {
			flag = 0
		}
		if _, err := socket.SendBytes(f, flag); nil != err {
			return err
		}
	}
	return nil
}

func applyCurveServer(socket *zmq.Socket, priv identity.PrivateKey, pub identity.PublicKey) error {
	zmq.AuthCurveAdd(zapDomain, zmq.CURVE_ALLOW_ANY)
	if err := socket.SetCurveServer(1); nil != err {
		return err
	}
	if err := socket.SetCurveSecretkey(string(priv[:32])); nil != err {
		return err
	}
	if err := socket.SetZapDomain(zapDomain); nil != err {
		return err
	}
	return setHeartbeats(socket)
}

func applyCurveClient(socket *zmq.Socket, priv identity.PrivateKey, pub identity.PublicKey, serverPub identity.PublicKey) error {
	if err := socket.SetCurveServer(0); nil != err {
		return err
	}
	if err := socket.SetCurvePublickey(string(pub[:])); nil != err {
		return err
	}
	if err := socket.SetCurveSecretkey(string(priv[:32])); nil != err {
		return err
	}
	if err := socket.SetCurveServerkey(string(serverPub[:])); nil != err {
		return err
	}
	return setHeartbeats(socket)
}

// setHeartbeats applies the same heartbeat policy to every socket,
// regardless of CURVE role, matching zmqutil/socket.go's constants.
// ErrorNotImplemented42 (pre-4.2 libzmq) is tolerated.
func setHeartbeats(socket *zmq.Socket) error {
	if err := socket.SetHeartbeatIvl(heartbeatInterval); nil != err && zmq.ErrorNotImplemented42 != err {
		return err
	}
	if err := socket.SetHeartbeatTimeout(heartbeatTimeout); nil != err && zmq.ErrorNotImplemented42 != err {
		return err
	}
	if err := socket.SetHeartbeatTtl(heartbeatTTL); nil != err && zmq.ErrorNotImplemented42 != err {
		return err
	}
	return nil
}

func portOf(endpoint string) (int, error) {
	var port int
	_, err := fmt.Sscanf(lastColonSuffix(endpoint), ":%d", &port)
	return port, err
}

func lastColonSuffix(endpoint string) string {
	idx := -1
	for i := len(endpoint) - 1; i >= 0; i-- {
		if ':' == endpoint[i] {
			idx = i
			break
		}
	}
	if -1 == idx {
		return endpoint
	}
	return endpoint[idx:]
}
