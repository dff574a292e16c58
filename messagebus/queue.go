// Copyright (c) 2014-2016 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package messagebus

// internal constants
const (
	queueSize = 1000
)

// Reply is a reply queued by a dispatcher handler for delivery back to
// the peer that sent the originating request. Identity is the ZMQ
// identity frame captured from that request; Frames are the already
// wire-encoded frames of the reply message, written verbatim onto the
// inbound router socket.
type Reply struct {
	Identity []byte
	Frames   [][]byte
}

var (
	// for queueing outgoing replies
	queue = make(chan Reply, queueSize)
)

// Send enqueues a reply for the writer loop to deliver.
func Send(identity []byte, frames [][]byte) {
	queue <- Reply{
		Identity: identity,
		Frames:   frames,
	}
}

// Chan returns the channel the writer loop drains.
func Chan() <-chan Reply {
	return queue
}
