// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package swarm

import (
	"github.com/ledgermesh/swarmd/messagebus"
)

// runReplyWriter drains the reply queue onto the inbound router
// socket. Funneling every reply through this single writer preserves
// the router socket's single-threaded-writer invariant while letting
// many fire-and-forget handlers enqueue concurrently (spec §4.4).
func (s *Swarm) runReplyWriter(shutdown <-chan struct{}) {
	ch := messagebus.Chan()
	for {
		select {
		case reply := <-ch:
			if err := s.router.Send(reply.Identity, reply.Frames); nil != err {
				s.log.Errorf("write reply: %v", err)
			}
		case <-shutdown:
			return
		}
	}
}
