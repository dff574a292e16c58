// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package messagebus is the many-producer, single-consumer queue that funnels outgoing replies onto the
// inbound router socket, preserving the reply-identity of the
// request that triggered each reply.
package messagebus
