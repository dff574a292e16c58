// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package util holds small helpers shared across the swarm packages
// that do not belong to any single component.
package util

import (
	"net"
	"strconv"

	"github.com/ledgermesh/swarmd/fault"
)

// CanonicalIPandPort splits a "host:port" connection string, validates
// both halves and returns it in a normalised form: IPv6 addresses are
// bracketed, leading zeros are stripped from the port.
func CanonicalIPandPort(hostPort string) (string, error) {

	host, port, err := net.SplitHostPort(hostPort)
	if err != nil {
		return "", fault.ErrInvalidConnection
	}

	ip := net.ParseIP(host)
	if nil == ip {
		return "", fault.ErrInvalidIPAddress
	}

	portNumber, err := strconv.Atoi(port)
	if err != nil || portNumber < 1 || portNumber > 65535 {
		return "", fault.ErrInvalidPortNumber
	}

	return net.JoinHostPort(ip.String(), strconv.Itoa(portNumber)), nil
}

// IsLoopback reports whether hostPort resolves to a loopback address,
// used to reject self-connection attempts before a dial is attempted.
func IsLoopback(hostPort string) bool {
	host, _, err := net.SplitHostPort(hostPort)
	if err != nil {
		return false
	}
	ip := net.ParseIP(host)
	return nil != ip && ip.IsLoopback()
}
