// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"errors"
	"io"
	"net"
	"syscall"
)

// IsConnectionDropped reports whether err means the connection went away
// mid-transfer: an unexpected EOF, a closed connection, a broken pipe,
// or a reset. Bytes already written to disk remain valid and the
// transfer can resume from them.
func IsConnectionDropped(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EPIPE || errno == syscall.ECONNRESET
	}
	return false
}
