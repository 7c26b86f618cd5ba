// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package downloadables

import (
	"context"
	"errors"
	"fmt"

	"github.com/bureau-foundation/downloadables/lib/disk"
)

// ErrorType classifies an engine error.
type ErrorType int

const (
	ErrorTypeInternal ErrorType = iota

	// ErrorTypeDiskIOException covers every disk failure other than a
	// permission problem, out-of-space included.
	ErrorTypeDiskIOException
	ErrorTypeDiskUnauthorizedAccess

	ErrorTypeNetworkNoReachability
	// ErrorTypeNetworkUnauthorizedReachability means the only network
	// available is carrier data and no group granted its use.
	ErrorTypeNetworkUnauthorizedReachability
	ErrorTypeNetworkServerSizeMismatch
	ErrorTypeNetworkNoAccessToContent
	ErrorTypeNetworkTimeout
	ErrorTypeNetworkWebException

	ErrorTypeInternalDownloadDisabled
	ErrorTypeInternalDownloadAborted
	ErrorTypeInternalCRCMismatch
)

var errorTypeNames = map[ErrorType]string{
	ErrorTypeInternal:                        "internal",
	ErrorTypeDiskIOException:                 "disk_io_exception",
	ErrorTypeDiskUnauthorizedAccess:          "disk_unauthorized_access",
	ErrorTypeNetworkNoReachability:           "network_no_reachability",
	ErrorTypeNetworkUnauthorizedReachability: "network_unauthorized_reachability",
	ErrorTypeNetworkServerSizeMismatch:       "network_server_size_mismatch",
	ErrorTypeNetworkNoAccessToContent:        "network_no_access_to_content",
	ErrorTypeNetworkTimeout:                  "network_timeout",
	ErrorTypeNetworkWebException:             "network_web_exception",
	ErrorTypeInternalDownloadDisabled:        "internal_download_disabled",
	ErrorTypeInternalDownloadAborted:         "internal_download_aborted",
	ErrorTypeInternalCRCMismatch:             "internal_crc_mismatch",
}

func (t ErrorType) String() string {
	if name, ok := errorTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("error_type(%d)", int(t))
}

// IsDisk reports whether the type is a disk failure.
func (t ErrorType) IsDisk() bool {
	return t == ErrorTypeDiskIOException || t == ErrorTypeDiskUnauthorizedAccess
}

// IsNetwork reports whether the type is a network failure.
func (t ErrorType) IsNetwork() bool {
	return t >= ErrorTypeNetworkNoReachability && t <= ErrorTypeNetworkWebException
}

// Error is the engine's error value. Err holds the cause when there is
// one.
type Error struct {
	Type ErrorType
	Err  error
}

// NewError returns an Error of the given type.
func NewError(errorType ErrorType, format string, args ...any) *Error {
	return &Error{Type: errorType, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Type.String()
	}
	return e.Type.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// AsError converts any error into an *Error. Disk errors map to the
// disk types, context cancellation to aborted, deadline to timeout,
// anything else unrecognised to internal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var engineError *Error
	if errors.As(err, &engineError) {
		return engineError
	}
	switch disk.KindOf(err) {
	case disk.KindUnauthorizedAccess:
		return &Error{Type: ErrorTypeDiskUnauthorizedAccess, Err: err}
	case disk.KindIO, disk.KindOutOfSpace:
		return &Error{Type: ErrorTypeDiskIOException, Err: err}
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Type: ErrorTypeNetworkTimeout, Err: err}
	case errors.Is(err, context.Canceled):
		return &Error{Type: ErrorTypeInternalDownloadAborted, Err: err}
	}
	return &Error{Type: ErrorTypeInternal, Err: err}
}

// TypeOf returns the ErrorType of err, or ErrorTypeInternal.
func TypeOf(err error) ErrorType {
	if err == nil {
		return ErrorTypeInternal
	}
	return AsError(err).Type
}
