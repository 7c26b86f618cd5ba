// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package disk

import (
	"errors"
	"fmt"
	"io/fs"
	"syscall"
)

// Kind classifies a disk failure.
type Kind int

const (
	// KindIO is any failure that is neither a permission nor a space
	// problem.
	KindIO Kind = iota + 1

	// KindUnauthorizedAccess means the process lacks permission for
	// the file or directory.
	KindUnauthorizedAccess

	// KindOutOfSpace means the device or quota is full.
	KindOutOfSpace
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindUnauthorizedAccess:
		return "unauthorized_access"
	case KindOutOfSpace:
		return "out_of_space"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ErrNoSpace is returned by drivers that enforce their own capacity.
var ErrNoSpace = errors.New("no space left on device")

// ErrInvalidName is returned for file names containing path separators
// or relative components.
var ErrInvalidName = errors.New("invalid file name")

// Error describes a failed disk operation.
type Error struct {
	Op   string
	Dir  Directory
	Name string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("disk: %s %s: %s: %v", e.Op, e.Dir, e.Kind, e.Err)
	}
	return fmt.Sprintf("disk: %s %s/%s: %s: %v", e.Op, e.Dir, e.Name, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of the first *Error in err's chain, or zero
// when err is not a disk error.
func KindOf(err error) Kind {
	var diskError *Error
	if errors.As(err, &diskError) {
		return diskError.Kind
	}
	return 0
}

// IsNotExist reports whether err means the file does not exist.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func classify(err error) Kind {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return KindUnauthorizedAccess
	case errors.Is(err, ErrNoSpace), errors.Is(err, syscall.ENOSPC), errors.Is(err, syscall.EDQUOT):
		return KindOutOfSpace
	default:
		return KindIO
	}
}

// IsDecode reports whether err came from a file that exists but whose
// content could not be decoded.
func IsDecode(err error) bool {
	var diskError *Error
	return errors.As(err, &diskError) && diskError.Op == "decode"
}
