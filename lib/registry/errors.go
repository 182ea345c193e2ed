// Copyright 2026 The Sourcebots Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrIndexOutOfRange matches *IndexError.
	ErrIndexOutOfRange = errors.New("registry: index out of range")

	// ErrUnknownSerial matches *KeyError.
	ErrUnknownSerial = errors.New("registry: unknown serial")

	// ErrReadOnly is returned by every List mutation.
	ErrReadOnly = errors.New("registry: board list is read-only")
)

// IndexError reports an ordinal outside [0, Len).
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("board index %d out of range (have %d boards)", e.Index, e.Len)
}

func (e *IndexError) Is(target error) bool { return target == ErrIndexOutOfRange }

// KeyError reports a serial that no board in the list has.
type KeyError struct {
	Serial string
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("no board with serial %q", e.Serial)
}

func (e *KeyError) Is(target error) bool { return target == ErrUnknownSerial }
