// Copyright 2026 The Sourcebots Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"cmp"
	"iter"
	"slices"
)

// Board is what the registry needs from a board handle.
type Board interface {
	Serial() string
	Endpoint() string
	Close() error
}

// List is a read-only collection of boards keyed by serial. Ordinal i
// is the board with the i-th smallest serial.
type List[B Board] struct {
	boards   []B
	bySerial map[string]int
}

// NewList builds a List from boards. The input slice is not retained.
// When two boards share a serial the first one wins.
func NewList[B Board](boards []B) *List[B] {
	sorted := make([]B, 0, len(boards))
	bySerial := make(map[string]int, len(boards))
	seen := make(map[string]bool, len(boards))
	for _, board := range boards {
		if seen[board.Serial()] {
			continue
		}
		seen[board.Serial()] = true
		sorted = append(sorted, board)
	}
	slices.SortStableFunc(sorted, func(a, b B) int {
		return cmp.Compare(a.Serial(), b.Serial())
	})
	for i, board := range sorted {
		bySerial[board.Serial()] = i
	}
	return &List[B]{boards: sorted, bySerial: bySerial}
}

// Len returns the number of boards.
func (l *List[B]) Len() int { return len(l.boards) }

// Index returns the board at ordinal i. Negative ordinals are out of
// range.
func (l *List[B]) Index(i int) (B, error) {
	if !l.HasIndex(i) {
		var zero B
		return zero, &IndexError{Index: i, Len: len(l.boards)}
	}
	return l.boards[i], nil
}

// Get returns the board with the given serial.
func (l *List[B]) Get(serial string) (B, error) {
	i, ok := l.bySerial[serial]
	if !ok {
		var zero B
		return zero, &KeyError{Serial: serial}
	}
	return l.boards[i], nil
}

// HasIndex reports whether i is a valid ordinal.
func (l *List[B]) HasIndex(i int) bool { return i >= 0 && i < len(l.boards) }

// Has reports whether a board with the given serial is present.
func (l *List[B]) Has(serial string) bool {
	_, ok := l.bySerial[serial]
	return ok
}

// Serials returns the serials in ordinal order.
func (l *List[B]) Serials() []string {
	serials := make([]string, len(l.boards))
	for i, board := range l.boards {
		serials[i] = board.Serial()
	}
	return serials
}

// Boards returns a copy of the boards in ordinal order.
func (l *List[B]) Boards() []B {
	return slices.Clone(l.boards)
}

// All iterates over ordinal, board pairs.
func (l *List[B]) All() iter.Seq2[int, B] {
	return func(yield func(int, B) bool) {
		for i, board := range l.boards {
			if !yield(i, board) {
				return
			}
		}
	}
}

// Insert always fails: a List is rebuilt by rescanning, not edited.
func (l *List[B]) Insert(B) error { return ErrReadOnly }

// Delete always fails; see Insert.
func (l *List[B]) Delete(string) error { return ErrReadOnly }
