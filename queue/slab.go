// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package queue implements the two bounded, allocation-free containers the
// reactor is built on: a stable-index slab for connections and a
// single-producer FIFO of pending tokens.
package queue

import "github.com/pkg/errors"

// ErrSlabFull reports that the slab has no free slots. The caller must drop
// the inbound OS socket without signaling the application handler, per
// spec.md §4.4/§7.
var ErrSlabFull = errors.New("queue: slab full")

// Slab is a stable-index associative container: removing a token never
// shifts another token's index, and a freed slot is only handed back out
// after Remove runs for it (spec.md's "tombstoning is unnecessary" note,
// §9 — we still track occupancy explicitly rather than relying on a zero
// value, since the zero value of T is a valid connection payload).
type Slab[T any] struct {
	slots    []T
	occupied []bool
	free     []int // stack of free indices, reused LIFO
	len      int
}

// NewSlab builds a slab with a fixed maximum capacity. No slot is ever
// allocated beyond this bound; Add reports ErrSlabFull instead of growing.
func NewSlab[T any](capacity int) *Slab[T] {
	return &Slab[T]{
		slots:    make([]T, capacity),
		occupied: make([]bool, capacity),
	}
}

// Cap returns the fixed maximum number of live entries.
func (s *Slab[T]) Cap() int { return len(s.slots) }

// Len returns the number of occupied slots.
func (s *Slab[T]) Len() int { return s.len }

// Add inserts value using a reclaimed index when one is free, otherwise the
// next never-used index. It returns ErrSlabFull when the slab is at
// capacity.
func (s *Slab[T]) Add(value T) (int, error) {
	if len(s.free) > 0 {
		idx := s.free[len(s.free)-1]
		s.free = s.free[:len(s.free)-1]
		s.slots[idx] = value
		s.occupied[idx] = true
		s.len++
		return idx, nil
	}
	if s.len >= len(s.slots) {
		return 0, ErrSlabFull
	}
	idx := s.len
	s.slots[idx] = value
	s.occupied[idx] = true
	s.len++
	return idx, nil
}

// Get returns the value at token and whether the slot is currently occupied.
func (s *Slab[T]) Get(token int) (T, bool) {
	if token < 0 || token >= len(s.slots) || !s.occupied[token] {
		var zero T
		return zero, false
	}
	return s.slots[token], true
}

// GetPtr returns a pointer to the slot's value for in-place mutation,
// matching the Rust source's get_unchecked_mut pattern without the unsafety:
// it returns ok=false instead of undefined behavior on a stale token.
func (s *Slab[T]) GetPtr(token int) (*T, bool) {
	if token < 0 || token >= len(s.slots) || !s.occupied[token] {
		return nil, false
	}
	return &s.slots[token], true
}

// Remove clears the slot and returns its index to the free list. Removing
// an already-empty slot is a no-op, matching spec.md §4.4's "idempotent
// against already-removed tokens" rule for close.
func (s *Slab[T]) Remove(token int) {
	if token < 0 || token >= len(s.slots) || !s.occupied[token] {
		return
	}
	var zero T
	s.slots[token] = zero
	s.occupied[token] = false
	s.free = append(s.free, token)
	s.len--
}

// Occupied reports whether token currently names a live entry.
func (s *Slab[T]) Occupied(token int) bool {
	return token >= 0 && token < len(s.slots) && s.occupied[token]
}
