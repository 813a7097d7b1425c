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

package queue

import "github.com/pkg/errors"

// ErrQueueFull reports that the event queue is at MAX_CONNECTIONS capacity.
// Under the state-machine contract (a token is only pushed while leaving
// Idle, and can't leave Idle twice without being drained first) this should
// never trigger in practice; it exists so a bug in that contract fails loud
// instead of growing the queue unboundedly.
var ErrQueueFull = errors.New("queue: event queue full")

// Queue is the bounded, single-producer FIFO of connection tokens described
// in spec.md §3 ("Event queue Q"). It is backed by a fixed array sized at
// construction (mirroring _examples/original_source/src/stream/write_registry.rs's
// fixed-capacity registry) rather than a growable slice.
type Queue struct {
	tokens []int
}

// NewQueue builds a queue bounded by capacity (MAX_CONNECTIONS).
func NewQueue(capacity int) *Queue {
	return &Queue{tokens: make([]int, 0, capacity)}
}

// Len returns the number of tokens currently queued.
func (q *Queue) Len() int { return len(q.tokens) }

// At returns the token at position i. The selector's drain loop captures
// Len() once at the start of the scan and iterates [0, capturedLen). Push
// only appends, so a token pushed mid-drain lands at or past that bound and
// waits for the next iteration; a token already queued below the bound whose
// state changes mid-drain is handled by its new state when the scan reaches it.
func (q *Queue) At(i int) int { return q.tokens[i] }

// Push appends token to the queue. The caller (conn.Connection) is
// responsible for the "at most once while non-Idle" guarantee; Push itself
// just appends.
func (q *Queue) Push(token int) error {
	if len(q.tokens) >= cap(q.tokens) {
		return ErrQueueFull
	}
	q.tokens = append(q.tokens, token)
	return nil
}

// Clear empties the queue. Called once, after the full drain scan.
func (q *Queue) Clear() {
	q.tokens = q.tokens[:0]
}
