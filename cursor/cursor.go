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

// Package cursor implements a fixed-capacity byte buffer split into a filled
// half and an unfilled half, the way every buffer in this toolkit's read and
// write paths is shaped: producers advance one end, consumers advance the
// other, and the buffer never grows past the capacity it was built with.
package cursor

import (
	"io"

	"github.com/pkg/errors"
)

// ErrCapacityExceeded reports that a push could not fit in the unfilled half.
// Pushes never truncate silently; the caller decides whether that is fatal.
var ErrCapacityExceeded = errors.New("cursor: capacity exceeded")

// ErrWouldBlock reports that the underlying source/sink made no progress.
var ErrWouldBlock = errors.New("cursor: would block")

// Cursor is a byte buffer of fixed capacity N with invariant
// 0 <= pos <= filled <= N. Bytes in [pos, filled) are unread payload;
// bytes in [filled, N) are unfilled capacity.
type Cursor struct {
	buf    []byte
	pos    int
	filled int
}

// New allocates a Cursor with the given fixed capacity. The capacity is
// never grown; callers size R_MAX/W_MAX once at selector construction.
func New(capacity int) *Cursor {
	if capacity <= 0 {
		panic("cursor: capacity must be positive")
	}
	return &Cursor{buf: make([]byte, capacity)}
}

// Cap returns the fixed capacity.
func (c *Cursor) Cap() int { return len(c.buf) }

// Pos returns the current read position.
func (c *Cursor) Pos() int { return c.pos }

// FilledLen returns the high-water mark of produced bytes.
func (c *Cursor) FilledLen() int { return c.filled }

// Remaining returns filled - pos, the number of unread payload bytes.
func (c *Cursor) Remaining() int { return c.filled - c.pos }

// Unfilled returns the number of free bytes at the tail.
func (c *Cursor) Unfilled() int { return len(c.buf) - c.filled }

// Filled returns the slice of unread payload bytes, [pos, filled).
// The caller must not retain this slice across a call that mutates c.
func (c *Cursor) Filled() []byte { return c.buf[c.pos:c.filled] }

// UnfilledMut returns the mutable tail capacity, [filled, N), for producers
// that want to write directly instead of going through Push.
func (c *Cursor) UnfilledMut() []byte { return c.buf[c.filled:] }

// Advance moves pos forward by n, consuming n bytes of the filled region.
// It panics on an attempt to advance past filled, since that would violate
// the pos <= filled invariant and the caller's accounting is already wrong.
func (c *Cursor) Advance(n int) {
	if n < 0 || c.pos+n > c.filled {
		panic("cursor: advance past filled")
	}
	c.pos += n
	c.compact()
}

// Clear resets both positions to zero, discarding all buffered bytes.
func (c *Cursor) Clear() {
	c.pos = 0
	c.filled = 0
}

// compact resets pos and filled to zero once the buffer has been fully
// drained, so a subsequent push gets the whole capacity back.
func (c *Cursor) compact() {
	if c.pos == c.filled {
		c.pos = 0
		c.filled = 0
	}
}

// Push copies p into the unfilled tail, advancing filled by len(p).
// It fails with ErrCapacityExceeded rather than writing a truncated prefix.
func (c *Cursor) Push(p []byte) error {
	if len(p) > c.Unfilled() {
		return ErrCapacityExceeded
	}
	copy(c.buf[c.filled:], p)
	c.filled += len(p)
	return nil
}

// PushByte pushes a single byte, the 1-byte case of Push used by the
// WebSocket frame-header encoder.
func (c *Cursor) PushByte(b byte) error {
	if c.Unfilled() < 1 {
		return ErrCapacityExceeded
	}
	c.buf[c.filled] = b
	c.filled++
	return nil
}

// PushFromRead reads once from src into the unfilled tail and advances
// filled by the bytes read. It reports io.EOF on a clean end-of-stream (the
// selector treats that as a remote close), ErrWouldBlock when src made no
// progress without error, and wraps any other I/O error for the caller to
// treat as terminal per spec.md §7.
func (c *Cursor) PushFromRead(src io.Reader) (int, error) {
	if c.Unfilled() == 0 {
		return 0, ErrCapacityExceeded
	}
	n, err := src.Read(c.buf[c.filled:])
	if n > 0 {
		c.filled += n
	}
	if err != nil {
		if err == io.EOF {
			return n, io.EOF
		}
		if isWouldBlock(err) {
			return n, ErrWouldBlock
		}
		return n, errors.Wrap(err, "cursor: push from read")
	}
	if n == 0 {
		return 0, ErrWouldBlock
	}
	return n, nil
}

// PushToWrite drains [pos, filled) to dst, advancing pos by bytes written.
// On a complete drain it resets pos and filled to zero (spec.md §3's "after
// a successful full drain: pos == filled" invariant, trivially satisfied by
// also zeroing both).
func (c *Cursor) PushToWrite(dst io.Writer) (int, error) {
	if c.Remaining() == 0 {
		return 0, nil
	}
	n, err := dst.Write(c.buf[c.pos:c.filled])
	if n > 0 {
		c.pos += n
	}
	c.compact()
	if err != nil {
		if isWouldBlock(err) {
			return n, ErrWouldBlock
		}
		return n, errors.Wrap(err, "cursor: push to write")
	}
	if n == 0 {
		return 0, ErrWouldBlock
	}
	return n, nil
}

// PushFromCursor moves min(other.Remaining(), self.Unfilled()) bytes from
// other into self, advancing other.pos and self.filled. It fails when self
// has no room at all for a non-empty source, matching the fixed-capacity
// "fails rather than truncates" rule Push follows.
func (c *Cursor) PushFromCursor(other *Cursor) (int, error) {
	n := other.Remaining()
	if room := c.Unfilled(); n > room {
		n = room
	}
	if n == 0 && other.Remaining() > 0 {
		return 0, ErrCapacityExceeded
	}
	if n == 0 {
		return 0, nil
	}
	copy(c.buf[c.filled:c.filled+n], other.buf[other.pos:other.pos+n])
	c.filled += n
	other.pos += n
	other.compact()
	return n, nil
}

// ReadTransmute reads a fixed-size value out of the filled region without
// consuming it via a Read call, the Go analogue of the Rust source's
// read_transmute<T>(). It returns ok=false (a "not ready" signal, not an
// error) when fewer than len(out) bytes are available yet.
func (c *Cursor) ReadTransmute(out []byte) bool {
	if c.Remaining() < len(out) {
		return false
	}
	copy(out, c.buf[c.pos:c.pos+len(out)])
	c.pos += len(out)
	c.compact()
	return true
}

// PushTransmute appends a fixed-size value's bytes to the unfilled tail.
func (c *Cursor) PushTransmute(v []byte) error {
	return c.Push(v)
}

func isWouldBlock(err error) bool {
	type wouldBlocker interface{ Temporary() bool }
	if wb, ok := err.(wouldBlocker); ok {
		return wb.Temporary()
	}
	return false
}
