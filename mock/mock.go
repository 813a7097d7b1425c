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

// Package mock implements an in-memory transport for testing the stream
// layers and connection records without a real socket: two cursor-backed
// streams whose outbound buffers are cross-wired into each other's inbound
// buffers by a single Flex call, driven in lockstep rather than through
// epoll. It does not drive a reactor.Selector, which accepts only from a
// concrete *stream.Listener.
package mock

import (
	"github.com/pkg/errors"

	"github.com/Bruce0203/socket-server/cursor"
)

// errWouldBlock marks a mock-stream read as transient, matching the
// Temporary()-bool convention cursor.PushFromRead checks for.
type errWouldBlock struct{}

func (errWouldBlock) Error() string   { return "mock: would block" }
func (errWouldBlock) Temporary() bool { return true }

// Stream is one side of a mock connection: Inbound is what Read drains,
// Outbound is what Write fills. It implements stream.Conn (io.Reader,
// io.Writer, io.Closer, FD) without touching any real file descriptor.
type Stream struct {
	Inbound  *cursor.Cursor
	Outbound *cursor.Cursor
	closed   bool

	// ForceWriteErr, when non-nil, is returned by Write instead of staging
	// anything into Outbound — the hook a test uses to simulate an I/O
	// error on flush, something overflow alone cannot reproduce.
	ForceWriteErr error
}

// NewStream allocates a mock stream with the given fixed buffer capacity
// on both sides.
func NewStream(capacity int) *Stream {
	return &Stream{Inbound: cursor.New(capacity), Outbound: cursor.New(capacity)}
}

// FD satisfies poller.Pollable; mock streams are never registered with a
// real poller, so -1 is a visibly-invalid sentinel rather than a usable fd.
func (s *Stream) FD() int { return -1 }

// Read drains bytes the peer's Flex call delivered into Inbound.
func (s *Stream) Read(p []byte) (int, error) {
	if s.Inbound.Remaining() == 0 {
		return 0, errWouldBlock{}
	}
	n := copy(p, s.Inbound.Filled())
	s.Inbound.Advance(n)
	return n, nil
}

// Write stages bytes into Outbound for the next Flex call to deliver, or
// returns ForceWriteErr unconditionally when a test has set one.
func (s *Stream) Write(p []byte) (int, error) {
	if s.ForceWriteErr != nil {
		return 0, s.ForceWriteErr
	}
	if err := s.Outbound.Push(p); err != nil {
		return 0, errors.Wrap(err, "mock: write overflow")
	}
	return len(p), nil
}

// Close marks the stream closed. There is no OS resource to release.
func (s *Stream) Close() error {
	s.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (s *Stream) Closed() bool { return s.closed }

// Transport is a pair of cross-wired mock streams: A's Outbound feeds B's
// Inbound and vice versa, exactly as if they were opposite ends of one TCP
// connection, except delivery only happens when Flex is called.
type Transport struct {
	A *Stream
	B *Stream
}

// NewTransport builds a Transport with both sides sized to capacity.
func NewTransport(capacity int) *Transport {
	return &Transport{A: NewStream(capacity), B: NewStream(capacity)}
}

// Flex performs one bidirectional delivery: whatever each side queued in
// Outbound since the last Flex moves into the other side's Inbound. It
// fails with cursor.ErrCapacityExceeded if the destination has no room,
// the same "fails rather than truncates" rule every cursor operation
// follows — a test driving Flex faster than it drains Inbound on either
// side is a test bug, not a transport bug.
func (t *Transport) Flex() error {
	if _, err := t.B.Inbound.PushFromCursor(t.A.Outbound); err != nil {
		return err
	}
	if _, err := t.A.Inbound.PushFromCursor(t.B.Outbound); err != nil {
		return err
	}
	return nil
}
