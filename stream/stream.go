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

// Package stream implements the layered connection stack: a raw non-blocking
// TCP socket at the bottom (optionally wrapped by a compression decorator),
// a bounded write buffer above it, and optional WebSocket framing and
// packet-codec layers above that. Each layer forwards capabilities it doesn't own straight
// through to the layer below it, so a handler written against the bottom
// layer's Conn interface keeps working unmodified when wrapped in any
// combination of the layers above.
package stream

import (
	"io"

	"github.com/pkg/errors"

	"github.com/Bruce0203/socket-server/cursor"
)

// ErrNotReady reports that a layer's PollRead consumed bytes but does not
// yet have a complete unit (frame, packet, handshake) to hand upward. It is
// not an error condition for the connection — the reactor simply waits for
// the next readiness event.
var ErrNotReady = errors.New("stream: not enough data buffered yet")

// ErrProtocolViolation reports malformed input on a framed layer (a bad
// opcode, an unparsable handshake, ...). The reactor treats it exactly like
// a remote close.
var ErrProtocolViolation = errors.New("stream: protocol violation")

// ErrFlushRequested is returned by PollRead when a layer produced output
// that must be flushed before anything else happens on the connection (the
// WebSocket handshake response is the only case in this module). The
// reactor registers a flush event and does not treat it as a read result.
var ErrFlushRequested = errors.New("stream: flush requested")

// Conn is the bottom-layer contract: a non-blocking, cursor-free byte
// channel plus the file descriptor the poller registers. Every concrete
// transport (currently TCPStream) and every pass-through decorator
// (snappy) implements it.
type Conn interface {
	io.Reader
	io.Writer
	io.Closer
	FD() int
}

// Layer is the cursor-aware contract every stacked component above the raw
// Conn implements: PollRead drains readiness into buf and returns
// ErrNotReady/ErrFlushRequested/ErrProtocolViolation or a terminal error;
// Flush pushes whatever that layer has queued down to the layer below.
type Layer interface {
	io.Closer
	FD() int
	PollRead(buf *cursor.Cursor) error
	Flush() error
}

// ByteWriter is the capability a layer exposes when its outbound bytes sit
// in a single cursor a layer above it can encode straight into, rather than
// going through its own Write method. WritableByteChannel and
// WebSocketServer both satisfy it, which is what lets PacketStreamPipe sit
// on top of either one without caring which.
type ByteWriter interface {
	Layer
	WriteBuffer() *cursor.Cursor
}
