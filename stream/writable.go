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

package stream

import "github.com/Bruce0203/socket-server/cursor"

// WritableByteChannel adds a bounded outbound buffer in front of a Conn.
// Upper layers (WebSocketServer, the packet codec) push bytes straight into
// WriteBuf; Flush is the only operation that actually touches the
// underlying socket. PollRead is an unrelated capability and is forwarded
// to Inner untouched.
type WritableByteChannel struct {
	Inner    Conn
	WriteBuf *cursor.Cursor
}

// NewWritableByteChannel wraps inner with a write buffer of the given
// capacity (W_MAX in spec.md's terms).
func NewWritableByteChannel(inner Conn, capacity int) *WritableByteChannel {
	return &WritableByteChannel{Inner: inner, WriteBuf: cursor.New(capacity)}
}

// FD implements poller.Pollable.
func (w *WritableByteChannel) FD() int { return w.Inner.FD() }

// Close closes the underlying connection.
func (w *WritableByteChannel) Close() error { return w.Inner.Close() }

// PollRead forwards straight to Inner; buffering outbound bytes has nothing
// to do with draining inbound ones.
func (w *WritableByteChannel) PollRead(buf *cursor.Cursor) error {
	_, err := buf.PushFromRead(w.Inner)
	return err
}

// Flush drains WriteBuf to Inner. A partial drain (the kernel send buffer
// filled up mid-write) is not an error: the unwritten remainder stays in
// WriteBuf for the next flush event.
func (w *WritableByteChannel) Flush() error {
	_, err := w.WriteBuf.PushToWrite(w.Inner)
	return err
}

// WriteBuffer exposes the outbound cursor directly, the ByteWriter
// capability a packet codec layer encodes into.
func (w *WritableByteChannel) WriteBuffer() *cursor.Cursor { return w.WriteBuf }
