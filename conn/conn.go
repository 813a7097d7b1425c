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

// Package conn holds the per-connection record the reactor's slab stores:
// the layered stream, its read buffer, and the small Idle/FlushRequested/
// CloseRequested state machine that decides whether a token is sitting in
// the event queue.
package conn

import (
	"github.com/Bruce0203/socket-server/cursor"
	"github.com/Bruce0203/socket-server/queue"
	"github.com/Bruce0203/socket-server/stream"
)

// State is a connection's position in the Idle -> FlushRequested ->
// CloseRequested state machine. CloseRequested is terminal: once set, it is
// never overwritten by a later flush request (close always wins).
type State int

const (
	Idle State = iota
	FlushRequested
	CloseRequested
)

// Connection is one accepted socket's bookkeeping: its token in the
// reactor's slab, its layered stream, its inbound read buffer, and the
// event-queue state machine. Application-level per-connection fields
// (player id, session data, ...) are expected to live in a handler-owned
// side table keyed by Token, not bolted onto this struct.
type Connection struct {
	Token   int
	Stream  stream.Layer
	ReadBuf *cursor.Cursor

	state State
	queue *queue.Queue
}

// New builds a Connection bound to token, backed by s, with a read buffer
// of the given fixed capacity (R_MAX), whose flush/close requests are
// appended to q.
func New(token int, s stream.Layer, readCapacity int, q *queue.Queue) *Connection {
	return &Connection{
		Token:   token,
		Stream:  s,
		ReadBuf: cursor.New(readCapacity),
		queue:   q,
	}
}

// State returns the connection's current state.
func (c *Connection) State() State { return c.state }

// RegisterFlushEvent requests that the reactor call Flush on this
// connection during its next drain pass. It is idempotent: calling it
// again before the drain runs does not queue a second token, and it is a
// no-op once CloseRequested has been set (close always wins over flush).
func (c *Connection) RegisterFlushEvent() error {
	if c.state == CloseRequested {
		return nil
	}
	if c.state == Idle {
		if err := c.queue.Push(c.Token); err != nil {
			return err
		}
	}
	c.state = FlushRequested
	return nil
}

// RegisterCloseEvent requests that the reactor close this connection during
// its next drain pass. Like RegisterFlushEvent it only enqueues the token
// once; a connection already FlushRequested is upgraded to CloseRequested
// in place without a second queue entry.
func (c *Connection) RegisterCloseEvent() error {
	if c.state == Idle {
		if err := c.queue.Push(c.Token); err != nil {
			return err
		}
	}
	c.state = CloseRequested
	return nil
}

// ResetToIdle is called by the reactor once a FlushRequested connection has
// been drained — the reverse of RegisterFlushEvent's state transition.
func (c *Connection) ResetToIdle() {
	if c.state == FlushRequested {
		c.state = Idle
	}
}
