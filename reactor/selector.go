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

// Package reactor implements the selector: the slab of live connections,
// the bounded event queue draining flush/close requests, and the single
// accept-one-per-ready-event / read-one-per-ready-event dispatch the event
// loop calls into on every poll pass.
package reactor

import (
	"golang.org/x/time/rate"

	"github.com/Bruce0203/socket-server/conn"
	"github.com/Bruce0203/socket-server/poller"
	"github.com/Bruce0203/socket-server/queue"
	"github.com/Bruce0203/socket-server/stream"
)

// Handler is the application contract the selector drives. It mirrors the
// teacher's accept/read/flush/close/tick shape one-for-one: Accept sees a
// freshly registered connection and may reject it by calling
// RegisterCloseEvent; Read is only invoked when the stream layer reports a
// fully-formed unit is ready (PollRead returned nil), and is responsible
// for decoding whatever packets that implies out of ReadBuf; Flush lets
// the handler stage outgoing bytes before the stream layer's own Flush
// pushes them to the wire; Close releases any handler-owned state for the
// connection's token.
type Handler interface {
	Tick()
	Accept(c *conn.Connection)
	Read(c *conn.Connection) error
	Flush(c *conn.Connection) error
	Close(c *conn.Connection)
}

// NewStreamLayer builds the layered stream for one freshly accepted TCP
// socket — the composition point where a deployment picks WebSocket
// framing, compression, or a bare byte channel.
type NewStreamLayer func(tcp *stream.TCPStream) stream.Layer

// Selector owns the slab of connections, the bounded event queue, the
// listening socket, and the poller they're all registered with.
type Selector struct {
	handler      Handler
	poller       poller.Poller
	listener     *stream.Listener
	newLayer     NewStreamLayer
	limiter    *rate.Limiter
	metrics    *Metrics
	readBufCap int
	conns      *queue.Slab[*conn.Connection]
	events     *queue.Queue
}

// Config bundles a Selector's construction parameters.
type Config struct {
	Handler        Handler
	Poller         poller.Poller
	Listener       *stream.Listener
	NewLayer       NewStreamLayer
	MaxConnections int
	ReadBufferSize int
	// Limiter, if non-nil, is consulted once per Accept call; a deployment
	// with no rate-limiting need leaves this nil.
	Limiter *rate.Limiter
	// Metrics, if non-nil, has RecordAccept/RecordClose called alongside
	// every accepted and closed connection.
	Metrics *Metrics
}

// listenerToken is the sentinel slab index the event loop interprets as
// "the listening socket became readable" rather than a connection token —
// out of range of any real slab index.
const listenerToken = -1

// New builds a Selector and registers the listener with the poller under
// the sentinel listener token.
func New(cfg Config) (*Selector, error) {
	sel := &Selector{
		handler:    cfg.Handler,
		poller:     cfg.Poller,
		listener:   cfg.Listener,
		newLayer:   cfg.NewLayer,
		limiter:    cfg.Limiter,
		metrics:    cfg.Metrics,
		readBufCap: cfg.ReadBufferSize,
		conns:      queue.NewSlab[*conn.Connection](cfg.MaxConnections),
		events:     queue.NewQueue(cfg.MaxConnections),
	}
	if err := sel.poller.Register(cfg.Listener, listenerToken); err != nil {
		return nil, err
	}
	return sel, nil
}

// ListenerToken reports the sentinel token Poll events compare against to
// decide whether to call Accept instead of Read.
func (sel *Selector) ListenerToken() int { return listenerToken }

// Tick drives the handler's per-interval callback.
func (sel *Selector) Tick() { sel.handler.Tick() }

// Accept pulls at most one pending connection off the listener's backlog —
// matching one listener-readable event to at most one accepted socket,
// the same way the reactor matches one readable event to one Read call.
// A still-full backlog is reported again on the next poll pass since
// epoll's interest here is level-triggered.
func (sel *Selector) Accept() error {
	tcp, err := sel.listener.Accept()
	if err != nil {
		if isTemporary(err) {
			return nil
		}
		return err
	}
	if sel.limiter != nil && !sel.limiter.Allow() {
		// Rate limited: drop the socket just accepted, like SlabFull below.
		tcp.Close()
		return nil
	}

	layer := sel.newLayer(tcp)
	token, err := sel.conns.Add(nil)
	if err != nil {
		// SlabFull: reject this connection outright, the server keeps
		// serving everyone already accepted.
		layer.Close()
		return nil
	}

	c := conn.New(token, layer, sel.readBufCap, sel.events)
	ptr, _ := sel.conns.GetPtr(token)
	*ptr = c

	if err := sel.poller.Register(layer, token); err != nil {
		c.RegisterCloseEvent()
		return nil
	}
	if sel.metrics != nil {
		sel.metrics.RecordAccept()
	}
	sel.handler.Accept(c)
	return nil
}

// Read is called when a connection's token becomes readable. It drains the
// stream layer into the connection's read buffer and interprets the
// result: a ready unit dispatches to Handler.Read; ErrNotReady is a no-op;
// ErrFlushRequested registers a flush event (the WebSocket handshake
// response); anything else is treated as a terminal error and the
// connection is queued for close.
func (sel *Selector) Read(token int) {
	ptr, ok := sel.conns.GetPtr(token)
	if !ok {
		return
	}
	c := *ptr

	err := c.Stream.PollRead(c.ReadBuf)
	switch err {
	case nil:
		if herr := sel.handler.Read(c); herr != nil {
			c.RegisterCloseEvent()
		}
	case stream.ErrNotReady:
		// Nothing complete yet; wait for the next readiness event.
	case stream.ErrFlushRequested:
		c.RegisterFlushEvent()
	default:
		c.RegisterCloseEvent()
	}
}

// FlushEventQueue drains the event queue exactly once: for every token
// captured at the start of the scan, Idle connections are skipped (should
// never happen — a token is only queued on leaving Idle),
// FlushRequested connections have Handler.Flush and the stream's own
// Flush invoked in order, and CloseRequested connections are closed. A
// failure at any point during a flush converts that connection straight
// to a close, matching the fixed precedence rule: once a close is pending,
// nothing above ever resurrects a connection. Tokens queued during the scan
// (past the captured length) are kept for the next call.
func (sel *Selector) FlushEventQueue() {
	scanLen := sel.events.Len()
	for i := 0; i < scanLen; i++ {
		token := sel.events.At(i)
		ptr, ok := sel.conns.GetPtr(token)
		if !ok {
			continue
		}
		c := *ptr
		switch c.State() {
		case conn.Idle:
			continue
		case conn.FlushRequested:
			c.ResetToIdle()
			herr := sel.handler.Flush(c)
			if herr == nil {
				herr = c.Stream.Flush()
			}
			if herr != nil {
				sel.closeConn(c)
			}
		case conn.CloseRequested:
			sel.closeConn(c)
		}
	}
	carried := make([]int, 0, sel.events.Len()-scanLen)
	for i := scanLen; i < sel.events.Len(); i++ {
		carried = append(carried, sel.events.At(i))
	}
	sel.events.Clear()
	for _, token := range carried {
		_ = sel.events.Push(token)
	}
}

func (sel *Selector) closeConn(c *conn.Connection) {
	sel.handler.Close(c)
	_ = sel.poller.Deregister(c.Stream)
	_ = c.Stream.Close()
	sel.conns.Remove(c.Token)
	if sel.metrics != nil {
		sel.metrics.RecordClose()
	}
}

// Connections reports the number of currently live connections, for the
// metrics reporter.
func (sel *Selector) Connections() int { return sel.conns.Len() }

func isTemporary(err error) bool {
	type temporary interface{ Temporary() bool }
	if t, ok := err.(temporary); ok {
		return t.Temporary()
	}
	return false
}
