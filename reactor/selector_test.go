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

package reactor_test

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/Bruce0203/socket-server/conn"
	"github.com/Bruce0203/socket-server/poller"
	"github.com/Bruce0203/socket-server/reactor"
	"github.com/Bruce0203/socket-server/stream"
)

// echoHandler is a minimal reactor.Handler: it echoes whatever arrives back
// out on the same connection's write buffer, and tracks accepted/closed
// tokens for assertions.
type echoHandler struct {
	mu       sync.Mutex
	accepted []int
	closed   []int
}

func newEchoHandler() *echoHandler {
	return &echoHandler{}
}

func (h *echoHandler) Tick() {}

func (h *echoHandler) Accept(c *conn.Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.accepted = append(h.accepted, c.Token)
}

func (h *echoHandler) Read(c *conn.Connection) error {
	if err := c.Stream.(*stream.WritableByteChannel).WriteBuf.Push(c.ReadBuf.Filled()); err != nil {
		return err
	}
	c.ReadBuf.Clear()
	return c.RegisterFlushEvent()
}

func (h *echoHandler) Flush(c *conn.Connection) error { return nil }

func (h *echoHandler) Close(c *conn.Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = append(h.closed, c.Token)
}

// testLoop bundles a Selector with the poller and listener it owns, driving
// RunOnce-style dispatch until a predicate is satisfied or a deadline passes.
type testLoop struct {
	poller   poller.Poller
	listener *stream.Listener
	sel      *reactor.Selector
}

func newTestLoop(t *testing.T, maxConnections, bufSize int) (*testLoop, *echoHandler) {
	return newTestLoopSizes(t, maxConnections, bufSize, bufSize)
}

func newTestLoopSizes(t *testing.T, maxConnections, readBufSize, writeBufSize int) (*testLoop, *echoHandler) {
	t.Helper()
	h := newEchoHandler()
	sel, ep, listener := newTestSelector(t, h, maxConnections, readBufSize,
		func(tcp *stream.TCPStream) stream.Layer { return stream.NewWritableByteChannel(tcp, writeBufSize) })
	return &testLoop{poller: ep, listener: listener, sel: sel}, h
}

// newTestSelector is the common construction path newTestLoop/newTestLoopSizes
// build on, also reused directly by tests that need a non-default NewLayer
// (e.g. wiring a PacketStreamPipe on top of the byte channel).
func newTestSelector(t *testing.T, handler reactor.Handler, maxConnections, readBufSize int, newLayer reactor.NewStreamLayer) (*reactor.Selector, poller.Poller, *stream.Listener) {
	t.Helper()
	ep, err := poller.NewEpoll()
	if err != nil {
		t.Fatalf("NewEpoll: %v", err)
	}
	listener, err := stream.Listen("127.0.0.1:0")
	if err != nil {
		ep.Close()
		t.Fatalf("Listen: %v", err)
	}
	sel, err := reactor.New(reactor.Config{
		Handler:        handler,
		Poller:         ep,
		Listener:       listener,
		NewLayer:       newLayer,
		MaxConnections: maxConnections,
		ReadBufferSize: readBufSize,
	})
	if err != nil {
		listener.Close()
		ep.Close()
		t.Fatalf("reactor.New: %v", err)
	}
	t.Cleanup(func() {
		listener.Close()
		ep.Close()
	})
	return sel, ep, listener
}

func (l *testLoop) addr(t *testing.T) string {
	t.Helper()
	a, err := l.listener.Addr()
	if err != nil {
		t.Fatalf("Addr: %v", err)
	}
	return a.String()
}

// pump drives the selector until deadline, dispatching every ready event and
// draining the flush/close queue each pass, exactly as loop.Loop.RunOnce
// does.
func (l *testLoop) pump(t *testing.T, deadline time.Time) {
	t.Helper()
	var events []poller.Event
	for time.Now().Before(deadline) {
		var err error
		events, err = l.poller.Poll(events[:0])
		if err != nil {
			t.Fatalf("Poll: %v", err)
		}
		for _, ev := range events {
			if ev.Token == l.sel.ListenerToken() {
				if err := l.sel.Accept(); err != nil {
					t.Fatalf("Accept: %v", err)
				}
			} else {
				l.sel.Read(ev.Token)
			}
		}
		l.sel.FlushEventQueue()
		if len(events) == 0 {
			time.Sleep(time.Millisecond)
		}
	}
}

func TestAcceptThenImmediateClose(t *testing.T) {
	l, h := newTestLoop(t, 8, 256)
	c, err := net.Dial("tcp", l.addr(t))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	c.Close()

	l.pump(t, time.Now().Add(2*time.Second))

	h.mu.Lock()
	accepted := len(h.accepted)
	closed := len(h.closed)
	h.mu.Unlock()
	if accepted != 1 {
		t.Fatalf("expected exactly one accepted connection, got %d", accepted)
	}
	if closed != 1 {
		t.Fatalf("expected the connection to be closed after the peer hung up, got %d closes", closed)
	}
}

func TestEchoRoundTrip(t *testing.T) {
	l, _ := newTestLoop(t, 8, 256)
	c, err := net.Dial("tcp", l.addr(t))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	if _, err := c.Write([]byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	done := make(chan struct{})
	go func() {
		l.pump(t, time.Now().Add(2*time.Second))
		close(done)
	}()

	buf := make([]byte, 5)
	if _, err := c.Read(buf); err != nil {
		t.Fatalf("Read echo: %v", err)
	}
	<-done
	if string(buf) != "hello" {
		t.Fatalf("expected echoed %q, got %q", "hello", buf)
	}
}

func TestFlushBufferOverflowClosesConnection(t *testing.T) {
	// A read buffer much larger than the write buffer: whatever arrives in
	// one read is almost certain to overflow the 4-byte echo target.
	l, h := newTestLoopSizes(t, 8, 64, 4)
	c, err := net.Dial("tcp", l.addr(t))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	// Handler.Read's WriteBuf.Push must fail with ErrCapacityExceeded once
	// it tries to echo more than 4 bytes at once, which the selector
	// treats as a terminal error and closes the connection on.
	if _, err := c.Write([]byte("this payload is much longer than four bytes")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	l.pump(t, time.Now().Add(2*time.Second))

	h.mu.Lock()
	closed := len(h.closed)
	h.mu.Unlock()
	if closed != 1 {
		t.Fatalf("expected the overflowing connection to be closed, got %d closes", closed)
	}
}

func TestSlabFullRejectsExcessConnections(t *testing.T) {
	l, h := newTestLoop(t, 2, 256)

	for i := 0; i < 3; i++ {
		c, err := net.Dial("tcp", l.addr(t))
		if err != nil {
			t.Fatalf("Dial %d: %v", i, err)
		}
		defer c.Close()
		l.pump(t, time.Now().Add(500*time.Millisecond))
	}

	h.mu.Lock()
	accepted := len(h.accepted)
	h.mu.Unlock()
	if accepted != 2 {
		t.Fatalf("expected exactly MaxConnections=2 accepted, got %d", accepted)
	}
}
