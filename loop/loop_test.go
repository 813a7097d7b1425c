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

package loop_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/Bruce0203/socket-server/conn"
	"github.com/Bruce0203/socket-server/loop"
	"github.com/Bruce0203/socket-server/stream"
)

// pingPongHandler is a minimal reactor.Handler that echoes whatever arrives
// back onto the same connection's write buffer.
type pingPongHandler struct{}

func (pingPongHandler) Tick() {}

func (pingPongHandler) Accept(c *conn.Connection) {}

func (pingPongHandler) Read(c *conn.Connection) error {
	channel := c.Stream.(*stream.WritableByteChannel)
	if err := channel.WriteBuf.Push(c.ReadBuf.Filled()); err != nil {
		return err
	}
	c.ReadBuf.Clear()
	return c.RegisterFlushEvent()
}

func (pingPongHandler) Flush(c *conn.Connection) error { return nil }

func (pingPongHandler) Close(c *conn.Connection) {}

func newTestLoop(t *testing.T) *loop.Loop {
	t.Helper()
	l, err := loop.New(loop.Config{
		Addr:           "127.0.0.1:0",
		Handler:        pingPongHandler{},
		NewLayer:       func(tcp *stream.TCPStream) stream.Layer { return stream.NewWritableByteChannel(tcp, 256) },
		MaxConnections: 8,
		ReadBufferSize: 256,
		TickInterval:   50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("loop.New: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

// TestLoopRunServesOneEchoConnection wires a Loop the way a deployment's
// main package would: bind an ephemeral port, run it under Run in the
// background, dial in, and confirm a round trip before cancelling.
func TestLoopRunServesOneEchoConnection(t *testing.T) {
	l := newTestLoop(t)
	addr, err := l.Addr()
	if err != nil {
		t.Fatalf("Addr: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- l.Run(ctx) }()

	c, err := net.Dial("tcp", addr.String())
	if err != nil {
		cancel()
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	if _, err := c.Write([]byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 5)
	if _, err := c.Read(buf); err != nil {
		t.Fatalf("Read echo: %v", err)
	}
	if string(buf) != "hello" {
		t.Fatalf("expected echoed %q, got %q", "hello", buf)
	}

	cancel()
	if err := <-runErr; err != context.Canceled {
		t.Fatalf("expected Run to return context.Canceled, got %v", err)
	}
}

// TestLoopRunOnceNeverBlocks exercises RunOnce directly, the way a caller
// that wants to interleave its own work between passes would, and confirms
// a call with no connections at all returns promptly without error.
func TestLoopRunOnceNeverBlocks(t *testing.T) {
	l := newTestLoop(t)
	done := make(chan error, 1)
	go func() { done <- l.RunOnce() }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("RunOnce: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("RunOnce blocked for over a second with no connections")
	}
}
