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

package conn

import (
	"testing"

	"github.com/Bruce0203/socket-server/mock"
	"github.com/Bruce0203/socket-server/queue"
	"github.com/Bruce0203/socket-server/stream"
)

func newTestConnection(t *testing.T, q *queue.Queue) *Connection {
	t.Helper()
	layer := stream.NewWritableByteChannel(mock.NewStream(256), 256)
	return New(0, layer, 256, q)
}

func TestRegisterFlushEventIsIdempotent(t *testing.T) {
	q := queue.NewQueue(4)
	c := newTestConnection(t, q)

	if err := c.RegisterFlushEvent(); err != nil {
		t.Fatalf("first RegisterFlushEvent: %v", err)
	}
	if err := c.RegisterFlushEvent(); err != nil {
		t.Fatalf("second RegisterFlushEvent: %v", err)
	}
	if c.State() != FlushRequested {
		t.Fatalf("expected FlushRequested, got %v", c.State())
	}
	if q.Len() != 1 {
		t.Fatalf("expected exactly one queued token, got %d", q.Len())
	}
}

func TestRegisterCloseEventUpgradesFlushRequested(t *testing.T) {
	q := queue.NewQueue(4)
	c := newTestConnection(t, q)

	if err := c.RegisterFlushEvent(); err != nil {
		t.Fatalf("RegisterFlushEvent: %v", err)
	}
	if err := c.RegisterCloseEvent(); err != nil {
		t.Fatalf("RegisterCloseEvent: %v", err)
	}
	if c.State() != CloseRequested {
		t.Fatalf("expected CloseRequested, got %v", c.State())
	}
	if q.Len() != 1 {
		t.Fatalf("expected the token to still be queued exactly once, got %d", q.Len())
	}
}

func TestCloseAlwaysWinsOverLaterFlush(t *testing.T) {
	q := queue.NewQueue(4)
	c := newTestConnection(t, q)

	if err := c.RegisterCloseEvent(); err != nil {
		t.Fatalf("RegisterCloseEvent: %v", err)
	}
	if err := c.RegisterFlushEvent(); err != nil {
		t.Fatalf("RegisterFlushEvent after close: %v", err)
	}
	if c.State() != CloseRequested {
		t.Fatalf("expected close to remain terminal, got %v", c.State())
	}
}

func TestResetToIdleOnlyAffectsFlushRequested(t *testing.T) {
	q := queue.NewQueue(4)
	c := newTestConnection(t, q)

	c.ResetToIdle()
	if c.State() != Idle {
		t.Fatalf("expected Idle to remain Idle, got %v", c.State())
	}

	if err := c.RegisterCloseEvent(); err != nil {
		t.Fatalf("RegisterCloseEvent: %v", err)
	}
	c.ResetToIdle()
	if c.State() != CloseRequested {
		t.Fatalf("expected ResetToIdle to leave CloseRequested alone, got %v", c.State())
	}
}

func TestRegisterFlushEventReportsQueueFull(t *testing.T) {
	q := queue.NewQueue(1)
	// Fill the single slot with an unrelated token first.
	if err := q.Push(99); err != nil {
		t.Fatalf("seed queue: %v", err)
	}
	c := newTestConnection(t, q)
	if err := c.RegisterFlushEvent(); err != queue.ErrQueueFull {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}
