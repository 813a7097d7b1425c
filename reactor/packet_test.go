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
	"encoding/binary"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/Bruce0203/socket-server/codec"
	"github.com/Bruce0203/socket-server/conn"
	"github.com/Bruce0203/socket-server/cursor"
	"github.com/Bruce0203/socket-server/stream"
)

// lengthPrefixedCodec mirrors stream/packet_test.go's fixture: a 2-byte
// big-endian length header followed by that many payload bytes.
type lengthPrefixedCodec struct{}

func (lengthPrefixedCodec) DecodeServerBound(buf *cursor.Cursor) (any, error) {
	if buf.Remaining() < 2 {
		return nil, codec.ErrNotReady
	}
	length := int(binary.BigEndian.Uint16(buf.Filled()[:2]))
	if buf.Remaining() < 2+length {
		return nil, codec.ErrNotReady
	}
	buf.Advance(2)
	payload := make([]byte, length)
	copy(payload, buf.Filled()[:length])
	buf.Advance(length)
	return string(payload), nil
}

func (lengthPrefixedCodec) EncodeClientBound(pkt any, buf *cursor.Cursor) error {
	s := pkt.(string)
	var header [2]byte
	binary.BigEndian.PutUint16(header[:], uint16(len(s)))
	if err := buf.Push(header[:]); err != nil {
		return err
	}
	return buf.Push([]byte(s))
}

// packetEchoHandler is the packet-aware analogue of echoHandler: it
// decodes one packet at a time through a PacketStreamPipe and re-encodes
// it straight back out, proving PacketStreamPipe is reachable from
// reactor.Selector's ordinary Read/Flush dispatch with no selector
// changes.
type packetEchoHandler struct {
	mu     sync.Mutex
	closed []int
}

func (h *packetEchoHandler) Tick() {}

func (h *packetEchoHandler) Accept(c *conn.Connection) {}

func (h *packetEchoHandler) Read(c *conn.Connection) error {
	pipe := c.Stream.(*stream.PacketStreamPipe)
	pkt := pipe.ReceivePacket()
	if err := pipe.WritePacket(pkt); err != nil {
		return err
	}
	return c.RegisterFlushEvent()
}

func (h *packetEchoHandler) Flush(c *conn.Connection) error { return nil }

func (h *packetEchoHandler) Close(c *conn.Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = append(h.closed, c.Token)
}

func TestPacketStreamPipeReachableFromSelector(t *testing.T) {
	h := &packetEchoHandler{}
	sel, ep, listener := newTestSelector(t, h, 8, 256, func(tcp *stream.TCPStream) stream.Layer {
		channel := stream.NewWritableByteChannel(tcp, 256)
		return stream.NewPacketStreamPipe(channel, lengthPrefixedCodec{})
	})
	l := &testLoop{poller: ep, listener: listener, sel: sel}

	c, err := net.Dial("tcp", l.addr(t))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	if _, err := c.Write([]byte{0, 5, 'h', 'e', 'l', 'l', 'o'}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	done := make(chan struct{})
	go func() {
		l.pump(t, time.Now().Add(2*time.Second))
		close(done)
	}()

	buf := make([]byte, 7)
	if _, err := c.Read(buf); err != nil {
		t.Fatalf("Read echoed packet: %v", err)
	}
	<-done

	want := []byte{0, 5, 'h', 'e', 'l', 'l', 'o'}
	for i := range want {
		if buf[i] != want[i] {
			t.Fatalf("byte %d: expected %d, got %d", i, want[i], buf[i])
		}
	}
}
