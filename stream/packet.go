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

import (
	"github.com/Bruce0203/socket-server/codec"
	"github.com/Bruce0203/socket-server/cursor"
)

// PacketStreamPipe is the fifth concrete layer in the stack: it sits above
// a WritableByteChannel or a WebSocketServer and turns their raw bytes into
// typed packets via an application-supplied codec.Codec. The wire schema
// itself stays an external collaborator — this type only owns the
// mechanical pipe between one decoded/encoded unit and the byte-oriented
// layer beneath it.
type PacketStreamPipe struct {
	Inner ByteWriter
	Codec codec.Codec

	pending any
}

// NewPacketStreamPipe wraps inner with a packet pipe driven by c.
func NewPacketStreamPipe(inner ByteWriter, c codec.Codec) *PacketStreamPipe {
	return &PacketStreamPipe{Inner: inner, Codec: c}
}

// FD implements poller.Pollable.
func (p *PacketStreamPipe) FD() int { return p.Inner.FD() }

// Close closes the underlying layer.
func (p *PacketStreamPipe) Close() error { return p.Inner.Close() }

// PollRead drains the inner layer into buf, then tries to decode one
// packet off its front. A successful decode leaves the packet in the
// one-slot pending cell ReceivePacket reads and returns nil — the same
// "ready" signal the byte-oriented layers give the reactor, so
// PacketStreamPipe needs no changes to Selector.Read's dispatch. A
// partial packet reports ErrNotReady and leaves buf untouched for the
// codec to re-parse once more bytes arrive.
func (p *PacketStreamPipe) PollRead(buf *cursor.Cursor) error {
	if err := p.Inner.PollRead(buf); err != nil {
		return err
	}
	pkt, err := p.Codec.DecodeServerBound(buf)
	if err != nil {
		if err == codec.ErrNotReady {
			return ErrNotReady
		}
		return err
	}
	p.pending = pkt
	return nil
}

// ReceivePacket returns and clears the packet PollRead most recently
// decoded. The reactor only calls Handler.Read when PollRead returned nil,
// so a handler can call this unconditionally from inside Read.
func (p *PacketStreamPipe) ReceivePacket() any {
	pkt := p.pending
	p.pending = nil
	return pkt
}

// WritePacket encodes pkt onto the inner layer's outbound buffer. It is
// not on the wire until Flush runs.
func (p *PacketStreamPipe) WritePacket(pkt any) error {
	return p.Codec.EncodeClientBound(pkt, p.Inner.WriteBuffer())
}

// Flush forwards to the inner layer, which applies whatever framing (or
// none) it owns to the bytes WritePacket staged.
func (p *PacketStreamPipe) Flush() error { return p.Inner.Flush() }
