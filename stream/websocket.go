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
	"bytes"
	"crypto/sha1"
	"encoding/base64"
	"encoding/binary"

	"github.com/sagernet/sing/common/bufio"

	"github.com/Bruce0203/socket-server/cursor"
)

// webSocketGUID is the fixed key RFC 6455 §1.3 has the server append to the
// client's handshake key before hashing.
const webSocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

const (
	handshakeResponsePrefix = "HTTP/1.1 101 Switching Protocols\nUpgrade: websocket\nConnection: Upgrade\nSec-WebSocket-Accept: "
	handshakeResponseSuffix = "\r\n   \r\n \r\n\r\n"
)

type webSocketState int

const (
	wsIdle webSocketState = iota
	wsHandshaked
	wsAccepted
)

// WebSocketServer turns a WritableByteChannel into a server-side WebSocket
// endpoint: one HTTP upgrade handshake, then binary frames with the short
// (7-bit) length field only — frames that don't fit are rejected rather
// than parsed via the RFC's 16/64-bit extended-length fields. This mirrors
// the upstream behavior this layer was translated from: the extended
// length threshold is 8*8*8 = 512 bytes, not RFC 6455's 126/65536 split,
// and is deliberately left as-is rather than "corrected" to match the RFC
// (see the design notes for this component).
type WebSocketServer struct {
	Channel *WritableByteChannel
	state   webSocketState
}

// NewWebSocketServer wraps channel with handshake/framing state, Idle until
// the first PollRead sees the HTTP upgrade request.
func NewWebSocketServer(channel *WritableByteChannel) *WebSocketServer {
	return &WebSocketServer{Channel: channel}
}

// FD implements poller.Pollable.
func (w *WebSocketServer) FD() int { return w.Channel.FD() }

// Close closes the underlying channel.
func (w *WebSocketServer) Close() error { return w.Channel.Close() }

// WriteBuffer exposes the channel's outbound cursor, the ByteWriter
// capability a packet codec layer encodes into; framing is applied later,
// in Flush.
func (w *WebSocketServer) WriteBuffer() *cursor.Cursor { return w.Channel.WriteBuf }

// PollRead drains the channel's inner connection into buf, then interprets
// buf according to handshake state: Idle parses the HTTP upgrade and queues
// a 101 response (returning ErrFlushRequested); HandShaked means the peer
// sent data before the response was flushed, a protocol violation;
// Accepted parses one binary frame header and unmasks its payload in
// place.
func (w *WebSocketServer) PollRead(buf *cursor.Cursor) error {
	if _, err := buf.PushFromRead(w.Channel.Inner); err != nil {
		return err
	}
	switch w.state {
	case wsIdle:
		return w.pollHandshake(buf)
	case wsHandshaked:
		return ErrProtocolViolation
	default:
		return w.pollFrame(buf)
	}
}

func (w *WebSocketServer) pollHandshake(buf *cursor.Cursor) error {
	key, ok := findSecWebSocketKey(buf.Filled())
	if !ok {
		return ErrNotReady
	}
	sum := sha1.Sum(append(append([]byte{}, key...), webSocketGUID...))
	accept := base64.StdEncoding.EncodeToString(sum[:])

	dst := w.Channel.WriteBuf
	if err := dst.Push([]byte(handshakeResponsePrefix)); err != nil {
		return ErrProtocolViolation
	}
	if err := dst.Push([]byte(accept)); err != nil {
		return ErrProtocolViolation
	}
	if err := dst.Push([]byte(handshakeResponseSuffix)); err != nil {
		return ErrProtocolViolation
	}

	buf.Clear()
	w.state = wsHandshaked
	return ErrFlushRequested
}

// findSecWebSocketKey scans a raw HTTP request buffer for the
// "Sec-WebSocket-Key" header's value. It is a one-shot line scan rather
// than a general request parser: the handshake is the only HTTP this
// module ever speaks.
func findSecWebSocketKey(request []byte) ([]byte, bool) {
	const header = "Sec-WebSocket-Key:"
	idx := bytes.Index(request, []byte(header))
	if idx < 0 {
		return nil, false
	}
	rest := request[idx+len(header):]
	end := bytes.IndexByte(rest, '\r')
	if end < 0 {
		end = bytes.IndexByte(rest, '\n')
	}
	if end < 0 {
		return nil, false
	}
	return bytes.TrimSpace(rest[:end]), true
}

const maskKeyLen = 4

func (w *WebSocketServer) pollFrame(buf *cursor.Cursor) error {
	// Consume nothing until the whole short frame has arrived, so a partial
	// frame is re-parsed from its header on the next readiness event.
	if f := buf.Filled(); len(f) < 2 {
		return ErrNotReady
	} else if n := int(f[1] & 0x7f); n < 126 {
		need := 2 + n
		if f[1]&0x80 != 0 {
			need += maskKeyLen
		}
		if len(f) < need {
			return ErrNotReady
		}
	}
	var header [2]byte
	if !buf.ReadTransmute(header[:]) {
		return ErrNotReady
	}
	opcode := header[0] & 0x0f
	if opcode != 2 {
		return ErrProtocolViolation
	}
	masked := header[1]&0x80 != 0
	payloadLen := int(header[1] & 0x7f)
	if payloadLen >= 126 {
		// This layer only understands the short (7-bit) length field: a
		// peer claiming 126 or 127 here is signaling RFC 6455's 16/64-bit
		// extended-length forms, which this server never negotiates for
		// inbound frames.
		return ErrProtocolViolation
	}

	if masked {
		var maskKey [maskKeyLen]byte
		if !buf.ReadTransmute(maskKey[:]) {
			return ErrNotReady
		}
		if buf.Remaining() < payloadLen {
			return ErrNotReady
		}
		payload := buf.Filled()[:payloadLen]
		for i := range payload {
			payload[i] ^= maskKey[i%maskKeyLen]
		}
	} else if buf.Remaining() < payloadLen {
		return ErrNotReady
	}
	return nil
}

// Flush transitions HandShaked -> Accepted on the first flush after the
// handshake response is queued (mirroring the upstream state machine,
// where the response only really becomes "sent" once the selector drains
// it); on every later flush it frames whatever is sitting in
// Channel.WriteBuf as one binary WebSocket frame before draining it.
func (w *WebSocketServer) Flush() error {
	if w.state == wsHandshaked {
		w.state = wsAccepted
		return w.Channel.Flush()
	}

	payload := w.Channel.WriteBuf
	payloadLen := payload.Remaining()
	frameHeader := buildFrameHeader(payloadLen)

	if writer, ok := bufio.CreateVectorisedWriter(w.Channel.Inner); ok {
		vec := [][]byte{frameHeader, payload.Filled()}
		if _, err := bufio.WriteVectorised(writer, vec); err != nil {
			return err
		}
		payload.Clear()
		return nil
	}

	combined := cursor.New(len(frameHeader) + payloadLen)
	if err := combined.Push(frameHeader); err != nil {
		return err
	}
	if _, err := combined.PushFromCursor(payload); err != nil {
		return err
	}
	payload.Clear()
	if _, err := combined.PushToWrite(w.Channel.Inner); err != nil {
		return err
	}
	return nil
}

// buildFrameHeader encodes a binary (opcode 2) frame header for a payload
// of the given length, preserving the 8*8*8 = 512 extended-length
// threshold this layer was translated from instead of RFC 6455's 126/65536
// split.
func buildFrameHeader(payloadLen int) []byte {
	header := []byte{2}
	switch {
	case payloadLen >= 8*8*8:
		var ext [8]byte
		binary.LittleEndian.PutUint64(ext[:], uint64(payloadLen))
		header = append(header, ext[:]...)
	case payloadLen >= 126:
		var ext [2]byte
		binary.LittleEndian.PutUint16(ext[:], uint16(payloadLen))
		header = append(header, ext[:]...)
	default:
		header = append(header, byte(payloadLen))
	}
	return header
}
