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

// Package codec declares the narrow contract a wire packet schema must
// satisfy to sit on top of this toolkit's byte-oriented layers. The schema
// itself — message types, field layout, versioning — is deliberately out
// of scope here; this package only fixes the shape a decoder/encoder pair
// needs so handlers can be written against it generically.
package codec

import (
	"github.com/pkg/errors"

	"github.com/Bruce0203/socket-server/cursor"
)

// ErrNotReady reports that buf does not yet hold a complete packet. It is
// the codec-level analogue of stream.ErrNotReady and is not a fatal
// condition for the connection.
var ErrNotReady = errors.New("codec: not enough data buffered yet")

// ServerBoundDecoder decodes one packet from the front of buf, advancing
// buf's read position past it. It returns ErrNotReady (not an error the
// reactor treats as fatal) when buf doesn't yet hold a full packet.
type ServerBoundDecoder interface {
	DecodeServerBound(buf *cursor.Cursor) (any, error)
}

// ClientBoundEncoder appends one packet's wire bytes to the unfilled tail
// of buf.
type ClientBoundEncoder interface {
	EncodeClientBound(packet any, buf *cursor.Cursor) error
}

// Codec bundles both directions, the shape a handler's per-connection
// protocol state is expected to implement.
type Codec interface {
	ServerBoundDecoder
	ClientBoundEncoder
}
