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
	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

// SnappyConn wraps a Conn and transparently snappy-compresses everything
// written to it and decompresses everything read from it. It slots in
// directly below WritableByteChannel: both sides of a connection opt into
// it (or not) at accept time, never mid-stream.
type SnappyConn struct {
	inner Conn
	w     *snappy.Writer
	r     *snappy.Reader
}

// NewSnappyConn wraps inner with a buffered snappy writer/reader pair.
func NewSnappyConn(inner Conn) *SnappyConn {
	return &SnappyConn{
		inner: inner,
		w:     snappy.NewBufferedWriter(inner),
		r:     snappy.NewReader(inner),
	}
}

// FD implements poller.Pollable.
func (s *SnappyConn) FD() int { return s.inner.FD() }

// Read implements io.Reader, transparently decompressing.
func (s *SnappyConn) Read(p []byte) (int, error) {
	return s.r.Read(p)
}

// Write implements io.Writer. Every call flushes the snappy block
// immediately: the reactor already owns buffering and batches writes at
// the WritableByteChannel layer above, so holding bytes back here would
// just double-buffer them.
func (s *SnappyConn) Write(p []byte) (int, error) {
	if _, err := s.w.Write(p); err != nil {
		return 0, errors.Wrap(err, "stream: snappy write")
	}
	if err := s.w.Flush(); err != nil {
		return 0, errors.Wrap(err, "stream: snappy flush")
	}
	return len(p), nil
}

// Close closes the underlying connection.
func (s *SnappyConn) Close() error {
	return s.inner.Close()
}
