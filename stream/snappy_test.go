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

package stream_test

import (
	"bytes"
	"testing"

	"github.com/Bruce0203/socket-server/mock"
	"github.com/Bruce0203/socket-server/stream"
)

func TestSnappyConnRoundTrip(t *testing.T) {
	tr := mock.NewTransport(8192)
	a := stream.NewSnappyConn(tr.A)
	b := stream.NewSnappyConn(tr.B)

	payload := bytes.Repeat([]byte("snappy payload over a non-blocking mock conn "), 32)
	if _, err := a.Write(payload); err != nil {
		t.Fatalf("a.Write: %v", err)
	}
	if err := tr.Flex(); err != nil {
		t.Fatalf("Flex: %v", err)
	}

	got := make([]byte, len(payload))
	n := 0
	for n < len(got) {
		m, err := b.Read(got[n:])
		if err != nil {
			t.Fatalf("b.Read: %v", err)
		}
		n += m
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("round-tripped payload mismatch")
	}
}
