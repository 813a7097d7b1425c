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

//go:build linux

package stream

import (
	"io"
	"net"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// wouldBlockErr marks an error as transient so cursor.isWouldBlock reports
// it as cursor.ErrWouldBlock rather than wrapping it as an I/O error.
type wouldBlockErr struct{ err error }

func (w wouldBlockErr) Error() string   { return w.err.Error() }
func (w wouldBlockErr) Temporary() bool { return true }
func (w wouldBlockErr) Unwrap() error   { return w.err }

// TCPStream is a raw, non-blocking TCP socket identified by its file
// descriptor. It never goes through net.Conn's blocking read/write path or
// the Go runtime's own netpoller — the whole point of the toolkit is that
// this module's epoll instance is the only poller touching the fd.
type TCPStream struct {
	fd int
}

// NewTCPStream wraps an already-nonblocking, already-accepted fd.
func NewTCPStream(fd int) *TCPStream {
	return &TCPStream{fd: fd}
}

// FD implements poller.Pollable and Conn.
func (t *TCPStream) FD() int { return t.fd }

// Read implements io.Reader over the raw fd.
func (t *TCPStream) Read(p []byte) (int, error) {
	n, err := unix.Read(t.fd, p)
	if err != nil {
		if err == unix.EAGAIN {
			return 0, wouldBlockErr{err}
		}
		return 0, errors.Wrap(err, "stream: tcp read")
	}
	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Write implements io.Writer over the raw fd.
func (t *TCPStream) Write(p []byte) (int, error) {
	n, err := unix.Write(t.fd, p)
	if err != nil {
		if err == unix.EAGAIN {
			return n, wouldBlockErr{err}
		}
		return n, errors.Wrap(err, "stream: tcp write")
	}
	return n, nil
}

// Close closes the underlying fd. The caller must deregister the stream
// from the poller first — closing a still-registered fd is undefined
// behavior for epoll.
func (t *TCPStream) Close() error {
	return unix.Close(t.fd)
}

// Listener accepts raw non-blocking TCP sockets on a bound, listening fd.
type Listener struct {
	fd int
}

// Listen builds a listening socket bound to addr ("host:port"), set
// non-blocking so Accept never blocks the event loop.
func Listen(addr string) (*Listener, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "stream: resolve listen addr")
	}
	domain := unix.AF_INET
	sockAddr, err := sockaddrFromTCPAddr(tcpAddr)
	if err != nil {
		return nil, err
	}
	if tcpAddr.IP != nil && tcpAddr.IP.To4() == nil {
		domain = unix.AF_INET6
	}

	fd, err := unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, errors.Wrap(err, "stream: socket")
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(err, "stream: setsockopt reuseaddr")
	}
	if err := unix.Bind(fd, sockAddr); err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(err, "stream: bind")
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(err, "stream: listen")
	}
	return &Listener{fd: fd}, nil
}

// FD implements poller.Pollable.
func (l *Listener) FD() int { return l.fd }

// Addr reports the address the listening socket is actually bound to —
// useful after Listen(":0") picks an ephemeral port.
func (l *Listener) Addr() (*net.TCPAddr, error) {
	sa, err := unix.Getsockname(l.fd)
	if err != nil {
		return nil, errors.Wrap(err, "stream: getsockname")
	}
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IP(sa.Addr[:]), Port: sa.Port}, nil
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: net.IP(sa.Addr[:]), Port: sa.Port}, nil
	default:
		return nil, errors.Errorf("stream: unexpected sockaddr type %T", sa)
	}
}

// Accept pulls one pending connection off the backlog, already set
// non-blocking. It reports wouldBlockErr (temporary) when the backlog is
// empty, which the reactor treats as "no more to accept this pass".
func (l *Listener) Accept() (*TCPStream, error) {
	connFD, _, err := unix.Accept4(l.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		if err == unix.EAGAIN {
			return nil, wouldBlockErr{err}
		}
		return nil, errors.Wrap(err, "stream: accept4")
	}
	return NewTCPStream(connFD), nil
}

// Close closes the listening socket.
func (l *Listener) Close() error {
	return unix.Close(l.fd)
}

func sockaddrFromTCPAddr(addr *net.TCPAddr) (unix.Sockaddr, error) {
	ip := addr.IP
	if ip == nil {
		ip = net.IPv4zero
	}
	if ip4 := ip.To4(); ip4 != nil {
		var sa unix.SockaddrInet4
		copy(sa.Addr[:], ip4)
		sa.Port = addr.Port
		return &sa, nil
	}
	ip16 := ip.To16()
	if ip16 == nil {
		return nil, errors.Errorf("stream: invalid listen IP %v", ip)
	}
	var sa unix.SockaddrInet6
	copy(sa.Addr[:], ip16)
	sa.Port = addr.Port
	return &sa, nil
}
