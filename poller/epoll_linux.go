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

package poller

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Epoll is the one physical-poller backend this module ships: a
// level-triggered, READABLE-only epoll wrapper. Every stream registers with
// EPOLLIN only (spec.md §4.2: "Interest is fixed to READABLE; WRITABLE is
// not used"), so a connection whose kernel send buffer is full cannot signal
// writability back to the reactor — by design, per spec.md §9.
type Epoll struct {
	fd        int
	tokenByFD map[int]int
	fdByToken map[int]int
}

// NewEpoll creates a fresh epoll instance.
func NewEpoll() (*Epoll, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(err, "poller: epoll_create1")
	}
	return &Epoll{
		fd:        fd,
		tokenByFD: make(map[int]int),
		fdByToken: make(map[int]int),
	}, nil
}

// Register implements Poller.
func (e *Epoll) Register(stream Pollable, token int) error {
	fd := stream.FD()
	if _, ok := e.fdByToken[token]; ok {
		return ErrAlreadyRegistered
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(e.fd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return errors.Wrap(err, "poller: epoll_ctl add")
	}
	e.tokenByFD[fd] = token
	e.fdByToken[token] = fd
	return nil
}

// Deregister implements Poller.
func (e *Epoll) Deregister(stream Pollable) error {
	fd := stream.FD()
	token, ok := e.tokenByFD[fd]
	if !ok {
		return nil
	}
	// EPOLL_CTL_DEL with a nil event works on every kernel this module
	// targets; older kernels (<2.6.9) required a non-nil event pointer,
	// which is not a concern for the supported platform set.
	if err := unix.EpollCtl(e.fd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return errors.Wrap(err, "poller: epoll_ctl del")
	}
	delete(e.tokenByFD, fd)
	delete(e.fdByToken, token)
	return nil
}

// Poll implements Poller: a single non-blocking pass (timeout 0), per
// spec.md §4.2 — the tick machine, not this call, dictates cadence.
func (e *Epoll) Poll(dst []Event) ([]Event, error) {
	var raw [256]unix.EpollEvent
	n, err := unix.EpollWait(e.fd, raw[:], 0)
	if err != nil {
		if err == unix.EINTR {
			return dst, nil
		}
		return dst, errors.Wrap(err, "poller: epoll_wait")
	}
	for i := 0; i < n; i++ {
		fd := int(raw[i].Fd)
		token, ok := e.tokenByFD[fd]
		if !ok {
			continue // deregistered between wait and drain; drop stale event
		}
		dst = append(dst, Event{Token: token})
	}
	return dst, nil
}

// Close implements Poller.
func (e *Epoll) Close() error {
	return unix.Close(e.fd)
}
