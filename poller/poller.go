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

// Package poller defines the abstract readiness interface the reactor polls
// through. The physical poller (epoll, kqueue, IOCP) is an external
// collaborator per spec.md §1; this package only ships the interface plus a
// Linux epoll backend (see epoll_linux.go) as one concrete implementation.
package poller

import "github.com/pkg/errors"

// ErrAlreadyRegistered reports an attempt to register a token twice.
var ErrAlreadyRegistered = errors.New("poller: token already registered")

// Event is one readiness notification: the token under which a Pollable was
// registered. Interest is fixed to READABLE everywhere in this toolkit
// (spec.md §4.2); there is no event kind to distinguish.
type Event struct {
	Token int
}

// Pollable is anything that can be registered with a Poller: it must expose
// the OS file descriptor the poller watches.
type Pollable interface {
	// FD returns the underlying OS file descriptor.
	FD() int
}

// Poller is the abstract readiness interface spec.md §4.2 names. Register
// rejects a second registration of the same token; Deregister of a stream
// that is not registered is a no-op. Poll performs a
// single non-blocking drain of the readiness queue (the tick machine, not
// the poller, dictates cadence — spec.md: "ZERO ensures single-pass
// behavior").
type Poller interface {
	// Register adds stream under token with READABLE interest. It fails
	// with ErrAlreadyRegistered if token is already registered.
	Register(stream Pollable, token int) error

	// Deregister removes stream. Must be called before the OS socket is
	// closed.
	Deregister(stream Pollable) error

	// Poll performs one non-blocking pass, appending ready events to dst
	// and returning the extended slice.
	Poll(dst []Event) ([]Event, error)

	// Close releases the poller's own OS resources (e.g. the epoll fd).
	Close() error
}
