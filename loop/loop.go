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

// Package loop wires a poller, a listening socket, a selector, and a tick
// machine into the single entry point a deployment calls to serve one
// address: poll once, tick at most once, dispatch every ready event, then
// drain the flush/close queue — repeated for as long as the caller keeps
// calling RunOnce, or forever under Run.
package loop

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/Bruce0203/socket-server/poller"
	"github.com/Bruce0203/socket-server/reactor"
	"github.com/Bruce0203/socket-server/stream"
	"github.com/Bruce0203/socket-server/tick"
)

// Loop is one address's event loop: a poller, its listener, the selector
// built on top of them, and the tick machine driving Handler.Tick.
type Loop struct {
	poller   poller.Poller
	listener *stream.Listener
	selector *reactor.Selector
	ticker   *tick.Machine
	metrics  *reactor.Metrics
	eventBuf []poller.Event
}

// Config bundles what New needs to bind an address and build a Selector
// for it.
type Config struct {
	Addr           string
	Handler        reactor.Handler
	NewLayer       reactor.NewStreamLayer
	MaxConnections int
	ReadBufferSize int
	TickInterval   time.Duration
	Limiter        *rate.Limiter
	Metrics        *reactor.Metrics
}

func New(cfg Config) (*Loop, error) {
	ep, err := poller.NewEpoll()
	if err != nil {
		return nil, errors.Wrap(err, "loop: create poller")
	}
	listener, err := stream.Listen(cfg.Addr)
	if err != nil {
		ep.Close()
		return nil, errors.Wrap(err, "loop: listen")
	}
	sel, err := reactor.New(reactor.Config{
		Handler:        cfg.Handler,
		Poller:         ep,
		Listener:       listener,
		NewLayer:       cfg.NewLayer,
		MaxConnections: cfg.MaxConnections,
		ReadBufferSize: cfg.ReadBufferSize,
		Limiter:        cfg.Limiter,
		Metrics:        cfg.Metrics,
	})
	if err != nil {
		listener.Close()
		ep.Close()
		return nil, errors.Wrap(err, "loop: build selector")
	}
	return &Loop{
		poller:   ep,
		listener: listener,
		selector: sel,
		ticker:   tick.NewMachine(cfg.TickInterval, nil),
		metrics:  cfg.Metrics,
		eventBuf: make([]poller.Event, 0, cfg.MaxConnections),
	}, nil
}

// RunOnce performs exactly one pass: a non-blocking poll, at most one tick
// callback, one dispatch per ready event (accept for the listener token,
// read for everything else), and one flush/close drain.
func (l *Loop) RunOnce() error {
	events, err := l.poller.Poll(l.eventBuf[:0])
	if err != nil {
		return errors.Wrap(err, "loop: poll")
	}
	l.eventBuf = events
	l.ticker.Tick(func() {
		l.selector.Tick()
		if l.metrics != nil {
			l.metrics.Report(l.selector.Connections())
		}
	})
	for _, ev := range events {
		if ev.Token == l.selector.ListenerToken() {
			if err := l.selector.Accept(); err != nil {
				return errors.Wrap(err, "loop: accept")
			}
		} else {
			l.selector.Read(ev.Token)
		}
	}
	l.selector.FlushEventQueue()
	return nil
}

// Run calls RunOnce until ctx is done. The loop never blocks inside
// RunOnce, so this busy-polls — exactly the teacher's listen() loop, which
// also never yields between iterations.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := l.RunOnce(); err != nil {
			return err
		}
	}
}

// Addr reports the address the loop's listener is actually bound to —
// useful after a Config.Addr of ":0" lets the OS pick an ephemeral port.
func (l *Loop) Addr() (*net.TCPAddr, error) {
	return l.listener.Addr()
}

// Close releases the poller and listener. Live connections are not
// individually closed — the process exiting reclaims their fds.
func (l *Loop) Close() error {
	if err := l.listener.Close(); err != nil {
		return err
	}
	return l.poller.Close()
}
