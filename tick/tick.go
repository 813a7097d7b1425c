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

// Package tick implements the fixed-cadence clock the reactor drives its
// per-interval callback from. A single call to Tick performs at most one
// catch-up invocation no matter how many intervals have actually elapsed,
// so a stalled loop doesn't come back firing a burst of queued ticks.
package tick

import "time"

// Machine fires its callback at most once per Tick call, once interval has
// elapsed since the last firing.
type Machine struct {
	interval time.Duration
	last     time.Time
	now      func() time.Time
}

// NewMachine builds a Machine with the given period. now defaults to
// time.Now when nil; tests substitute a deterministic clock.
func NewMachine(interval time.Duration, now func() time.Time) *Machine {
	if now == nil {
		now = time.Now
	}
	return &Machine{interval: interval, now: now, last: now()}
}

// Tick calls f at most once: only if at least one interval has elapsed
// since the last firing (or construction). Multiple elapsed intervals
// still only produce a single call — there is no burst catch-up.
func (m *Machine) Tick(f func()) {
	now := m.now()
	if now.Sub(m.last) < m.interval {
		return
	}
	m.last = now
	f()
}
