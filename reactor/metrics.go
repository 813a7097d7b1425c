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

package reactor

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// Metrics writes one CSV row per report to path, creating the file (and a
// header row) the first time it sees an empty or missing file. Unlike the
// teacher's own SNMP logger, which runs its own time.Ticker, Metrics is
// driven by the reactor's tick machine: loop.Loop.RunOnce calls Report from
// its tick callback, right after Handler.Tick, at the loop's tick cadence.
type Metrics struct {
	path          string
	totalAccepted uint64
	totalClosed   uint64
}

// NewMetrics builds a reporter writing to path. An empty path disables
// reporting; Report becomes a no-op.
func NewMetrics(path string) *Metrics {
	return &Metrics{path: path}
}

// RecordAccept increments the lifetime accepted-connection counter.
func (m *Metrics) RecordAccept() { m.totalAccepted++ }

// RecordClose increments the lifetime closed-connection counter.
func (m *Metrics) RecordClose() { m.totalClosed++ }

// Report appends one CSV row: unix timestamp, current active connections,
// and the lifetime accept/close counters.
func (m *Metrics) Report(activeConnections int) {
	if m.path == "" {
		return
	}
	logdir, logfile := filepath.Split(m.path)
	f, err := os.OpenFile(logdir+time.Now().Format(logfile), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Println(err)
		return
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if stat, err := f.Stat(); err == nil && stat.Size() == 0 {
		if err := w.Write([]string{"Unix", "ActiveConnections", "TotalAccepted", "TotalClosed"}); err != nil {
			log.Println(err)
		}
	}
	row := []string{
		fmt.Sprint(time.Now().Unix()),
		fmt.Sprint(activeConnections),
		fmt.Sprint(m.totalAccepted),
		fmt.Sprint(m.totalClosed),
	}
	if err := w.Write(row); err != nil {
		log.Println(err)
	}
	w.Flush()
}
