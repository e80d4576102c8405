// Copyright (c) 2024 The ioreactor Authors. Use of this source code is
// governed by an MIT license that can be found in the LICENSE file.

// Package stats counts reactor-level events (accepts, reads, writes,
// closes) and can periodically dump them to a CSV file, the way kcptun
// dumps kcp.DefaultSnmp counters, but for socket-level reactor activity
// instead of KCP protocol counters.
package stats

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// Counters are the reactor-wide event tallies. All fields are updated with
// atomic operations so any goroutine (not just the event-loop goroutine)
// may read them.
type Counters struct {
	Accepts    uint64
	Connects   uint64
	BytesRead  uint64
	BytesWrote uint64
	Closes     uint64
	Errors     uint64
}

// header names must stay in the same order as ToSlice/AddXxx fields.
var header = []string{"Accepts", "Connects", "BytesRead", "BytesWrote", "Closes", "Errors"}

func (c *Counters) AddAccept()          { atomic.AddUint64(&c.Accepts, 1) }
func (c *Counters) AddConnect()         { atomic.AddUint64(&c.Connects, 1) }
func (c *Counters) AddBytesRead(n int)  { atomic.AddUint64(&c.BytesRead, uint64(n)) }
func (c *Counters) AddBytesWrote(n int) { atomic.AddUint64(&c.BytesWrote, uint64(n)) }
func (c *Counters) AddClose()           { atomic.AddUint64(&c.Closes, 1) }
func (c *Counters) AddError()           { atomic.AddUint64(&c.Errors, 1) }

// ToSlice renders a snapshot of the counters for one CSV row.
func (c *Counters) ToSlice() []string {
	return []string{
		fmt.Sprint(atomic.LoadUint64(&c.Accepts)),
		fmt.Sprint(atomic.LoadUint64(&c.Connects)),
		fmt.Sprint(atomic.LoadUint64(&c.BytesRead)),
		fmt.Sprint(atomic.LoadUint64(&c.BytesWrote)),
		fmt.Sprint(atomic.LoadUint64(&c.Closes)),
		fmt.Sprint(atomic.LoadUint64(&c.Errors)),
	}
}

// Logger periodically appends a snapshot of Counters to a CSV file named by
// expanding path through time.Format (so "stats-20060102.csv"-style
// rotation works), one row per tick.
func Logger(path string, interval time.Duration, c *Counters) {
	if path == "" || interval == 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		if err := writeRow(path, c); err != nil {
			return
		}
	}
}

func writeRow(path string, c *Counters) error {
	dir, file := filepath.Split(path)
	f, err := os.OpenFile(dir+time.Now().Format(file), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return errors.Wrap(err, "stats: open log file")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if stat, err := f.Stat(); err == nil && stat.Size() == 0 {
		if err := w.Write(append([]string{"Unix"}, header...)); err != nil {
			return errors.Wrap(err, "stats: write header")
		}
	}
	if err := w.Write(append([]string{fmt.Sprint(time.Now().Unix())}, c.ToSlice()...)); err != nil {
		return errors.Wrap(err, "stats: write row")
	}
	w.Flush()
	return w.Error()
}
