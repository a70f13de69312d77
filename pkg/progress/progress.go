// Package progress tracks live pipeline counters. Counters are updated from
// many worker goroutines, so everything is atomic and cheap to bump.
package progress

import "sync/atomic"

// Counter accumulates pipeline stage counts.
type Counter struct {
	discovered atomic.Int64
	fetched    atomic.Int64
	resolved   atomic.Int64
	skipped    atomic.Int64
	failed     atomic.Int64
	published  atomic.Int64
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Discovered int64 `json:"discovered"`
	Fetched    int64 `json:"fetched"`
	Resolved   int64 `json:"resolved"`
	Skipped    int64 `json:"skipped"`
	Failed     int64 `json:"failed"`
	Published  int64 `json:"published"`
}

// Remaining is how many discovered packages have not yet reached a terminal
// state (resolved, skipped, or failed).
func (s Snapshot) Remaining() int64 {
	n := s.Discovered - s.Resolved - s.Skipped - s.Failed
	if n < 0 {
		return 0
	}
	return n
}

func (c *Counter) Discovered(n int) { c.discovered.Add(int64(n)) }
func (c *Counter) Fetched()         { c.fetched.Add(1) }
func (c *Counter) Resolved()        { c.resolved.Add(1) }
func (c *Counter) Skipped(n int)    { c.skipped.Add(int64(n)) }
func (c *Counter) Failed()          { c.failed.Add(1) }
func (c *Counter) Published(n int)  { c.published.Store(int64(n)) }

// Snapshot returns the current counts.
func (c *Counter) Snapshot() Snapshot {
	return Snapshot{
		Discovered: c.discovered.Load(),
		Fetched:    c.fetched.Load(),
		Resolved:   c.resolved.Load(),
		Skipped:    c.skipped.Load(),
		Failed:     c.failed.Load(),
		Published:  c.published.Load(),
	}
}
