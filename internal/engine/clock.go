package engine

import "sync/atomic"

// Clock hands out the seq stamped on every delivered action. Seqs start at
// 1 and never repeat, so the journal can use them as its primary key.
type Clock struct {
	seq atomic.Int64
}

// NewClock returns a clock whose first seq is 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt returns a clock whose first seq is last+1, for a store that
// continues an existing journal.
func NewClockAt(last int64) *Clock {
	c := &Clock{}
	c.seq.Store(last)
	return c
}

// Next stamps one action.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current is the last seq handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// Advance moves the clock up to seq; a lower seq is ignored.
func (c *Clock) Advance(seq int64) {
	for cur := c.seq.Load(); seq > cur; cur = c.seq.Load() {
		if c.seq.CompareAndSwap(cur, seq) {
			return
		}
	}
}
