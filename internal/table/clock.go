package table

import "sync/atomic"

// regClock hands out listener registration sequence numbers. Listener order
// ties break by it, so two listeners with equal Order run in the order they
// were activated.
type regClock struct {
	last atomic.Int64
}

func (c *regClock) tick() int64 { return c.last.Add(1) }
