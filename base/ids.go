package base

import (
	"fmt"
	"sync/atomic"
)

// IDCounter is an ascending integer identity counter. IDs handed out are
// unique for the lifetime of the counter, which callers typically scope to
// the whole process by sharing one instance. Plain integers are preferred
// over UUIDs here because saved graphs re-identify objects through a
// previous-id remap table (see Remap), which needs a total order.
type IDCounter struct {
	ctr atomic.Int64
}

// NewIDCounter returns a counter whose first Next call yields 1. Zero is
// reserved as "no identity assigned yet".
func NewIDCounter() *IDCounter {
	return &IDCounter{}
}

// Next reserves and returns the next identity.
func (c *IDCounter) Next() int64 {
	return c.ctr.Add(1)
}

// Current returns the most recently handed out identity without reserving
// a new one.
func (c *IDCounter) Current() int64 {
	return c.ctr.Load()
}

// Advance moves the counter forward so that future identities are greater
// than floor. Moving a counter backwards is illegal because it would allow
// identity reuse.
func (c *IDCounter) Advance(floor int64) error {
	for {
		cur := c.ctr.Load()
		if floor < cur {
			return fmt.Errorf("cannot advance id counter backwards: %d < %d", floor, cur)
		}
		if floor == cur || c.ctr.CompareAndSwap(cur, floor) {
			return nil
		}
	}
}
